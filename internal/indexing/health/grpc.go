package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCServer exposes the standard gRPC health service. The overall service
// ("") and one service per project report SERVING unless critical.
type GRPCServer struct {
	monitor  *Monitor
	port     int
	interval time.Duration
	server   *grpc.Server
	health   *grpchealth.Server
	log      *slog.Logger
}

// NewGRPCServer creates a gRPC health server refreshed every interval.
func NewGRPCServer(monitor *Monitor, port int, interval time.Duration, logger *slog.Logger) *GRPCServer {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	hs := grpchealth.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	return &GRPCServer{
		monitor:  monitor,
		port:     port,
		interval: interval,
		server:   srv,
		health:   hs,
		log:      logger.With("component", "grpc_health"),
	}
}

// HealthServer returns the underlying health service.
func (g *GRPCServer) HealthServer() healthpb.HealthServer {
	return g.health
}

// Refresh copies the monitor's current report into the health service.
func (g *GRPCServer) Refresh(ctx context.Context) {
	projects := g.monitor.CheckHealth(ctx)
	for id, p := range projects {
		g.health.SetServingStatus(string(id), servingStatus(p.Status))
	}
	g.health.SetServingStatus("", servingStatus(Overall(projects)))
}

// Start serves until ctx is done, refreshing statuses periodically.
func (g *GRPCServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", g.port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	g.Refresh(ctx)
	go func() {
		ticker := time.NewTicker(g.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				g.Refresh(ctx)
			}
		}
	}()

	g.log.Info("gRPC health server listening", "addr", lis.Addr().String())
	if err := g.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop marks everything NOT_SERVING and drains connections.
func (g *GRPCServer) Stop(ctx context.Context) error {
	g.health.Shutdown()

	done := make(chan struct{})
	go func() {
		g.server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		g.server.Stop()
		return ctx.Err()
	}
}

func servingStatus(s SystemStatus) healthpb.HealthCheckResponse_ServingStatus {
	if s == StatusCritical {
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
	return healthpb.HealthCheckResponse_SERVING
}
