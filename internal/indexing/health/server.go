package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/txsync/internal/core/domain"
	"github.com/vietddude/txsync/internal/indexing/updater"
)

// ActivitySource reports complete-day transaction counts.
type ActivitySource interface {
	GetDailyTransactionCounts(ctx context.Context) ([]domain.DailyCount, error)
}

// Server provides HTTP endpoints for health monitoring.
type Server struct {
	monitor *Monitor
	server  *http.Server
	log     *slog.Logger
}

// NewServer creates a new health server.
func NewServer(monitor *Monitor, port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	s := &Server{
		monitor: monitor,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: logger.With("component", "health"),
	}

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/detailed", s.handleDetailed)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /activity/{project}", s.handleActivity)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := Overall(s.monitor.CheckHealth(r.Context()))

	code := http.StatusOK
	if status == StatusCritical {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": string(status)})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	projects := s.monitor.CheckHealth(r.Context())
	writeJSON(w, http.StatusOK, HealthReport{
		SystemStatus: Overall(projects),
		Projects:     projects,
		Providers:    s.monitor.ProviderHealth(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	statuses := make([]updater.Status, 0, len(s.monitor.Targets()))
	for _, t := range s.monitor.Targets() {
		statuses = append(statuses, t.Status())
	}
	slices.SortFunc(statuses, func(a, b updater.Status) int {
		if a.ProjectID < b.ProjectID {
			return -1
		}
		if a.ProjectID > b.ProjectID {
			return 1
		}
		return 0
	})
	writeJSON(w, http.StatusOK, statuses)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	project := domain.ProjectID(r.PathValue("project"))
	target, ok := s.monitor.Target(project)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown project"})
		return
	}
	src, ok := target.(ActivitySource)
	if !ok {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "activity not available"})
		return
	}

	counts, err := src.GetDailyTransactionCounts(r.Context())
	if err != nil {
		s.log.Error("Failed to load activity", "project", project, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load activity"})
		return
	}
	if counts == nil {
		counts = []domain.DailyCount{}
	}
	writeJSON(w, http.StatusOK, counts)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
