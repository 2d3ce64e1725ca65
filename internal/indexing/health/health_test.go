package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vietddude/txsync/internal/core/domain"
	"github.com/vietddude/txsync/internal/indexing/updater"
	"github.com/vietddude/txsync/internal/infra/rpc/provider"
	"github.com/vietddude/txsync/internal/sync/taskqueue"
)

type stubTarget struct {
	status   updater.Status
	counts   []domain.DailyCount
	countErr error
}

func (s *stubTarget) ProjectID() domain.ProjectID { return s.status.ProjectID }
func (s *stubTarget) Status() updater.Status       { return s.status }
func (s *stubTarget) GetDailyTransactionCounts(ctx context.Context) ([]domain.DailyCount, error) {
	return s.counts, s.countErr
}

type stubFailed struct {
	counts map[domain.ProjectID]int
}

func (s *stubFailed) Count(ctx context.Context, project domain.ProjectID) (int, error) {
	return s.counts[project], nil
}

var testNow = time.Date(2024, 3, 3, 10, 0, 0, 0, time.UTC)

func target(project domain.ProjectID, syncedAgo time.Duration, lastError string) *stubTarget {
	st := updater.Status{
		ProjectID: project,
		Provider:  domain.ProviderRPC,
		WorkQueue: taskqueue.Stats{Pending: 2, InFlight: 1},
		LastError: lastError,
	}
	if syncedAgo >= 0 {
		at := domain.FromTime(testNow.Add(-syncedAgo))
		st.LastSyncAt = &at
	}
	return &stubTarget{status: st}
}

func newTestMonitor(failed FailedCounter, targets ...Target) *Monitor {
	m := NewMonitor(targets, failed, Thresholds{})
	m.now = func() time.Time { return testNow }
	return m
}

func TestMonitor_Classification(t *testing.T) {
	tests := []struct {
		name   string
		target *stubTarget
		failed int
		want   SystemStatus
	}{
		{"healthy", target("arbitrum", time.Minute, ""), 0, StatusHealthy},
		{"last tick failed", target("arbitrum", time.Minute, "get remote bound: timeout"), 0, StatusDegraded},
		{"some failed units", target("arbitrum", time.Minute, ""), 3, StatusDegraded},
		{"many failed units", target("arbitrum", time.Minute, ""), 51, StatusCritical},
		{"stale", target("arbitrum", 4*time.Hour, ""), 0, StatusCritical},
		{"never synced and failing", target("arbitrum", -1, "node down"), 0, StatusCritical},
		{"not synced yet", target("arbitrum", -1, ""), 0, StatusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failed := &stubFailed{counts: map[domain.ProjectID]int{"arbitrum": tt.failed}}
			report := newTestMonitor(failed, tt.target).CheckHealth(context.Background())

			got := report["arbitrum"]
			if got.Status != tt.want {
				t.Errorf("expected %s, got %s (%+v)", tt.want, got.Status, got)
			}
			if got.FailedUnits != tt.failed || got.Pending != 2 || got.InFlight != 1 {
				t.Errorf("unexpected counters: %+v", got)
			}
		})
	}
}

func TestMonitor_CachesReport(t *testing.T) {
	tg := target("arbitrum", time.Minute, "")
	m := newTestMonitor(nil, tg)

	first := m.CheckHealth(context.Background())
	tg.status.LastError = "boom"
	second := m.CheckHealth(context.Background())
	if second["arbitrum"].Status != first["arbitrum"].Status {
		t.Error("expected cached report within 10s")
	}

	m.now = func() time.Time { return testNow.Add(11 * time.Second) }
	third := m.CheckHealth(context.Background())
	if third["arbitrum"].Status != StatusDegraded {
		t.Errorf("expected refreshed degraded status, got %s", third["arbitrum"].Status)
	}
}

func TestOverall(t *testing.T) {
	projects := map[domain.ProjectID]ProjectHealth{
		"a": {Status: StatusHealthy},
		"b": {Status: StatusDegraded},
	}
	if got := Overall(projects); got != StatusDegraded {
		t.Errorf("expected degraded, got %s", got)
	}
	projects["c"] = ProjectHealth{Status: StatusCritical}
	if got := Overall(projects); got != StatusCritical {
		t.Errorf("expected critical, got %s", got)
	}
	if got := Overall(nil); got != StatusHealthy {
		t.Errorf("expected healthy for no projects, got %s", got)
	}
}

func TestServer_Health(t *testing.T) {
	srv := NewServer(newTestMonitor(nil, target("arbitrum", 5*time.Hour, "")), 0, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != string(StatusCritical) {
		t.Errorf("unexpected body %v", body)
	}
}

type stubProvider struct {
	name   string
	health provider.HealthStatus
}

func (s *stubProvider) GetName() string                  { return s.name }
func (s *stubProvider) GetHealth() provider.HealthStatus { return s.health }

func TestServer_Detailed(t *testing.T) {
	m := newTestMonitor(nil, target("arbitrum", time.Minute, "boom"))
	m.SetProviders(&stubProvider{name: "arbitrum", health: provider.HealthStatus{Available: true, Status: "healthy"}})
	srv := NewServer(m, 0, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/detailed", nil))

	var report HealthReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if report.SystemStatus != StatusDegraded {
		t.Errorf("expected degraded, got %s", report.SystemStatus)
	}
	if p, ok := report.Providers["arbitrum"]; !ok || !p.Available || p.Status != "healthy" {
		t.Errorf("unexpected providers %+v", report.Providers)
	}
	if report.Projects["arbitrum"].LastError != "boom" {
		t.Errorf("unexpected projects %+v", report.Projects)
	}
}

func TestServer_Status(t *testing.T) {
	srv := NewServer(newTestMonitor(nil,
		target("zksync", time.Minute, ""),
		target("arbitrum", time.Minute, ""),
	), 0, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var statuses []updater.Status
	if err := json.NewDecoder(rec.Body).Decode(&statuses); err != nil {
		t.Fatal(err)
	}
	if len(statuses) != 2 || statuses[0].ProjectID != "arbitrum" || statuses[1].ProjectID != "zksync" {
		t.Errorf("unexpected statuses %+v", statuses)
	}
	if statuses[0].WorkQueue.Pending != 2 {
		t.Errorf("work queue not reported: %+v", statuses[0].WorkQueue)
	}
}

func TestServer_Activity(t *testing.T) {
	tg := target("arbitrum", time.Minute, "")
	tg.counts = []domain.DailyCount{{Timestamp: domain.FromDay(19784), Count: 12}}
	broken := target("zksync", time.Minute, "")
	broken.countErr = errors.New("db down")
	srv := NewServer(newTestMonitor(nil, tg, broken), 0, nil)

	tests := []struct {
		path string
		code int
	}{
		{"/activity/arbitrum", http.StatusOK},
		{"/activity/zksync", http.StatusInternalServerError},
		{"/activity/unknown", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.code {
			t.Errorf("%s: expected %d, got %d", tt.path, tt.code, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/activity/arbitrum", nil))
	var counts []domain.DailyCount
	if err := json.NewDecoder(rec.Body).Decode(&counts); err != nil {
		t.Fatal(err)
	}
	if len(counts) != 1 || counts[0].Count != 12 {
		t.Errorf("unexpected counts %+v", counts)
	}
}

func TestGRPCServer_Refresh(t *testing.T) {
	g := NewGRPCServer(newTestMonitor(nil,
		target("arbitrum", time.Minute, ""),
		target("zksync", 5*time.Hour, ""),
	), 0, time.Second, nil)

	g.Refresh(context.Background())

	check := func(service string, want healthpb.HealthCheckResponse_ServingStatus) {
		t.Helper()
		resp, err := g.HealthServer().Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
		if err != nil {
			t.Fatalf("Check(%q): %v", service, err)
		}
		if resp.GetStatus() != want {
			t.Errorf("Check(%q): got %v, want %v", service, resp.GetStatus(), want)
		}
	}
	check("arbitrum", healthpb.HealthCheckResponse_SERVING)
	check("zksync", healthpb.HealthCheckResponse_NOT_SERVING)
	check("", healthpb.HealthCheckResponse_NOT_SERVING)
}
