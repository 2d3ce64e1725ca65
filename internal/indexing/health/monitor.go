package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/txsync/internal/core/domain"
	"github.com/vietddude/txsync/internal/infra/rpc/provider"
)

// FailedCounter counts remembered failed units per project.
type FailedCounter interface {
	Count(ctx context.Context, project domain.ProjectID) (int, error)
}

// Thresholds decide when a project is degraded or critical.
type Thresholds struct {
	// StaleAfter marks a project critical when its last successful update
	// is older than this (default: 3h).
	StaleAfter time.Duration

	// CriticalFailed marks a project critical above this many failed units
	// (default: 50).
	CriticalFailed int
}

// Monitor aggregates health status from all updaters.
type Monitor struct {
	targets    []Target
	providers  []ProviderSource
	failed     FailedCounter
	thresholds Thresholds
	now        func() time.Time

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport map[domain.ProjectID]ProjectHealth
}

// NewMonitor creates a new health monitor. failed may be nil.
func NewMonitor(targets []Target, failed FailedCounter, thresholds Thresholds) *Monitor {
	if thresholds.StaleAfter <= 0 {
		thresholds.StaleAfter = 3 * time.Hour
	}
	if thresholds.CriticalFailed <= 0 {
		thresholds.CriticalFailed = 50
	}
	return &Monitor{
		targets:    targets,
		failed:     failed,
		thresholds: thresholds,
		now:        time.Now,
		lastReport: make(map[domain.ProjectID]ProjectHealth),
	}
}

// SetProviders registers the transports reported by ProviderHealth.
func (m *Monitor) SetProviders(providers ...ProviderSource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers = providers
}

// ProviderHealth returns the current health of every registered transport.
func (m *Monitor) ProviderHealth() map[string]provider.HealthStatus {
	m.mu.Lock()
	providers := m.providers
	m.mu.Unlock()

	if len(providers) == 0 {
		return nil
	}
	out := make(map[string]provider.HealthStatus, len(providers))
	for _, p := range providers {
		out[p.GetName()] = p.GetHealth()
	}
	return out
}

// Targets returns the monitored projects.
func (m *Monitor) Targets() []Target {
	return m.targets
}

// Target looks up a monitored project.
func (m *Monitor) Target(project domain.ProjectID) (Target, bool) {
	for _, t := range m.targets {
		if t.ProjectID() == project {
			return t, true
		}
	}
	return nil, false
}

// CheckHealth evaluates every project. Results are cached for 10 seconds
// to avoid hitting redis on every probe.
func (m *Monitor) CheckHealth(ctx context.Context) map[domain.ProjectID]ProjectHealth {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastCheck) < 10*time.Second && len(m.lastReport) > 0 {
		return m.lastReport
	}

	report := make(map[domain.ProjectID]ProjectHealth, len(m.targets))
	for _, t := range m.targets {
		report[t.ProjectID()] = m.evaluate(ctx, t, now)
	}

	m.lastCheck = now
	m.lastReport = report
	return report
}

func (m *Monitor) evaluate(ctx context.Context, t Target, now time.Time) ProjectHealth {
	st := t.Status()
	h := ProjectHealth{
		ProjectID:    st.ProjectID,
		Provider:     st.Provider,
		Status:       StatusHealthy,
		Pending:      st.WorkQueue.Pending,
		InFlight:     st.WorkQueue.InFlight,
		DroppedUnits: st.WorkQueue.Failed,
		LastError:    st.LastError,
	}

	if m.failed != nil {
		if n, err := m.failed.Count(ctx, st.ProjectID); err == nil {
			h.FailedUnits = n
		}
	}

	stale := false
	if st.LastSyncAt != nil {
		age := now.Sub(st.LastSyncAt.Time())
		h.SyncAge = age.Truncate(time.Second).String()
		stale = age > m.thresholds.StaleAfter
	}

	switch {
	case stale || h.FailedUnits > m.thresholds.CriticalFailed:
		h.Status = StatusCritical
	case st.LastSyncAt == nil && st.LastError != "":
		h.Status = StatusCritical
	case st.LastError != "" || h.FailedUnits > 0:
		h.Status = StatusDegraded
	}
	return h
}
