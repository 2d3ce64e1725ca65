// Package health provides project health monitoring and status reporting.
package health

import (
	"github.com/vietddude/txsync/internal/core/domain"
	"github.com/vietddude/txsync/internal/indexing/updater"
	"github.com/vietddude/txsync/internal/infra/rpc/provider"
)

// SystemStatus represents the overall health state of the system or a project.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// rank orders statuses from best to worst.
func (s SystemStatus) rank() int {
	switch s {
	case StatusCritical:
		return 2
	case StatusDegraded:
		return 1
	}
	return 0
}

// ProjectHealth contains health metrics for a single synced project.
type ProjectHealth struct {
	ProjectID    domain.ProjectID    `json:"project_id"`
	Provider     domain.ProviderType `json:"provider"`
	Status       SystemStatus        `json:"status"`
	Pending      int                 `json:"pending"`
	InFlight     int                 `json:"in_flight"`
	DroppedUnits uint64              `json:"dropped_units"`
	FailedUnits  int                 `json:"failed_units"`
	SyncAge      string              `json:"sync_age,omitempty"`
	LastError    string              `json:"last_error,omitempty"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus                       `json:"system_status"`
	Projects     map[domain.ProjectID]ProjectHealth `json:"projects"`
	Providers    map[string]provider.HealthStatus   `json:"providers,omitempty"`
}

// Overall returns the worst status among projects.
func Overall(projects map[domain.ProjectID]ProjectHealth) SystemStatus {
	status := StatusHealthy
	for _, p := range projects {
		if p.Status.rank() > status.rank() {
			status = p.Status
		}
	}
	return status
}

// Target is a synced project the monitor reports on.
type Target interface {
	ProjectID() domain.ProjectID
	Status() updater.Status
}

// ProviderSource reports the health of a remote transport.
type ProviderSource interface {
	GetName() string
	GetHealth() provider.HealthStatus
}
