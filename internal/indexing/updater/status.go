package updater

import (
	"github.com/vietddude/txsync/internal/core/domain"
	"github.com/vietddude/txsync/internal/sync/taskqueue"
)

// Status is a point-in-time view of an updater.
type Status struct {
	ProjectID              domain.ProjectID    `json:"project_id"`
	Provider               domain.ProviderType `json:"provider"`
	WorkQueue              taskqueue.Stats     `json:"work_queue"`
	LatestKnownRemoteBound *uint64             `json:"latest_known_remote_bound"`
	LastSyncAt             *domain.UnixTime    `json:"last_sync_at"`
	LastError              string              `json:"last_error,omitempty"`
	Updating               bool                `json:"updating"`
}

// snapshot is published once per tick and never mutated afterwards.
type snapshot struct {
	bound     *uint64
	lastSync  *domain.UnixTime
	lastError string
}

func (s *snapshot) withSuccess(bound uint64, at domain.UnixTime) *snapshot {
	return &snapshot{bound: &bound, lastSync: &at}
}

func (s *snapshot) withError(err error) *snapshot {
	next := *s
	next.lastError = err.Error()
	return &next
}
