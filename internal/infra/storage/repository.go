package storage

import (
	"context"
	"errors"

	"github.com/vietddude/txsync/internal/core/domain"
	"github.com/vietddude/txsync/internal/indexing/gaps"
)

var (
	// ErrInvalidRecord is returned when a record cannot be stored
	ErrInvalidRecord = errors.New("invalid record")
)

// TxRecordRepository stores normalized transaction records.
type TxRecordRepository interface {
	// GetMissingRanges returns the unit ranges not yet persisted for a project.
	// Ranges are half-open, sorted and disjoint; the last one is open-ended
	// (End = gaps.Unbounded).
	GetMissingRanges(ctx context.Context, project domain.ProjectID) ([]gaps.Range, error)

	// AddMany upserts records keyed by (project, unit, index)
	AddMany(ctx context.Context, records []domain.TxRecord) error

	// GetDailyCount sums record counts per UTC day, starting at since
	GetDailyCount(ctx context.Context, project domain.ProjectID, since domain.UnixTime) ([]domain.DailyCount, error)

	// DeleteUnits removes every record of the given units (used before rescans)
	DeleteUnits(ctx context.Context, project domain.ProjectID, r gaps.Range) error
}

// Validate checks a record before it is written.
func Validate(r domain.TxRecord) error {
	if r.ProjectID == "" {
		return errors.Join(ErrInvalidRecord, errors.New("empty project"))
	}
	return nil
}
