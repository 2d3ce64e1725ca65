package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vietddude/txsync/internal/core/domain"
	"github.com/vietddude/txsync/internal/indexing/gaps"
	"github.com/vietddude/txsync/internal/infra/storage"
)

// MemoryStorage keeps records in process memory. It is used when no
// database is configured and in tests.
type MemoryStorage struct {
	records map[domain.RecordKey]domain.TxRecord
	mu      sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[domain.RecordKey]domain.TxRecord),
	}
}

// -----------------------------------------------------------------------------
// TxRecord Repository
// -----------------------------------------------------------------------------

type RecordRepo struct {
	store *MemoryStorage
}

func NewRecordRepo(store *MemoryStorage) *RecordRepo {
	return &RecordRepo{store: store}
}

var _ storage.TxRecordRepository = (*RecordRepo)(nil)

func (r *RecordRepo) GetMissingRanges(ctx context.Context, project domain.ProjectID) ([]gaps.Range, error) {
	r.store.mu.RLock()
	units := make([]uint64, 0)
	for key := range r.store.records {
		if key.ProjectID == project {
			units = append(units, key.Unit)
		}
	}
	r.store.mu.RUnlock()

	return gaps.Find(units, 0, gaps.Unbounded), nil
}

func (r *RecordRepo) AddMany(ctx context.Context, records []domain.TxRecord) error {
	for _, rec := range records {
		if err := storage.Validate(rec); err != nil {
			return fmt.Errorf("add records: %w", err)
		}
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, rec := range records {
		r.store.records[rec.Key()] = rec
	}
	return nil
}

func (r *RecordRepo) GetDailyCount(ctx context.Context, project domain.ProjectID, since domain.UnixTime) ([]domain.DailyCount, error) {
	r.store.mu.RLock()
	byDay := make(map[domain.UnixTime]uint64)
	for key, rec := range r.store.records {
		if key.ProjectID != project || rec.Timestamp.Before(since) {
			continue
		}
		byDay[rec.Timestamp.ToStartOf(domain.Day)] += rec.Count
	}
	r.store.mu.RUnlock()

	result := make([]domain.DailyCount, 0, len(byDay))
	for day, count := range byDay {
		result = append(result, domain.DailyCount{Timestamp: day, Count: count})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Timestamp < result[j].Timestamp })
	return result, nil
}

func (r *RecordRepo) DeleteUnits(ctx context.Context, project domain.ProjectID, units gaps.Range) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for key := range r.store.records {
		if key.ProjectID == project && units.Contains(key.Unit) {
			delete(r.store.records, key)
		}
	}
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
