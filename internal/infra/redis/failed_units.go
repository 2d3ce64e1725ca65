package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/txsync/internal/core/domain"
)

// failedTTL bounds how long a failed unit is remembered.
const failedTTL = 7 * 24 * time.Hour

// FailedUnitRepo remembers units dropped by the unit queue so operators
// can inspect and rescan them.
type FailedUnitRepo struct {
	rdb *redis.Client
}

// NewFailedUnitRepo creates a new Redis-backed failed unit repository.
func NewFailedUnitRepo(client *Client) *FailedUnitRepo {
	return &FailedUnitRepo{rdb: client.rdb}
}

// Key helpers
func failedQueueKey(project domain.ProjectID) string {
	return fmt.Sprintf("txsync:failed:%s", project)
}

func failedUnitKey(project domain.ProjectID, unit uint64) string {
	return fmt.Sprintf("txsync:failed_unit:%s:%d", project, unit)
}

// Add records a failed unit. The queue is scored by failure time so
// entries older than failedTTL can be pruned together with their data.
func (r *FailedUnitRepo) Add(ctx context.Context, fu domain.FailedUnit) error {
	data, err := json.Marshal(fu)
	if err != nil {
		return fmt.Errorf("failed to marshal failed unit: %w", err)
	}

	failedAt := fu.FailedAt.Time()
	if fu.FailedAt == 0 {
		failedAt = time.Now()
	}

	key := failedQueueKey(fu.ProjectID)
	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, failedUnitKey(fu.ProjectID, fu.Unit), data, failedTTL)
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(failedAt.Unix()),
		Member: strconv.FormatUint(fu.Unit, 10),
	})
	pipe.Expire(ctx, key, failedTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to add failed unit: %w", err)
	}
	return nil
}

// MarkResolved forgets a unit that was later fetched successfully.
func (r *FailedUnitRepo) MarkResolved(ctx context.Context, project domain.ProjectID, unit uint64) error {
	pipe := r.rdb.TxPipeline()
	pipe.ZRem(ctx, failedQueueKey(project), strconv.FormatUint(unit, 10))
	pipe.Del(ctx, failedUnitKey(project, unit))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to resolve failed unit: %w", err)
	}
	return nil
}

// Units returns the remembered failed units in ascending order.
func (r *FailedUnitRepo) Units(ctx context.Context, project domain.ProjectID) ([]uint64, error) {
	if err := r.prune(ctx, project); err != nil {
		return nil, err
	}
	ids, err := r.rdb.ZRange(ctx, failedQueueKey(project), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange failed: %w", err)
	}
	return parseUnits(ids), nil
}

// GetAll retrieves all remembered failed units ordered by unit.
func (r *FailedUnitRepo) GetAll(ctx context.Context, project domain.ProjectID) ([]domain.FailedUnit, error) {
	units, err := r.Units(ctx, project)
	if err != nil {
		return nil, err
	}

	out := make([]domain.FailedUnit, 0, len(units))
	for _, unit := range units {
		data, err := r.rdb.Get(ctx, failedUnitKey(project, unit)).Bytes()
		if err == redis.Nil {
			// Data expired but ID still in queue, remove it
			r.rdb.ZRem(ctx, failedQueueKey(project), strconv.FormatUint(unit, 10))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get failed unit: %w", err)
		}

		var fu domain.FailedUnit
		if err := json.Unmarshal(data, &fu); err != nil {
			continue
		}
		out = append(out, fu)
	}
	return out, nil
}

// Count returns the number of remembered failed units.
func (r *FailedUnitRepo) Count(ctx context.Context, project domain.ProjectID) (int, error) {
	if err := r.prune(ctx, project); err != nil {
		return 0, err
	}
	count, err := r.rdb.ZCard(ctx, failedQueueKey(project)).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard failed: %w", err)
	}
	return int(count), nil
}

// prune drops queue entries whose data has outlived failedTTL.
func (r *FailedUnitRepo) prune(ctx context.Context, project domain.ProjectID) error {
	err := r.rdb.ZRemRangeByScore(ctx, failedQueueKey(project), "-inf", staleScore(time.Now())).Err()
	if err != nil {
		return fmt.Errorf("failed to prune failed units: %w", err)
	}
	return nil
}

func staleScore(now time.Time) string {
	return "(" + strconv.FormatInt(now.Add(-failedTTL).Unix(), 10)
}

func parseUnits(ids []string) []uint64 {
	units := make([]uint64, 0, len(ids))
	for _, id := range ids {
		unit, err := strconv.ParseUint(id, 10, 64)
		if err != nil {
			continue
		}
		units = append(units, unit)
	}
	slices.Sort(units)
	return units
}
