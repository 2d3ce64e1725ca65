package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/lib/pq"

	"github.com/vietddude/txsync/internal/core/domain"
	"github.com/vietddude/txsync/internal/indexing/gaps"
	"github.com/vietddude/txsync/internal/infra/storage"
)

// batchSize caps the rows sent in one INSERT statement.
const batchSize = 1000

// RecordRepo implements storage.TxRecordRepository using PostgreSQL.
type RecordRepo struct {
	db *DB
}

// NewRecordRepo creates a new PostgreSQL record repository.
func NewRecordRepo(db *DB) *RecordRepo {
	return &RecordRepo{db: db}
}

var _ storage.TxRecordRepository = (*RecordRepo)(nil)

// GetMissingRanges finds the holes between persisted units plus the
// leading range below the first unit and the open range after the last.
func (r *RecordRepo) GetMissingRanges(ctx context.Context, project domain.ProjectID) ([]gaps.Range, error) {
	var first sql.NullInt64
	err := r.db.GetContext(ctx, &first, `SELECT MIN(unit) FROM tx_records WHERE project_id = $1`, project)
	if err != nil {
		return nil, fmt.Errorf("failed to get first unit: %w", err)
	}
	if !first.Valid {
		return []gaps.Range{{Start: 0, End: gaps.Unbounded}}, nil
	}

	query := `
		SELECT unit + 1 AS range_start, next_unit AS range_end
		FROM (
			SELECT unit, LEAD(unit) OVER (ORDER BY unit) AS next_unit
			FROM (SELECT DISTINCT unit FROM tx_records WHERE project_id = $1) units
		) neighbours
		WHERE next_unit IS NULL OR next_unit > unit + 1
		ORDER BY unit
	`
	var rows []struct {
		Start int64         `db:"range_start"`
		End   sql.NullInt64 `db:"range_end"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, project); err != nil {
		return nil, fmt.Errorf("failed to get missing ranges: %w", err)
	}

	result := make([]gaps.Range, 0, len(rows)+1)
	if first.Int64 > 0 {
		result = append(result, gaps.Range{Start: 0, End: uint64(first.Int64)})
	}
	for _, row := range rows {
		end := uint64(gaps.Unbounded)
		if row.End.Valid {
			end = uint64(row.End.Int64)
		}
		result = append(result, gaps.Range{Start: uint64(row.Start), End: end})
	}
	return result, nil
}

// AddMany upserts records in batches inside one transaction.
func (r *RecordRepo) AddMany(ctx context.Context, records []domain.TxRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, rec := range records {
		if err := storage.Validate(rec); err != nil {
			return fmt.Errorf("add records: %w", err)
		}
	}
	records = dedupe(records)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO tx_records (project_id, unit, unit_index, tx_count, block_timestamp)
		SELECT p, u, i, c, to_timestamp(ts)
		FROM unnest($1::text[], $2::bigint[], $3::bigint[], $4::bigint[], $5::bigint[]) AS t(p, u, i, c, ts)
		ON CONFLICT (project_id, unit, unit_index) DO UPDATE SET
			tx_count = EXCLUDED.tx_count,
			block_timestamp = EXCLUDED.block_timestamp
	`

	for start := 0; start < len(records); start += batchSize {
		batch := records[start:min(start+batchSize, len(records))]

		projects := make(pq.StringArray, len(batch))
		units := make(pq.Int64Array, len(batch))
		indexes := make(pq.Int64Array, len(batch))
		counts := make(pq.Int64Array, len(batch))
		timestamps := make(pq.Int64Array, len(batch))
		for i, rec := range batch {
			projects[i] = string(rec.ProjectID)
			units[i] = int64(rec.Unit)
			indexes[i] = int64(rec.Index)
			counts[i] = int64(rec.Count)
			timestamps[i] = int64(rec.Timestamp)
		}

		if _, err := tx.ExecContext(ctx, query, projects, units, indexes, counts, timestamps); err != nil {
			return fmt.Errorf("failed to save records: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit records: %w", err)
	}
	return nil
}

// GetDailyCount sums tx_count per UTC day for records at or after since.
func (r *RecordRepo) GetDailyCount(ctx context.Context, project domain.ProjectID, since domain.UnixTime) ([]domain.DailyCount, error) {
	query := `
		SELECT
			EXTRACT(EPOCH FROM date_trunc('day', block_timestamp AT TIME ZONE 'UTC'))::bigint AS day,
			SUM(tx_count)::bigint AS tx_count
		FROM tx_records
		WHERE project_id = $1 AND block_timestamp >= to_timestamp($2)
		GROUP BY 1
		ORDER BY 1
	`
	var counts []domain.DailyCount
	if err := r.db.SelectContext(ctx, &counts, query, project, int64(since)); err != nil {
		return nil, fmt.Errorf("failed to get daily count: %w", err)
	}
	return counts, nil
}

// DeleteUnits removes all records whose unit falls in units.
func (r *RecordRepo) DeleteUnits(ctx context.Context, project domain.ProjectID, units gaps.Range) error {
	end := int64(math.MaxInt64)
	if units.End <= math.MaxInt64 {
		end = int64(units.End)
	}
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM tx_records WHERE project_id = $1 AND unit >= $2 AND unit < $3`,
		project, int64(units.Start), end,
	)
	if err != nil {
		return fmt.Errorf("failed to delete units %s: %w", units, err)
	}
	return nil
}

// dedupe keeps the last record of every key; one INSERT cannot update a row twice.
func dedupe(records []domain.TxRecord) []domain.TxRecord {
	pos := make(map[domain.RecordKey]int, len(records))
	out := make([]domain.TxRecord, 0, len(records))
	for _, rec := range records {
		if i, ok := pos[rec.Key()]; ok {
			out[i] = rec
			continue
		}
		pos[rec.Key()] = len(out)
		out = append(out, rec)
	}
	return out
}
