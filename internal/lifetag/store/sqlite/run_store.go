package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	dbpkg "github.com/mohamedS2020/lifetag/internal/db"
	"github.com/mohamedS2020/lifetag/internal/lifetag/store"
)

type RunStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewRunStore(db *sql.DB, writer *dbpkg.Worker) *RunStore {
	return &RunStore{db: db, writer: writer}
}

func (s *RunStore) AppendRun(ctx context.Context, rec store.RunRecord) error {
	errs, err := json.Marshal(nonNil(rec.Errors))
	if err != nil {
		return fmt.Errorf("AppendRun encode errors: %w", err)
	}

	var success int
	if rec.Success {
		success = 1
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO retention_runs(
  completed_at_ms, success, deleted_count, profiles_processed, execution_ms, errors
) VALUES (?, ?, ?, ?, ?, ?);
`,
			rec.Timestamp.UTC().UnixMilli(), success, rec.DeletedCount,
			rec.ProfilesProcessed, rec.ExecutionTime.Milliseconds(), string(errs),
		); err != nil {
			return fmt.Errorf("AppendRun insert: %w", err)
		}
		return nil
	})
}

func (s *RunStore) RecentRuns(ctx context.Context, limit int) ([]store.RunRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT completed_at_ms, success, deleted_count, profiles_processed, execution_ms, errors
FROM retention_runs
ORDER BY run_id DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("RecentRuns: %w", err)
	}
	defer rows.Close()

	var out []store.RunRecord
	for rows.Next() {
		var (
			rec         store.RunRecord
			completedMs int64
			success     int
			execMs      int64
			errs        string
		)
		if err := rows.Scan(&completedMs, &success, &rec.DeletedCount,
			&rec.ProfilesProcessed, &execMs, &errs); err != nil {
			return nil, fmt.Errorf("RecentRuns scan: %w", err)
		}
		rec.Timestamp = time.UnixMilli(completedMs).UTC()
		rec.Success = success == 1
		rec.ExecutionTime = time.Duration(execMs) * time.Millisecond
		if err := json.Unmarshal([]byte(errs), &rec.Errors); err != nil {
			return nil, fmt.Errorf("RecentRuns decode errors: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("RecentRuns rows: %w", err)
	}
	return out, nil
}
