package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mohamedS2020/lifetag/internal/lifetag/store"
)

type RunStore struct {
	pool *pgxpool.Pool
}

func NewRunStore(pool *pgxpool.Pool) *RunStore {
	return &RunStore{pool: pool}
}

func (s *RunStore) AppendRun(ctx context.Context, rec store.RunRecord) error {
	errs := rec.Errors
	if errs == nil {
		errs = []string{}
	}
	query, args, err := psql.Insert("retention_runs").
		Columns("completed_at", "success", "deleted_count", "profiles_processed", "execution_ms", "errors").
		Values(rec.Timestamp.UTC(), rec.Success, rec.DeletedCount, rec.ProfilesProcessed,
			rec.ExecutionTime.Milliseconds(), errs).
		ToSql()
	if err != nil {
		return fmt.Errorf("AppendRun build: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("AppendRun insert: %w", err)
	}
	return nil
}

func (s *RunStore) RecentRuns(ctx context.Context, limit int) ([]store.RunRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	query, args, err := psql.Select(
		"completed_at", "success", "deleted_count", "profiles_processed", "execution_ms", "errors",
	).From("retention_runs").OrderBy("run_id DESC").Limit(uint64(limit)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("RecentRuns build: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("RecentRuns: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.RunRecord, error) {
		var (
			rec    store.RunRecord
			execMs int64
		)
		err := row.Scan(&rec.Timestamp, &rec.Success, &rec.DeletedCount,
			&rec.ProfilesProcessed, &execMs, &rec.Errors)
		rec.Timestamp = rec.Timestamp.UTC()
		rec.ExecutionTime = time.Duration(execMs) * time.Millisecond
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("RecentRuns scan: %w", err)
	}
	return out, nil
}
