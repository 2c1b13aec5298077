package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mohamedS2020/lifetag/internal/lifetag/store"
)

const auditTable = "audit_logs"

var auditColumns = []string{
	"entry_id", "profile_id", "logged_at", "accessor_hash", "access_type", "method", "fields",
}

// AuditLogStore is the PostgreSQL audit log.
type AuditLogStore struct {
	pool *pgxpool.Pool
}

func NewAuditLogStore(pool *pgxpool.Pool) *AuditLogStore {
	return &AuditLogStore{pool: pool}
}

func (s *AuditLogStore) RecordEntry(ctx context.Context, e store.AuditLogEntry) error {
	query, args, err := insertEntryQuery(e).ToSql()
	if err != nil {
		return fmt.Errorf("RecordEntry build: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("RecordEntry insert: %w", err)
	}
	return nil
}

func (s *AuditLogStore) CountEntries(ctx context.Context) (int64, error) {
	return s.count(ctx, "CountEntries", psql.Select("COUNT(*)").From(auditTable))
}

func (s *AuditLogStore) CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.count(ctx, "CountOlderThan",
		psql.Select("COUNT(*)").From(auditTable).Where(sq.Lt{"logged_at": cutoff.UTC()}))
}

func (s *AuditLogStore) ListOlderThan(ctx context.Context, cutoff time.Time) ([]store.AuditLogEntry, error) {
	return s.list(ctx, "ListOlderThan", listOlderThanQuery(cutoff))
}

func (s *AuditLogStore) CountByProfile(ctx context.Context) (map[string]int64, error) {
	query, args, err := countByProfileQuery().ToSql()
	if err != nil {
		return nil, fmt.Errorf("CountByProfile build: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("CountByProfile: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var (
			profileID string
			n         int64
		)
		if err := rows.Scan(&profileID, &n); err != nil {
			return nil, fmt.Errorf("CountByProfile scan: %w", err)
		}
		out[profileID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("CountByProfile rows: %w", err)
	}
	return out, nil
}

func (s *AuditLogStore) ListOldestForProfile(ctx context.Context, profileID string, limit int) ([]store.AuditLogEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	return s.list(ctx, "ListOldestForProfile", listOldestForProfileQuery(profileID, limit))
}

// DeleteEntries issues a single DELETE, which PostgreSQL applies atomically.
func (s *AuditLogStore) DeleteEntries(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := deleteEntriesQuery(ids).ToSql()
	if err != nil {
		return fmt.Errorf("DeleteEntries build: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("DeleteEntries: %w", err)
	}
	return nil
}

func (s *AuditLogStore) count(ctx context.Context, op string, b sq.SelectBuilder) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("%s build: %w", op, err)
	}
	var n int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

func (s *AuditLogStore) list(ctx context.Context, op string, b sq.SelectBuilder) ([]store.AuditLogEntry, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s build: %w", op, err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.AuditLogEntry, error) {
		var e store.AuditLogEntry
		err := row.Scan(&e.ID, &e.ProfileID, &e.Timestamp, &e.AccessorHash, &e.AccessType, &e.Method, &e.Fields)
		e.Timestamp = e.Timestamp.UTC()
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("%s scan: %w", op, err)
	}
	return out, nil
}

// ── Query builders ───────────────────────────────────────────────────────────

func insertEntryQuery(e store.AuditLogEntry) sq.InsertBuilder {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	fields := e.Fields
	if fields == nil {
		fields = []string{}
	}
	var accessor any
	if len(e.AccessorHash) > 0 {
		accessor = e.AccessorHash
	}
	return psql.Insert(auditTable).
		Columns(auditColumns...).
		Values(e.ID, e.ProfileID, ts.UTC(), accessor, e.AccessType, e.Method, fields)
}

func listOlderThanQuery(cutoff time.Time) sq.SelectBuilder {
	return psql.Select(auditColumns...).
		From(auditTable).
		Where(sq.Lt{"logged_at": cutoff.UTC()}).
		OrderBy("logged_at ASC", "entry_id ASC")
}

func countByProfileQuery() sq.SelectBuilder {
	return psql.Select("profile_id", "COUNT(*)").
		From(auditTable).
		GroupBy("profile_id")
}

func listOldestForProfileQuery(profileID string, limit int) sq.SelectBuilder {
	return psql.Select(auditColumns...).
		From(auditTable).
		Where(sq.Eq{"profile_id": profileID}).
		OrderBy("logged_at ASC", "entry_id ASC").
		Limit(uint64(limit))
}

func deleteEntriesQuery(ids []string) sq.DeleteBuilder {
	return psql.Delete(auditTable).Where(sq.Eq{"entry_id": ids})
}
