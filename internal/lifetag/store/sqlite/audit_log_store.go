package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/mohamedS2020/lifetag/internal/db"
	"github.com/mohamedS2020/lifetag/internal/lifetag/store"
)

type AuditLogStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewAuditLogStore(db *sql.DB, writer *dbpkg.Worker) *AuditLogStore {
	return &AuditLogStore{db: db, writer: writer}
}

const auditColumns = `entry_id, profile_id, logged_at_ms, accessor_hash, access_type, method, fields`

func (s *AuditLogStore) RecordEntry(ctx context.Context, e store.AuditLogEntry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	fields, err := json.Marshal(nonNil(e.Fields))
	if err != nil {
		return fmt.Errorf("RecordEntry encode fields: %w", err)
	}

	var accessorHash any
	if len(e.AccessorHash) > 0 {
		accessorHash = e.AccessorHash
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO audit_logs(`+auditColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?);
`,
			e.ID, e.ProfileID, e.Timestamp.UTC().UnixMilli(), accessorHash,
			e.AccessType, e.Method, string(fields),
		); err != nil {
			return fmt.Errorf("RecordEntry insert: %w", err)
		}
		return nil
	})
}

func (s *AuditLogStore) CountEntries(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_logs;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("CountEntries: %w", err)
	}
	return n, nil
}

// CountOlderThan uses idx_audit_logs_time.
func (s *AuditLogStore) CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM audit_logs WHERE logged_at_ms < ?;
`, cutoff.UTC().UnixMilli()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("CountOlderThan: %w", err)
	}
	return n, nil
}

func (s *AuditLogStore) ListOlderThan(ctx context.Context, cutoff time.Time) ([]store.AuditLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+auditColumns+`
FROM audit_logs
WHERE logged_at_ms < ?
ORDER BY logged_at_ms ASC, entry_id ASC;
`, cutoff.UTC().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("ListOlderThan: %w", err)
	}
	return scanEntries(rows, "ListOlderThan")
}

func (s *AuditLogStore) CountByProfile(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT profile_id, COUNT(*) FROM audit_logs GROUP BY profile_id;
`)
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

// ListOldestForProfile walks idx_audit_logs_profile_time in order.
func (s *AuditLogStore) ListOldestForProfile(ctx context.Context, profileID string, limit int) ([]store.AuditLogEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT `+auditColumns+`
FROM audit_logs
WHERE profile_id = ?
ORDER BY logged_at_ms ASC, entry_id ASC
LIMIT ?;
`, profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("ListOldestForProfile: %w", err)
	}
	return scanEntries(rows, "ListOldestForProfile")
}

// DeleteEntries removes the batch in one transaction.
func (s *AuditLogStore) DeleteEntries(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM audit_logs WHERE entry_id IN (`+placeholders+`);`, args...,
		); err != nil {
			return fmt.Errorf("DeleteEntries: %w", err)
		}
		return nil
	})
}

func scanEntries(rows *sql.Rows, op string) ([]store.AuditLogEntry, error) {
	defer rows.Close()

	var out []store.AuditLogEntry
	for rows.Next() {
		var (
			e        store.AuditLogEntry
			loggedMs int64
			fields   string
		)
		if err := rows.Scan(&e.ID, &e.ProfileID, &loggedMs, &e.AccessorHash,
			&e.AccessType, &e.Method, &fields); err != nil {
			return nil, fmt.Errorf("%s scan: %w", op, err)
		}
		e.Timestamp = time.UnixMilli(loggedMs).UTC()
		if err := json.Unmarshal([]byte(fields), &e.Fields); err != nil {
			return nil, fmt.Errorf("%s decode fields of %s: %w", op, e.ID, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s rows: %w", op, err)
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
