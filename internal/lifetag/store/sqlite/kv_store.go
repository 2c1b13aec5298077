package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	dbpkg "github.com/mohamedS2020/lifetag/internal/db"
)

// KVStore persists opaque values in kv_entries.  Set is last-write-wins.
type KVStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewKVStore(db *sql.DB, writer *dbpkg.Worker) *KVStore {
	return &KVStore{db: db, writer: writer}
}

func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	nowMs := time.Now().UTC().UnixMilli()
	if value == nil {
		value = []byte{}
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO kv_entries(key, value, updated_at_ms)
VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
  value = excluded.value,
  updated_at_ms = excluded.updated_at_ms;
`, key, value, nowMs); err != nil {
			return fmt.Errorf("KVStore.Set %s: %w", key, err)
		}
		return nil
	})
}

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, `
SELECT value FROM kv_entries WHERE key = ?;
`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("KVStore.Get %s: %w", key, err)
	}
	return v, true, nil
}
