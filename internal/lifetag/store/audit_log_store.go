package store

import (
	"context"
	"time"
)

// AuditLogEntry records a single access to a profile.
// AccessorHash is a BLAKE3 digest of whatever identifies the accessor
// (device id, remote address); nil when the accessor is anonymous.
type AuditLogEntry struct {
	ID           string
	ProfileID    string
	Timestamp    time.Time
	AccessorHash []byte
	AccessType   string // "view" | "unlock"
	Method       string // "qr" | "link"
	Fields       []string
}

// AuditLogStore is the shared audit log.  Ordering for per-profile reads is
// oldest first (timestamp, then id).
type AuditLogStore interface {
	RecordEntry(ctx context.Context, e AuditLogEntry) error

	CountEntries(ctx context.Context) (int64, error)
	CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]AuditLogEntry, error)
	CountByProfile(ctx context.Context) (map[string]int64, error)
	ListOldestForProfile(ctx context.Context, profileID string, limit int) ([]AuditLogEntry, error)

	// DeleteEntries removes all ids or none.  Unknown ids are not an error.
	DeleteEntries(ctx context.Context, ids []string) error
}
