package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mohamedS2020/lifetag/internal/lifetag/store"
)

// AuditLogStore is an in-memory audit log keyed by entry id.
// It is intended for use in tests and dev environments.
type AuditLogStore struct {
	mu      sync.Mutex
	entries map[string]store.AuditLogEntry
}

func NewAuditLogStore() *AuditLogStore {
	return &AuditLogStore{entries: make(map[string]store.AuditLogEntry)}
}

func (s *AuditLogStore) RecordEntry(_ context.Context, e store.AuditLogEntry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.ID] = e
	return nil
}

func (s *AuditLogStore) CountEntries(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.entries)), nil
}

func (s *AuditLogStore) CountOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, e := range s.entries {
		if e.Timestamp.Before(cutoff) {
			n++
		}
	}
	return n, nil
}

func (s *AuditLogStore) ListOlderThan(_ context.Context, cutoff time.Time) ([]store.AuditLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.AuditLogEntry
	for _, e := range s.entries {
		if e.Timestamp.Before(cutoff) {
			out = append(out, e)
		}
	}
	sortOldestFirst(out)
	return out, nil
}

func (s *AuditLogStore) CountByProfile(_ context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64)
	for _, e := range s.entries {
		out[e.ProfileID]++
	}
	return out, nil
}

func (s *AuditLogStore) ListOldestForProfile(_ context.Context, profileID string, limit int) ([]store.AuditLogEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.AuditLogEntry
	for _, e := range s.entries {
		if e.ProfileID == profileID {
			out = append(out, e)
		}
	}
	sortOldestFirst(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *AuditLogStore) DeleteEntries(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.entries, id)
	}
	return nil
}

// Entries returns every stored entry, oldest first.  Test-only helper.
func (s *AuditLogStore) Entries() []store.AuditLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.AuditLogEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sortOldestFirst(out)
	return out
}

func sortOldestFirst(es []store.AuditLogEntry) {
	sort.Slice(es, func(i, j int) bool {
		if !es[i].Timestamp.Equal(es[j].Timestamp) {
			return es[i].Timestamp.Before(es[j].Timestamp)
		}
		return es[i].ID < es[j].ID
	})
}
