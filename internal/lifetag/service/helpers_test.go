package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mohamedS2020/lifetag/internal/lifetag/service"
	"github.com/mohamedS2020/lifetag/internal/lifetag/store"
	"github.com/mohamedS2020/lifetag/internal/lifetag/store/memory"
)

var (
	t0         = time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC)
	errStorage = errors.New("storage offline")
)

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func hashPassword(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func newTestGate(window time.Duration) (*service.AccessGate, *clockwork.FakeClock, *memory.KVStore, *gateCounter) {
	clock := clockwork.NewFakeClockAt(t0)
	kv := memory.NewKVStore()
	obs := &gateCounter{outcomes: make(map[string]int)}
	gate := service.NewAccessGate(kv, service.GateConfig{
		Window:   window,
		Clock:    clock,
		Observer: obs,
	})
	return gate, clock, kv, obs
}

// failingKV fails every call with errStorage.
type failingKV struct{}

func (failingKV) Set(context.Context, string, []byte) error { return errStorage }
func (failingKV) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errStorage
}

type gateCounter struct {
	mu       sync.Mutex
	outcomes map[string]int
	grants   int
}

func (c *gateCounter) ObserveVerification(outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes[outcome]++
}

func (c *gateCounter) ObserveGrant() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.grants++
}

// seedAudit writes n entries for profileID, the first at start and each
// later one a minute apart.
func seedAudit(t *testing.T, s store.AuditLogStore, profileID string, n int, start time.Time) []store.AuditLogEntry {
	t.Helper()
	out := make([]store.AuditLogEntry, 0, n)
	for i := 0; i < n; i++ {
		e := store.AuditLogEntry{
			ID:         profileID + "-" + start.Add(time.Duration(i)*time.Minute).Format("20060102150405"),
			ProfileID:  profileID,
			Timestamp:  start.Add(time.Duration(i) * time.Minute),
			AccessType: service.AccessView,
			Method:     service.MethodQR,
		}
		require.NoError(t, s.RecordEntry(context.Background(), e))
		out = append(out, e)
	}
	return out
}
