package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/semaphore"

	"github.com/mohamedS2020/lifetag/internal/lifetag/store"
)

const (
	DefaultRetentionDays     = 90
	DefaultMaxLogsPerProfile = 1000
	DefaultDeleteBatchSize   = 500

	recentRunsLimit = 5
)

// RetentionPolicy bounds the audit log.  RetentionDays <= 0 keeps entries
// forever; MaxLogsPerProfile <= 0 removes the per-profile cap.
type RetentionPolicy struct {
	RetentionDays     int
	MaxLogsPerProfile int
	BatchSize         int
}

// Enabled reports whether the policy limits anything at all.
func (p RetentionPolicy) Enabled() bool {
	return p.RetentionDays > 0 || p.MaxLogsPerProfile > 0
}

type RetentionStatus struct {
	Policy RetentionPolicy

	IsCleanupRunning bool
	LastCleanupAt    time.Time       // zero until a run completes
	LastRun          *store.RunRecord // latest attempt, including fatal ones
	NeedsCleanup     bool

	TotalEntries      int64
	ExpiredEntries    int64
	ProfilesOverLimit int
	ExcessEntries     int64

	RecentRuns []store.RunRecord
}

type RetentionConfig struct {
	Policy   RetentionPolicy
	Clock    clockwork.Clock
	Observer RetentionObserver
	Logger   *slog.Logger
}

// RetentionManager enforces the retention policy over the audit log.  At
// most one cleanup runs at a time within the process.
type RetentionManager struct {
	logs   store.AuditLogStore
	runs   store.RunStore
	policy RetentionPolicy
	clock  clockwork.Clock
	obs    RetentionObserver
	logger *slog.Logger

	sem     *semaphore.Weighted
	running atomic.Bool

	mu            sync.Mutex
	lastCleanupAt time.Time
	lastRun       *store.RunRecord
}

func NewRetentionManager(logs store.AuditLogStore, runs store.RunStore, cfg RetentionConfig) *RetentionManager {
	m := &RetentionManager{
		logs:   logs,
		runs:   runs,
		policy: cfg.Policy,
		clock:  cfg.Clock,
		obs:    cfg.Observer,
		logger: cfg.Logger,
		sem:    semaphore.NewWeighted(1),
	}
	if m.policy.BatchSize <= 0 {
		m.policy.BatchSize = DefaultDeleteBatchSize
	}
	if m.clock == nil {
		m.clock = clockwork.NewRealClock()
	}
	if m.obs == nil {
		m.obs = noopObserver{}
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

func (m *RetentionManager) Policy() RetentionPolicy { return m.policy }

func (m *RetentionManager) cutoff(now time.Time) (time.Time, bool) {
	if m.policy.RetentionDays <= 0 {
		return time.Time{}, false
	}
	return now.Add(-time.Duration(m.policy.RetentionDays) * 24 * time.Hour), true
}

// Status reports the policy, the run bookkeeping and how far the log is
// currently over the policy.  It does not modify anything.
func (m *RetentionManager) Status(ctx context.Context) (RetentionStatus, error) {
	st := RetentionStatus{
		Policy:           m.policy,
		IsCleanupRunning: m.running.Load(),
	}

	m.mu.Lock()
	st.LastCleanupAt = m.lastCleanupAt
	if m.lastRun != nil {
		last := *m.lastRun
		st.LastRun = &last
	}
	m.mu.Unlock()

	if m.runs != nil {
		recent, err := m.runs.RecentRuns(ctx, recentRunsLimit)
		if err != nil {
			return RetentionStatus{}, storageErr("read run history", err)
		}
		st.RecentRuns = recent
		// History outlives the process; bookkeeping starts empty.
		if len(recent) > 0 {
			if st.LastCleanupAt.IsZero() {
				st.LastCleanupAt = recent[0].Timestamp
			}
			if st.LastRun == nil {
				last := recent[0]
				st.LastRun = &last
			}
		}
	}

	total, err := m.logs.CountEntries(ctx)
	if err != nil {
		return RetentionStatus{}, storageErr("count entries", err)
	}
	st.TotalEntries = total

	if cutoff, ok := m.cutoff(m.clock.Now().UTC()); ok {
		expired, err := m.logs.CountOlderThan(ctx, cutoff)
		if err != nil {
			return RetentionStatus{}, storageErr("count expired entries", err)
		}
		st.ExpiredEntries = expired
	}

	if m.policy.MaxLogsPerProfile > 0 {
		counts, err := m.logs.CountByProfile(ctx)
		if err != nil {
			return RetentionStatus{}, storageErr("count entries by profile", err)
		}
		limit := int64(m.policy.MaxLogsPerProfile)
		for _, n := range counts {
			if n > limit {
				st.ProfilesOverLimit++
				st.ExcessEntries += n - limit
			}
		}
	}

	st.NeedsCleanup = st.ExpiredEntries > 0 || st.ProfilesOverLimit > 0
	return st, nil
}

// ExecuteManualCleanup runs one cleanup pass: expired entries first, then
// the oldest entries of every profile still over the cap.  Individual
// delete failures are collected in the record and do not stop the run.
// Failing to read the log up front makes the run fatal: nothing is
// deleted and neither LastCleanupAt nor the run history is updated.
//
// A call made while another run is in flight returns ErrCleanupRunning.
// Once started, a run is not cancelled by ctx.
func (m *RetentionManager) ExecuteManualCleanup(ctx context.Context) (store.RunRecord, error) {
	if !m.sem.TryAcquire(1) {
		return store.RunRecord{}, ErrCleanupRunning
	}
	defer m.sem.Release(1)

	m.running.Store(true)
	m.obs.SetCleanupRunning(true)
	defer func() {
		m.running.Store(false)
		m.obs.SetCleanupRunning(false)
	}()

	ctx = context.WithoutCancel(ctx)
	start := m.clock.Now()

	r := &cleanupRun{
		m:       m,
		touched: make(map[string]struct{}),
		failed:  make(map[string]map[string]struct{}),
	}
	if err := r.execute(ctx, start.UTC()); err != nil {
		rec := store.RunRecord{
			Success:       false,
			Errors:        []string{err.Error()},
			ExecutionTime: m.clock.Since(start),
			Timestamp:     m.clock.Now().UTC(),
		}
		m.mu.Lock()
		m.lastRun = &rec
		m.mu.Unlock()

		m.obs.ObserveRun(rec, true)
		m.logger.ErrorContext(ctx, "retention cleanup failed", slog.Any("error", err))
		return rec, nil
	}

	rec := store.RunRecord{
		Success:           len(r.errors) == 0,
		DeletedCount:      r.deleted,
		ProfilesProcessed: len(r.touched),
		ExecutionTime:     m.clock.Since(start),
		Errors:            r.errors,
		Timestamp:         m.clock.Now().UTC(),
	}
	if rec.Errors == nil {
		rec.Errors = []string{}
	}

	m.mu.Lock()
	m.lastCleanupAt = rec.Timestamp
	m.lastRun = &rec
	m.mu.Unlock()

	if m.runs != nil {
		if err := m.runs.AppendRun(ctx, rec); err != nil {
			m.logger.WarnContext(ctx, "retention run not recorded", slog.Any("error", err))
		}
	}
	m.obs.ObserveRun(rec, false)

	m.logger.InfoContext(ctx, "retention cleanup finished",
		slog.Bool("success", rec.Success),
		slog.Int("deleted", rec.DeletedCount),
		slog.Int("profiles", rec.ProfilesProcessed),
		slog.Int("errors", len(rec.Errors)),
		slog.Duration("took", rec.ExecutionTime))
	return rec, nil
}

type cleanupRun struct {
	m       *RetentionManager
	deleted int
	touched map[string]struct{}
	// failed holds, per profile, the ids whose delete failed in this run.
	// They still count against the cap but are not retried.
	failed map[string]map[string]struct{}
	errors []string
}

// execute returns an error only when the upfront reads fail.
func (r *cleanupRun) execute(ctx context.Context, now time.Time) error {
	policy := r.m.policy

	var expired []store.AuditLogEntry
	if cutoff, ok := r.m.cutoff(now); ok {
		var err error
		expired, err = r.m.logs.ListOlderThan(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("read expired entries: %w", err)
		}
	}

	var counts map[string]int64
	if policy.MaxLogsPerProfile > 0 {
		var err error
		counts, err = r.m.logs.CountByProfile(ctx)
		if err != nil {
			return fmt.Errorf("count entries by profile: %w", err)
		}
	}

	for _, e := range r.deleteBatched(ctx, expired) {
		if counts != nil {
			counts[e.ProfileID]--
		}
	}

	if policy.MaxLogsPerProfile <= 0 {
		return nil
	}

	profiles := make([]string, 0, len(counts))
	for p, n := range counts {
		if n > int64(policy.MaxLogsPerProfile) {
			profiles = append(profiles, p)
		}
	}
	sort.Strings(profiles)

	for _, p := range profiles {
		excess := int(counts[p] - int64(policy.MaxLogsPerProfile))
		skip := r.failed[p]
		oldest, err := r.m.logs.ListOldestForProfile(ctx, p, excess+len(skip))
		if err != nil {
			r.errors = append(r.errors, fmt.Sprintf("profile %s: read oldest entries: %v", p, err))
			continue
		}
		victims := make([]store.AuditLogEntry, 0, excess)
		for _, e := range oldest {
			if _, bad := skip[e.ID]; bad {
				continue
			}
			if len(victims) == excess {
				break
			}
			victims = append(victims, e)
		}
		r.deleteBatched(ctx, victims)
	}
	return nil
}

// deleteBatched deletes entries in policy-sized batches.  A failed batch is
// retried one entry at a time so a single bad entry costs one error.  It
// returns the entries that were deleted.
func (r *cleanupRun) deleteBatched(ctx context.Context, entries []store.AuditLogEntry) []store.AuditLogEntry {
	var done []store.AuditLogEntry
	size := r.m.policy.BatchSize

	for start := 0; start < len(entries); start += size {
		batch := entries[start:min(start+size, len(entries))]

		ids := make([]string, len(batch))
		for i, e := range batch {
			ids[i] = e.ID
		}

		if err := r.m.logs.DeleteEntries(ctx, ids); err == nil {
			for _, e := range batch {
				r.note(e)
			}
			done = append(done, batch...)
			continue
		}

		for _, e := range batch {
			if err := r.m.logs.DeleteEntries(ctx, []string{e.ID}); err != nil {
				r.fail(e, err)
				continue
			}
			r.note(e)
			done = append(done, e)
		}
	}
	return done
}

func (r *cleanupRun) fail(e store.AuditLogEntry, err error) {
	r.errors = append(r.errors, fmt.Sprintf("delete entry %s: %v", e.ID, err))
	ids, ok := r.failed[e.ProfileID]
	if !ok {
		ids = make(map[string]struct{})
		r.failed[e.ProfileID] = ids
	}
	ids[e.ID] = struct{}{}
}

func (r *cleanupRun) note(e store.AuditLogEntry) {
	r.deleted++
	r.touched[e.ProfileID] = struct{}{}
}
