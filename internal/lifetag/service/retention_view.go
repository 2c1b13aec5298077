package service

import (
	"time"

	"github.com/mohamedS2020/lifetag/internal/lifetag/store"
	"github.com/mohamedS2020/lifetag/internal/lifetag/types"
)

// RunView converts a run record to its wire form.
func RunView(rec store.RunRecord) types.RetentionRun {
	errs := rec.Errors
	if errs == nil {
		errs = []string{}
	}
	return types.RetentionRun{
		Success:           rec.Success,
		DeletedCount:      rec.DeletedCount,
		ProfilesProcessed: rec.ProfilesProcessed,
		ExecutionTimeMs:   rec.ExecutionTime.Milliseconds(),
		Errors:            errs,
		Timestamp:         rec.Timestamp.UTC().Format(time.RFC3339),
	}
}

// View converts the status to its wire form stamped with now.
func (s RetentionStatus) View(now time.Time) types.RetentionStatusResponse {
	out := types.RetentionStatusResponse{
		Policy: types.RetentionPolicy{
			RetentionDays:     s.Policy.RetentionDays,
			MaxLogsPerProfile: s.Policy.MaxLogsPerProfile,
			BatchSize:         s.Policy.BatchSize,
		},
		Status: types.RetentionRunState{
			IsCleanupRunning: s.IsCleanupRunning,
			NeedsCleanup:     s.NeedsCleanup,
		},
		Current: types.RetentionCurrent{
			TotalEntries:      s.TotalEntries,
			ExpiredEntries:    s.ExpiredEntries,
			ProfilesOverLimit: s.ProfilesOverLimit,
			ExcessEntries:     s.ExcessEntries,
		},
		ServerTime: now.UTC().Format(time.RFC3339),
	}
	if !s.LastCleanupAt.IsZero() {
		out.Status.LastCleanupAt = s.LastCleanupAt.UTC().Format(time.RFC3339)
	}
	if s.LastRun != nil {
		last := RunView(*s.LastRun)
		out.Status.LastRun = &last
	}
	for _, rec := range s.RecentRuns {
		out.RecentRuns = append(out.RecentRuns, RunView(rec))
	}
	return out
}
