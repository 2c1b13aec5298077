package store

import (
	"context"
	"time"
)

// RunRecord is the outcome of one retention cleanup run.
type RunRecord struct {
	Success           bool
	DeletedCount      int
	ProfilesProcessed int
	ExecutionTime     time.Duration
	Errors            []string
	Timestamp         time.Time // when the run completed
}

// RunStore keeps the history of completed cleanup runs.
type RunStore interface {
	AppendRun(ctx context.Context, rec RunRecord) error
	// RecentRuns returns up to limit runs, newest first.
	RecentRuns(ctx context.Context, limit int) ([]RunRecord, error)
}
