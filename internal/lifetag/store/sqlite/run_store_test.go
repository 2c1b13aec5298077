package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/mohamedS2020/lifetag/internal/lifetag/store"
	sqlitestore "github.com/mohamedS2020/lifetag/internal/lifetag/store/sqlite"
)

func TestRunStore_AppendAndRecent(t *testing.T) {
	conn := openTestDB(t)
	rs := sqlitestore.NewRunStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := rs.AppendRun(ctx, store.RunRecord{
			Success:           i != 1,
			DeletedCount:      i * 10,
			ProfilesProcessed: i,
			ExecutionTime:     time.Duration(i+1) * 250 * time.Millisecond,
			Errors:            nil,
			Timestamp:         base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("AppendRun %d: %v", i, err)
		}
	}

	runs, err := rs.RecentRuns(ctx, 2)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}

	newest := runs[0]
	if newest.DeletedCount != 20 || newest.ProfilesProcessed != 2 || !newest.Success {
		t.Errorf("unexpected newest run %+v", newest)
	}
	if newest.ExecutionTime != 750*time.Millisecond {
		t.Errorf("expected 750ms, got %s", newest.ExecutionTime)
	}
	if !newest.Timestamp.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("unexpected timestamp %v", newest.Timestamp)
	}
	if runs[1].Success {
		t.Error("expected second-newest run to be a failure")
	}
}

func TestRunStore_ErrorsRoundTrip(t *testing.T) {
	conn := openTestDB(t)
	rs := sqlitestore.NewRunStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	err := rs.AppendRun(ctx, store.RunRecord{
		Errors:    []string{"delete e-1: boom"},
		Timestamp: base,
	})
	if err != nil {
		t.Fatalf("AppendRun: %v", err)
	}

	runs, err := rs.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 1 || len(runs[0].Errors) != 1 || runs[0].Errors[0] != "delete e-1: boom" {
		t.Errorf("unexpected runs %+v", runs)
	}
}
