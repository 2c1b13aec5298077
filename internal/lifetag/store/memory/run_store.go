package memory

import (
	"context"
	"sync"

	"github.com/mohamedS2020/lifetag/internal/lifetag/store"
)

type RunStore struct {
	mu   sync.Mutex
	runs []store.RunRecord
}

func NewRunStore() *RunStore {
	return &RunStore{}
}

func (s *RunStore) AppendRun(_ context.Context, rec store.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, rec)
	return nil
}

func (s *RunStore) RecentRuns(_ context.Context, limit int) ([]store.RunRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.RunRecord, 0, limit)
	for i := len(s.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.runs[i])
	}
	return out, nil
}
