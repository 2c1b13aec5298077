package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/mohamedS2020/lifetag/internal/lifetag/store"
)

type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]store.ProfileRecord
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{profiles: make(map[string]store.ProfileRecord)}
}

func (s *ProfileStore) CreateProfile(_ context.Context, rec store.ProfileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.profiles[rec.ProfileID]; exists {
		return fmt.Errorf("CreateProfile %s: %w", rec.ProfileID, store.ErrAlreadyExists)
	}
	s.profiles[rec.ProfileID] = rec
	return nil
}

func (s *ProfileStore) GetProfile(_ context.Context, profileID string) (store.ProfileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.profiles[profileID]
	if !ok {
		return store.ProfileRecord{}, store.ErrNotFound
	}
	return rec, nil
}
