package service

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const DefaultSessionTTL = 10 * time.Minute

// OpenPrompt is a registered prompt session.
type OpenPrompt struct {
	ID        string
	ProfileID string
	Session   *PromptSession
	ExpiresAt time.Time
}

// SessionRegistry holds the prompt sessions opened over HTTP.  Sessions live
// in memory only and are evicted after the TTL, which closes the prompt and
// discards its attempt count.
type SessionRegistry struct {
	gate  *AccessGate
	ttl   time.Duration
	clock clockwork.Clock

	mu       sync.Mutex
	sessions map[string]OpenPrompt
}

func NewSessionRegistry(gate *AccessGate, ttl time.Duration, clock clockwork.Clock) *SessionRegistry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SessionRegistry{
		gate:     gate,
		ttl:      ttl,
		clock:    clock,
		sessions: make(map[string]OpenPrompt),
	}
}

// Open starts a new prompt session for profileID.
func (r *SessionRegistry) Open(profileID string) OpenPrompt {
	profileID = strings.TrimSpace(profileID)
	now := r.clock.Now()

	p := OpenPrompt{
		ID:        uuid.NewString(),
		ProfileID: profileID,
		Session:   r.gate.OpenSession(ProfilePurpose(profileID)),
		ExpiresAt: now.Add(r.ttl).UTC(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked(now)
	r.sessions[p.ID] = p
	return p
}

// Get returns the live session with id, or ErrSessionNotFound.
func (r *SessionRegistry) Get(id string) (OpenPrompt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.sessions[id]
	if !ok {
		return OpenPrompt{}, ErrSessionNotFound
	}
	if !r.clock.Now().Before(p.ExpiresAt) {
		delete(r.sessions, id)
		return OpenPrompt{}, ErrSessionNotFound
	}
	return p, nil
}

// Close discards the session.  It reports whether one was open.
func (r *SessionRegistry) Close(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	return ok
}

func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *SessionRegistry) sweepLocked(now time.Time) {
	for id, p := range r.sessions {
		if !now.Before(p.ExpiresAt) {
			delete(r.sessions, id)
		}
	}
}
