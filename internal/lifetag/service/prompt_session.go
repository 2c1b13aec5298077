package service

import (
	"context"
	"errors"
	"sync"
)

type Outcome int

const (
	OutcomeMismatch Outcome = iota
	OutcomeGranted
	OutcomeLockedOut
)

func (o Outcome) String() string {
	switch o {
	case OutcomeGranted:
		return "granted"
	case OutcomeLockedOut:
		return "locked_out"
	default:
		return "mismatch"
	}
}

type SubmitResult struct {
	Outcome           Outcome
	AttemptsRemaining int
	Grant             AccessGrant // set only for OutcomeGranted
}

// PromptSession is one opening of the password prompt for a purpose.  It
// counts consecutive failures in memory only; a new session starts from
// zero.
type PromptSession struct {
	gate    *AccessGate
	purpose string

	mu        sync.Mutex
	failures  int
	lockedOut bool
	granted   bool
}

// OpenSession starts a fresh prompt session for purpose.
func (g *AccessGate) OpenSession(purpose string) *PromptSession {
	return &PromptSession{gate: g, purpose: purpose}
}

func (s *PromptSession) Purpose() string { return s.purpose }

func (s *PromptSession) AttemptsRemaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remainingLocked()
}

func (s *PromptSession) LockedOut() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lockedOut
}

// Submit checks password against storedHash.  A wrong password is an
// outcome, not an error.  The failure that reaches the threshold returns
// OutcomeLockedOut and every later call returns ErrTooManyAttempts without
// comparing.  An empty password is ErrPasswordRequired and is not counted.
// A storage failure while persisting the grant leaves the counter as it was.
func (s *PromptSession) Submit(ctx context.Context, password, storedHash string) (SubmitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lockedOut {
		s.gate.obs.ObserveVerification("rejected")
		return SubmitResult{Outcome: OutcomeLockedOut}, ErrTooManyAttempts
	}
	if s.granted {
		return SubmitResult{}, ErrSessionClosed
	}

	ok, err := s.gate.VerifyPassword(password, storedHash)
	if err != nil {
		if errors.Is(err, ErrPasswordRequired) {
			s.gate.obs.ObserveVerification("password_required")
		}
		return SubmitResult{AttemptsRemaining: s.remainingLocked()}, err
	}

	if !ok {
		s.failures++
		if s.failures >= s.gate.maxAttempts {
			s.lockedOut = true
			s.gate.obs.ObserveVerification(OutcomeLockedOut.String())
			return SubmitResult{Outcome: OutcomeLockedOut}, nil
		}
		s.gate.obs.ObserveVerification(OutcomeMismatch.String())
		return SubmitResult{Outcome: OutcomeMismatch, AttemptsRemaining: s.remainingLocked()}, nil
	}

	grant, err := s.gate.GrantTemporaryAccess(ctx, s.purpose)
	if err != nil {
		return SubmitResult{AttemptsRemaining: s.remainingLocked()}, err
	}
	s.granted = true
	s.gate.obs.ObserveVerification(OutcomeGranted.String())
	return SubmitResult{
		Outcome:           OutcomeGranted,
		AttemptsRemaining: s.remainingLocked(),
		Grant:             grant,
	}, nil
}

func (s *PromptSession) remainingLocked() int {
	if s.lockedOut {
		return 0
	}
	return s.gate.maxAttempts - s.failures
}
