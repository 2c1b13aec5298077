package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"

	"github.com/mohamedS2020/lifetag/internal/lifetag/store"
)

const (
	DefaultAccessWindow = 15 * time.Minute
	DefaultMaxAttempts  = 3

	grantKeyPrefix = "access_grant:"

	// bcrypt only looks at the first 72 bytes; anything longer can never be
	// the password that was hashed.
	maxPasswordBytes = 72
)

// GrantState is the per-purpose state of the gate.  Expired behaves like
// NoGrant for gating and only differs for messaging.
type GrantState int

const (
	GrantNone GrantState = iota
	GrantActive
	GrantExpired
)

func (s GrantState) String() string {
	switch s {
	case GrantActive:
		return "active"
	case GrantExpired:
		return "expired"
	default:
		return "no_grant"
	}
}

// AccessGrant permits skipping the password prompt for Purpose until
// ExpiresAt.
type AccessGrant struct {
	Purpose   string
	GrantedAt time.Time
	ExpiresAt time.Time
}

// ProfilePurpose is the grant purpose for viewing one profile.
func ProfilePurpose(profileID string) string {
	return "profile_access:" + strings.TrimSpace(profileID)
}

type GateConfig struct {
	// Window is how long a grant stays valid.  Defaults to 15 minutes.
	Window time.Duration
	// MaxAttempts is the consecutive failure count that locks a prompt
	// session.  Defaults to 3.
	MaxAttempts int

	Clock    clockwork.Clock
	Observer GateObserver
}

// AccessGate verifies profile passwords and keeps time-boxed grants in the
// device-local key-value store.  Grants are evaluated lazily; expired ones
// are ignored, never deleted.
type AccessGate struct {
	kv          store.KVStore
	window      time.Duration
	maxAttempts int
	clock       clockwork.Clock
	obs         GateObserver
}

func NewAccessGate(kv store.KVStore, cfg GateConfig) *AccessGate {
	g := &AccessGate{
		kv:          kv,
		window:      cfg.Window,
		maxAttempts: cfg.MaxAttempts,
		clock:       cfg.Clock,
		obs:         cfg.Observer,
	}
	if g.window <= 0 {
		g.window = DefaultAccessWindow
	}
	if g.maxAttempts <= 0 {
		g.maxAttempts = DefaultMaxAttempts
	}
	if g.clock == nil {
		g.clock = clockwork.NewRealClock()
	}
	if g.obs == nil {
		g.obs = noopObserver{}
	}
	return g
}

func (g *AccessGate) Window() time.Duration { return g.window }

func (g *AccessGate) MaxAttempts() int { return g.maxAttempts }

// VerifyPassword compares submitted against a bcrypt hash.  A mismatch is
// (false, nil).  An empty submission is ErrPasswordRequired and no
// comparison happens.
func (g *AccessGate) VerifyPassword(submitted, storedHash string) (bool, error) {
	if submitted == "" {
		return false, ErrPasswordRequired
	}
	if len(submitted) > maxPasswordBytes {
		return false, nil
	}

	err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(submitted))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword), errors.Is(err, bcrypt.ErrPasswordTooLong):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
}

// GrantTemporaryAccess persists a grant for purpose valid for the gate
// window, replacing any earlier grant.
func (g *AccessGate) GrantTemporaryAccess(ctx context.Context, purpose string) (AccessGrant, error) {
	purpose = strings.TrimSpace(purpose)
	if purpose == "" {
		return AccessGrant{}, ErrInvalidPurpose
	}

	now := g.clock.Now().UTC()
	grant := AccessGrant{
		Purpose:   purpose,
		GrantedAt: now,
		ExpiresAt: now.Add(g.window),
	}

	b, err := encodeGrant(grant)
	if err != nil {
		return AccessGrant{}, fmt.Errorf("encode grant: %w", err)
	}
	if err := g.kv.Set(ctx, grantKeyPrefix+purpose, b); err != nil {
		return AccessGrant{}, storageErr("grant access", err)
	}

	g.obs.ObserveGrant()
	return grant, nil
}

// HasValidAccess reports whether a grant for purpose exists and has not yet
// expired.  On error callers must treat access as not granted.
func (g *AccessGate) HasValidAccess(ctx context.Context, purpose string) (bool, error) {
	c, err := g.Check(ctx, purpose)
	if err != nil {
		return false, err
	}
	return c.State == GrantActive, nil
}

// RemainingAccessMinutes returns the whole minutes left on a valid grant,
// rounded up.  ok is false when there is no valid grant.
func (g *AccessGate) RemainingAccessMinutes(ctx context.Context, purpose string) (minutes int, ok bool, err error) {
	c, err := g.Check(ctx, purpose)
	if err != nil || c.State != GrantActive {
		return 0, false, err
	}
	return c.RemainingMinutes, true, nil
}

func (g *AccessGate) State(ctx context.Context, purpose string) (GrantState, error) {
	c, err := g.Check(ctx, purpose)
	return c.State, err
}

// AccessCheck is a grant evaluated at one instant.
type AccessCheck struct {
	Grant AccessGrant // zero when State is GrantNone
	State GrantState
	// RemainingMinutes is positive exactly when State is GrantActive.
	RemainingMinutes int
}

// Check reads the grant for purpose and evaluates it against a single
// reading of the clock.
func (g *AccessGate) Check(ctx context.Context, purpose string) (AccessCheck, error) {
	purpose = strings.TrimSpace(purpose)
	if purpose == "" {
		return AccessCheck{}, ErrInvalidPurpose
	}

	b, ok, err := g.kv.Get(ctx, grantKeyPrefix+purpose)
	if err != nil {
		return AccessCheck{}, storageErr("read grant", err)
	}
	if !ok {
		return AccessCheck{State: GrantNone}, nil
	}

	grant, err := decodeGrant(b)
	if err != nil {
		return AccessCheck{}, err
	}

	now := g.clock.Now()
	if now.Before(grant.ExpiresAt) {
		return AccessCheck{Grant: grant, State: GrantActive, RemainingMinutes: grant.RemainingMinutes(now)}, nil
	}
	return AccessCheck{Grant: grant, State: GrantExpired}, nil
}

// Lookup returns the stored grant for purpose together with its state at
// the current time.  The grant is zero when the state is GrantNone.
func (g *AccessGate) Lookup(ctx context.Context, purpose string) (AccessGrant, GrantState, error) {
	c, err := g.Check(ctx, purpose)
	if err != nil {
		return AccessGrant{}, GrantNone, err
	}
	return c.Grant, c.State, nil
}

// RemainingMinutes is the time left at now in whole minutes, rounded up.
func (a AccessGrant) RemainingMinutes(now time.Time) int {
	return ceilMinutes(a.ExpiresAt.Sub(now))
}

func ceilMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Minute - 1) / time.Minute)
}
