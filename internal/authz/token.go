// Package authz issues and checks the bearer tokens that guard the admin
// endpoints (profile creation, retention status and cleanup).
package authz

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	RoleAdmin = "admin"
	issuer    = "lifetag"
)

var (
	ErrDisabled     = errors.New("admin tokens are disabled")
	ErrInvalidToken = errors.New("invalid admin token")
	ErrForbidden    = errors.New("token lacks the admin role")
)

// TokenManager signs and validates HS256 admin tokens.  A manager built
// with an empty secret rejects everything.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock returns a copy of m reading time from now.
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	cp := *m
	cp.now = now
	return &cp
}

func (m *TokenManager) Enabled() bool { return len(m.secret) > 0 }

type adminClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Issue returns a signed admin token for subject.
func (m *TokenManager) Issue(subject string) (string, time.Time, error) {
	if !m.Enabled() {
		return "", time.Time{}, ErrDisabled
	}
	now := m.now()
	exp := now.Add(m.ttl)
	claims := adminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Role: RoleAdmin,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Validate checks signature, issuer, expiry and role, and returns the
// token subject.
func (m *TokenManager) Validate(token string) (string, error) {
	if !m.Enabled() {
		return "", ErrDisabled
	}
	if token == "" {
		return "", ErrInvalidToken
	}

	var claims adminClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Role != RoleAdmin {
		return "", ErrForbidden
	}
	return claims.Subject, nil
}
