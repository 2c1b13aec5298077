package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"

	"github.com/mohamedS2020/lifetag/internal/lifetag/store"
	"github.com/mohamedS2020/lifetag/internal/lifetag/types"
)

const (
	minPasswordLen = 6

	maxDisplayNameLen = 100
	maxBloodTypeLen   = 8
	maxListItems      = 50
	maxListItemLen    = 100
	maxContactLen     = 200
)

var profileIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

type ProfileRegistry struct {
	store      store.ProfileStore
	bcryptCost int
	clock      clockwork.Clock
}

// NewProfileRegistry returns a registry hashing with cost (bcrypt.DefaultCost
// when out of range).
func NewProfileRegistry(st store.ProfileStore, cost int, clock clockwork.Clock) *ProfileRegistry {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ProfileRegistry{store: st, bcryptCost: cost, clock: clock}
}

func (r *ProfileRegistry) Create(ctx context.Context, req types.CreateProfileRequest) (store.ProfileRecord, error) {
	rec, err := sanitizeProfile(req)
	if err != nil {
		return store.ProfileRecord{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), r.bcryptCost)
	if err != nil {
		return store.ProfileRecord{}, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	rec.PasswordHash = string(hash)
	rec.CreatedAt = r.clock.Now().UTC()

	if err := r.store.CreateProfile(ctx, rec); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return store.ProfileRecord{}, ErrProfileExists
		}
		return store.ProfileRecord{}, storageErr("create profile", err)
	}
	return rec, nil
}

func (r *ProfileRegistry) Get(ctx context.Context, profileID string) (store.ProfileRecord, error) {
	profileID = strings.TrimSpace(profileID)
	if profileID == "" {
		return store.ProfileRecord{}, ErrProfileNotFound
	}
	rec, err := r.store.GetProfile(ctx, profileID)
	if errors.Is(err, store.ErrNotFound) {
		return store.ProfileRecord{}, ErrProfileNotFound
	}
	if err != nil {
		return store.ProfileRecord{}, storageErr("read profile", err)
	}
	return rec, nil
}

func sanitizeProfile(req types.CreateProfileRequest) (store.ProfileRecord, error) {
	rec := store.ProfileRecord{
		ProfileID:        strings.TrimSpace(req.ProfileID),
		DisplayName:      strings.TrimSpace(req.DisplayName),
		BloodType:        strings.ToUpper(strings.TrimSpace(req.BloodType)),
		EmergencyContact: strings.TrimSpace(req.EmergencyContact),
	}

	if !profileIDPattern.MatchString(rec.ProfileID) {
		return rec, invalid("profile_id must be 1-64 letters, digits, '-' or '_'")
	}
	if rec.DisplayName == "" {
		return rec, invalid("display_name is required")
	}
	if utf8.RuneCountInString(rec.DisplayName) > maxDisplayNameLen {
		return rec, invalid("display_name is too long")
	}
	if len(rec.BloodType) > maxBloodTypeLen {
		return rec, invalid("blood_type is too long")
	}
	if utf8.RuneCountInString(rec.EmergencyContact) > maxContactLen {
		return rec, invalid("emergency_contact is too long")
	}

	var err error
	if rec.Allergies, err = sanitizeList("allergies", req.Allergies); err != nil {
		return rec, err
	}
	if rec.Medications, err = sanitizeList("medications", req.Medications); err != nil {
		return rec, err
	}

	switch {
	case len(req.Password) < minPasswordLen:
		return rec, invalid(fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	case len(req.Password) > maxPasswordBytes:
		return rec, invalid(fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	}
	return rec, nil
}

// sanitizeList trims items and drops empty ones.
func sanitizeList(field string, in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	for _, item := range in {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if utf8.RuneCountInString(item) > maxListItemLen {
			return nil, invalid(field + " entry is too long")
		}
		out = append(out, item)
	}
	if len(out) > maxListItems {
		return nil, invalid("too many " + field)
	}
	return out, nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidProfile, msg)
}
