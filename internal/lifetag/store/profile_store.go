package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

type ProfileRecord struct {
	ProfileID        string
	DisplayName      string
	BloodType        string
	Allergies        []string
	Medications      []string
	EmergencyContact string
	PasswordHash     string // bcrypt
	CreatedAt        time.Time
}

type ProfileStore interface {
	// CreateProfile returns ErrAlreadyExists when the id is taken.
	CreateProfile(ctx context.Context, rec ProfileRecord) error
	// GetProfile returns ErrNotFound for unknown ids.
	GetProfile(ctx context.Context, profileID string) (ProfileRecord, error)
}
