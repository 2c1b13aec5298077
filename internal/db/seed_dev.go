package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	DevProfileID       = "demo-profile"
	DevProfilePassword = "lifetag-demo"
)

type SeedDevOptions struct {
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// SeedDev inserts a demo profile so the unlock flow can be exercised
// against a fresh dev database.  Existing rows are left alone.
func SeedDev(ctx context.Context, db *sql.DB, opt SeedDevOptions) error {
	cost := opt.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DevProfilePassword), cost)
	if err != nil {
		return fmt.Errorf("seed hash password: %w", err)
	}

	now := time.Now().UTC().UnixMilli()
	if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO profiles(
  profile_id, display_name, blood_type, allergies, medications,
  emergency_contact, password_hash, created_at_ms, updated_at_ms
) VALUES (?, 'Demo Patient', 'O+', '["penicillin"]', '[]', '+1-555-0100', ?, ?, ?);
`, DevProfileID, string(hash), now, now); err != nil {
		return fmt.Errorf("seed profile %s: %w", DevProfileID, err)
	}

	return nil
}
