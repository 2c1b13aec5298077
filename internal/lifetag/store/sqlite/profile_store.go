package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/mohamedS2020/lifetag/internal/db"
	"github.com/mohamedS2020/lifetag/internal/lifetag/store"
)

type ProfileStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewProfileStore(db *sql.DB, writer *dbpkg.Worker) *ProfileStore {
	return &ProfileStore{db: db, writer: writer}
}

func (s *ProfileStore) CreateProfile(ctx context.Context, rec store.ProfileRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	ms := rec.CreatedAt.UTC().UnixMilli()

	allergies, err := json.Marshal(nonNil(rec.Allergies))
	if err != nil {
		return fmt.Errorf("CreateProfile encode allergies: %w", err)
	}
	medications, err := json.Marshal(nonNil(rec.Medications))
	if err != nil {
		return fmt.Errorf("CreateProfile encode medications: %w", err)
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM profiles WHERE profile_id = ?;`, rec.ProfileID).Scan(&one)
		switch {
		case err == nil:
			return fmt.Errorf("CreateProfile %s: %w", rec.ProfileID, store.ErrAlreadyExists)
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("CreateProfile lookup: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO profiles(
  profile_id, display_name, blood_type, allergies, medications,
  emergency_contact, password_hash, created_at_ms, updated_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
			rec.ProfileID, rec.DisplayName, rec.BloodType, string(allergies), string(medications),
			rec.EmergencyContact, rec.PasswordHash, ms, ms,
		); err != nil {
			return fmt.Errorf("CreateProfile insert: %w", err)
		}
		return nil
	})
}

func (s *ProfileStore) GetProfile(ctx context.Context, profileID string) (store.ProfileRecord, error) {
	profileID = strings.TrimSpace(profileID)
	if profileID == "" {
		return store.ProfileRecord{}, store.ErrNotFound
	}

	var (
		rec         store.ProfileRecord
		allergies   string
		medications string
		createdMs   int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT profile_id, display_name, blood_type, allergies, medications,
       emergency_contact, password_hash, created_at_ms
FROM profiles
WHERE profile_id = ?;
`, profileID).Scan(&rec.ProfileID, &rec.DisplayName, &rec.BloodType, &allergies, &medications,
		&rec.EmergencyContact, &rec.PasswordHash, &createdMs)

	if errors.Is(err, sql.ErrNoRows) {
		return store.ProfileRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.ProfileRecord{}, fmt.Errorf("GetProfile query: %w", err)
	}

	if err := json.Unmarshal([]byte(allergies), &rec.Allergies); err != nil {
		return store.ProfileRecord{}, fmt.Errorf("GetProfile decode allergies: %w", err)
	}
	if err := json.Unmarshal([]byte(medications), &rec.Medications); err != nil {
		return store.ProfileRecord{}, fmt.Errorf("GetProfile decode medications: %w", err)
	}
	rec.CreatedAt = time.UnixMilli(createdMs).UTC()
	return rec, nil
}
