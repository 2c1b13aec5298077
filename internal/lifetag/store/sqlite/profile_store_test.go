package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mohamedS2020/lifetag/internal/lifetag/store"
	sqlitestore "github.com/mohamedS2020/lifetag/internal/lifetag/store/sqlite"
)

func TestProfileStore_CreateAndGet(t *testing.T) {
	conn := openTestDB(t)
	ps := sqlitestore.NewProfileStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	err := ps.CreateProfile(ctx, store.ProfileRecord{
		ProfileID:        "p-1",
		DisplayName:      "Jane Doe",
		BloodType:        "A-",
		Allergies:        []string{"latex"},
		EmergencyContact: "+1-555-0199",
		PasswordHash:     "$2a$04$hash",
		CreatedAt:        base,
	})
	if err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}

	got, err := ps.GetProfile(ctx, "p-1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got.DisplayName != "Jane Doe" || got.BloodType != "A-" {
		t.Errorf("unexpected profile %+v", got)
	}
	if len(got.Allergies) != 1 || got.Allergies[0] != "latex" {
		t.Errorf("unexpected allergies %v", got.Allergies)
	}
	if len(got.Medications) != 0 {
		t.Errorf("expected no medications, got %v", got.Medications)
	}
	if got.PasswordHash != "$2a$04$hash" {
		t.Errorf("unexpected password hash %q", got.PasswordHash)
	}
	if !got.CreatedAt.Equal(base) {
		t.Errorf("expected created_at=%v, got %v", base, got.CreatedAt)
	}
}

func TestProfileStore_GetUnknown(t *testing.T) {
	conn := openTestDB(t)
	ps := sqlitestore.NewProfileStore(conn, newTestWriter(t, conn))

	_, err := ps.GetProfile(context.Background(), "ghost")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	_, err = ps.GetProfile(context.Background(), "   ")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for blank id, got %v", err)
	}
}

func TestProfileStore_CreateDuplicate(t *testing.T) {
	conn := openTestDB(t)
	ps := sqlitestore.NewProfileStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	rec := store.ProfileRecord{ProfileID: "p-1", DisplayName: "Jane", PasswordHash: "$2a$04$hash", CreatedAt: base}
	if err := ps.CreateProfile(ctx, rec); err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}
	err := ps.CreateProfile(ctx, rec)
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}
