package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/zeebo/blake3"

	"github.com/mohamedS2020/lifetag/internal/lifetag/store"
)

const (
	AccessView   = "view"
	AccessUnlock = "unlock"

	MethodQR   = "qr"
	MethodLink = "link"
)

// ViewedFields lists the profile fields shown on a successful view.
var ViewedFields = []string{"display_name", "blood_type", "allergies", "medications", "emergency_contact"}

// AuditRecorder appends profile accesses to the audit log.
type AuditRecorder struct {
	store  store.AuditLogStore
	key    [32]byte
	keyed  bool
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewAuditRecorder hashes accessor identities with BLAKE3, keyed by
// accessorKey when it is non-empty.
func NewAuditRecorder(st store.AuditLogStore, accessorKey string, clock clockwork.Clock, logger *slog.Logger) *AuditRecorder {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &AuditRecorder{store: st, clock: clock, logger: logger}
	if accessorKey != "" {
		r.key = blake3.Sum256([]byte(accessorKey))
		r.keyed = true
	}
	return r
}

// Record writes one audit entry.  Write errors are logged and not
// returned: a failed audit write must not block the viewer.
func (r *AuditRecorder) Record(ctx context.Context, profileID, accessor, accessType, method string, fields []string) {
	e := store.AuditLogEntry{
		ID:           uuid.NewString(),
		ProfileID:    strings.TrimSpace(profileID),
		Timestamp:    r.clock.Now().UTC(),
		AccessorHash: r.HashAccessor(accessor),
		AccessType:   accessType,
		Method:       normalizeMethod(method),
		Fields:       fields,
	}

	if err := r.store.RecordEntry(ctx, e); err != nil {
		r.logger.WarnContext(ctx, "audit entry not recorded",
			slog.String("profile_id", e.ProfileID),
			slog.String("access_type", accessType),
			slog.Any("error", err))
	}
}

// HashAccessor returns the BLAKE3 digest of accessor, or nil for an
// anonymous accessor.
func (r *AuditRecorder) HashAccessor(accessor string) []byte {
	accessor = strings.TrimSpace(accessor)
	if accessor == "" {
		return nil
	}
	if !r.keyed {
		sum := blake3.Sum256([]byte(accessor))
		return sum[:]
	}
	h, err := blake3.NewKeyed(r.key[:])
	if err != nil {
		// only fails for a key that is not 32 bytes
		panic(err)
	}
	_, _ = h.Write([]byte(accessor))
	return h.Sum(nil)
}

func normalizeMethod(m string) string {
	if strings.EqualFold(strings.TrimSpace(m), MethodLink) {
		return MethodLink
	}
	return MethodQR
}
