package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mohamedS2020/lifetag/internal/lifetag/service"
	"github.com/mohamedS2020/lifetag/internal/lifetag/store"
	"github.com/mohamedS2020/lifetag/internal/lifetag/types"
)

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req types.CreateProfileRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_json", "invalid request body")
		return
	}

	rec, err := s.profiles.Create(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidProfile):
			writeError(w, r, http.StatusBadRequest, "invalid_profile", err.Error())
		case errors.Is(err, service.ErrProfileExists):
			writeError(w, r, http.StatusConflict, "profile_exists", "profile id already taken")
		default:
			s.internalError(w, r, "create profile", err)
		}
		return
	}

	s.logger.InfoContext(r.Context(), "profile created", slog.String("profile_id", rec.ProfileID))
	respond(w, r, http.StatusCreated, profileView(rec))
}

// handleViewProfile shows the profile only while a grant for it is active.
// Every successful view is audited.
func (s *Server) handleViewProfile(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookupProfile(w, r)
	if !ok {
		return
	}

	check, err := s.gate.Check(r.Context(), service.ProfilePurpose(rec.ProfileID))
	if err != nil {
		s.gateError(w, r, err)
		return
	}

	switch check.State {
	case service.GrantActive:
	case service.GrantExpired:
		writeError(w, r, http.StatusForbidden, "access_required", "access expired, verify the password again")
		return
	default:
		writeError(w, r, http.StatusForbidden, "access_required", "verify the password to view this profile")
		return
	}

	s.audit.Record(r.Context(), rec.ProfileID, clientIP(r), service.AccessView,
		r.URL.Query().Get("method"), service.ViewedFields)

	respond(w, r, http.StatusOK, profileView(rec))
}

func (s *Server) handleAccessStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, r, http.StatusNotFound, "profile_not_found", "unknown profile")
		return
	}

	check, err := s.gate.Check(r.Context(), service.ProfilePurpose(id))
	if err != nil {
		s.gateError(w, r, err)
		return
	}

	resp := types.AccessStatusResponse{
		ProfileID:  id,
		HasAccess:  check.State == service.GrantActive,
		State:      check.State.String(),
		ServerTime: s.serverTime(),
	}
	if check.State == service.GrantActive {
		mins := check.RemainingMinutes
		resp.RemainingMinutes = &mins
		resp.ExpiresAt = check.Grant.ExpiresAt.UTC().Format(time.RFC3339)
	}
	respond(w, r, http.StatusOK, resp)
}

// lookupProfile writes the error response itself when it returns false.
func (s *Server) lookupProfile(w http.ResponseWriter, r *http.Request) (store.ProfileRecord, bool) {
	rec, err := s.profiles.Get(r.Context(), r.PathValue("id"))
	switch {
	case err == nil:
		return rec, true
	case errors.Is(err, service.ErrProfileNotFound):
		writeError(w, r, http.StatusNotFound, "profile_not_found", "unknown profile")
	case service.IsStorage(err):
		s.storageUnavailable(w, r, "read profile", err)
	default:
		s.internalError(w, r, "read profile", err)
	}
	return store.ProfileRecord{}, false
}

func profileView(rec store.ProfileRecord) types.ProfileView {
	return types.ProfileView{
		ProfileID:        rec.ProfileID,
		DisplayName:      rec.DisplayName,
		BloodType:        rec.BloodType,
		Allergies:        rec.Allergies,
		Medications:      rec.Medications,
		EmergencyContact: rec.EmergencyContact,
		CreatedAt:        rec.CreatedAt.UTC().Format(time.RFC3339),
	}
}
