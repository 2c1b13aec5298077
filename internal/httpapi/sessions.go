package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mohamedS2020/lifetag/internal/lifetag/service"
	"github.com/mohamedS2020/lifetag/internal/lifetag/types"
)

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookupProfile(w, r)
	if !ok {
		return
	}

	p := s.sessions.Open(rec.ProfileID)
	respond(w, r, http.StatusCreated, types.OpenSessionResponse{
		SessionID:         p.ID,
		ProfileID:         p.ProfileID,
		AttemptsRemaining: p.Session.AttemptsRemaining(),
		ExpiresAt:         p.ExpiresAt.Format(time.RFC3339),
	})
}

// handleVerify submits one password attempt to an open session.  A wrong
// password is a 200 with outcome "mismatch"; the attempt that reaches the
// threshold answers "locked_out" and later attempts get 429.  Attempts that
// compared a password are audited as unlocks; refused ones are not.  A locked
// session stays registered until its TTL so the 429 stays observable.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req types.VerifyRequest
	if err := decodeBody(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, r, http.StatusBadRequest, "bad_json", "invalid request body")
		return
	}

	p, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, r, http.StatusNotFound, "session_not_found", "unknown or expired session")
		return
	}

	rec, err := s.profiles.Get(r.Context(), p.ProfileID)
	switch {
	case errors.Is(err, service.ErrProfileNotFound):
		s.sessions.Close(p.ID)
		writeError(w, r, http.StatusNotFound, "profile_not_found", "unknown profile")
		return
	case err != nil:
		s.storageUnavailable(w, r, "read profile", err)
		return
	}

	res, err := p.Session.Submit(r.Context(), req.Password, rec.PasswordHash)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPasswordRequired):
			writeError(w, r, http.StatusBadRequest, "password_required", "password is required")
		case errors.Is(err, service.ErrTooManyAttempts):
			writeError(w, r, http.StatusTooManyRequests, "too_many_attempts", "too many failed attempts, open a new session later")
		case errors.Is(err, service.ErrSessionClosed):
			writeError(w, r, http.StatusConflict, "session_closed", "session already granted access")
		default:
			s.gateError(w, r, err)
		}
		return
	}

	resp := types.VerifyResponse{
		SessionID:         p.ID,
		Outcome:           res.Outcome.String(),
		Granted:           res.Outcome == service.OutcomeGranted,
		AttemptsRemaining: res.AttemptsRemaining,
		ServerTime:        s.serverTime(),
	}

	if resp.Granted {
		s.sessions.Close(p.ID)
		mins := res.Grant.RemainingMinutes(s.clock.Now())
		resp.RemainingMinutes = &mins
		resp.ExpiresAt = res.Grant.ExpiresAt.UTC().Format(time.RFC3339)
	}

	// Every compared password is an unlock attempt, whatever the outcome.
	s.audit.Record(r.Context(), rec.ProfileID, clientIP(r), service.AccessUnlock, req.Method, nil)
	if res.Outcome == service.OutcomeLockedOut {
		s.logger.WarnContext(r.Context(), "prompt session locked out",
			slog.String("profile_id", rec.ProfileID),
			slog.String("remote", clientIP(r)))
	}

	respond(w, r, http.StatusOK, resp)
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Close(r.PathValue("id")) {
		writeError(w, r, http.StatusNotFound, "session_not_found", "unknown or expired session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
