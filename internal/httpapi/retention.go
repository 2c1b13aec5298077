package httpapi

import (
	"errors"
	"net/http"

	"github.com/mohamedS2020/lifetag/internal/lifetag/service"
)

func (s *Server) handleRetentionStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.retention.Status(r.Context())
	if err != nil {
		s.storageUnavailable(w, r, "retention status", err)
		return
	}
	respond(w, r, http.StatusOK, st.View(s.clock.Now()))
}

// handleRetentionCleanup runs a cleanup synchronously.  A run that could
// not read the log still answers 200 with success=false.
func (s *Server) handleRetentionCleanup(w http.ResponseWriter, r *http.Request) {
	rec, err := s.retention.ExecuteManualCleanup(r.Context())
	if errors.Is(err, service.ErrCleanupRunning) {
		writeError(w, r, http.StatusConflict, "cleanup_running", "a cleanup is already in progress")
		return
	}
	if err != nil {
		s.internalError(w, r, "retention cleanup", err)
		return
	}
	respond(w, r, http.StatusOK, service.RunView(rec))
}
