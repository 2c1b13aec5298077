package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/mohamedS2020/lifetag/internal/lifetag/service"
)

// gateError maps access gate failures.  Storage faults are retryable;
// anything else is unexpected data.
func (s *Server) gateError(w http.ResponseWriter, r *http.Request, err error) {
	if service.IsStorage(err) {
		s.storageUnavailable(w, r, "access gate", err)
		return
	}
	s.internalError(w, r, "access gate", err)
}

func (s *Server) storageUnavailable(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.logger.ErrorContext(r.Context(), op+" failed", slog.Any("error", err))
	writeError(w, r, http.StatusServiceUnavailable, "storage_unavailable", "storage temporarily unavailable, retry")
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.logger.ErrorContext(r.Context(), op+" error", slog.Any("error", err))
	writeError(w, r, http.StatusInternalServerError, "internal_error", "unexpected server error")
}
