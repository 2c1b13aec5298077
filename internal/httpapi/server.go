package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mohamedS2020/lifetag/internal/authz"
	"github.com/mohamedS2020/lifetag/internal/lifetag/service"
)

type Dependencies struct {
	Logger    *slog.Logger
	Addr      string
	Gate      *service.AccessGate
	Sessions  *service.SessionRegistry
	Profiles  *service.ProfileRegistry
	Audit     *service.AuditRecorder
	Retention *service.RetentionManager
	Tokens    *authz.TokenManager
	// Metrics is served on GET /metrics when set.
	Metrics http.Handler
	// VerifyRatePerMinute limits verify calls per client IP.  Zero
	// disables the limit.
	VerifyRatePerMinute int
	Clock               clockwork.Clock
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	mux        *http.ServeMux
	clock      clockwork.Clock

	gate      *service.AccessGate
	sessions  *service.SessionRegistry
	profiles  *service.ProfileRegistry
	audit     *service.AuditRecorder
	retention *service.RetentionManager
	tokens    *authz.TokenManager
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := d.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	s := &Server{
		logger:    logger,
		mux:       mux,
		clock:     clock,
		gate:      d.Gate,
		sessions:  d.Sessions,
		profiles:  d.Profiles,
		audit:     d.Audit,
		retention: d.Retention,
		tokens:    d.Tokens,
	}

	admin := func(h http.HandlerFunc) http.Handler { return requireAdmin(d.Tokens, h) }

	verify := http.Handler(http.HandlerFunc(s.handleVerify))
	if d.VerifyRatePerMinute > 0 {
		verify = newIPLimiter(d.VerifyRatePerMinute, clock).middleware(verify)
	}

	mux.Handle("POST /v1/profiles", admin(s.handleCreateProfile))
	mux.HandleFunc("GET /v1/profiles/{id}", s.handleViewProfile)
	mux.HandleFunc("GET /v1/profiles/{id}/access", s.handleAccessStatus)
	mux.HandleFunc("POST /v1/profiles/{id}/sessions", s.handleOpenSession)
	mux.Handle("POST /v1/sessions/{id}/verify", verify)
	mux.HandleFunc("DELETE /v1/sessions/{id}", s.handleCloseSession)
	mux.Handle("GET /v1/admin/retention", admin(s.handleRetentionStatus))
	mux.Handle("POST /v1/admin/retention/cleanup", admin(s.handleRetentionCleanup))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics)
	}

	handler := loggingMiddleware(logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on lis until Shutdown.
func (s *Server) Serve(lis net.Listener) error {
	return s.httpServer.Serve(lis)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) serverTime() string {
	return s.clock.Now().UTC().Format(time.RFC3339)
}
