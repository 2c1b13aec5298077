package httpapi

import (
	"errors"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/mohamedS2020/lifetag/internal/authz"
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.LogAttrs(r.Context(), level, "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.String("remote", clientIP(r)),
			slog.Duration("duration", time.Since(start)))
	})
}

// requireAdmin accepts "Authorization: Bearer <token>" signed by tokens.
// Without a configured secret the admin surface answers 404.
func requireAdmin(tokens *authz.TokenManager, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tokens == nil || !tokens.Enabled() {
			writeError(w, r, http.StatusNotFound, "not_found", "admin endpoints are disabled")
			return
		}

		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="lifetag"`)
			writeError(w, r, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}

		if _, err := tokens.Validate(strings.TrimSpace(raw)); err != nil {
			if errors.Is(err, authz.ErrForbidden) {
				writeError(w, r, http.StatusForbidden, "forbidden", "token lacks admin rights")
				return
			}
			w.Header().Set("WWW-Authenticate", `Bearer realm="lifetag", error="invalid_token"`)
			writeError(w, r, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

const limiterIdle = 10 * time.Minute

type limiterEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

// ipLimiter keeps one token bucket per client IP.  Idle buckets are
// dropped on a periodic sweep.
type ipLimiter struct {
	limit rate.Limit
	burst int
	clock clockwork.Clock

	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	lastSweep time.Time
}

func newIPLimiter(perMinute int, clock clockwork.Clock) *ipLimiter {
	return &ipLimiter{
		limit:     rate.Limit(float64(perMinute) / 60),
		burst:     perMinute,
		clock:     clock,
		limiters:  make(map[string]*limiterEntry),
		lastSweep: clock.Now(),
	}
}

// reserve reports whether a request from ip may proceed, and if not how
// long until it could.
func (l *ipLimiter) reserve(ip string) (bool, time.Duration) {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= limiterIdle {
		for k, e := range l.limiters {
			if now.Sub(e.seen) >= limiterIdle {
				delete(l.limiters, k)
			}
		}
		l.lastSweep = now
	}

	e, ok := l.limiters[ip]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[ip] = e
	}
	e.seen = now

	if e.lim.AllowN(now, 1) {
		return true, 0
	}
	return false, time.Duration(float64(time.Second) / float64(l.limit))
}

func (l *ipLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := l.reserve(clientIP(r))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			writeError(w, r, http.StatusTooManyRequests, "rate_limited", "too many requests, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
