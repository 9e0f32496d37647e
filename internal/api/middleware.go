package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"golang.org/x/time/rate"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const (
	// ctxKeyRequestID is the context key for the request ID.
	ctxKeyRequestID contextKey = "request_id"
)

// Rate limiter tuning.
const (
	rateLimitBurst         = 5
	rateLimiterVisitorTTL  = 5 * time.Minute
	minimumCleanupInterval = 30 * time.Second
)

// requestIDMiddleware generates a unique request ID for each request.
// If the client sends an X-Request-ID header, it is used; otherwise one is generated.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = generateRequestID()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs each HTTP request with method, path, status, and duration.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		args := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", r.Context().Value(ctxKeyRequestID),
		}
		switch {
		case wrapped.status >= 500:
			s.logger.Error("http request", args...)
		case wrapped.status >= 400:
			s.logger.Warn("http request", args...)
		default:
			s.logger.Debug("http request", args...)
		}
	})
}

// recoveryMiddleware catches panics in handlers, reports them to Sentry
// and returns a 500 response.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		hub := sentry.GetHubFromContext(ctx)
		if hub == nil {
			hub = sentry.CurrentHub().Clone()
			ctx = sentry.SetHubOnContext(ctx, hub)
			r = r.WithContext(ctx)
		}
		hub.Scope().SetRequest(r)

		defer func() {
			if err := recover(); err != nil {
				hub.RecoverWithContext(ctx, err)
				s.logger.Error("panic recovered in HTTP handler",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", ctx.Value(ctxKeyRequestID),
				)
				writeInternalError(w, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimitMiddleware enforces a per-client token bucket. It is a
// pass-through when rate limiting is disabled.
func (s *Server) rateLimitMiddleware() func(http.Handler) http.Handler {
	cfg := s.cfg.RateLimit
	if !cfg.Enabled || cfg.RequestsPerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	var (
		mu          sync.Mutex
		visitors    = make(map[string]*clientLimiter)
		lastCleanup time.Time
	)
	perSecond := rate.Limit(float64(cfg.RequestsPerMinute) / 60.0)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			key := clientKey(r)

			mu.Lock()
			v, ok := visitors[key]
			if !ok {
				v = &clientLimiter{limiter: rate.NewLimiter(perSecond, rateLimitBurst)}
				visitors[key] = v
			}
			v.lastSeen = now

			if now.Sub(lastCleanup) > minimumCleanupInterval {
				for k, visitor := range visitors {
					if now.Sub(visitor.lastSeen) > rateLimiterVisitorTTL {
						delete(visitors, k)
					}
				}
				lastCleanup = now
			}
			mu.Unlock()

			if !v.limiter.AllowN(now, 1) {
				s.logger.Warn("rate limit exceeded",
					"client", key,
					"path", r.URL.Path,
					"request_id", r.Context().Value(ctxKeyRequestID),
				)
				w.Header().Set("Retry-After", "2")
				writeError(w, http.StatusTooManyRequests, ErrCodeTooManyRequests, "too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// maxRequestBodySize is the maximum allowed request body size (64 KB).
const maxRequestBodySize = 64 << 10

// bodySizeLimitMiddleware limits the size of incoming request bodies.
func (s *Server) bodySizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey identifies the caller for rate limiting. The server is local,
// so proxy headers are not trusted.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Request ID sizing.
const (
	requestIDBytes     = 8
	maxRequestIDLength = 64
)

// generateRequestID creates a random hex request ID.
func generateRequestID() string {
	b := make([]byte, requestIDBytes)
	//nolint:errcheck // crypto/rand.Read always returns len(b) on supported platforms
	rand.Read(b)
	return hex.EncodeToString(b)
}
