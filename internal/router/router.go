package router

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-ids-console/internal/alert"
	"github.com/ovaphlow/pitchfork/service-ids-console/internal/auth"
	"github.com/ovaphlow/pitchfork/service-ids-console/internal/user"
	"github.com/ovaphlow/pitchfork/service-ids-console/pkg/utilities"
)

const RequestIDHeader = "X-Request-ID"

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

type requestIDKey struct{}

// RequestIDFromContext returns the id assigned by RequestIDMiddleware.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestIDMiddleware tags every request with an id, reusing a sane inbound
// X-Request-ID and generating one otherwise. The id is echoed on the response.
func RequestIDMiddleware(ids *utilities.IDGenerator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" || len(id) > 64 {
				id = ids.Next()
			}
			w.Header().Set(RequestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
		})
	}
}

// LoggingMiddleware returns a middleware that logs requests at debug level using the provided sugared logger.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debugw("http request",
				"request_id", RequestIDFromContext(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// CORSConfig holds the browser origins allowed to call the API with
// credentials.
type CORSConfig struct {
	AllowedOrigins []string
	MaxAge         time.Duration
}

const defaultCORSOrigins = "http://localhost:5173,http://localhost:5174"

func CORSConfigFromEnv() CORSConfig {
	raw := os.Getenv("CORS_ALLOWED_ORIGINS")
	if raw == "" {
		raw = defaultCORSOrigins
	}
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins = append(origins, o)
		}
	}
	return CORSConfig{AllowedOrigins: origins, MaxAge: 10 * time.Minute}
}

func (c CORSConfig) allowed(origin string) bool {
	for _, o := range c.AllowedOrigins {
		if o == origin {
			return true
		}
	}
	return false
}

// CORSMiddleware answers preflight requests with 204 and adds credentialed
// CORS headers for allow-listed origins. Other origins get no CORS headers,
// so browsers block them.
func CORSMiddleware(cfg CORSConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			h := w.Header()
			h.Add("Vary", "Origin")
			ok := origin != "" && cfg.allowed(origin)
			if ok {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				if ok {
					h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+RequestIDHeader)
					if cfg.MaxAge > 0 {
						h.Set("Access-Control-Max-Age", strconv.Itoa(int(cfg.MaxAge.Seconds())))
					}
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeadersMiddleware returns a middleware that sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Prevent MIME sniffing
			w.Header().Set("X-Content-Type-Options", "nosniff")

			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

			// JSON only, nothing to load
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none';")
			}
			w.Header().Set("Cache-Control", "no-store")

			// HSTS only over TLS
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Deps are the handlers and collaborators the gateway mounts.
type Deps struct {
	Users  *user.Handler
	Alerts *alert.Handler
	Issuer *auth.Issuer
	IDs    *utilities.IDGenerator
	CORS   CORSConfig
}

// RegisterRoutes mounts every API route on a ServeMux and wraps it with the
// middleware chain: request id, logging, CORS, security headers.
func RegisterRoutes(logger *zap.SugaredLogger, d Deps) http.Handler {
	mux := http.NewServeMux()
	protect := auth.Middleware(d.Issuer, logger)
	private := func(h http.HandlerFunc) http.Handler { return protect(h) }

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// sessions and accounts
	mux.HandleFunc("POST /api/register", d.Users.Register)
	mux.HandleFunc("POST /api/login", d.Users.Login)
	mux.HandleFunc("POST /api/logout", d.Users.Logout)
	mux.Handle("GET /api/currentuser", private(d.Users.CurrentUser))
	mux.Handle("GET /api/users", private(d.Users.List))
	mux.Handle("GET /api/users/{username}", private(d.Users.Get))
	mux.Handle("PUT /api/users/{username}", private(d.Users.Update))
	mux.Handle("DELETE /api/users", private(d.Users.Delete))

	// event store
	mux.Handle("GET /api/ids-logs", private(d.Alerts.Logs))
	mux.Handle("GET /api/alerts", private(d.Alerts.Alerts))
	mux.Handle("PUT /api/alerts/change-owner", private(d.Alerts.ChangeOwner))
	mux.Handle("PUT /api/alerts/status", private(d.Alerts.UpdateStatus))
	mux.Handle("PUT /api/alerts/{id}/status", private(d.Alerts.UpdateStatus))

	ids := d.IDs
	if ids == nil {
		ids = utilities.NewIDGenerator(utilities.SnowflakeNodeFromEnv())
	}
	return RequestIDMiddleware(ids)(
		LoggingMiddleware(logger)(
			CORSMiddleware(d.CORS)(
				SecurityHeadersMiddleware()(mux))))
}
