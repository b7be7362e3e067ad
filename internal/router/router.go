package router

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/ovaphlow/emberctl/internal/auth"
	"github.com/ovaphlow/emberctl/internal/captcha"
	"github.com/ovaphlow/emberctl/internal/setting"
	"github.com/ovaphlow/emberctl/internal/token"
	"github.com/ovaphlow/emberctl/internal/user"
	"github.com/ovaphlow/emberctl/pkg/response"
)

// RequestIDHeader carries the per-request id in both directions.
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

// LoggingMiddleware returns a middleware that logs requests at debug level using the provided sugared logger.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debugw("http request",
				"id", w.Header().Get(RequestIDHeader),
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// RequestIDMiddleware echoes a caller supplied X-Request-ID or assigns a KSUID.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" || len(id) > 64 {
				id = ksuid.New().String()
			}
			w.Header().Set(RequestIDHeader, id)
			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeadersMiddleware returns a middleware that sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; object-src 'none'; base-uri 'self';")
			}
			// HSTS only over TLS
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireToken resolves the bearer token and stores it on the request
// context, rejecting the request with 401 when it is missing, unknown or
// expired.
func RequireToken(tokens *token.Service, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearer(r)
			if !ok {
				response.Error(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			t, err := tokens.Validate(r.Context(), raw)
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(token.WithToken(r.Context(), t)))
			case errors.Is(err, token.ErrTokenExpired):
				response.Error(w, http.StatusUnauthorized, "token expired")
			case errors.Is(err, token.ErrTokenNotFound):
				response.Error(w, http.StatusUnauthorized, "unauthorized")
			default:
				logger.Errorw("token validation failed", "err", err)
				response.Error(w, http.StatusInternalServerError, "internal error")
			}
		})
	}
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}

// Deps are the handlers and services the routes are built from.
type Deps struct {
	Logger   *zap.SugaredLogger
	RootPath string
	Tokens   *token.Service
	Auth     *auth.Handler
	Captcha  *captcha.Handler
	Users    *user.Handler
	Settings *setting.Handler
}

// RegisterRoutes mounts HTTP handlers using the standard library's http.ServeMux.
// Every route lives below RootPath.
func RegisterRoutes(d Deps) http.Handler {
	mux := http.NewServeMux()
	root := normalizeRoot(d.RootPath)
	protect := RequireToken(d.Tokens, d.Logger)

	mux.HandleFunc("GET "+root+"/{$}", func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, "Hello, World!", nil)
	})
	mux.HandleFunc("GET "+root+"/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET "+root+"/make_captcha", d.Captcha.Make)
	mux.HandleFunc("POST "+root+"/login", d.Auth.Login)
	mux.Handle("GET "+root+"/session", protect(http.HandlerFunc(d.Auth.Session)))
	mux.Handle("POST "+root+"/logout", protect(http.HandlerFunc(d.Auth.Logout)))
	mux.Handle("POST "+root+"/password", protect(http.HandlerFunc(d.Users.ChangePassword)))
	mux.Handle("GET "+root+"/settings", protect(http.HandlerFunc(d.Settings.List)))

	return RequestIDMiddleware()(LoggingMiddleware(d.Logger)(SecurityHeadersMiddleware()(mux)))
}

// normalizeRoot turns "", "/" and "panel/" into "", "" and "/panel".
func normalizeRoot(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return "/" + p
}
