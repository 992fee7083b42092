package httpx

import (
	"net"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzhttp"

	"github.com/agrolink/agrolink/pkg/slogx"
)

// MaxPayloadBytes is the ceiling on declared request body size.
const MaxPayloadBytes = 10 << 20 // 10 MiB

// SecurityHeaders applies standard defensive HTTP headers to every response.
func SecurityHeaders() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-XSS-Protection", "0")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'none'")
			next.ServeHTTP(w, r)
		})
	}
}

// Compression transparently gzip-compresses responses for clients that accept
// it. Not a security control; ordering-neutral.
func Compression() Middleware {
	return func(next http.Handler) http.Handler {
		return gzhttp.GzipHandler(next)
	}
}

// PayloadSizeLimit rejects requests whose declared Content-Length exceeds the
// ceiling, and caps the body reader as a backstop for chunked uploads.
func PayloadSizeLimit(maxBytes int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				WriteError(w, http.StatusRequestEntityTooLarge, "Payload too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// RequireJSONContent rejects mutating requests (POST/PUT/PATCH) whose
// Content-Type is not application/json. Runs before any body-dependent
// validation.
func RequireJSONContent() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch:
				if !strings.Contains(r.Header.Get("Content-Type"), "application/json") {
					WriteError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SecurityLogging unconditionally records method, path and client address for
// every request passing through the pipeline.
func SecurityLogging() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := slogx.FromContext(r.Context())
			log.Info("security_request",
				"method", r.Method,
				"path", r.URL.Path,
				"ip", ClientIP(r),
			)
			next.ServeHTTP(w, r)
		})
	}
}

// Recover is the per-request last resort: a panicking handler is logged and
// mapped to a 500 without taking the process down.
func Recover(exposeDetail bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log := slogx.FromContext(r.Context())
					log.Error("panic recovered", "panic", rec, "path", r.URL.Path)
					WriteErrorDetail(w, http.StatusInternalServerError,
						"Something went wrong!", strings.TrimSpace(stringify(rec)), exposeDetail)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func stringify(v any) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	if s, ok := v.(string); ok {
		return s
	}
	return "internal error"
}

// CORS reflects the configured origin and allows credentialed requests.
// An empty allowedOrigin permits any origin (development convenience).
func CORS(allowedOrigin string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				if allowedOrigin == "" || origin == allowedOrigin {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Credentials", "true")
					w.Header().Set("Vary", "Origin")
				}
			}
			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
				w.Header().Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP extracts the client address, honouring proxy headers.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
