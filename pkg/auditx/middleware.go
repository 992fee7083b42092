package auditx

import (
	"net/http"

	"github.com/agrolink/agrolink/pkg/httpx"
)

type statusRecorder struct {
	http.ResponseWriter

	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// AuthGroup wraps the authentication route group: on response completion a
// 2xx/3xx status is recorded as an auth success and a 401/403 as a failure.
func AuthGroup(e *Emitter, route string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			switch {
			case rec.status >= 200 && rec.status < 400:
				e.AuthSuccess(r, "route", route)
			case rec.status == http.StatusUnauthorized || rec.status == http.StatusForbidden:
				e.AuthFailure(r, http.StatusText(rec.status))
			}
		})
	}
}

// SensitiveGroup wraps admin and order-mutation route groups, recording each
// completed request with method, path and status, distinguishing reads from
// writes.
func SensitiveGroup(e *Emitter, viewAction, modifyAction string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			action := modifyAction
			if r.Method == http.MethodGet {
				action = viewAction
			}
			e.SensitiveAction(r, action,
				"route", r.URL.Path,
				"status", rec.status,
			)
		})
	}
}
