// Package auditx records security-relevant events as structured, append-only
// log lines: who did what, when, from where. Emitting an event can never fail
// a request, and secret-bearing values are redacted before serialization.
package auditx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/agrolink/agrolink/pkg/httpx"
)

// Event types.
const (
	TypeAuthSuccess     = "auth.success"
	TypeAuthFailure     = "auth.failure"
	TypeAccessDenied    = "access.denied"
	TypeSensitiveAction = "sensitive.action"
	TypeDataRead        = "data.read"
	TypeDataWrite       = "data.write"
)

// RedactionMarker replaces any value that could carry credentials or tokens.
const RedactionMarker = "[redacted]"

// Emitter serializes audit events to a structured log sink. The zero value is
// unusable; construct with New.
type Emitter struct {
	log *slog.Logger
}

func New(logger *slog.Logger) *Emitter {
	return &Emitter{log: logger}
}

// Redact replaces a potentially secret-bearing value with a marker.
// Request bodies and tokens must pass through here before logging.
func Redact(v any) string {
	if v == nil {
		return ""
	}
	return RedactionMarker
}

// emit writes one event. Logging failures (including a nil logger or a
// panicking handler in the sink) are swallowed: the audit trail must never
// interrupt request processing.
func (e *Emitter) emit(r *http.Request, eventType string, level slog.Level, attrs ...any) {
	defer func() { _ = recover() }()

	if e == nil || e.log == nil {
		return
	}

	base := []any{
		"type", eventType,
		"ip", httpx.ClientIP(r),
		"method", r.Method,
		"path", r.URL.Path,
		"timestamp", time.Now().UTC().Format(time.RFC3339),
	}
	if actor, ok := httpx.UserIDFromContext(r.Context()); ok {
		base = append(base, "user_id", actor)
	}

	e.log.Log(r.Context(), level, "audit", append(base, attrs...)...)
}

// AuthSuccess records a successful authentication.
func (e *Emitter) AuthSuccess(r *http.Request, attrs ...any) {
	e.emit(r, TypeAuthSuccess, slog.LevelInfo, attrs...)
}

// AuthFailure records a failed authentication attempt with its reason.
func (e *Emitter) AuthFailure(r *http.Request, reason string) {
	e.emit(r, TypeAuthFailure, slog.LevelWarn, "reason", reason)
}

// AccessDenied records an authorization refusal (valid identity, wrong role).
func (e *Emitter) AccessDenied(r *http.Request, reason string) {
	e.emit(r, TypeAccessDenied, slog.LevelWarn, "reason", reason)
}

// SensitiveAction records a privileged operation with free-form detail.
// Callers must redact anything secret-bearing before passing it in.
func (e *Emitter) SensitiveAction(r *http.Request, action string, attrs ...any) {
	e.emit(r, TypeSensitiveAction, slog.LevelInfo, append([]any{"action", action}, attrs...)...)
}

// DataRead records a read of a sensitive resource.
func (e *Emitter) DataRead(r *http.Request, resource, id string) {
	e.emit(r, TypeDataRead, slog.LevelInfo, "resource", resource, "id", id)
}

// DataWrite records a mutation of a sensitive resource.
func (e *Emitter) DataWrite(r *http.Request, resource, id string) {
	e.emit(r, TypeDataWrite, slog.LevelInfo, "resource", resource, "id", id)
}
