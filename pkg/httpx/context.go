package httpx

import "context"

type ctxKey string

const (
	// CtxKeyUserID holds the authenticated subject id (string).
	CtxKeyUserID ctxKey = "user_id"
	// CtxKeyRole holds the authenticated subject's role name (string).
	CtxKeyRole ctxKey = "role"
)

// WithUser attaches the authenticated subject id and role to the context.
func WithUser(ctx context.Context, userID, role string) context.Context {
	ctx = context.WithValue(ctx, CtxKeyUserID, userID)
	return context.WithValue(ctx, CtxKeyRole, role)
}

// UserIDFromContext returns the authenticated subject id, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(CtxKeyUserID).(string)
	return v, ok && v != ""
}

// RoleFromContext returns the authenticated subject's role name, if any.
func RoleFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(CtxKeyRole).(string)
	return v, ok && v != ""
}
