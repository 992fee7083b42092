package http

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/agrolink/agrolink/internal/api/domain"
	"github.com/agrolink/agrolink/internal/api/store"
	"github.com/agrolink/agrolink/pkg/auditx"
	"github.com/agrolink/agrolink/pkg/httpx"
	"github.com/agrolink/agrolink/pkg/jwtx"
	"github.com/agrolink/agrolink/pkg/oidcx"
)

// Guard authenticates requests. Protect verifies the session JWT and then
// loads the user fresh from the store, so a token minted before a role change
// or deletion carries no stale authority.
type Guard struct {
	Tokens *jwtx.HS256
	Users  store.Users
	Audit  *auditx.Emitter
}

func (g *Guard) Protect() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				g.Audit.AuthFailure(r, "missing bearer token")
				httpx.WriteError(w, http.StatusUnauthorized, "Not authorized, no token provided")
				return
			}

			claims, err := g.Tokens.Verify(token)
			if err != nil {
				g.Audit.AuthFailure(r, "invalid session token")
				httpx.WriteError(w, http.StatusUnauthorized, "Not authorized, token failed")
				return
			}

			user, err := g.Users.GetUserByID(r.Context(), claims.Subject)
			if err != nil {
				g.Audit.AuthFailure(r, "token subject no longer exists")
				httpx.WriteError(w, http.StatusUnauthorized, "Not authorized, token failed")
				return
			}

			ctx := httpx.WithUser(r.Context(), user.ID, string(user.Role))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole allows only the listed roles past. Must run inside Protect.
func (g *Guard) RequireRole(roles ...domain.Role) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			roleName, ok := httpx.RoleFromContext(r.Context())
			if !ok || !slices.Contains(roles, domain.Role(roleName)) {
				g.Audit.AccessDenied(r, "role "+roleName+" not permitted")
				httpx.WriteError(w, http.StatusForbidden, "Not authorized to access this resource")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}

type oidcClaimsKey struct{}

// OIDCGuard authenticates requests against the external identity provider
// instead of the local session secret.
type OIDCGuard struct {
	Validator *oidcx.Validator
	Audit     *auditx.Emitter
}

func (g *OIDCGuard) Protect() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				g.Audit.AuthFailure(r, "missing bearer token")
				httpx.WriteError(w, http.StatusUnauthorized, "Not authorized, no token provided")
				return
			}

			claims, err := g.Validator.Verify(r.Context(), token)
			if err != nil {
				g.Audit.AuthFailure(r, "invalid identity token")
				httpx.WriteError(w, http.StatusUnauthorized, "Not authorized, token failed")
				return
			}

			ctx := httpx.WithUser(r.Context(), claims.Subject, "")
			ctx = context.WithValue(ctx, oidcClaimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OIDCClaimsFromContext returns the verified identity claims set by
// OIDCGuard.Protect.
func OIDCClaimsFromContext(ctx context.Context) (oidcx.Claims, bool) {
	claims, ok := ctx.Value(oidcClaimsKey{}).(oidcx.Claims)
	return claims, ok
}
