package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/agrolink/agrolink/internal/api/domain"
	"github.com/agrolink/agrolink/internal/api/obs"
	"github.com/agrolink/agrolink/internal/api/service"
	"github.com/agrolink/agrolink/internal/api/store"
	"github.com/agrolink/agrolink/pkg/auditx"
	"github.com/agrolink/agrolink/pkg/httpx"
	"github.com/agrolink/agrolink/pkg/jwtx"
	"github.com/agrolink/agrolink/pkg/oidcx"
	"github.com/agrolink/agrolink/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	guard     *Guard
	oidcGuard *OIDCGuard
	audit     *auditx.Emitter
	metrics   *obs.Metrics
	logger    *slog.Logger

	// One limiter per window, shared across every route it covers. A fresh
	// RateLimitByIP value carries fresh bucket state, so the general window
	// only counts against the whole /api surface (and auth against the
	// whole auth group) when the same middleware value is reused.
	limitGeneral httpx.Middleware
	limitAuth    httpx.Middleware
	limitContact httpx.Middleware

	issuer             string
	postLogoutRedirect string
	corsOrigin         string
	buildVersion       string
	expose             bool
	startTime          time.Time

	store          store.Store
	AuthService    *service.AuthService
	UserService    *service.UserService
	ContactService *service.ContactService
}

// RouterConfig carries the non-service knobs the router needs.
type RouterConfig struct {
	Tokens *jwtx.HS256

	// OIDC is nil when no external identity provider is configured; the
	// oidc routes are then not registered.
	OIDC *oidcx.Validator

	Issuer             string
	PostLogoutRedirect string
	CORSOrigin         string
	BuildVersion       string

	// Expose attaches internal error detail to 500 responses. Must be
	// false in production.
	Expose bool
}

func NewRouter(cfg RouterConfig, st store.Store, metrics *obs.Metrics, audit *auditx.Emitter, logger *slog.Logger) *Router {
	r := &Router{
		Mux:                http.NewServeMux(),
		guard:              &Guard{Tokens: cfg.Tokens, Users: st.Users(), Audit: audit},
		audit:              audit,
		metrics:            metrics,
		logger:             logger,
		issuer:             cfg.Issuer,
		postLogoutRedirect: cfg.PostLogoutRedirect,
		corsOrigin:         cfg.CORSOrigin,
		buildVersion:       cfg.BuildVersion,
		expose:             cfg.Expose,
		startTime:          time.Now(),
		store:              st,
	}

	if cfg.OIDC != nil {
		r.oidcGuard = &OIDCGuard{Validator: cfg.OIDC, Audit: audit}
	}

	r.limitGeneral = httpx.RateLimitByIP(httpx.GeneralLimit)
	r.limitAuth = httpx.RateLimitByIP(httpx.AuthLimit)
	r.limitContact = httpx.RateLimitByIP(httpx.ContactLimit)

	// Global chain, outermost first. Sanitization runs after the payload
	// cap so oversized bodies are rejected before being parsed.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.Recover(cfg.Expose),
		httpx.SecurityHeaders(),
		httpx.CORS(cfg.CORSOrigin),
		httpx.Compression(),
		httpx.SecurityLogging(),
		httpx.PayloadSizeLimit(httpx.MaxPayloadBytes),
		httpx.SanitizeRequest(),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerAdmin()
	r.registerOIDC()
	r.registerContact()
	r.registerSystem()

	r.Mux.Handle("/", r.withMetrics(http.HandlerFunc(notFound)))
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// handle registers a route with the metrics middleware plus any
// route-specific middleware. Chain order: first listed runs first.
func (r *Router) handle(pattern string, h http.Handler, mws ...httpx.Middleware) {
	all := append([]httpx.Middleware{r.metrics.Middleware()}, mws...)
	r.Mux.Handle(pattern, httpx.Chain(h, all...))
}

func (r *Router) withMetrics(h http.Handler) http.Handler {
	return httpx.Chain(h, r.metrics.Middleware())
}

func (r *Router) registerAuth() {
	h := &AuthHandler{
		AuthService: r.AuthService,
		UserService: r.UserService,
		Expose:      r.expose,
	}

	// Public auth endpoints carry both the general API limiter and the
	// stricter auth limiter, and every outcome lands in the audit trail.
	r.handle("POST /api/auth/register", http.HandlerFunc(h.HandleRegister),
		r.limitGeneral,
		r.limitAuth,
		auditx.AuthGroup(r.audit, "register"),
		httpx.RequireJSONContent(),
	)
	r.handle("POST /api/auth/login", http.HandlerFunc(h.HandleLogin),
		r.limitGeneral,
		r.limitAuth,
		auditx.AuthGroup(r.audit, "login"),
		httpx.RequireJSONContent(),
	)
	r.handle("GET /api/auth/verify-email", http.HandlerFunc(h.HandleVerifyEmail),
		r.limitGeneral,
		r.limitAuth,
		auditx.AuthGroup(r.audit, "verify-email"),
	)
	r.handle("POST /api/auth/forgot-password", http.HandlerFunc(h.HandleForgotPassword),
		r.limitGeneral,
		r.limitAuth,
		auditx.AuthGroup(r.audit, "forgot-password"),
		httpx.RequireJSONContent(),
	)
	r.handle("POST /api/auth/reset-password", http.HandlerFunc(h.HandleResetPassword),
		r.limitGeneral,
		r.limitAuth,
		auditx.AuthGroup(r.audit, "reset-password"),
		httpx.RequireJSONContent(),
	)

	r.handle("POST /api/auth/change-password", http.HandlerFunc(h.HandleChangePassword),
		r.limitGeneral,
		r.limitAuth,
		auditx.AuthGroup(r.audit, "change-password"),
		httpx.RequireJSONContent(),
		r.guard.Protect(),
	)
	r.handle("GET /api/auth/me", http.HandlerFunc(h.HandleMe),
		r.limitGeneral,
		r.guard.Protect(),
	)
	r.handle("PUT /api/auth/me", http.HandlerFunc(h.HandleUpdateMe),
		r.limitGeneral,
		httpx.RequireJSONContent(),
		r.guard.Protect(),
	)
}

func (r *Router) registerAdmin() {
	h := &AdminHandler{
		UserService: r.UserService,
		Audit:       r.audit,
		Expose:      r.expose,
	}

	admin := func(extra ...httpx.Middleware) []httpx.Middleware {
		base := []httpx.Middleware{
			r.limitGeneral,
			r.guard.Protect(),
			r.guard.RequireRole(domain.RoleAdmin),
			auditx.SensitiveGroup(r.audit, "users.view", "users.modify"),
		}
		return append(base, extra...)
	}

	r.handle("GET /api/admin/users", http.HandlerFunc(h.HandleList), admin()...)
	r.handle("PUT /api/admin/users/{id}/role", http.HandlerFunc(h.HandleUpdateRole),
		admin(httpx.RequireJSONContent())...)
	r.handle("DELETE /api/admin/users/{id}", http.HandlerFunc(h.HandleDelete), admin()...)
}

func (r *Router) registerOIDC() {
	if r.oidcGuard == nil {
		return
	}

	h := &OIDCHandler{
		Issuer:             r.issuer,
		PostLogoutRedirect: r.postLogoutRedirect,
	}

	r.handle("GET /api/oidc/profile", http.HandlerFunc(h.HandleProfile),
		r.limitGeneral,
		r.oidcGuard.Protect(),
	)
	r.handle("GET /api/oidc/logout-url", http.HandlerFunc(h.HandleLogoutURL),
		r.limitGeneral,
		r.oidcGuard.Protect(),
	)
}

func (r *Router) registerContact() {
	h := &ContactHandler{
		ContactService: r.ContactService,
		Expose:         r.expose,
	}

	r.handle("POST /api/contact", h,
		r.limitGeneral,
		r.limitContact,
		httpx.RequireJSONContent(),
	)
}

func (r *Router) registerSystem() {
	health := HealthHandler(r.store, r.buildVersion, r.startTime)

	r.handle("GET /health", health)
	r.handle("GET /api/health", health)
	r.handle("GET /metrics", r.metrics.Handler())
}

func notFound(w http.ResponseWriter, r *http.Request) {
	httpx.WriteError(w, http.StatusNotFound, "Route not found")
}
