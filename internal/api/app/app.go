package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/agrolink/agrolink/internal/api/http"
	"github.com/agrolink/agrolink/internal/api/notify"
	"github.com/agrolink/agrolink/internal/api/obs"
	"github.com/agrolink/agrolink/internal/api/service"
	"github.com/agrolink/agrolink/internal/api/store"
	"github.com/agrolink/agrolink/internal/api/store/drivers/sqlite"
	"github.com/agrolink/agrolink/pkg/auditx"
	"github.com/agrolink/agrolink/pkg/jwtx"
	"github.com/agrolink/agrolink/pkg/oidcx"
	"github.com/agrolink/agrolink/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
var BuildVersion = "v0.1.0"

// Application encapsulates the API service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db      store.Store
	tokens  *jwtx.HS256
	oidc    *oidcx.Validator
	mailer  notify.Sender
	audit   *auditx.Emitter
	metrics *obs.Metrics

	authService    *service.AuthService
	userService    *service.UserService
	contactService *service.ContactService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "agrolink-api",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	tokens, err := jwtx.NewHS256([]byte(cfg.JWTSecret), cfg.JWTIssuer, jwtx.DefaultSessionTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session tokens: %w", err)
	}
	app.tokens = tokens

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initOIDC(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.logger.Info("api service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"tls", app.cfg.TLSEnabled(),
	)

	serverErrors := make(chan error, 1)
	go func() {
		if app.cfg.TLSEnabled() {
			serverErrors <- app.server.ListenAndServeTLS(app.cfg.TLSCertFile, app.cfg.TLSKeyFile)
			return
		}
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down api service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("api service stopped")
	return nil
}

func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initOIDC builds the identity validator. In production an unset issuer
// simply disables the oidc routes; a placeholder issuer is a hard error
// inside oidcx.New so a misconfigured production deploy refuses to start.
func (app *Application) initOIDC() error {
	if app.cfg.Production() && app.cfg.OIDCIssuerURL == "" {
		app.logger.Info("oidc routes disabled, no issuer configured")
		return nil
	}

	validator, err := oidcx.New(context.Background(), oidcx.Config{
		IssuerURL:  app.cfg.OIDCIssuerURL,
		Audience:   app.cfg.OIDCAudience,
		Production: app.cfg.Production(),
	}, app.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize identity validator: %w", err)
	}
	app.oidc = validator

	return nil
}

func (app *Application) initServices() {
	app.audit = auditx.New(app.logger.With("component", "audit"))
	app.metrics = obs.NewMetrics()

	smtp := notify.SMTPConfig{
		Host:     app.cfg.SMTPHost,
		Port:     app.cfg.SMTPPort,
		Username: app.cfg.SMTPUsername,
		Password: app.cfg.SMTPPassword,
		From:     app.cfg.SMTPFrom,
	}
	if smtp.Configured() {
		app.mailer = notify.NewSMTPSender(smtp, app.logger)
	} else {
		app.logger.Warn("smtp not configured, email delivery falls back to logging")
		app.mailer = notify.NewLogSender(app.logger)
	}

	app.authService = service.NewAuthService(
		app.db.Users(), app.tokens, app.mailer, app.cfg.AppURL, app.logger)
	app.userService = service.NewUserService(app.db.Users(), app.logger)
	app.contactService = service.NewContactService(
		app.db.Contacts(), app.mailer, app.cfg.SupportEmail, app.logger)
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(httpapi.RouterConfig{
		Tokens:             app.tokens,
		OIDC:               app.oidc,
		Issuer:             app.cfg.OIDCIssuerURL,
		PostLogoutRedirect: app.cfg.PostLogoutRedirect,
		CORSOrigin:         app.cfg.CORSOrigin,
		BuildVersion:       BuildVersion,
		Expose:             !app.cfg.Production(),
	}, app.db, app.metrics, app.audit, app.logger)

	router.AuthService = app.authService
	router.UserService = app.userService
	router.ContactService = app.contactService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
