package app

import (
	"os"
	"strconv"
	"time"
)

const EnvProduction = "production"

type Config struct {
	JWTSecret string // Required: HMAC secret for session tokens
	JWTIssuer string // Optional: issuer claim for session tokens (default: agrolink-api)

	OIDCIssuerURL string // Optional: external identity provider issuer URL
	OIDCAudience  string // Optional: expected audience for identity tokens

	AppURL             string // Optional: base URL used in emailed links (default: http://localhost:3000)
	PostLogoutRedirect string // Optional: where the provider sends users after logout
	CORSOrigin         string // Optional: allowed browser origin (default: http://localhost:3000)
	SupportEmail       string // Optional: inbox receiving contact-form copies

	SMTPHost     string // Optional: SMTP relay host; empty falls back to log delivery
	SMTPPort     int    // Optional: SMTP relay port (default: 587)
	SMTPUsername string // Optional
	SMTPPassword string // Optional
	SMTPFrom     string // Optional: From address for outgoing mail

	TLSCertFile string // Optional: serve HTTPS when both TLS files are set
	TLSKeyFile  string // Optional

	DatabaseFile        string        // Optional: path to SQLite database file (default: ./agrolink.db)
	Env                 string        // Environment (development, staging, production) (default: development)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	return Config{
		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTIssuer: getEnvOrDefault("JWT_ISSUER", "agrolink-api"),

		OIDCIssuerURL: os.Getenv("OIDC_ISSUER_URL"),
		OIDCAudience:  os.Getenv("OIDC_AUDIENCE"),

		AppURL:             getEnvOrDefault("APP_URL", "http://localhost:3000"),
		PostLogoutRedirect: getEnvOrDefault("POST_LOGOUT_REDIRECT", "http://localhost:3000"),
		CORSOrigin:         getEnvOrDefault("CORS_ORIGIN", "http://localhost:3000"),
		SupportEmail:       os.Getenv("SUPPORT_EMAIL"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnvIntOrDefault("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     os.Getenv("SMTP_FROM"),

		TLSCertFile: os.Getenv("TLS_CERT_FILE"),
		TLSKeyFile:  os.Getenv("TLS_KEY_FILE"),

		DatabaseFile:        getEnvOrDefault("DATABASE_FILE", "agrolink.db"),
		Env:                 getEnvOrDefault("ENV", "development"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

// Production reports whether the deployment must refuse development-only
// shortcuts (identity bypass, exposed error detail).
func (c Config) Production() bool {
	return c.Env == EnvProduction
}

// TLSEnabled reports whether both TLS files are configured.
func (c Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
