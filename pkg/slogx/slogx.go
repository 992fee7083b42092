package slogx

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config controls handler construction. Zero values fall back to a JSON
// handler at info level on stdout.
type Config struct {
	Service string
	Version string
	Env     string // e.g. "development", "production"
	Level   string // debug, info, warn, error
	Format  string // json, text
	Output  io.Writer
}

// New builds the process logger with the service identity stamped on every
// record and installs it as the slog default, so stray slog calls in
// third-party code inherit the same handler.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
		// Source locations only earn their bytes when a human is reading.
		AddSource: cfg.Env == "development",
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	logger := slog.New(handler).With(
		slog.String("service", cfg.Service),
		slog.String("version", cfg.Version),
		slog.String("env", cfg.Env),
	)

	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a config string to a slog.Level, defaulting to info.
func ParseLevel(lvl string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
