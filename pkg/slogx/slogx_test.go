package slogx_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agrolink/agrolink/pkg/slogx"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{" Error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, slogx.ParseLevel(tc.in), "input %q", tc.in)
	}
}

func TestHTTPMiddleware(t *testing.T) {
	serve := func(h http.Handler, req *http.Request) (*httptest.ResponseRecorder, *bytes.Buffer) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		rec := httptest.NewRecorder()
		slogx.HTTPMiddleware(logger)(h).ServeHTTP(rec, req)
		return rec, &buf
	}

	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("assigns and echoes a request id", func(t *testing.T) {
		rec, _ := serve(okHandler, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})

	t.Run("honours an inbound request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Request-ID", "req-from-gateway")
		rec, buf := serve(okHandler, req)

		require.Equal(t, "req-from-gateway", rec.Header().Get("X-Request-ID"))
		require.Contains(t, buf.String(), "req-from-gateway")
	})

	t.Run("records status and warns on server errors", func(t *testing.T) {
		boom := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		_, buf := serve(boom, httptest.NewRequest(http.MethodGet, "/health", nil))

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		require.Equal(t, "request completed", record["msg"])
		require.Equal(t, "WARN", record["level"])
		require.Equal(t, float64(http.StatusServiceUnavailable), record["status"])
	})

	t.Run("forwarded header drives the client ip", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		_, buf := serve(okHandler, req)

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		require.Equal(t, "203.0.113.9", record["client_ip"])
	})

	t.Run("exposes the logger via context", func(t *testing.T) {
		var got *slog.Logger
		capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = slogx.FromContext(r.Context())
		})
		serve(capture, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.NotNil(t, got)
		require.NotEqual(t, slog.Default(), got)
	})
}
