package http

import (
	"net/http"
	"time"

	"github.com/agrolink/agrolink/internal/api/store"
	"github.com/agrolink/agrolink/pkg/httpx"
)

type healthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	UptimeS  int64  `json:"uptime_seconds"`
	Database string `json:"database"`
}

// HealthHandler reports liveness plus database reachability.
func HealthHandler(st store.Store, version string, startTime time.Time) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:   "ok",
			Version:  version,
			UptimeS:  int64(time.Since(startTime).Seconds()),
			Database: "ok",
		}

		code := http.StatusOK
		if err := st.Ping(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Database = "unreachable"
			code = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, code, resp)
	})
}
