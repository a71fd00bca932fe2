package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/medvault/internal/auth/blob"
	"github.com/aussiebroadwan/medvault/internal/auth/store"
	"github.com/aussiebroadwan/medvault/internal/auth/throttle"
	"github.com/aussiebroadwan/medvault/pkg/authsdk"
	"github.com/aussiebroadwan/medvault/pkg/httpx"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// ReadyzHandler reports 503 while the database or blob store is
// unreachable. The throttle is reported but never fails readiness since
// login keeps working without it.
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	blobs blob.Store,
	th throttle.Throttle,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := &authsdk.HealthChecks{
			Database: "ok",
			Blobs:    "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if err := st.Ping(ctx); err != nil {
			checks.Database = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		if err := blobs.Ping(ctx); err != nil {
			checks.Blobs = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		if p, ok := th.(pinger); ok {
			checks.Throttle = "ok"
			if err := p.Ping(ctx); err != nil {
				checks.Throttle = "error: " + err.Error()
			}
		}

		response := authsdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		}
		httpx.WriteJSON(w, statusCode, response)
	}
}
