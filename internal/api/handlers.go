package api

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stacklok/pgsearch-sync/internal/api/common"
	"github.com/stacklok/pgsearch-sync/internal/versions"
)

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, HealthResponse{Status: "healthy"}, http.StatusOK)
}

// readinessHandler probes every dependency concurrently and answers 503 when any of them fails
func readinessHandler(checks []Check, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results := make([]error, len(checks))

		var g errgroup.Group
		for i, check := range checks {
			g.Go(func() error {
				ctx, cancel := context.WithTimeout(r.Context(), timeout)
				defer cancel()
				results[i] = check.Pinger.Ping(ctx)
				return nil
			})
		}
		_ = g.Wait()

		resp := ReadinessResponse{Status: "ready", Checks: make(map[string]string, len(checks))}
		code := http.StatusOK
		for i, check := range checks {
			if results[i] != nil {
				resp.Status = "not ready"
				resp.Checks[check.Name] = results[i].Error()
				code = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[check.Name] = "ok"
		}

		common.WriteJSONResponse(w, resp, code)
	}
}

func versionHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, versions.GetVersionInfo(), http.StatusOK)
}

func statusHandler(provider StatusProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		common.WriteJSONResponse(w, provider.Get(), http.StatusOK)
	}
}
