package router

import (
	"net/http"
	"slices"
	"strings"

	"github.com/shandysiswandi/otpgate/internal/pkg/config"
)

// maintenanceRetryAfter is sent with 503 answers, in seconds.
const maintenanceRetryAfter = "120"

// middlewareMaintenance answers 503 for routes listed in
// app.maintenance.endpoints. "*" takes every /api route offline. The list is
// read per request, so a config reload toggles it without a restart.
func middlewareMaintenance(cfg config.Config) Middleware {
	if cfg == nil {
		return nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !underMaintenance(cfg.GetArray("app.maintenance.endpoints"), routeOf(r)) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", maintenanceRetryAfter)
			writeJSON(w, ErrorResponse{Error: "service is under maintenance"}, http.StatusServiceUnavailable)
		})
	}
}

func underMaintenance(endpoints []string, route string) bool {
	if len(endpoints) == 0 {
		return false
	}
	if slices.Contains(endpoints, "*") && strings.HasPrefix(route, "/api/") {
		return true
	}
	return slices.Contains(endpoints, route)
}
