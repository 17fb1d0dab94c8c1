package router

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/shandysiswandi/otpgate/internal/pkg/ratelimit"
)

func middlewareRateLimit(l *ratelimit.Limiter, prefix string) Middleware {
	if l == nil {
		return nil
	}

	return func(next http.Handler) http.Handler {
		limited := l.HTTPMiddleware(
			func(r *http.Request) string { return clientAddr(r) },
			func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, ErrorResponse{Error: "Too many requests"}, http.StatusTooManyRequests)
			},
			func(w http.ResponseWriter, r *http.Request, err error) {
				slog.ErrorContext(r.Context(), "rate limiter unavailable", "error", err)
				next.ServeHTTP(w, r)
			},
		)(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
			limited.ServeHTTP(w, r)
		})
	}
}
