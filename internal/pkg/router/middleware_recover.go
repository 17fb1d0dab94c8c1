package router

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/shandysiswandi/otpgate/internal/pkg/stacktrace"
)

// middlewareRecoverer answers a handler panic with the generic 500 body.
func middlewareRecoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			if err, ok := rvr.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rvr)
			}

			stack := debug.Stack()
			attrs := []any{"method", r.Method, "path", r.URL.Path, "because", fmt.Sprint(rvr)}
			if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
				attrs = append(attrs, "stack", paths)
			} else {
				attrs = append(attrs, "stack", string(stack))
			}
			slog.ErrorContext(r.Context(), "handler panicked", attrs...)

			writeJSON(w, ErrorResponse{Error: "Internal server error"}, http.StatusInternalServerError)
		}()

		next.ServeHTTP(w, r)
	})
}
