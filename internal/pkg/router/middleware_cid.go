package router

import (
	"net/http"

	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
)

const (
	// HeaderCorrelationID carries the id echoed on every response.
	HeaderCorrelationID = "X-Correlation-ID"
	// HeaderRequestID is read when a proxy already stamped the request.
	HeaderRequestID = "X-Request-ID"
)

const maxCorrelationIDLen = 64

// inboundCorrelationID returns the first usable id a client sent, or "".
func inboundCorrelationID(h http.Header) string {
	for _, name := range [...]string{HeaderCorrelationID, HeaderRequestID} {
		if v := h.Get(name); validCorrelationID(v) {
			return v
		}
	}
	return ""
}

// validCorrelationID accepts short tokens made of [A-Za-z0-9._:-].
func validCorrelationID(v string) bool {
	if v == "" || len(v) > maxCorrelationIDLen {
		return false
	}
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.', c == ':':
		default:
			return false
		}
	}
	return true
}

func middlewareCorrelationID(gen uid.StringID) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cid := inboundCorrelationID(r.Header)
			if cid == "" && gen != nil {
				cid = gen.Generate()
			}
			if cid == "" {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set(HeaderCorrelationID, cid)
			next.ServeHTTP(w, r.WithContext(instrument.SetCorrelationID(r.Context(), cid)))
		})
	}
}
