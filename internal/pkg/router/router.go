package router

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/ratelimit"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error  string            `json:"error" example:"Invalid OTP"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Handler returns a value to encode as JSON, or an error to map through
// goerror. A nil value answers 204.
type Handler func(r *Request) (any, error)

type Config struct {
	Config     config.Config
	UUID       uid.StringID
	Instrument instrument.Instrumentation
	// RateLimiter throttles /api/* per client address. Nil disables it.
	RateLimiter *ratelimit.Limiter
}

// Router serves the OTP API on top of httprouter. Every route runs the same
// middleware stack, outermost first.
type Router struct {
	mux   *httprouter.Router
	stack []Middleware
}

func NewRouter(cfg Config) *Router {
	ins := cfg.Instrument
	if ins == nil {
		ins = instrument.NewNoop()
	}

	ro := &Router{
		mux: &httprouter.Router{
			RedirectTrailingSlash:  true,
			RedirectFixedPath:      true,
			HandleMethodNotAllowed: true,
			HandleOPTIONS:          true,
			SaveMatchedRoutePath:   true,
			NotFound:               statusHandler(http.StatusNotFound, "endpoint not found"),
			MethodNotAllowed:       statusHandler(http.StatusMethodNotAllowed, "method not allowed"),
		},
		stack: []Middleware{
			middlewareRecoverer,
			middlewareIP,
			middlewareCorrelationID(cfg.UUID),
			middlewareObservability(cfg.Config, ins),
			middlewareMaintenance(cfg.Config),
			middlewareRateLimit(cfg.RateLimiter, "/api/"),
		},
	}

	banner := map[string]string{"message": serviceName(cfg.Config) + " running"}
	ro.GET("/", func(*Request) (any, error) { return banner, nil })

	return ro
}

func serviceName(cfg config.Config) string {
	if cfg != nil {
		if name := cfg.GetString("app.name"); name != "" {
			return name
		}
	}
	return "otpgate"
}

func statusHandler(code int, msg string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, ErrorResponse{Error: msg}, code)
	})
}

func (r *Router) GET(path string, h Handler, mws ...Middleware) {
	r.handle(http.MethodGet, path, h, mws)
}

func (r *Router) POST(path string, h Handler, mws ...Middleware) {
	r.handle(http.MethodPost, path, h, mws)
}

func (r *Router) handle(method, path string, h Handler, extra []Middleware) {
	endpoint := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		resp, err := h(&Request{Request: req})
		if err != nil {
			if rec, ok := w.(interface{ SetError(error) }); ok {
				rec.SetError(err)
			}
			writeError(w, err)
			return
		}
		writeResult(w, resp)
	})
	r.mux.Handler(method, path, Chain(endpoint, slices.Concat(r.stack, extra)...))
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// writeError never leaks a cause: only goerror messages reach the client.
func writeError(w http.ResponseWriter, err error) {
	var gerr *goerror.Error
	if !errors.As(err, &gerr) {
		writeJSON(w, ErrorResponse{Error: "Internal server error"}, http.StatusInternalServerError)
		return
	}

	body := ErrorResponse{Error: gerr.Msg(), Fields: gerr.Fields()}
	var fieldErrs validator.V10ValidationError
	if errors.As(err, &fieldErrs) {
		body.Fields = fieldErrs.Values()
	}
	writeJSON(w, body, gerr.StatusCode())
}

func writeResult(w http.ResponseWriter, resp any) {
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	code := http.StatusOK
	if sc, ok := resp.(interface{ StatusCode() int }); ok {
		code = sc.StatusCode()
	}
	if code == http.StatusNoContent {
		w.WriteHeader(code)
		return
	}
	writeJSON(w, resp, code)
}

func writeJSON(w http.ResponseWriter, body any, code int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("response body not written", "status", code, "error", err)
	}
}
