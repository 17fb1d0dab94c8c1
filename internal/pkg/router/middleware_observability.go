package router

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// OTP payloads are tiny; anything past this is not worth logging.
const logBodyLimit = 4 << 10

// responseCapture records what the handler wrote so it can be logged after
// the fact. Errors returned by handlers arrive through SetError.
type responseCapture struct {
	http.ResponseWriter
	status  int
	written int
	head    bytes.Buffer
	err     error
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(p []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	if room := logBodyLimit - c.head.Len(); room > 0 {
		c.head.Write(p[:min(room, len(p))])
	}
	n, err := c.ResponseWriter.Write(p)
	c.written += n
	return n, err
}

func (c *responseCapture) SetError(err error) { c.err = err }

func (c *responseCapture) Flush() {
	if f, ok := c.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (c *responseCapture) code() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

// peekBody reads up to logBodyLimit bytes and puts them back for the handler.
func peekBody(r *http.Request) []byte {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	head, _ := io.ReadAll(io.LimitReader(r.Body, logBodyLimit))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), r.Body), r.Body}
	return head
}

// loggableBody decodes a JSON body with sensitive keys such as otp or email
// hidden. Non JSON bodies are reported by size only.
func loggableBody(raw []byte, keys instrument.MaskKeys) any {
	if len(raw) == 0 {
		return nil
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return map[string]int{"non_json_bytes": len(raw)}
	}
	return keys.Mask(doc)
}

func routeOf(r *http.Request) string {
	if p := httprouter.ParamsFromContext(r.Context()).MatchedRoutePath(); p != "" {
		return p
	}
	return r.URL.Path
}

type httpMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	failures metric.Int64Counter
}

func newHTTPMetrics(meter metric.Meter) httpMetrics {
	var m httpMetrics
	var err error
	if m.requests, err = meter.Int64Counter("otpgate.http.requests",
		metric.WithDescription("HTTP requests handled")); err != nil {
		slog.Warn("http metric disabled", "metric", "otpgate.http.requests", "error", err)
	}
	if m.duration, err = meter.Float64Histogram("otpgate.http.request.duration",
		metric.WithDescription("HTTP request latency"), metric.WithUnit("s")); err != nil {
		slog.Warn("http metric disabled", "metric", "otpgate.http.request.duration", "error", err)
	}
	if m.failures, err = meter.Int64Counter("otpgate.http.failures",
		metric.WithDescription("HTTP requests answered with an error body")); err != nil {
		slog.Warn("http metric disabled", "metric", "otpgate.http.failures", "error", err)
	}
	return m
}

func (m httpMetrics) record(r *http.Request, elapsed time.Duration, status int, failed bool, attrs ...attribute.KeyValue) {
	opt := metric.WithAttributes(attrs...)
	if m.requests != nil {
		m.requests.Add(r.Context(), 1, opt)
	}
	if m.duration != nil {
		m.duration.Record(r.Context(), elapsed.Seconds(), opt)
	}
	if failed && m.failures != nil {
		m.failures.Add(r.Context(), 1, opt)
	}
}

// errorKind labels a handler error for spans and logs.
func errorKind(err error) string {
	if err == nil {
		return ""
	}
	var gerr *goerror.Error
	if errors.As(err, &gerr) {
		return gerr.Type().String()
	}
	return "unknown"
}

func middlewareObservability(cfg config.Config, ins instrument.Instrumentation) Middleware {
	var keys instrument.MaskKeys
	if cfg != nil {
		keys = instrument.NewMaskKeys(cfg.GetArray("instrument.log_mask_fields"))
	}
	tracer := ins.Tracer("otpgate.http")
	metrics := newHTTPMetrics(ins.Meter("otpgate.http"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			route := routeOf(r)

			ctx, span := tracer.Start(r.Context(), r.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.HTTPRouteKey.String(route),
					semconv.ClientAddress(clientAddr(r)),
				),
			)
			defer span.End()

			reqBody := peekBody(r)
			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r.WithContext(ctx))

			status := capture.code()
			elapsed := time.Since(start)
			attrs := []attribute.KeyValue{
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.HTTPRouteKey.String(route),
				semconv.HTTPResponseStatusCodeKey.Int(status),
			}
			span.SetAttributes(attrs...)
			metrics.record(r.WithContext(ctx), elapsed, status, status >= http.StatusBadRequest, attrs...)

			level := slog.LevelInfo
			switch {
			case status >= http.StatusInternalServerError:
				level = slog.LevelError
				msg := http.StatusText(status)
				if capture.err != nil {
					msg = capture.err.Error()
				}
				span.SetStatus(codes.Error, msg)
			case status >= http.StatusBadRequest:
				level = slog.LevelWarn
			}
			if capture.err != nil {
				span.RecordError(capture.err)
				span.SetAttributes(attribute.String("otpgate.error.kind", errorKind(capture.err)))
			}

			slog.Log(ctx, level, "http request served",
				"method", r.Method,
				"route", route,
				"client_ip", clientAddr(r),
				"status", status,
				"bytes", capture.written,
				"duration_ms", elapsed.Milliseconds(),
				"request", loggableBody(reqBody, keys),
				"response", loggableBody(capture.head.Bytes(), keys),
			)
		})
	}
}
