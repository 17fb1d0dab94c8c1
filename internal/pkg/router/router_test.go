package router

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/ratelimit"
)

type fixedUUID string

func (f fixedUUID) Generate() string { return string(f) }

func newTestConfig(t *testing.T, yaml string) config.Config {
	t.Helper()
	cfg, err := config.NewViperFromBytes("yaml", []byte(yaml))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "192.0.2.10:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func TestRouterEncodesResults(t *testing.T) {
	ro := NewRouter(Config{Config: newTestConfig(t, "app:\n  name: otpgate\n"), UUID: fixedUUID("cid")})

	ro.POST("/api/ok", func(*Request) (any, error) {
		return map[string]bool{"success": true}, nil
	})
	ro.POST("/api/unauthorized", func(*Request) (any, error) {
		return nil, goerror.NewBusiness("Invalid OTP", goerror.CodeUnauthorized)
	})
	ro.POST("/api/plain", func(*Request) (any, error) {
		return nil, errors.New("raw")
	})
	ro.POST("/api/fields", func(*Request) (any, error) {
		return nil, goerror.NewInvalidInput(nil, "email", "email is required")
	})
	ro.POST("/api/none", func(*Request) (any, error) { return nil, nil })

	t.Run("success", func(t *testing.T) {
		rec := serve(ro, http.MethodPost, "/api/ok", "")
		if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"success":true}` {
			t.Fatalf("got %d %s", rec.Code, rec.Body.String())
		}
		if rec.Header().Get(HeaderCorrelationID) != "cid" {
			t.Fatalf("correlation header = %q", rec.Header().Get(HeaderCorrelationID))
		}
	})

	t.Run("business error", func(t *testing.T) {
		rec := serve(ro, http.MethodPost, "/api/unauthorized", "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d", rec.Code)
		}
		if resp := decodeError(t, rec); resp.Error != "Invalid OTP" {
			t.Fatalf("resp = %+v", resp)
		}
	})

	t.Run("unknown error", func(t *testing.T) {
		rec := serve(ro, http.MethodPost, "/api/plain", "")
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d", rec.Code)
		}
		if resp := decodeError(t, rec); resp.Error != "Internal server error" {
			t.Fatalf("resp = %+v", resp)
		}
	})

	t.Run("fields", func(t *testing.T) {
		rec := serve(ro, http.MethodPost, "/api/fields", "")
		resp := decodeError(t, rec)
		if rec.Code != http.StatusUnprocessableEntity || resp.Fields["email"] != "email is required" {
			t.Fatalf("got %d %+v", rec.Code, resp)
		}
	})

	t.Run("no content", func(t *testing.T) {
		if rec := serve(ro, http.MethodPost, "/api/none", ""); rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("root", func(t *testing.T) {
		rec := serve(ro, http.MethodGet, "/", "")
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"otpgate running"`) {
			t.Fatalf("got %d %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("not found", func(t *testing.T) {
		if rec := serve(ro, http.MethodGet, "/nope", ""); rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d", rec.Code)
		}
	})
}

func TestRouterRecoversPanic(t *testing.T) {
	ro := NewRouter(Config{})
	ro.GET("/boom", func(*Request) (any, error) { panic("boom") })

	rec := serve(ro, http.MethodGet, "/boom", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRouterMaintenance(t *testing.T) {
	ro := NewRouter(Config{Config: newTestConfig(t, "app:\n  maintenance:\n    endpoints: /api/send-otp\n")})
	ro.POST("/api/send-otp", func(*Request) (any, error) { return map[string]bool{"success": true}, nil })

	rec := serve(ro, http.MethodPost, "/api/send-otp", "")
	if rec.Code != http.StatusServiceUnavailable || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("status = %d retry-after = %q", rec.Code, rec.Header().Get("Retry-After"))
	}
}

func TestUnderMaintenance(t *testing.T) {
	tests := []struct {
		name      string
		endpoints []string
		route     string
		want      bool
	}{
		{name: "empty", route: "/api/send-otp"},
		{name: "listed", endpoints: []string{"/api/verify-otp"}, route: "/api/verify-otp", want: true},
		{name: "not listed", endpoints: []string{"/api/verify-otp"}, route: "/api/send-otp"},
		{name: "wildcard api", endpoints: []string{"*"}, route: "/api/send-otp", want: true},
		{name: "wildcard keeps root", endpoints: []string{"*"}, route: "/"},
		{name: "wildcard keeps test email", endpoints: []string{"*"}, route: "/test-email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := underMaintenance(tt.endpoints, tt.route); got != tt.want {
				t.Fatalf("underMaintenance(%v, %q) = %v, want %v", tt.endpoints, tt.route, got, tt.want)
			}
		})
	}
}

func TestRouterRateLimit(t *testing.T) {
	l, err := ratelimit.New(ratelimit.NewMemoryStore("router"), "1-M")
	if err != nil {
		t.Fatalf("limiter: %v", err)
	}

	ro := NewRouter(Config{RateLimiter: l})
	ro.POST("/api/send-otp", func(*Request) (any, error) { return map[string]bool{"success": true}, nil })

	if rec := serve(ro, http.MethodPost, "/api/send-otp", ""); rec.Code != http.StatusOK {
		t.Fatalf("first status = %d", rec.Code)
	}
	rec := serve(ro, http.MethodPost, "/api/send-otp", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error != "Too many requests" {
		t.Fatalf("resp = %+v", resp)
	}

	for range 3 {
		if rec := serve(ro, http.MethodGet, "/", ""); rec.Code != http.StatusOK {
			t.Fatalf("root must not be throttled, got %d", rec.Code)
		}
	}
}

func TestDecodeBody(t *testing.T) {
	type payload struct {
		Email string `json:"email"`
	}

	tests := []struct {
		name      string
		body      string
		ctype     string
		wantErr   bool
		wantEmail string
	}{
		{name: "valid", body: `{"email":"a@b.c"}`},
		{name: "json with charset", body: `{"email":"a@b.c"}`, ctype: "application/json; charset=utf-8"},
		{name: "form body", body: `email=a@b.c`, ctype: "application/x-www-form-urlencoded", wantErr: true},
		{name: "malformed", body: `{"email":`, wantErr: true},
		{name: "unknown field ignored", body: `{"email":"a@b.c","source":"web"}`, wantEmail: "a@b.c"},
		{name: "trailing data", body: `{"email":"a@b.c"}{}`, wantErr: true},
		{name: "empty", body: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &Request{Request: httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))}
			if tt.ctype != "" {
				req.Header.Set("Content-Type", tt.ctype)
			}
			var dst payload
			err := req.DecodeBody(&dst)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantEmail != "" && dst.Email != tt.wantEmail {
				t.Fatalf("email = %q, want %q", dst.Email, tt.wantEmail)
			}
			if err != nil {
				var gerr *goerror.Error
				if !errors.As(err, &gerr) || gerr.StatusCode() != http.StatusBadRequest {
					t.Fatalf("err = %v, want 400 goerror", err)
				}
			}
		})
	}
}

func TestRealIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	if got := realIP(req); got != "10.0.0.1" {
		t.Fatalf("peer = %q", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := realIP(req); got != "203.0.113.7" {
		t.Fatalf("forwarded = %q", got)
	}

	req.Header.Set("X-Real-IP", "not-an-ip")
	if got := realIP(req); got != "203.0.113.7" {
		t.Fatalf("invalid header should be skipped, got %q", got)
	}
}

func TestRouterCorrelationID(t *testing.T) {
	ro := NewRouter(Config{UUID: fixedUUID("generated")})
	ro.GET("/api/ping", func(*Request) (any, error) { return map[string]bool{"ok": true}, nil })

	tests := []struct {
		name   string
		header string
		value  string
		want   string
	}{
		{name: "none", want: "generated"},
		{name: "client id kept", header: HeaderCorrelationID, value: "req-42.a:b", want: "req-42.a:b"},
		{name: "proxy id kept", header: HeaderRequestID, value: "proxy_7", want: "proxy_7"},
		{name: "spaces rejected", header: HeaderCorrelationID, value: "a b", want: "generated"},
		{name: "too long rejected", header: HeaderCorrelationID, value: strings.Repeat("x", 65), want: "generated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			ro.ServeHTTP(rec, req)

			if got := rec.Header().Get(HeaderCorrelationID); got != tt.want {
				t.Fatalf("correlation id = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoggableBodyMasks(t *testing.T) {
	keys := instrument.NewMaskKeys([]string{"otp"})

	got, ok := loggableBody([]byte(`{"email":"a@x.com","otp":"123456"}`), keys).(map[string]any)
	if !ok || got["otp"] != "***" || got["email"] != "a@x.com" {
		t.Fatalf("masked body = %v", got)
	}

	if got := loggableBody([]byte("not json"), keys); got.(map[string]int)["non_json_bytes"] != 8 {
		t.Fatalf("non json body = %v", got)
	}
	if loggableBody(nil, keys) != nil {
		t.Fatal("empty body must log as nil")
	}
}
