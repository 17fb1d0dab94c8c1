package inbound

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/otp/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
)

type stubUC struct {
	issueIn  usecase.IssueInput
	verifyIn usecase.VerifyInput
	err      error
}

func (s *stubUC) Issue(_ context.Context, in usecase.IssueInput) error {
	s.issueIn = in
	return s.err
}

func (s *stubUC) Verify(_ context.Context, in usecase.VerifyInput) error {
	s.verifyIn = in
	return s.err
}

func doJSON(t *testing.T, h http.Handler, path string, payload any) (int, map[string]any) {
	t.Helper()

	var body bytes.Buffer
	switch p := payload.(type) {
	case string:
		body.WriteString(p)
	default:
		if err := json.NewEncoder(&body).Encode(p); err != nil {
			t.Fatalf("encode json: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "1.2.3.4")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec.Code, out
}

func newServer(uc uc) *router.Router {
	r := router.NewRouter(router.Config{})
	RegisterHTTPEndpoint(r, uc)
	return r
}

func TestSendOTP(t *testing.T) {
	v, err := validator.NewV10Validator()
	if err != nil {
		t.Fatalf("validator: %v", err)
	}

	tests := []struct {
		name       string
		payload    any
		ucErr      error
		wantStatus int
		wantError  string
	}{
		{name: "success", payload: SendOTPRequest{Email: "user@test.com"}, wantStatus: http.StatusOK},
		{name: "malformed body", payload: `{"email":`, wantStatus: http.StatusBadRequest, wantError: "Invalid request body"},
		{name: "extra fields ignored", payload: `{"email":"user@test.com","source":"web"}`, wantStatus: http.StatusOK},
		{
			name:       "validation",
			payload:    SendOTPRequest{},
			ucErr:      goerror.NewInvalidInput(v.Validate(usecase.IssueInput{})),
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "Validation error",
		},
		{name: "rate limited", payload: SendOTPRequest{Email: "a@x.com"}, ucErr: entity.ErrTooManyRequests, wantStatus: http.StatusTooManyRequests},
		{
			name:       "issuance failed",
			payload:    SendOTPRequest{Email: "a@x.com"},
			ucErr:      goerror.NewServer(errors.Join(entity.ErrIssuanceFailed, errors.New("db")), "OTP send failed"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "OTP send failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &stubUC{err: tt.ucErr}
			status, body := doJSON(t, newServer(uc), "/api/send-otp", tt.payload)

			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%v)", status, tt.wantStatus, body)
			}
			if tt.wantStatus == http.StatusOK {
				if body["success"] != true {
					t.Fatalf("body = %v", body)
				}
				if uc.issueIn.Email != "user@test.com" || uc.issueIn.OriginAddress != "1.2.3.4" {
					t.Fatalf("input = %+v", uc.issueIn)
				}
				return
			}
			if tt.wantError != "" && body["error"] != tt.wantError {
				t.Fatalf("error = %v, want %q", body["error"], tt.wantError)
			}
			if tt.name == "validation" {
				fields, _ := body["fields"].(map[string]any)
				if fields["email"] == nil {
					t.Fatalf("fields = %v", body["fields"])
				}
			}
		})
	}
}

func TestVerifyOTP(t *testing.T) {
	tests := []struct {
		name       string
		ucErr      error
		wantStatus int
		wantError  string
	}{
		{name: "success", wantStatus: http.StatusOK},
		{name: "invalid otp", ucErr: entity.ErrInvalidOTP, wantStatus: http.StatusUnauthorized, wantError: "Invalid OTP"},
		{
			name:       "store fault",
			ucErr:      goerror.NewServer(errors.Join(entity.ErrVerificationFailed, errors.New("db")), "OTP verification failed"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "OTP verification failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &stubUC{err: tt.ucErr}
			status, body := doJSON(t, newServer(uc), "/api/verify-otp", VerifyOTPRequest{Email: "a@x.com", OTP: "483920"})

			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d", status, tt.wantStatus)
			}
			if uc.verifyIn.Email != "a@x.com" || uc.verifyIn.Code != "483920" {
				t.Fatalf("input = %+v", uc.verifyIn)
			}
			if tt.wantError != "" && body["error"] != tt.wantError {
				t.Fatalf("error = %v, want %q", body["error"], tt.wantError)
			}
			if tt.wantStatus == http.StatusOK && body["success"] != true {
				t.Fatalf("body = %v", body)
			}
		})
	}
}
