package goerror

import (
	"errors"
	"net/http"
	"testing"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "server", err: NewServer(errors.New("db down")), want: http.StatusInternalServerError},
		{name: "unauthorized", err: NewBusiness("Invalid OTP", CodeUnauthorized), want: http.StatusUnauthorized},
		{name: "rate limited", err: NewBusiness("Too many requests", CodeTooManyRequest), want: http.StatusTooManyRequests},
		{name: "unavailable", err: NewBusiness("down", CodeUnavailable), want: http.StatusServiceUnavailable},
		{name: "invalid input", err: NewInvalidInput(errors.New("bad")), want: http.StatusUnprocessableEntity},
		{name: "invalid format", err: NewInvalidFormat(), want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gerr *Error
			if !errors.As(tt.err, &gerr) {
				t.Fatalf("not a *Error: %T", tt.err)
			}
			if got := gerr.StatusCode(); got != tt.want {
				t.Fatalf("StatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNewServerMessage(t *testing.T) {
	cause := errors.New("smtp refused")

	err := NewServer(cause, "OTP send failed")
	var gerr *Error
	if !errors.As(err, &gerr) {
		t.Fatalf("not a *Error: %T", err)
	}
	if gerr.Msg() != "OTP send failed" {
		t.Fatalf("Msg() = %q", gerr.Msg())
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause must be preserved")
	}

	if err := NewServer(cause, "").(*Error); err.Msg() != "Internal server error" {
		t.Fatalf("default Msg() = %q", err.Msg())
	}
}

func TestNewInvalidInputFields(t *testing.T) {
	err := NewInvalidInput(nil, "email", "email is required", "otp")
	if err.(*Error).Code() != CodeInvalidFormat {
		t.Fatalf("odd kv must yield invalid format, got %v", err.(*Error).Code())
	}

	err = NewInvalidInput(nil, "email", "email is required")
	fields := err.(*Error).Fields()
	if fields["email"] != "email is required" {
		t.Fatalf("fields = %v", fields)
	}
}
