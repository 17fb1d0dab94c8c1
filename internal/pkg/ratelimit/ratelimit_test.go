package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLimiterHit(t *testing.T) {
	l, err := New(NewMemoryStore("test"), "2-M")
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx := context.Background()
	for i := range 2 {
		res, err := l.Hit(ctx, "a@example.com")
		if err != nil {
			t.Fatalf("hit %d: %v", i, err)
		}
		if res.Reached {
			t.Fatalf("hit %d reached the limit early", i)
		}
	}

	res, err := l.Hit(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("hit: %v", err)
	}
	if !res.Reached || res.Limit != 2 || res.Remaining != 0 {
		t.Fatalf("third hit = %+v", res)
	}

	other, err := l.Hit(ctx, "b@example.com")
	if err != nil {
		t.Fatalf("hit: %v", err)
	}
	if other.Reached {
		t.Fatal("keys must be counted separately")
	}
}

func TestNewRejectsBadRate(t *testing.T) {
	if _, err := New(NewMemoryStore("test"), ""); !errors.Is(err, ErrRateRequired) {
		t.Fatalf("err = %v", err)
	}
	if _, err := New(NewMemoryStore("test"), "five-per-minute"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestHTTPMiddleware(t *testing.T) {
	l, err := New(NewMemoryStore("http"), "1-H")
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	h := l.HTTPMiddleware(
		func(r *http.Request) string { return r.RemoteAddr },
		func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTooManyRequests) },
		func(w http.ResponseWriter, _ *http.Request, _ error) { w.WriteHeader(http.StatusInternalServerError) },
	)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 2)
	for range 2 {
		req := httptest.NewRequest(http.MethodPost, "/api/send-otp", nil)
		req.RemoteAddr = "10.0.0.1"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
}
