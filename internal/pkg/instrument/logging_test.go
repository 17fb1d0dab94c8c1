package instrument

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestMaskKeysMaskJSON(t *testing.T) {
	keys := NewMaskKeys([]string{" OTP ", "password", ""})

	out, ok := keys.MaskJSON([]byte(`{"email":"a@b.c","otp":"123456","nested":[{"Password":"x"}]}`))
	if !ok {
		t.Fatal("expected JSON to be masked")
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc["otp"] != maskedValue || doc["email"] != "a@b.c" {
		t.Fatalf("masked doc = %v", doc)
	}
	nested := doc["nested"].([]any)[0].(map[string]any)
	if nested["Password"] != maskedValue {
		t.Fatalf("nested = %v", nested)
	}

	if _, ok := keys.MaskJSON([]byte("plain text")); ok {
		t.Fatal("plain text is not JSON")
	}
}

func TestMaskHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&contextHandler{
		Handler: &maskHandler{
			Handler: slog.NewJSONHandler(&buf, nil),
			keys:    NewMaskKeys([]string{"otp"}),
		},
		serviceName: "otpgate",
	})

	ctx := SetCorrelationID(context.Background(), "cid-1")
	logger.With("otp", "654321").InfoContext(ctx, "verify", slog.Group("req", "otp", "111111", "email", "a@b.c"))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if rec["otp"] != maskedValue {
		t.Fatalf("otp = %v", rec["otp"])
	}
	req := rec["req"].(map[string]any)
	if req["otp"] != maskedValue || req["email"] != "a@b.c" {
		t.Fatalf("req = %v", req)
	}
	if rec["_cID"] != "cid-1" || rec["service"] != "otpgate" {
		t.Fatalf("context attrs missing: %v", rec)
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("debug") != slog.LevelDebug {
		t.Fatal("debug")
	}
	if parseLevel("nonsense") != slog.LevelInfo {
		t.Fatal("fallback must be info")
	}
}
