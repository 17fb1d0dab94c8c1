package otp

import (
	"errors"
	"strconv"
	"testing"
)

type failingReader struct{}

var errEntropy = errors.New("entropy exhausted")

func (failingReader) Read([]byte) (int, error) { return 0, errEntropy }

func TestNumericGenerateShape(t *testing.T) {
	gen := NewNumeric(0)
	if gen.Digits() != DefaultDigits {
		t.Fatalf("digits = %d, want %d", gen.Digits(), DefaultDigits)
	}

	for i := 0; i < 2000; i++ {
		code, err := gen.Generate()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("code %q has length %d", code, len(code))
		}
		for _, c := range code {
			if c < '0' || c > '9' {
				t.Fatalf("code %q has non-digit %q", code, c)
			}
		}
		v, err := strconv.Atoi(code)
		if err != nil {
			t.Fatalf("atoi %q: %v", code, err)
		}
		if v < 100000 || v > 999999 {
			t.Fatalf("code %d out of range", v)
		}
	}
}

func TestNumericGenerateVaries(t *testing.T) {
	gen := NewNumeric(6)
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		code, err := gen.Generate()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		seen[code] = struct{}{}
	}
	if len(seen) < 2 {
		t.Fatalf("expected distinct codes, got %v", seen)
	}
}

func TestNumericLengths(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{in: 1, want: 1},
		{in: 4, want: 4},
		{in: 8, want: 8},
		{in: -1, want: DefaultDigits},
		{in: 19, want: DefaultDigits},
	}

	for _, tc := range cases {
		code, err := NewNumeric(tc.in).Generate()
		if err != nil {
			t.Fatalf("digits %d: %v", tc.in, err)
		}
		if len(code) != tc.want {
			t.Fatalf("digits %d: code %q, want length %d", tc.in, code, tc.want)
		}
		if code[0] == '0' {
			t.Fatalf("digits %d: code %q has leading zero", tc.in, code)
		}
	}
}

func TestNumericGenerateRandomFailure(t *testing.T) {
	_, err := NewNumericWithReader(6, failingReader{}).Generate()
	if !errors.Is(err, errEntropy) {
		t.Fatalf("err = %v, want %v", err, errEntropy)
	}
}
