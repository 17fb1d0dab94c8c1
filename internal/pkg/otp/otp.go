package otp

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// DefaultDigits is the length of codes produced by NewNumeric(0).
const DefaultDigits = 6

const maxDigits = 18

// Generator produces a fresh passcode on every call.
type Generator interface {
	Generate() (string, error)
}

// Numeric draws codes uniformly from [10^(n-1), 10^n - 1].
type Numeric struct {
	digits int
	low    *big.Int
	span   *big.Int
	rand   io.Reader
}

// NewNumeric returns a Numeric generator for codes of the given length.
// Lengths outside 1..18 fall back to DefaultDigits.
func NewNumeric(digits int) *Numeric {
	return NewNumericWithReader(digits, rand.Reader)
}

// NewNumericWithReader is NewNumeric with an explicit randomness source.
func NewNumericWithReader(digits int, r io.Reader) *Numeric {
	if digits < 1 || digits > maxDigits {
		digits = DefaultDigits
	}

	low := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits-1)), nil)
	high := new(big.Int).Mul(low, big.NewInt(10))

	return &Numeric{
		digits: digits,
		low:    low,
		span:   new(big.Int).Sub(high, low),
		rand:   r,
	}
}

// Digits returns the code length.
func (n *Numeric) Digits() int {
	return n.digits
}

// Generate returns a new code. It fails only if the randomness source does.
func (n *Numeric) Generate() (string, error) {
	v, err := rand.Int(n.rand, n.span)
	if err != nil {
		return "", fmt.Errorf("otp: read random: %w", err)
	}

	return v.Add(v, n.low).String(), nil
}
