package entity

import (
	"errors"

	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

var (
	// ErrIssuanceFailed marks a generation, persistence or delivery fault during issue.
	ErrIssuanceFailed = errors.New("otp issuance failed")

	// ErrVerificationFailed marks a store fault during verify, distinct from a clean no-match.
	ErrVerificationFailed = errors.New("otp verification failed")

	ErrInvalidOTP = goerror.NewBusiness("Invalid OTP", goerror.CodeUnauthorized)

	ErrTooManyRequests = goerror.NewBusiness("Too many OTP requests, try again later", goerror.CodeTooManyRequest)
)
