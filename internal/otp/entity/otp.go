package entity

import (
	"time"

	"github.com/shandysiswandi/otpgate/internal/pkg/valueobject"
)

const (
	AuditSubjectGenerated = "OTP Generated"
	AuditSubjectFailed    = "OTP FAILED"
	AuditSubjectVerified  = "OTP VERIFIED"
)

type OTP struct {
	ID            int64
	Email         string
	Code          string
	Verified      bool
	OriginAddress string
	ExpiresAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Expired reports whether the record can no longer be matched at now.
func (o OTP) Expired(now time.Time) bool {
	return o.ExpiresAt != nil && !o.ExpiresAt.After(now)
}

// AuditPayload is the record as shown to the admin mailbox.
func (o OTP) AuditPayload() valueobject.JSONMap {
	p := valueobject.JSONMap{
		"id":             o.ID,
		"email":          o.Email,
		"otp":            o.Code,
		"verified":       o.Verified,
		"origin_address": o.OriginAddress,
	}
	p.SetTime("expires_at", o.ExpiresAt)
	p.SetTime("created_at", &o.CreatedAt)
	p.SetTime("updated_at", &o.UpdatedAt)
	return p
}

// FailedAttemptPayload is the audit payload for a rejected verification.
func FailedAttemptPayload(email, code string) valueobject.JSONMap {
	return valueobject.JSONMap{"email": email, "otp": code}
}
