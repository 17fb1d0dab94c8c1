package event

import "time"

const (
	// OTPAuditDestination is where OTP lifecycle audits are published.
	OTPAuditDestination = "otp_audit"
	// OTPAuditConsumerNotification is the consumer group of the notification module.
	OTPAuditConsumerNotification = "otp_audit.notification"

	// HeaderCorrelationID carries the request correlation id across the broker.
	HeaderCorrelationID = "cID"
)

// OTPAuditMessage carries one admin audit for an OTP lifecycle event.
type OTPAuditMessage struct {
	Subject    string         `json:"subject"`
	Payload    map[string]any `json:"payload"`
	OccurredAt time.Time      `json:"occurred_at"`
}
