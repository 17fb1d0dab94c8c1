package usecase

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/otpgate/internal/shared/event"
)

func (s *Usecase) ConsumeOTPAudit(ctx context.Context, msg event.OTPAuditMessage) error {
	ctx, span := s.startSpan(ctx, "ConsumeOTPAudit")
	defer span.End()

	attrs := []any{"subject", msg.Subject}
	if !msg.OccurredAt.IsZero() {
		attrs = append(attrs, "lag", s.clock.Now().Sub(msg.OccurredAt).String())
	}
	slog.InfoContext(ctx, "sending otp audit to admin", attrs...)

	return s.SendAdminAudit(ctx, AdminAuditInput{
		Subject: msg.Subject,
		Payload: msg.Payload,
	})
}
