package inbound

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/shared/event"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type MQHandler struct {
	uc   uc
	uuid uid.StringID
	ins  instrument.Instrumentation
}

// OTPAudit mails one audit event to the admin. A body that does not decode
// is acked and logged because redelivering it cannot help. A mail failure is
// returned so the broker redelivers.
func (h *MQHandler) OTPAudit(ctx context.Context, msg messaging.Message) error {
	cID := msg.Header(event.HeaderCorrelationID)
	if cID == "" {
		cID = h.uuid.Generate()
	}
	ctx = instrument.SetCorrelationID(ctx, cID)

	ctx, span := h.ins.Tracer("notification.inbound.mq").Start(ctx, "OTPAudit",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", event.OTPAuditDestination),
			attribute.Int("messaging.delivery.attempts", msg.Attempts()),
		),
	)
	defer span.End()

	var audit event.OTPAuditMessage
	if err := json.Unmarshal(msg.Body(), &audit); err != nil {
		span.RecordError(err)
		slog.WarnContext(ctx, "dropping undecodable otp audit", "bytes", len(msg.Body()), "error", err)
		return nil
	}
	span.SetAttributes(attribute.String("otp.audit.subject", audit.Subject))

	if err := h.uc.ConsumeOTPAudit(ctx, audit); err != nil {
		span.SetStatus(codes.Error, err.Error())
		slog.ErrorContext(ctx, "otp audit not delivered, will retry",
			"subject", audit.Subject, "attempts", msg.Attempts(), "error", err)
		return err
	}

	slog.InfoContext(ctx, "otp audit delivered", "subject", audit.Subject, "attempts", msg.Attempts())
	return nil
}
