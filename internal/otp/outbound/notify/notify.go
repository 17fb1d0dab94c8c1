package notify

import (
	"context"
	"time"

	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/valueobject"
	"github.com/shandysiswandi/otpgate/internal/shared/event"
	"go.opentelemetry.io/otel/codes"
)

type auditConsumer interface {
	ConsumeOTPAudit(ctx context.Context, msg event.OTPAuditMessage) error
}

// Notify hands audits to the notification module in process, skipping the broker.
type Notify struct {
	consumer auditConsumer
	ins      instrument.Instrumentation
	now      func() time.Time
}

func New(consumer auditConsumer, ins instrument.Instrumentation) *Notify {
	return &Notify{consumer: consumer, ins: ins, now: time.Now}
}

func (n *Notify) PublishAudit(ctx context.Context, subject string, payload valueobject.JSONMap) error {
	ctx, span := n.ins.Tracer("otp.outbound.notify").Start(ctx, "PublishAudit")
	defer span.End()

	if err := n.consumer.ConsumeOTPAudit(ctx, event.OTPAuditMessage{
		Subject:    subject,
		Payload:    payload,
		OccurredAt: n.now().UTC(),
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
