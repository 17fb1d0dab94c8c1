package mq

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/pkg/valueobject"
	"github.com/shandysiswandi/otpgate/internal/shared/event"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Messaging publishes audits to the broker for the notification consumer.
type Messaging struct {
	client messaging.Messaging
	tracer trace.Tracer
	now    func() time.Time
}

func NewMessaging(client messaging.Messaging, ins instrument.Instrumentation) *Messaging {
	return &Messaging{client: client, tracer: ins.Tracer("otp.outbound.mq"), now: time.Now}
}

// PublishAudit carries the request's correlation id in the cID header so the
// consumer logs under the same id.
func (m *Messaging) PublishAudit(ctx context.Context, subject string, payload valueobject.JSONMap) (err error) {
	ctx, span := m.tracer.Start(ctx, "PublishAudit", trace.WithSpanKind(trace.SpanKindProducer))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	msg := event.OTPAuditMessage{Subject: subject, Payload: payload, OccurredAt: m.now().UTC()}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	out := messaging.OutgoingMessage{Body: body, Headers: map[string]string{}}
	if cID := instrument.GetCorrelationID(ctx); cID != "" {
		out.Headers[event.HeaderCorrelationID] = cID
	}

	_, err = m.client.Publish(ctx, event.OTPAuditDestination, out)
	return err
}
