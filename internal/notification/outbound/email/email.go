package email

import (
	"context"
	"fmt"

	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Mail hands admin audits to the shared mail client.
type Mail struct {
	client mail.Mail
	tracer trace.Tracer
}

func New(client mail.Mail, ins instrument.Instrumentation) *Mail {
	return &Mail{client: client, tracer: ins.Tracer("notification.outbound.email")}
}

// Send delivers msg. A failure no retry can fix comes back wrapping
// mail.ErrPermanent so the usecase stops retrying.
func (m *Mail) Send(ctx context.Context, msg mail.Message) error {
	ctx, span := m.tracer.Start(ctx, "Send", trace.WithAttributes(
		attribute.String("mail.subject", msg.Subject),
		attribute.Int("mail.recipients", len(msg.To)),
	))
	defer span.End()

	err := classify(m.client.Send(ctx, msg))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func classify(err error) error {
	if err == nil || !mail.IsPermanent(err) {
		return err
	}
	return fmt.Errorf("%w: %w", mail.ErrPermanent, err)
}
