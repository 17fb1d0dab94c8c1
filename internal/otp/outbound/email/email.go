package email

import (
	"bytes"
	"context"
	"html/template"

	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
	"go.opentelemetry.io/otel/codes"
)

const subjectOTP = "Your OTP"

var bodyOTP = template.Must(template.New("otp").Parse(`<h2>Your OTP</h2><h1>{{.Code}}</h1>`))

type Mail struct {
	client   mail.Mail
	fromName string
	ins      instrument.Instrumentation
}

func New(client mail.Mail, fromName string, ins instrument.Instrumentation) *Mail {
	return &Mail{client: client, fromName: fromName, ins: ins}
}

func (m *Mail) SendOTP(ctx context.Context, email, code string) (err error) {
	ctx, span := m.ins.Tracer("otp.outbound.email").Start(ctx, "SendOTP")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var body bytes.Buffer
	if err = bodyOTP.Execute(&body, struct{ Code string }{Code: code}); err != nil {
		return err
	}

	err = m.client.Send(ctx, mail.Message{
		FromName: m.fromName,
		To:       []string{email},
		Subject:  subjectOTP,
		HTMLBody: body.String(),
	})
	return err
}
