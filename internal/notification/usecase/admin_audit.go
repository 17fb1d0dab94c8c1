package usecase

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"log/slog"

	"github.com/sethvargo/go-retry"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
	"github.com/shandysiswandi/otpgate/internal/pkg/valueobject"
)

var ErrAdminAddressMissing = errors.New("notification: notification.admin_email is not configured")

var adminAuditBody = template.Must(template.New("admin_audit").Parse(`<pre>{{.}}</pre>`))

type AdminAuditInput struct {
	Subject string `validate:"notblank"`
	Payload valueobject.JSONMap
}

// SendAdminAudit mails the payload as indented JSON to the admin mailbox,
// retrying transient failures with exponential backoff.
func (s *Usecase) SendAdminAudit(ctx context.Context, in AdminAuditInput) error {
	ctx, span := s.startSpan(ctx, "SendAdminAudit")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	to := s.adminAddress()
	if to == "" {
		slog.ErrorContext(ctx, "admin audit dropped", "subject", in.Subject, "error", ErrAdminAddressMissing)
		return ErrAdminAddressMissing
	}

	body, err := renderAdminAudit(in.Payload)
	if err != nil {
		slog.ErrorContext(ctx, "failed to render admin audit", "subject", in.Subject, "error", err)
		return err
	}

	msg := mail.Message{
		FromName: s.cfg.GetString("mail.from_name_admin"),
		To:       []string{to},
		Subject:  in.Subject,
		HTMLBody: body,
	}

	attempt := 0
	err = retry.Do(ctx, s.adminBackoff(), func(ctx context.Context) error {
		attempt++
		if err := s.repoMail.Send(ctx, msg); err != nil {
			if errors.Is(err, mail.ErrPermanent) {
				return err
			}
			slog.WarnContext(ctx, "admin audit mail attempt failed", "subject", in.Subject, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to send admin audit", "subject", in.Subject, "attempts", attempt, "error", err)
		return err
	}

	return nil
}

func renderAdminAudit(payload valueobject.JSONMap) (string, error) {
	if payload == nil {
		payload = valueobject.JSONMap{}
	}

	doc, err := payload.Indent()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := adminAuditBody.Execute(&buf, doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}
