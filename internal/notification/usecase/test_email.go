package usecase

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
)

const (
	testEmailSubject = "Email System Working"
	testEmailBody    = "<h2>Email delivery confirmed</h2>"
)

// TestEmail sends a fixed message to the admin mailbox to prove SMTP works.
// It does not retry so the caller sees the first failure.
func (s *Usecase) TestEmail(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "TestEmail")
	defer span.End()

	to := s.adminAddress()
	if to == "" {
		return goerror.NewServer(ErrAdminAddressMissing, "Email failed")
	}

	if err := s.repoMail.Send(ctx, mail.Message{
		FromName: s.cfg.GetString("mail.from_name_admin"),
		To:       []string{to},
		Subject:  testEmailSubject,
		HTMLBody: testEmailBody,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to send test email", "error", err)
		return goerror.NewServer(err, "Email failed")
	}

	return nil
}
