package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

const msgVerifyFailed = "OTP verification failed"

type VerifyInput struct {
	Email string `json:"email" validate:"notblank,max=320"`
	Code  string `json:"otp" validate:"notblank,max=32"`
}

func (s *Usecase) Verify(ctx context.Context, in VerifyInput) error {
	ctx, span := s.startSpan(ctx, "Verify")
	defer span.End()

	in.Email = strings.TrimSpace(in.Email)
	in.Code = strings.TrimSpace(in.Code)

	// A blank or oversized pair can match no record, so it is a failed
	// attempt like any other and gets the same 401 and audit.
	if err := s.validator.Validate(in); err != nil {
		slog.WarnContext(ctx, "otp verify input rejected", "email", in.Email, "because", err)
		s.audit(ctx, entity.AuditSubjectFailed, entity.FailedAttemptPayload(in.Email, in.Code))
		return entity.ErrInvalidOTP
	}

	now := s.clock.Now()

	rec, err := s.repoDB.GetUnverifiedOTP(ctx, in.Email, in.Code, now)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "otp not matched", "email", in.Email)
		s.audit(ctx, entity.AuditSubjectFailed, entity.FailedAttemptPayload(in.Email, in.Code))
		return entity.ErrInvalidOTP
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get unverified otp", "email", in.Email, "error", err)
		return goerror.NewServer(errors.Join(entity.ErrVerificationFailed, err), msgVerifyFailed)
	}

	updated, err := s.repoDB.MarkOTPVerified(ctx, rec.ID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo mark otp verified", "otp_id", rec.ID, "error", err)
		return goerror.NewServer(errors.Join(entity.ErrVerificationFailed, err), msgVerifyFailed)
	}
	if !updated {
		slog.WarnContext(ctx, "otp consumed by a concurrent request", "otp_id", rec.ID, "email", in.Email)
		s.audit(ctx, entity.AuditSubjectFailed, entity.FailedAttemptPayload(in.Email, in.Code))
		return entity.ErrInvalidOTP
	}

	rec.Verified = true
	rec.UpdatedAt = now
	s.audit(ctx, entity.AuditSubjectVerified, rec.AuditPayload())

	return nil
}
