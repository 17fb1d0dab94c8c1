package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

const msgIssueFailed = "OTP send failed"

type IssueInput struct {
	Email         string `json:"email" validate:"notblank,max=320"`
	OriginAddress string `json:"-"`
}

func (s *Usecase) Issue(ctx context.Context, in IssueInput) error {
	ctx, span := s.startSpan(ctx, "Issue")
	defer span.End()

	in.Email = strings.TrimSpace(in.Email)

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	if err := s.checkIssueAllowed(ctx, in.Email); err != nil {
		return err
	}

	code, err := s.generator.Generate()
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate otp code", "email", in.Email, "error", err)
		return goerror.NewServer(errors.Join(entity.ErrIssuanceFailed, err), msgIssueFailed)
	}

	now := s.clock.Now()
	rec := entity.OTP{
		ID:            s.uid.Generate(),
		Email:         in.Email,
		Code:          code,
		Verified:      false,
		OriginAddress: in.OriginAddress,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if ttl := s.cfg.GetMinute("modules.otp.ttl_minutes"); ttl > 0 {
		expiresAt := now.Add(ttl)
		rec.ExpiresAt = &expiresAt
	}

	if err := s.repoDB.CreateOTP(ctx, rec); err != nil {
		slog.ErrorContext(ctx, "failed to repo create otp", "email", in.Email, "error", err)
		return goerror.NewServer(errors.Join(entity.ErrIssuanceFailed, err), msgIssueFailed)
	}

	payload := rec.AuditPayload()

	mailErr := s.repoMail.SendOTP(ctx, rec.Email, rec.Code)
	if mailErr != nil {
		slog.ErrorContext(ctx, "failed to send otp mail", "otp_id", rec.ID, "email", rec.Email, "error", mailErr)
		payload.Set("delivery_error", mailErr.Error())
	}

	s.audit(ctx, entity.AuditSubjectGenerated, payload)

	if mailErr != nil {
		return goerror.NewServer(errors.Join(entity.ErrIssuanceFailed, mailErr), msgIssueFailed)
	}

	return nil
}

// checkIssueAllowed applies the optional per-email rate and outstanding-code cap.
func (s *Usecase) checkIssueAllowed(ctx context.Context, email string) error {
	if s.limiter != nil {
		res, err := s.limiter.Hit(ctx, strings.ToLower(email))
		if err != nil {
			slog.WarnContext(ctx, "otp issue limiter unavailable, allowing request", "email", email, "error", err)
		} else if res.Reached {
			slog.WarnContext(ctx, "otp issue rate reached", "email", email, "limit", res.Limit, "reset", res.Reset)
			return entity.ErrTooManyRequests
		}
	}

	maxOutstanding := s.cfg.GetInt64("modules.otp.max_outstanding")
	if maxOutstanding <= 0 {
		return nil
	}

	count, err := s.repoDB.CountOutstandingOTP(ctx, email, s.clock.Now())
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo count outstanding otp", "email", email, "error", err)
		return goerror.NewServer(errors.Join(entity.ErrIssuanceFailed, err), msgIssueFailed)
	}

	if count >= maxOutstanding {
		slog.WarnContext(ctx, "too many outstanding otp", "email", email, "count", count, "max", maxOutstanding)
		return entity.ErrTooManyRequests
	}

	return nil
}
