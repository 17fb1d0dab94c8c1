package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/otp"
	"github.com/shandysiswandi/otpgate/internal/pkg/ratelimit"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
	"github.com/shandysiswandi/otpgate/internal/pkg/valueobject"
	"go.opentelemetry.io/otel/trace"
)

type repoDB interface {
	CreateOTP(ctx context.Context, in entity.OTP) error
	GetUnverifiedOTP(ctx context.Context, email, code string, now time.Time) (*entity.OTP, error)
	MarkOTPVerified(ctx context.Context, id int64) (bool, error)
	CountOutstandingOTP(ctx context.Context, email string, now time.Time) (int64, error)
	PurgeOTP(ctx context.Context, verifiedBefore, expiredBefore time.Time) (int64, error)
}

type repoMail interface {
	SendOTP(ctx context.Context, email, code string) error
}

type repoAudit interface {
	PublishAudit(ctx context.Context, subject string, payload valueobject.JSONMap) error
}

type auditQueue interface {
	Submit(ctx context.Context, fn func(ctx context.Context) error) error
}

type limiter interface {
	Hit(ctx context.Context, key string) (ratelimit.Result, error)
}

// Usecase issues, verifies and purges OTP records. Audits leave through
// repoAudit on the audit queue so a slow mailbox never delays a reply.
type Usecase struct {
	repoDB    repoDB
	repoMail  repoMail
	repoAudit repoAudit

	limiter   limiter
	generator otp.Generator
	validator validator.Validator
	cfg       config.Config
	uid       uid.NumberID
	clock     clock.Clocker
	tracer    trace.Tracer
	audits    auditQueue
}

type Dependency struct {
	RepoDB     repoDB
	RepoMail   repoMail
	RepoAudit  repoAudit
	Limiter    limiter
	Generator  otp.Generator
	Validator  validator.Validator
	Config     config.Config
	UID        uid.NumberID
	Clock      clock.Clocker
	Instrument instrument.Instrumentation
	AuditQueue auditQueue
}

func New(dep Dependency) *Usecase {
	return &Usecase{
		repoDB:    dep.RepoDB,
		repoMail:  dep.RepoMail,
		repoAudit: dep.RepoAudit,
		limiter:   dep.Limiter,
		generator: dep.Generator,
		validator: dep.Validator,
		cfg:       dep.Config,
		uid:       dep.UID,
		clock:     dep.Clock,
		tracer:    dep.Instrument.Tracer("otp.usecase"),
		audits:    dep.AuditQueue,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name)
}

// audit queues the admin notification. It outlives the request but keeps its
// values, so the correlation id follows it. The queue waits for a free worker
// instead of refusing, so every outcome gets its one attempt.
func (s *Usecase) audit(ctx context.Context, subject string, payload valueobject.JSONMap) {
	payload = payload.Clone()

	err := s.audits.Submit(context.WithoutCancel(ctx), func(ctx context.Context) error {
		ctx, span := s.startSpan(ctx, "Audit")
		defer span.End()

		if err := s.repoAudit.PublishAudit(ctx, subject, payload); err != nil {
			span.RecordError(err)
			return fmt.Errorf("otp audit %q: %w", subject, err)
		}
		return nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "otp audit not queued", "subject", subject, "error", err)
	}
}
