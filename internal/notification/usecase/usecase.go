package usecase

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultRetryMaxDelay  = 10 * time.Second
)

type repoMail interface {
	Send(ctx context.Context, msg mail.Message) error
}

// Usecase mails audits and test messages to the configured admin. Retry
// settings and the admin address are read per call so a reload applies to
// the next message.
type Usecase struct {
	cfg       config.Config
	clock     clock.Clocker
	validator validator.Validator
	repoMail  repoMail
	tracer    trace.Tracer
}

type Dependency struct {
	Config     config.Config
	Clock      clock.Clocker
	Validator  validator.Validator
	RepoMail   repoMail
	Instrument instrument.Instrumentation
}

func NewNotification(dep Dependency) *Usecase {
	return &Usecase{
		cfg:       dep.Config,
		clock:     dep.Clock,
		validator: dep.Validator,
		repoMail:  dep.RepoMail,
		tracer:    dep.Instrument.Tracer("notification.usecase"),
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name)
}

func (s *Usecase) adminBackoff() retry.Backoff {
	attempts := positive(int64(s.cfg.GetInt("notification.admin_retry.max_attempts")), defaultRetryAttempts)
	base := positive(s.cfg.GetInt64("notification.admin_retry.base_delay_ms"), defaultRetryBaseDelay.Milliseconds())
	ceiling := positive(s.cfg.GetInt64("notification.admin_retry.max_delay_ms"), defaultRetryMaxDelay.Milliseconds())

	b := retry.NewExponential(time.Duration(base) * time.Millisecond)
	b = retry.WithCappedDuration(time.Duration(ceiling)*time.Millisecond, b)
	return retry.WithMaxRetries(uint64(attempts-1), b)
}

func positive(v, fallback int64) int64 {
	if v > 0 {
		return v
	}
	return fallback
}

func (s *Usecase) adminAddress() string {
	return s.cfg.GetString("notification.admin_email")
}
