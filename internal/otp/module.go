package otp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	"github.com/shandysiswandi/otpgate/internal/otp/inbound"
	"github.com/shandysiswandi/otpgate/internal/otp/outbound/db"
	"github.com/shandysiswandi/otpgate/internal/otp/outbound/email"
	"github.com/shandysiswandi/otpgate/internal/otp/outbound/mongodb"
	"github.com/shandysiswandi/otpgate/internal/otp/outbound/mq"
	"github.com/shandysiswandi/otpgate/internal/otp/outbound/notify"
	"github.com/shandysiswandi/otpgate/internal/otp/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/lock"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	pkgotp "github.com/shandysiswandi/otpgate/internal/pkg/otp"
	"github.com/shandysiswandi/otpgate/internal/pkg/ratelimit"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
	"github.com/shandysiswandi/otpgate/internal/shared/event"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	TransportMail      = "mail"
	TransportMessaging = "messaging"

	purgeLockKey = "otp.purge"
	purgeLockTTL = 10 * time.Minute
)

var (
	ErrStoreRequired      = errors.New("otp: a postgres pool or mongo database is required")
	ErrAuditorRequired    = errors.New("otp: audit transport mail needs the notification consumer")
	ErrMessagingRequired  = errors.New("otp: audit transport messaging needs a broker")
	ErrAuditQueueRequired = errors.New("otp: an audit queue is required")
)

type auditConsumer interface {
	ConsumeOTPAudit(ctx context.Context, msg event.OTPAuditMessage) error
}

type Dependency struct {
	// Ctx bounds schema setup; nil skips it.
	Ctx           context.Context
	DBConn        *pgxpool.Pool
	MongoDB       *mongo.Database
	Messaging     messaging.Messaging
	AuditConsumer auditConsumer
	Config        config.Config
	Instrument    instrument.Instrumentation
	UID           uid.NumberID
	Clock         clock.Clocker
	Validator     validator.Validator
	Router        *router.Router
	Mail          mail.Mail
	Generator     pkgotp.Generator
	IssueLimiter  *ratelimit.Limiter
	Scheduler     *cron.Cron
	// Locker keeps concurrent instances from purging at the same tick.
	Locker lock.Locker

	// AuditQueue runs audits off the request path. The caller owns it and
	// closes it after the HTTP server stops.
	AuditQueue *goroutine.Queue
}

func New(dep Dependency) error {
	if dep.Instrument == nil {
		dep.Instrument = instrument.NewNoop()
	}

	ucDep := usecase.Dependency{
		RepoMail:   email.New(dep.Mail, dep.Config.GetString("mail.from_name_otp"), dep.Instrument),
		Generator:  dep.Generator,
		Validator:  dep.Validator,
		Config:     dep.Config,
		UID:        dep.UID,
		Clock:      dep.Clock,
		Instrument: dep.Instrument,
	}

	migrate := dep.Ctx != nil && dep.Config.GetBool("database.auto_migrate")

	switch {
	case dep.MongoDB != nil:
		store := mongodb.NewMongo(dep.MongoDB, dep.UID, dep.Instrument)
		if migrate {
			if err := store.EnsureIndexes(dep.Ctx); err != nil {
				return fmt.Errorf("otp: ensure mongo indexes: %w", err)
			}
		}
		ucDep.RepoDB = store
	case dep.DBConn != nil:
		store := db.NewDB(dep.DBConn, dep.Instrument)
		if migrate {
			if err := store.Migrate(dep.Ctx); err != nil {
				return fmt.Errorf("otp: migrate schema: %w", err)
			}
		}
		ucDep.RepoDB = store
	default:
		return ErrStoreRequired
	}

	switch transport := strings.ToLower(dep.Config.GetString("audit.transport")); transport {
	case TransportMessaging:
		if dep.Messaging == nil {
			return ErrMessagingRequired
		}
		ucDep.RepoAudit = mq.NewMessaging(dep.Messaging, dep.Instrument)
	case TransportMail, "":
		if dep.AuditConsumer == nil {
			return ErrAuditorRequired
		}
		ucDep.RepoAudit = notify.New(dep.AuditConsumer, dep.Instrument)
	default:
		return fmt.Errorf("otp: unknown audit transport %q", transport)
	}

	if dep.AuditQueue == nil {
		return ErrAuditQueueRequired
	}
	ucDep.AuditQueue = dep.AuditQueue

	if dep.IssueLimiter != nil {
		ucDep.Limiter = dep.IssueLimiter
	}
	if ucDep.Generator == nil {
		ucDep.Generator = pkgotp.NewNumeric(pkgotp.DefaultDigits)
	}

	uc := usecase.New(ucDep)

	inbound.RegisterHTTPEndpoint(dep.Router, uc)

	return registerPurgeJob(dep, uc)
}

func registerPurgeJob(dep Dependency, uc *usecase.Usecase) error {
	schedule := strings.TrimSpace(dep.Config.GetString("modules.otp.purge.schedule"))
	if schedule == "" || dep.Scheduler == nil {
		return nil
	}

	locker := dep.Locker
	if locker == nil {
		locker = lock.NewLocal()
	}

	_, err := dep.Scheduler.AddFunc(schedule, func() {
		ctx := instrument.SetCorrelationID(context.Background(), "purge-"+strconv.FormatInt(dep.UID.Generate(), 10))
		runPurge(ctx, locker, uc)
	})
	if err != nil {
		return fmt.Errorf("otp: purge schedule %q: %w", schedule, err)
	}

	slog.Info("otp purge job scheduled", "schedule", schedule)
	return nil
}

func runPurge(ctx context.Context, locker lock.Locker, uc interface {
	Purge(ctx context.Context) (int64, error)
}) {
	release, err := locker.Acquire(ctx, purgeLockKey, purgeLockTTL)
	if errors.Is(err, lock.ErrNotAcquired) {
		slog.InfoContext(ctx, "otp purge skipped, another instance holds the lock")
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "otp purge lock failed", "error", err)
		return
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			slog.WarnContext(ctx, "otp purge lock release failed", "error", err)
		}
	}()

	if _, err := uc.Purge(ctx); err != nil {
		slog.ErrorContext(ctx, "otp purge job failed", "error", err)
	}
}
