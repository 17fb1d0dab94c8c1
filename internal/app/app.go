// Package app assembles otpgate from config and runs it until a signal.
package app

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/lock"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/pkg/otp"
	"github.com/shandysiswandi/otpgate/internal/pkg/ratelimit"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
	"go.mongodb.org/mongo-driver/mongo"
)

type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	config config.Config
	ins    instrument.Instrumentation

	goroutine *goroutine.Manager
	validator validator.Validator
	clock     clock.Clocker
	uid       uid.NumberID
	uuid      uid.StringID
	otp       otp.Generator

	// Exactly one of pool and mongoDB is set, per database.driver.
	pool         *pgxpool.Pool
	mongoClient  *mongo.Client
	mongoDB      *mongo.Database
	redis        *redis.Client
	mail         mail.Mail
	messaging    messaging.Messaging
	httpLimiter  *ratelimit.Limiter
	issueLimiter *ratelimit.Limiter
	scheduler    *cron.Cron
	locker       lock.Locker

	router     *router.Router
	httpServer *http.Server

	// closers run in reverse registration order on Stop.
	closers []closer
}

type closer struct {
	name string
	fn   func(context.Context) error
}

func (a *App) onClose(name string, fn func(context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// New builds every dependency in order. A failing step is fatal: resources
// opened by earlier steps are released and the process exits.
func New() *App {
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{ctx: ctx, cancel: cancel}

	steps := []struct {
		name string
		run  func() error
	}{
		{"config", a.initConfig},
		{"instrument", a.initInstrument},
		{"libraries", a.initLibraries},
		{"database", a.initDatabase},
		{"redis", a.initRedis},
		{"rate limit", a.initRateLimit},
		{"mail", a.initMail},
		{"messaging", a.initMessaging},
		{"scheduler", a.initScheduler},
		{"http", a.initHTTPServer},
		{"modules", a.initModules},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			slog.Error("otpgate failed to start", "step", step.name, "error", err)
			cancel()
			a.runClosers(context.Background())
			os.Exit(1)
		}
	}
	return a
}

func (a *App) runClosers(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(ctx); err != nil {
			slog.ErrorContext(ctx, "close failed", "resource", c.name, "error", err)
			continue
		}
		slog.DebugContext(ctx, "closed", "resource", c.name)
	}
}
