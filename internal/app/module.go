package app

import (
	"context"
	"fmt"

	"github.com/shandysiswandi/otpgate/internal/notification"
	"github.com/shandysiswandi/otpgate/internal/otp"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
)

// initModules builds notification first because the otp module hands it
// audit events in process when audit.transport is mail.
func (a *App) initModules() error {
	notifier, err := notification.New(notification.Dependency{
		Config:     a.config,
		Instrument: a.ins,
		Validator:  a.validator,
		Clock:      a.clock,
		Router:     a.router,
		Mail:       a.mail,
		Ctx:        a.ctx,
		Messaging:  a.messaging,
		UUID:       a.uuid,
		Goroutine:  a.goroutine,
	})
	if err != nil {
		return fmt.Errorf("notification: %w", err)
	}

	// Registered last so it drains before mail and messaging close.
	audits := goroutine.NewQueue("otp.audit",
		a.config.GetInt("modules.otp.audit.workers"),
		a.config.GetInt("modules.otp.audit.backlog_warn"))
	a.onClose("audit queue", func(context.Context) error { return audits.Close() })

	err = otp.New(otp.Dependency{
		Ctx:           a.ctx,
		DBConn:        a.pool,
		MongoDB:       a.mongoDB,
		Messaging:     a.messaging,
		AuditConsumer: notifier,
		Config:        a.config,
		Instrument:    a.ins,
		UID:           a.uid,
		Clock:         a.clock,
		AuditQueue:    audits,
		Validator:     a.validator,
		Router:        a.router,
		Mail:          a.mail,
		Generator:     a.otp,
		IssueLimiter:  a.issueLimiter,
		Scheduler:     a.scheduler,
		Locker:        a.locker,
	})
	if err != nil {
		return fmt.Errorf("otp: %w", err)
	}
	return nil
}
