// Package notification delivers admin audit mail. OTP events reach it either
// in process or through the broker, and GET /test-email checks the SMTP path.
package notification

import (
	"context"
	"errors"

	"github.com/shandysiswandi/otpgate/internal/notification/inbound"
	"github.com/shandysiswandi/otpgate/internal/notification/outbound/email"
	"github.com/shandysiswandi/otpgate/internal/notification/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
)

var (
	ErrMailRequired   = errors.New("notification: a mail sender is required")
	ErrRouterRequired = errors.New("notification: a router is required")
)

type Dependency struct {
	Config     config.Config
	Instrument instrument.Instrumentation
	Clock      clock.Clocker
	Validator  validator.Validator
	Router     *router.Router
	Mail       mail.Mail

	// Broker side. Consumers start only when Ctx and Messaging are both set.
	Ctx       context.Context
	Messaging messaging.Messaging
	UUID      uid.StringID
	Goroutine *goroutine.Manager
}

// New returns the notifier so the otp module can audit in process when
// audit.transport is mail.
func New(dep Dependency) (*usecase.Usecase, error) {
	switch {
	case dep.Mail == nil:
		return nil, ErrMailRequired
	case dep.Router == nil:
		return nil, ErrRouterRequired
	}
	if dep.Instrument == nil {
		dep.Instrument = instrument.NewNoop()
	}

	notifier := usecase.NewNotification(usecase.Dependency{
		Config:     dep.Config,
		Clock:      dep.Clock,
		Validator:  dep.Validator,
		RepoMail:   email.New(dep.Mail, dep.Instrument),
		Instrument: dep.Instrument,
	})
	inbound.RegisterHTTPEndpoint(dep.Router, notifier)

	if dep.Ctx == nil || dep.Messaging == nil {
		return notifier, nil
	}
	inbound.RegisterMQConsumer(dep.Ctx, dep.Config, dep.Goroutine, dep.Messaging, dep.UUID, notifier, dep.Instrument)

	return notifier, nil
}
