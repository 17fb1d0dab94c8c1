package inbound

import (
	"context"

	"github.com/shandysiswandi/otpgate/internal/notification/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
	"github.com/shandysiswandi/otpgate/internal/shared/event"
)

type uc interface {
	ConsumeOTPAudit(ctx context.Context, msg event.OTPAuditMessage) error
	SendAdminAudit(ctx context.Context, in usecase.AdminAuditInput) error
	TestEmail(ctx context.Context) error
}

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	r.GET("/test-email", end.TestEmail)
}
