package inbound

import (
	"context"

	"github.com/shandysiswandi/otpgate/internal/otp/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
)

type uc interface {
	Issue(ctx context.Context, in usecase.IssueInput) error
	Verify(ctx context.Context, in usecase.VerifyInput) error
}

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	r.POST("/api/send-otp", end.SendOTP)
	r.POST("/api/verify-otp", end.VerifyOTP)
}
