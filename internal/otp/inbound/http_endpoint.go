package inbound

import (
	"github.com/shandysiswandi/otpgate/internal/otp/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
)

// HTTPEndpoint exposes the OTP issue and verify handlers.
type HTTPEndpoint struct {
	uc uc
}

// SendOTP issues a new code and mails it to the address.
// @Summary Send OTP
// @Description Generates a 6-digit code, stores it unverified and emails it to the user.
// @Tags OTP
// @Accept json
// @Produce json
// @Param request body SendOTPRequest true "Send OTP payload"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} router.ErrorResponse "Invalid request body"
// @Failure 422 {object} router.ErrorResponse "Validation error"
// @Failure 429 {object} router.ErrorResponse "Too many requests"
// @Failure 500 {object} router.ErrorResponse "OTP send failed"
// @Router /api/send-otp [post]
func (h *HTTPEndpoint) SendOTP(r *router.Request) (any, error) {
	var req SendOTPRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	if err := h.uc.Issue(r.Context(), usecase.IssueInput{
		Email:         req.Email,
		OriginAddress: r.ClientAddr(),
	}); err != nil {
		return nil, err
	}

	return SuccessResponse{Success: true}, nil
}

// VerifyOTP consumes a code previously sent to the address.
// @Summary Verify OTP
// @Description Matches the email and code against an unverified record and marks it verified.
// @Tags OTP
// @Accept json
// @Produce json
// @Param request body VerifyOTPRequest true "Verify OTP payload"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} router.ErrorResponse "Invalid request body"
// @Failure 401 {object} router.ErrorResponse "Invalid OTP"
// @Failure 500 {object} router.ErrorResponse "OTP verification failed"
// @Router /api/verify-otp [post]
func (h *HTTPEndpoint) VerifyOTP(r *router.Request) (any, error) {
	var req VerifyOTPRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	if err := h.uc.Verify(r.Context(), usecase.VerifyInput{
		Email: req.Email,
		Code:  req.OTP,
	}); err != nil {
		return nil, err
	}

	return SuccessResponse{Success: true}, nil
}
