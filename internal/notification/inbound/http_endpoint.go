package inbound

import (
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
)

type HTTPEndpoint struct {
	uc uc
}

// TestEmail sends a fixed message to the admin mailbox.
// @Summary Test email delivery
// @Description Sends "Email System Working" to the configured admin address.
// @Tags Notification
// @Produce json
// @Success 200 {object} SuccessResponse
// @Failure 500 {object} router.ErrorResponse "Email failed"
// @Router /test-email [get]
func (h *HTTPEndpoint) TestEmail(r *router.Request) (any, error) {
	if err := h.uc.TestEmail(r.Context()); err != nil {
		return nil, err
	}

	return SuccessResponse{Success: true}, nil
}
