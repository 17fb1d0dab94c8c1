package inbound

type SendOTPRequest struct {
	Email string `json:"email" example:"user@test.com"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" example:"user@test.com"`
	OTP   string `json:"otp" example:"483920"`
}

type SuccessResponse struct {
	Success bool `json:"success" example:"true"`
}
