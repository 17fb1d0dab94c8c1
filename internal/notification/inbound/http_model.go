package inbound

type SuccessResponse struct {
	Success bool `json:"success"`
}
