package handler

import "github.com/meschain/marketsync/internal/interfaces/http/dto"

// APIResponse is the documented form of dto.Response with a typed payload
// @Description Standard API response wrapper with typed data field
type APIResponse[T any] struct {
	Success bool           `json:"success" example:"true"`
	Data    T              `json:"data,omitempty"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
	Meta    *dto.ListMeta  `json:"meta,omitempty"`
}

// ErrorResponse is the documented form of a failed dto.Response
// @Description Standard error response
type ErrorResponse struct {
	Success bool           `json:"success" example:"false"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
}

// HealthResponse is the liveness check body
// @Description Liveness check result
type HealthResponse struct {
	Status string `json:"status" example:"healthy"`
	Time   string `json:"time" example:"2026-06-01T09:00:00Z"`
}

// MarketplaceStateResponse reports the halt state after a resume
// @Description Marketplace halt state
type MarketplaceStateResponse struct {
	Marketplace string `json:"marketplace" example:"TRENDYOL"`
	Halted      bool   `json:"halted" example:"false"`
}

// CancelJobResponse acknowledges a cancellation request
// @Description Job cancellation acknowledgement
type CancelJobResponse struct {
	ID        string `json:"id" example:"6f1c2d4e-8a9b-4c3d-9e2f-1a2b3c4d5e6f"`
	Cancelled bool   `json:"cancelled" example:"true"`
}
