// Package dto holds the JSON envelope every API response is wrapped in and
// the error codes it can carry.
package dto

import "time"

// Response is the envelope: Data on success, Error otherwise
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
	Meta    *ListMeta  `json:"meta,omitempty"`
}

type ErrorInfo struct {
	Code      string             `json:"code"`
	Message   string             `json:"message"`
	RequestID string             `json:"request_id,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
	Details   []ValidationDetail `json:"details,omitempty"`
}

// ValidationDetail describes one invalid field
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ListMeta accompanies list payloads. Lists are never paged; Count is the
// number of items returned.
type ListMeta struct {
	Count       int    `json:"count"`
	Marketplace string `json:"marketplace,omitempty"`
}

func NewSuccessResponse(data any) Response {
	return Response{Success: true, Data: data}
}

// NewListResponse wraps items and records their count
func NewListResponse(items any, count int, marketplace string) Response {
	return Response{
		Success: true,
		Data:    items,
		Meta:    &ListMeta{Count: count, Marketplace: marketplace},
	}
}

// NewErrorResponseWithRequestID builds an error envelope. Domain codes are
// translated to API codes.
func NewErrorResponseWithRequestID(code, message, requestID string) Response {
	return Response{
		Error: &ErrorInfo{
			Code:      NormalizeErrorCode(code),
			Message:   message,
			RequestID: requestID,
			Timestamp: time.Now().UTC(),
		},
	}
}

// NewValidationErrorResponse is an ERR_VALIDATION envelope with field details
func NewValidationErrorResponse(message, requestID string, details []ValidationDetail) Response {
	resp := NewErrorResponseWithRequestID(ErrCodeValidation, message, requestID)
	resp.Error.Details = details
	return resp
}

// IDRequest binds a job ID path parameter
type IDRequest struct {
	ID string `uri:"id" binding:"required,uuid"`
}
