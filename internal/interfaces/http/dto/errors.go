package dto

import (
	"net/http"

	"github.com/meschain/marketsync/internal/domain/shared"
)

// API error codes. Every code has the ERR_ prefix and one HTTP status.
const (
	ErrCodeInternal    = "ERR_INTERNAL"
	ErrCodeUnavailable = "ERR_UNAVAILABLE"

	ErrCodeBadRequest         = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput       = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON        = "ERR_INVALID_JSON"
	ErrCodePayloadTooLarge    = "ERR_PAYLOAD_TOO_LARGE"
	ErrCodeValidation         = "ERR_VALIDATION"
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	ErrCodeValidationFormat   = "ERR_VALIDATION_FORMAT"
	ErrCodeValidationRange    = "ERR_VALIDATION_RANGE"

	ErrCodeUnauthorized     = "ERR_UNAUTHORIZED"
	ErrCodeForbidden        = "ERR_FORBIDDEN"
	ErrCodeTokenExpired     = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid     = "ERR_TOKEN_INVALID"
	ErrCodeSignatureInvalid = "ERR_SIGNATURE_INVALID"
	ErrCodeRateLimited      = "ERR_RATE_LIMITED"

	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeInvalidState        = "ERR_INVALID_STATE"

	ErrCodeMarketplaceUnknown  = "ERR_MARKETPLACE_UNKNOWN"
	ErrCodeMarketplaceHalted   = "ERR_MARKETPLACE_HALTED"
	ErrCodeMarketplaceAuth     = "ERR_MARKETPLACE_AUTH"
	ErrCodeMarketplaceUpstream = "ERR_MARKETPLACE_UPSTREAM"
	ErrCodeMappingUnresolved   = "ERR_MAPPING_UNRESOLVED"
)

type codeInfo struct {
	status int
	// domain is the shared.DomainError code that maps to this API code
	domain string
}

var codes = map[string]codeInfo{
	ErrCodeInternal:    {status: http.StatusInternalServerError},
	ErrCodeUnavailable: {status: http.StatusServiceUnavailable},

	ErrCodeBadRequest:         {status: http.StatusBadRequest},
	ErrCodeInvalidInput:       {status: http.StatusBadRequest, domain: shared.CodeInvalidInput},
	ErrCodeInvalidJSON:        {status: http.StatusBadRequest},
	ErrCodePayloadTooLarge:    {status: http.StatusRequestEntityTooLarge},
	ErrCodeValidation:         {status: http.StatusBadRequest},
	ErrCodeValidationRequired: {status: http.StatusBadRequest},
	ErrCodeValidationFormat:   {status: http.StatusBadRequest},
	ErrCodeValidationRange:    {status: http.StatusBadRequest},

	ErrCodeUnauthorized:     {status: http.StatusUnauthorized},
	ErrCodeForbidden:        {status: http.StatusForbidden},
	ErrCodeTokenExpired:     {status: http.StatusUnauthorized},
	ErrCodeTokenInvalid:     {status: http.StatusUnauthorized},
	ErrCodeSignatureInvalid: {status: http.StatusUnauthorized},
	ErrCodeRateLimited:      {status: http.StatusTooManyRequests},

	ErrCodeNotFound:            {status: http.StatusNotFound, domain: shared.CodeNotFound},
	ErrCodeAlreadyExists:       {status: http.StatusConflict, domain: shared.CodeAlreadyExists},
	ErrCodeConcurrencyConflict: {status: http.StatusConflict, domain: shared.CodeConcurrencyConflict},
	ErrCodeInvalidState:        {status: http.StatusUnprocessableEntity},

	// a halted marketplace conflicts with the request until it is resumed
	ErrCodeMarketplaceUnknown:  {status: http.StatusNotFound},
	ErrCodeMarketplaceHalted:   {status: http.StatusConflict},
	ErrCodeMarketplaceAuth:     {status: http.StatusBadGateway},
	ErrCodeMarketplaceUpstream: {status: http.StatusBadGateway},
	ErrCodeMappingUnresolved:   {status: http.StatusUnprocessableEntity},
}

var fromDomain = func() map[string]string {
	m := make(map[string]string)
	for code, info := range codes {
		if info.domain != "" {
			m[info.domain] = code
		}
	}
	return m
}()

// GetHTTPStatus returns the status for code; unknown codes are a 500
func GetHTTPStatus(code string) int {
	if info, ok := codes[code]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// NormalizeErrorCode converts a shared.DomainError code to its API code.
// API codes pass through; unmapped domain codes become ERR_INTERNAL.
func NormalizeErrorCode(code string) string {
	if _, ok := codes[code]; ok {
		return code
	}
	if api, ok := fromDomain[code]; ok {
		return api
	}
	return ErrCodeInternal
}
