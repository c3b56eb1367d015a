package integration

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ---------------------------------------------------------------------------
// Sync error taxonomy
// ---------------------------------------------------------------------------

var (
	// Marketplace resolution errors
	ErrMarketplaceUnknown       = errors.New("integration: unknown marketplace")
	ErrMarketplaceNotConfigured = errors.New("integration: marketplace not configured")

	// ErrAuth means credentials are invalid or expired. Halts the marketplace
	// until it is re-authenticated.
	ErrAuth = errors.New("integration: marketplace authentication failed")
	// ErrValidation is a non-retryable, per-item rejection (missing required
	// remote attribute, category mismatch, malformed value).
	ErrValidation = errors.New("integration: marketplace validation failed")
	// ErrRateLimited is returned when the marketplace answered 429.
	ErrRateLimited = errors.New("integration: rate limited by marketplace")
	// ErrRateLimitTimeout is returned when no local token became available in time.
	ErrRateLimitTimeout = errors.New("integration: rate limit acquire timed out")
	// ErrTransientNetwork covers 5xx answers, timeouts and transport failures.
	ErrTransientNetwork = errors.New("integration: transient network error")
	// ErrConflict means the remote side holds a newer, independently changed value.
	ErrConflict = errors.New("integration: remote value changed independently")
	// ErrSecurity is a webhook signature failure. Rejected, never retried.
	ErrSecurity = errors.New("integration: webhook signature verification failed")
	// ErrMappingUnresolved parks a product until a manual mapping exists.
	ErrMappingUnresolved = errors.New("integration: category mapping unresolved")
	// ErrNotFound means the remote entity does not exist.
	ErrNotFound = errors.New("integration: remote entity not found")
	// ErrInvalidResponse means the marketplace answered with an unparsable body.
	ErrInvalidResponse = errors.New("integration: invalid marketplace response")

	// Entity errors
	ErrInvalidProduct         = errors.New("integration: invalid product")
	ErrInvalidOrder           = errors.New("integration: invalid order")
	ErrInvalidOrderTransition = errors.New("integration: invalid order status transition")
	ErrInvalidCategoryMapping = errors.New("integration: invalid category mapping")
	ErrInvalidJobType         = errors.New("integration: invalid sync job type")
	ErrInvalidJobTransition   = errors.New("integration: invalid sync job state transition")
	ErrLinkNotFound           = errors.New("integration: marketplace link not found")
	ErrLinkDisabled           = errors.New("integration: marketplace link disabled")
)

// ErrorKind classifies an error for retry and halting decisions
type ErrorKind string

const (
	ErrorKindNone              ErrorKind = ""
	ErrorKindAuth              ErrorKind = "auth"
	ErrorKindValidation        ErrorKind = "validation"
	ErrorKindRateLimit         ErrorKind = "rate_limit"
	ErrorKindRateLimitTimeout  ErrorKind = "rate_limit_timeout"
	ErrorKindTransientNetwork  ErrorKind = "transient_network"
	ErrorKindConflict          ErrorKind = "conflict"
	ErrorKindSecurity          ErrorKind = "security"
	ErrorKindMappingUnresolved ErrorKind = "mapping_unresolved"
	ErrorKindNotFound          ErrorKind = "not_found"
	ErrorKindCancelled         ErrorKind = "cancelled"
	ErrorKindInternal          ErrorKind = "internal"
)

// Classify maps an error onto the sync error taxonomy.
// Order matters: a rate limit timeout is checked before generic deadline errors.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindNone
	case errors.Is(err, ErrAuth):
		return ErrorKindAuth
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidProduct), errors.Is(err, ErrInvalidOrder):
		return ErrorKindValidation
	case errors.Is(err, ErrRateLimitTimeout):
		return ErrorKindRateLimitTimeout
	case errors.Is(err, ErrRateLimited):
		return ErrorKindRateLimit
	case errors.Is(err, ErrTransientNetwork), errors.Is(err, ErrInvalidResponse):
		return ErrorKindTransientNetwork
	case errors.Is(err, ErrConflict):
		return ErrorKindConflict
	case errors.Is(err, ErrSecurity):
		return ErrorKindSecurity
	case errors.Is(err, ErrMappingUnresolved):
		return ErrorKindMappingUnresolved
	case errors.Is(err, ErrNotFound):
		return ErrorKindNotFound
	case errors.Is(err, context.Canceled):
		return ErrorKindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorKindTransientNetwork
	default:
		return ErrorKindInternal
	}
}

// Retryable returns true if an operation failing with this kind may succeed later
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrorKindRateLimit, ErrorKindRateLimitTimeout, ErrorKindTransientNetwork:
		return true
	default:
		return false
	}
}

// HaltsMarketplace returns true if all jobs of the marketplace must stop
func (k ErrorKind) HaltsMarketplace() bool {
	return k == ErrorKindAuth
}

// Parks returns true if an item failing with this kind is left alone until
// its input changes: a validation rejection waits for a product edit, an
// unresolved mapping waits for a mapping.
func (k ErrorKind) Parks() bool {
	return k == ErrorKindValidation || k == ErrorKindMappingUnresolved
}

// ParkingKinds lists the kinds for which Parks is true
func ParkingKinds() []ErrorKind {
	return []ErrorKind{ErrorKindValidation, ErrorKindMappingUnresolved}
}

// AbortsBatch returns true if the remaining items of a batch must not be attempted
func (k ErrorKind) AbortsBatch() bool {
	switch k {
	case ErrorKindAuth, ErrorKindRateLimit, ErrorKindRateLimitTimeout, ErrorKindCancelled:
		return true
	default:
		return false
	}
}

// String returns the string representation of ErrorKind
func (k ErrorKind) String() string {
	if k == ErrorKindNone {
		return "none"
	}
	return string(k)
}

// ---------------------------------------------------------------------------
// RemoteError carries marketplace response details
// ---------------------------------------------------------------------------

// RemoteError describes a failed marketplace call. It wraps one of the
// taxonomy sentinels so errors.Is keeps working.
type RemoteError struct {
	Marketplace MarketplaceCode
	Operation   string
	StatusCode  int
	Code        string
	Message     string
	RetryAfter  time.Duration
	Err         error
}

// Error implements the error interface
func (e *RemoteError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Marketplace, e.Operation, e.Err)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Code != "" {
		msg += " [" + e.Code + "]"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Unwrap returns the taxonomy sentinel
func (e *RemoteError) Unwrap() error {
	return e.Err
}

// RetryAfterHint returns the server-provided retry delay, if any
func RetryAfterHint(err error) time.Duration {
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		return remoteErr.RetryAfter
	}
	return 0
}

// ---------------------------------------------------------------------------
// Result is an explicit typed outcome for per-item operations
// ---------------------------------------------------------------------------

// Result holds the outcome of one item of a batch: a value, a value that
// needed no work (skipped) or a classified error. Per-item steps return a
// Result and SyncResult.Tally counts it, so the batch loop tells retryable
// from terminal failures without inspecting error types.
type Result[T any] struct {
	value   T
	err     error
	kind    ErrorKind
	skipped bool
}

// Ok returns a successful result
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Skip returns a successful result for an item that needed no work
func Skip[T any](v T) Result[T] {
	return Result[T]{value: v, skipped: true}
}

// Fail returns a failed result classified with Classify
func Fail[T any](err error) Result[T] {
	return Result[T]{err: err, kind: Classify(err)}
}

// IsOk returns true if the result carries no error
func (r Result[T]) IsOk() bool {
	return r.err == nil
}

// IsSkipped returns true for a successful result that did no work
func (r Result[T]) IsSkipped() bool {
	return r.err == nil && r.skipped
}

// Value returns the value (zero value on failure)
func (r Result[T]) Value() T {
	return r.value
}

// Err returns the error (nil on success)
func (r Result[T]) Err() error {
	return r.err
}

// Kind returns the error kind (ErrorKindNone on success)
func (r Result[T]) Kind() ErrorKind {
	return r.kind
}

// Get returns value and error in the conventional Go form
func (r Result[T]) Get() (T, error) {
	return r.value, r.err
}
