package scheduler

import "errors"

// Submission errors. The HTTP layer maps ErrJobQueueFull and
// ErrEventQueueFull to 503 and ErrMarketplaceHalted to 409.
var (
	ErrSchedulerNotRunning = errors.New("orchestrator is not running")
	ErrJobQueueFull        = errors.New("marketplace job queue is full")
	ErrEventQueueFull      = errors.New("marketplace webhook queue is full")
	ErrMarketplaceHalted   = errors.New("marketplace halted until re-authenticated")
)

// Lookup errors
var (
	ErrJobNotFound = errors.New("sync job not found")
	ErrJobFinished = errors.New("sync job already finished")
)

// ErrInvalidConfig wraps orchestrator configuration problems
var ErrInvalidConfig = errors.New("invalid orchestrator configuration")
