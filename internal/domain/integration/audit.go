package integration

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// AuditOutcome is the outcome of one audited sync attempt
type AuditOutcome string

const (
	AuditOutcomeSuccess  AuditOutcome = "success"
	AuditOutcomeFailure  AuditOutcome = "failure"
	AuditOutcomeSkipped  AuditOutcome = "skipped"
	AuditOutcomeConflict AuditOutcome = "conflict"
	AuditOutcomeRejected AuditOutcome = "rejected"
)

// IsValid returns true if the outcome is valid
func (o AuditOutcome) IsValid() bool {
	switch o {
	case AuditOutcomeSuccess, AuditOutcomeFailure, AuditOutcomeSkipped,
		AuditOutcomeConflict, AuditOutcomeRejected:
		return true
	}
	return false
}

// AuditRecord is an append-only record of a sync attempt. It has no update
// path: once appended it is never mutated.
type AuditRecord struct {
	ID            uuid.UUID
	Timestamp     time.Time
	Marketplace   MarketplaceCode
	Operation     string
	EntityType    string
	EntityID      string
	Outcome       AuditOutcome
	ErrorKind     ErrorKind
	ErrorDetail   string
	PayloadDigest string
	JobID         *uuid.UUID
	DurationMs    int64
}

// NewAuditRecord creates an audit record. The error, if any, is classified
// and its text kept as detail.
func NewAuditRecord(marketplace MarketplaceCode, operation string, outcome AuditOutcome, err error) *AuditRecord {
	r := &AuditRecord{
		ID:          uuid.New(),
		Timestamp:   time.Now().UTC(),
		Marketplace: marketplace,
		Operation:   operation,
		Outcome:     outcome,
	}
	if err != nil {
		r.ErrorKind = Classify(err)
		r.ErrorDetail = err.Error()
	}
	return r
}

// PayloadDigest returns the hex sha256 of a payload, empty for no payload
func PayloadDigest(payload []byte) string {
	if len(payload) == 0 {
		return ""
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// AuditFilter selects audit records
type AuditFilter struct {
	Marketplace MarketplaceCode
	Outcome     AuditOutcome
	Operation   string
	EntityID    string
	JobID       *uuid.UUID
	Since       *time.Time
	Until       *time.Time
	Limit       int
}

// AuditStats aggregates audit records of one marketplace
type AuditStats struct {
	Marketplace   MarketplaceCode
	Total         int64
	Success       int64
	Failure       int64
	Skipped       int64
	Conflict      int64
	Rejected      int64
	LastSuccessAt *time.Time
	LastFailureAt *time.Time
}

// SuccessRate returns success / (success + failure), 0 with no attempts
func (s AuditStats) SuccessRate() float64 {
	attempts := s.Success + s.Failure
	if attempts == 0 {
		return 0
	}
	return float64(s.Success) / float64(attempts)
}

// AuditRepository persists audit records. It deliberately has no update method.
type AuditRepository interface {
	// Append stores a record
	Append(ctx context.Context, record *AuditRecord) error

	// FindRecent returns records matching the filter, newest first
	FindRecent(ctx context.Context, filter AuditFilter) ([]AuditRecord, error)

	// Stats aggregates records per marketplace since the given time
	Stats(ctx context.Context, since time.Time) ([]AuditStats, error)

	// FindBefore returns up to limit records older than cutoff, oldest first
	FindBefore(ctx context.Context, cutoff time.Time, limit int) ([]AuditRecord, error)

	// DeleteByIDs removes archived records
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error)
}
