package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meschain/marketsync/internal/domain/integration"
)

// AuditSource is the part of the audit repository the archiver drains
type AuditSource interface {
	FindBefore(ctx context.Context, cutoff time.Time, limit int) ([]integration.AuditRecord, error)
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error)
}

// ArchiverConfig configures the audit archiver
type ArchiverConfig struct {
	// Interval between archive runs
	Interval time.Duration
	// Retention is how long records stay in the database
	Retention time.Duration
	// BatchSize is the number of records per archive object
	BatchSize int
	// Prefix is the object key prefix
	Prefix string
}

// DefaultArchiverConfig returns the default archiver configuration
func DefaultArchiverConfig() ArchiverConfig {
	return ArchiverConfig{
		Interval:  24 * time.Hour,
		Retention: 90 * 24 * time.Hour,
		BatchSize: 5000,
		Prefix:    "audit",
	}
}

// ArchiveResult summarizes one archive run
type ArchiveResult struct {
	Objects  int
	Archived int64
	Keys     []string
}

// archivedRecord is the JSON line written per audit record
type archivedRecord struct {
	ID            string  `json:"id"`
	Timestamp     string  `json:"timestamp"`
	Marketplace   string  `json:"marketplace"`
	Operation     string  `json:"operation"`
	EntityType    string  `json:"entity_type,omitempty"`
	EntityID      string  `json:"entity_id,omitempty"`
	Outcome       string  `json:"outcome"`
	ErrorKind     string  `json:"error_kind,omitempty"`
	ErrorDetail   string  `json:"error_detail,omitempty"`
	PayloadDigest string  `json:"payload_digest,omitempty"`
	JobID         *string `json:"job_id,omitempty"`
	DurationMs    int64   `json:"duration_ms"`
}

func newArchivedRecord(r *integration.AuditRecord) archivedRecord {
	out := archivedRecord{
		ID:            r.ID.String(),
		Timestamp:     r.Timestamp.UTC().Format(time.RFC3339Nano),
		Marketplace:   string(r.Marketplace),
		Operation:     r.Operation,
		EntityType:    r.EntityType,
		EntityID:      r.EntityID,
		Outcome:       string(r.Outcome),
		ErrorKind:     string(r.ErrorKind),
		ErrorDetail:   r.ErrorDetail,
		PayloadDigest: r.PayloadDigest,
		DurationMs:    r.DurationMs,
	}
	if r.JobID != nil {
		id := r.JobID.String()
		out.JobID = &id
	}
	return out
}

// AuditArchiver moves audit records older than the retention window to
// object storage as JSON lines, then deletes them from the database.
// A batch is only deleted after its object was written.
type AuditArchiver struct {
	source AuditSource
	store  ObjectStore
	config ArchiverConfig
	logger *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
}

// NewAuditArchiver creates an archiver
func NewAuditArchiver(source AuditSource, store ObjectStore, config ArchiverConfig, logger *zap.Logger) *AuditArchiver {
	defaults := DefaultArchiverConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.Retention <= 0 {
		config.Retention = defaults.Retention
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.Prefix == "" {
		config.Prefix = defaults.Prefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditArchiver{
		source: source,
		store:  store,
		config: config,
		logger: logger.With(zap.String("component", "audit_archiver")),
		now:    time.Now,
	}
}

// RunOnce archives every record older than the retention window
func (a *AuditArchiver) RunOnce(ctx context.Context) (ArchiveResult, error) {
	var result ArchiveResult
	cutoff := a.now().UTC().Add(-a.config.Retention)

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		batch, err := a.source.FindBefore(ctx, cutoff, a.config.BatchSize)
		if err != nil {
			return result, fmt.Errorf("load audit batch: %w", err)
		}
		if len(batch) == 0 {
			return result, nil
		}

		obj, err := a.encode(batch)
		if err != nil {
			return result, err
		}
		key := obj.Key
		if err := a.store.Put(ctx, obj); err != nil {
			return result, fmt.Errorf("write archive %s: %w", key, err)
		}

		ids := make([]uuid.UUID, len(batch))
		for i := range batch {
			ids[i] = batch[i].ID
		}
		deleted, err := a.source.DeleteByIDs(ctx, ids)
		if err != nil {
			return result, fmt.Errorf("delete archived records: %w", err)
		}

		result.Objects++
		result.Archived += deleted
		result.Keys = append(result.Keys, key)
		a.logger.Info("Audit batch archived",
			zap.String("key", key),
			zap.Int("records", len(batch)),
			zap.Int64("deleted", deleted),
		)

		if len(batch) < a.config.BatchSize {
			return result, nil
		}
	}
}

// encode renders a batch as JSON lines. The key is derived from the first
// record so re-running a failed batch overwrites the same object.
func (a *AuditArchiver) encode(batch []integration.AuditRecord) (ArchiveObject, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	obj := ArchiveObject{Records: len(batch)}
	for i := range batch {
		if err := enc.Encode(newArchivedRecord(&batch[i])); err != nil {
			return ArchiveObject{}, fmt.Errorf("encode audit record %s: %w", batch[i].ID, err)
		}
		ts := batch[i].Timestamp.UTC()
		if obj.From.IsZero() || ts.Before(obj.From) {
			obj.From = ts
		}
		if ts.After(obj.To) {
			obj.To = ts
		}
	}
	first := batch[0]
	ts := first.Timestamp.UTC()
	obj.Key = fmt.Sprintf("%s/%s/%s-%s.jsonl", a.config.Prefix, ts.Format("2006/01/02"), ts.Format("150405"), first.ID)
	obj.Body = buf.Bytes()
	return obj, nil
}

// Start runs the archiver periodically until Stop is called
func (a *AuditArchiver) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.isRunning {
		return nil
	}
	a.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.wg.Add(1)
	go a.loop(ctx)

	a.logger.Info("Audit archiver started",
		zap.Duration("interval", a.config.Interval),
		zap.Duration("retention", a.config.Retention),
	)
	return nil
}

// Stop stops the periodic loop and waits for a running batch to finish
func (a *AuditArchiver) Stop() {
	a.mu.Lock()
	if !a.isRunning {
		a.mu.Unlock()
		return
	}
	a.isRunning = false
	cancel := a.cancel
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	a.wg.Wait()
	a.logger.Info("Audit archiver stopped")
}

func (a *AuditArchiver) loop(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("Audit archive run failed", zap.Error(err))
			}
		}
	}
}
