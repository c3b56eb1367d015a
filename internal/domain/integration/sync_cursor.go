package integration

import (
	"context"
	"time"
)

// SyncCursor is the resume position of incremental polls for one
// (marketplace, job type)
type SyncCursor struct {
	Marketplace MarketplaceCode
	JobType     JobType
	// Cursor is the adapter cursor to resume from
	Cursor string
	// Watermark is the newest remote modification time seen
	Watermark     *time.Time
	LastAttemptAt *time.Time
	LastSuccessAt *time.Time
	LastError     string
}

// NewSyncCursor creates an empty cursor, which starts a full poll
func NewSyncCursor(marketplace MarketplaceCode, jobType JobType) *SyncCursor {
	return &SyncCursor{Marketplace: marketplace, JobType: jobType}
}

// Observe raises the watermark to t
func (c *SyncCursor) Observe(t time.Time) {
	if t.IsZero() {
		return
	}
	if c.Watermark == nil || t.After(*c.Watermark) {
		w := t.UTC()
		c.Watermark = &w
	}
}

// Advance records a successful poll that stopped at cursor
func (c *SyncCursor) Advance(cursor string) {
	now := time.Now()
	c.Cursor = cursor
	c.LastAttemptAt = &now
	c.LastSuccessAt = &now
	c.LastError = ""
}

// Failed records a failed poll; the cursor is kept
func (c *SyncCursor) Failed(err error) {
	now := time.Now()
	c.LastAttemptAt = &now
	if err != nil {
		c.LastError = err.Error()
	}
}

// ResumeCursor returns the cursor for the next incremental poll once a poll
// drained all pages: the watermark minus overlap, so late writes on the
// marketplace side are seen again
func (c *SyncCursor) ResumeCursor(overlap time.Duration) string {
	if c.Watermark == nil {
		return c.Cursor
	}
	return OrderCursor{Since: c.Watermark.Add(-overlap)}.String()
}

// SyncCursorRepository persists cursors
type SyncCursorRepository interface {
	// Get returns the cursor, or a new empty one when none is stored
	Get(ctx context.Context, marketplace MarketplaceCode, jobType JobType) (*SyncCursor, error)
	// Save upserts the cursor
	Save(ctx context.Context, cursor *SyncCursor) error
}
