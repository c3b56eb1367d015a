package integration

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/meschain/marketsync/internal/domain/integration"
	"github.com/meschain/marketsync/internal/domain/shared"
	"github.com/meschain/marketsync/internal/infrastructure/logger"
)

// IngestResult is the outcome of one webhook delivery
type IngestResult struct {
	Accepted   bool
	Duplicate  bool
	DeliveryID string
	EventType  integration.WebhookEventType
}

// WebhookIngestor validates inbound notifications and hands them to the event
// queue. It never processes an event inline.
type WebhookIngestor struct {
	adapters AdapterResolver
	dedupe   shared.IdempotencyStore
	queue    EventQueue
	audit    AuditRecorder
	ttl      time.Duration
	logger   *zap.Logger
}

// NewWebhookIngestor creates a new WebhookIngestor. A nil dedupe store
// disables de-duplication.
func NewWebhookIngestor(
	adapters AdapterResolver,
	dedupe shared.IdempotencyStore,
	queue EventQueue,
	audit AuditRecorder,
	cfg shared.IdempotencyConfig,
	log *zap.Logger,
) *WebhookIngestor {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = shared.DefaultIdempotencyConfig().TTL
	}
	if !cfg.Enabled {
		dedupe = nil
	}
	return &WebhookIngestor{
		adapters: adapters,
		dedupe:   dedupe,
		queue:    queue,
		audit:    audit,
		ttl:      cfg.TTL,
		logger:   log,
	}
}

// Ingest validates one delivery and enqueues it. A signature failure returns
// ErrSecurity and nothing is enqueued; a redelivery is acknowledged as a
// duplicate. A full queue is returned so the marketplace redelivers.
func (w *WebhookIngestor) Ingest(ctx context.Context, marketplace integration.MarketplaceCode, headers http.Header, body []byte) (*IngestResult, error) {
	log := logger.FromContext(ctx).With(zap.String("marketplace", string(marketplace)))

	adapter, err := w.adapters.Get(marketplace)
	if err != nil {
		return nil, err
	}

	event, err := adapter.ValidateWebhook(headers, body)
	if err != nil {
		log.Warn("Webhook rejected", zap.Error(err))
		w.recordAudit(ctx, AuditEntry{
			Marketplace: marketplace,
			Operation:   OpWebhookReceive,
			EntityType:  EntityWebhook,
			Outcome:     integration.AuditOutcomeRejected,
			Err:         err,
			Payload:     body,
		})
		return nil, err
	}
	if event.Marketplace == "" {
		event.Marketplace = marketplace
	}
	if event.DeliveryID == "" {
		event.DeliveryID = integration.PayloadDigest(body)
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now().UTC()
	}
	result := &IngestResult{DeliveryID: event.DeliveryID, EventType: event.Type}

	key := fmt.Sprintf("%s:%s", marketplace, event.DeliveryID)
	if w.dedupe != nil {
		fresh, err := w.dedupe.MarkProcessed(ctx, key, w.ttl)
		if err != nil {
			// an unavailable store must not drop deliveries; processing is idempotent
			log.Warn("Webhook de-duplication unavailable", zap.Error(err))
		} else if !fresh {
			log.Debug("Duplicate webhook delivery", zap.String("delivery_id", event.DeliveryID))
			result.Accepted = true
			result.Duplicate = true
			return result, nil
		}
	}

	if err := w.queue.SubmitEvent(event); err != nil {
		if w.dedupe != nil {
			if ferr := w.dedupe.Forget(context.WithoutCancel(ctx), key); ferr != nil {
				log.Error("Failed to release webhook delivery key", zap.Error(ferr))
			}
		}
		log.Warn("Webhook not enqueued", zap.String("delivery_id", event.DeliveryID), zap.Error(err))
		return nil, err
	}

	w.recordAudit(ctx, AuditEntry{
		Marketplace: marketplace,
		Operation:   OpWebhookReceive,
		EntityType:  EntityWebhook,
		EntityID:    event.DeliveryID,
		Outcome:     integration.AuditOutcomeSuccess,
		Detail:      string(event.Type),
		Payload:     body,
	})
	result.Accepted = true
	return result, nil
}

func (w *WebhookIngestor) recordAudit(ctx context.Context, entry AuditEntry) {
	if w.audit != nil {
		w.audit.Record(ctx, entry)
	}
}
