package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"freightquote/internal/model"
	"freightquote/internal/store"
)

// Event types published over webhooks.
const (
	EventBatchStarted   = "batch.started"
	EventBatchCompleted = "batch.completed"
	EventShipmentFailed = "shipment.failed"
)

type Publisher struct {
	Store store.Store
}

func NewPublisher(s store.Store) *Publisher {
	return &Publisher{Store: s}
}

// Emit enqueues the event for every subscription matching the tenant and event type.
func (p *Publisher) Emit(ctx context.Context, tenantID, eventType string, data any) {
	subs, err := p.Store.GetSubscriptionsForEvent(ctx, tenantID, eventType)
	if err != nil || len(subs) == 0 {
		return
	}
	payload := map[string]any{
		"id":       fmt.Sprintf("evt_%d", time.Now().UnixNano()),
		"type":     eventType,
		"tenantId": tenantID,
		"ts":       time.Now().UTC().Format(time.RFC3339),
		"data":     data,
	}
	body, _ := json.Marshal(payload)
	for _, s := range subs {
		_, _ = p.Store.EnqueueWebhook(ctx, tenantID, s.ID, eventType, s.URL, s.Secret, body)
	}
}

// BatchStarted announces a new quoting batch.
func (p *Publisher) BatchStarted(ctx context.Context, tenantID string, b model.Batch) {
	p.Emit(ctx, tenantID, EventBatchStarted, map[string]any{
		"batchId":       b.ID,
		"customer":      b.Customer,
		"shipmentCount": b.Stats.TotalShipments,
	})
}

// BatchCompleted announces a finished batch with its aggregate stats.
func (p *Publisher) BatchCompleted(ctx context.Context, tenantID string, b model.Batch, stats model.BatchStats) {
	p.Emit(ctx, tenantID, EventBatchCompleted, map[string]any{
		"batchId":  b.ID,
		"customer": b.Customer,
		"stats":    stats,
	})
}

// ShipmentFailed announces a shipment that ended in an error status.
func (p *Publisher) ShipmentFailed(ctx context.Context, tenantID, batchID string, res model.ProcessingResult) {
	p.Emit(ctx, tenantID, EventShipmentFailed, map[string]any{
		"batchId":    batchID,
		"shipmentId": res.ID,
		"rfqNumber":  res.Shipment.RFQNumber,
		"error":      res.Error,
	})
}
