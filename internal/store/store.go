package store

import (
    "context"
    "errors"
    "time"

    "freightquote/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
    // Batches
    CreateBatch(ctx context.Context, tenantID, name, customer string, totalShipments int) (model.Batch, error)
    GetBatch(ctx context.Context, tenantID, id string) (model.Batch, error)
    ListBatches(ctx context.Context, tenantID, cursor string, limit int) ([]model.Batch, string, error)
    FinalizeBatch(ctx context.Context, tenantID, id, status string, stats model.BatchStats) (model.Batch, error)

    // Per-shipment results
    SaveResult(ctx context.Context, tenantID string, res model.ProcessingResult) error
    ListResults(ctx context.Context, tenantID, batchID string) ([]model.ProcessingResult, error)

    // Pricing settings (one row per tenant)
    GetPricingSettings(ctx context.Context, tenantID string) (model.PricingSettings, error)
    SavePricingSettings(ctx context.Context, tenantID string, s model.PricingSettings) error

    // Customer margins
    UpsertCustomerMargin(ctx context.Context, tenantID string, m model.CustomerMargin) (model.CustomerMargin, error)
    ListCustomerMargins(ctx context.Context, tenantID, customerName string) ([]model.CustomerMargin, error)
    DeleteCustomerMargin(ctx context.Context, tenantID, id string) error
    LookupMargin(ctx context.Context, tenantID, customerName, carrierName, carrierCode string) (float64, bool, error)

    // Subscriptions
    CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
    GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error)
    ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error)
    DeleteSubscription(ctx context.Context, tenantID, id string) error

    // Webhook deliveries
    EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
    FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
    MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
    FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
    ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error)
    RetryWebhookDelivery(ctx context.Context, tenantID, id string) error
}

var ErrNotFound = errors.New("not found")

// DefaultPricingSettings apply when a tenant has not saved any.
func DefaultPricingSettings() model.PricingSettings {
    return model.PricingSettings{
        MarkupType:               model.MarkupPercentage,
        MarkupValue:              18,
        MinimumProfit:            100,
        FallbackMarkupPercentage: model.DefaultFallbackMarkup,
    }
}

// TenantMargins adapts a Store to the pricing engine's MarginSource for
// one tenant.
type TenantMargins struct {
    Store    Store
    TenantID string
}

func (t TenantMargins) LookupMargin(ctx context.Context, customerName, carrierName, carrierCode string) (float64, bool, error) {
    return t.Store.LookupMargin(ctx, t.TenantID, customerName, carrierName, carrierCode)
}
