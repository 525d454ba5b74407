package store

import (
    "context"
    "sort"
    "strings"
    "sync"
    "time"

    "github.com/google/uuid"

    "freightquote/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
    mu       sync.Mutex
    batches  map[string]model.Batch              // id -> batch
    batchTen map[string][]string                 // tenant -> batch ids (insertion order)
    results  map[string][]model.ProcessingResult // batchId -> results
    settings map[string]model.PricingSettings    // tenant -> settings
    margins  map[string]model.CustomerMargin     // id -> margin
    marginTen map[string][]string                // tenant -> margin ids
    subs     map[string][]model.Subscription     // tenant -> subscriptions
    // Webhook queue state
    deliveries map[string]*memDelivery // id -> delivery state
    deliveriesByTenant map[string][]string
}

func NewMemory() *Memory {
    return &Memory{
        batches:  map[string]model.Batch{},
        batchTen: map[string][]string{},
        results:  map[string][]model.ProcessingResult{},
        settings: map[string]model.PricingSettings{},
        margins:  map[string]model.CustomerMargin{},
        marginTen: map[string][]string{},
        subs:     map[string][]model.Subscription{},
        deliveries: map[string]*memDelivery{},
        deliveriesByTenant: map[string][]string{},
    }
}

// memDelivery augments WebhookDelivery with scheduling/metrics state
type memDelivery struct {
    WebhookDelivery
    NextAttemptAt time.Time
    LastError     string
    ResponseCode  int
    LatencyMs     int
    DeliveredAt   *time.Time
}

func (m *Memory) CreateBatch(ctx context.Context, tenantID, name, customer string, totalShipments int) (model.Batch, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    b := model.Batch{
        ID:       uuid.New().String(),
        TenantID: tenantID,
        Name:     name,
        Customer: customer,
        Status:   model.StatusProcessing,
        Stats:    model.BatchStats{TotalShipments: totalShipments},
        CreatedAt: time.Now().UTC().Format(time.RFC3339),
    }
    m.batches[b.ID] = b
    m.batchTen[tenantID] = append(m.batchTen[tenantID], b.ID)
    return b, nil
}

func (m *Memory) GetBatch(ctx context.Context, tenantID, id string) (model.Batch, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    b, ok := m.batches[id]
    if !ok || b.TenantID != tenantID { return model.Batch{}, ErrNotFound }
    return b, nil
}

func (m *Memory) ListBatches(ctx context.Context, tenantID, cursor string, limit int) ([]model.Batch, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    ids := m.batchTen[tenantID]
    // newest first
    start := 0
    ordered := make([]string, len(ids))
    for i, id := range ids { ordered[len(ids)-1-i] = id }
    if cursor != "" {
        for i, id := range ordered {
            if id == cursor { start = i + 1; break }
        }
    }
    if limit <= 0 || limit > 500 { limit = 100 }
    out := []model.Batch{}
    last := ""
    for _, id := range ordered[start:] {
        out = append(out, m.batches[id])
        last = id
        if len(out) == limit { break }
    }
    next := ""
    if len(out) == limit && len(out) < len(ordered)-start { next = last }
    return out, next, nil
}

func (m *Memory) FinalizeBatch(ctx context.Context, tenantID, id, status string, stats model.BatchStats) (model.Batch, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    b, ok := m.batches[id]
    if !ok || b.TenantID != tenantID { return model.Batch{}, ErrNotFound }
    b.Status = status
    b.Stats = stats
    b.CompletedAt = time.Now().UTC().Format(time.RFC3339)
    m.batches[id] = b
    return b, nil
}

func (m *Memory) SaveResult(ctx context.Context, tenantID string, res model.ProcessingResult) error {
    m.mu.Lock(); defer m.mu.Unlock()
    rs := m.results[res.BatchID]
    for i, r := range rs {
        if r.ID == res.ID { rs[i] = res; return nil }
    }
    m.results[res.BatchID] = append(rs, res)
    return nil
}

func (m *Memory) ListResults(ctx context.Context, tenantID, batchID string) ([]model.ProcessingResult, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    b, ok := m.batches[batchID]
    if !ok || b.TenantID != tenantID { return nil, ErrNotFound }
    out := make([]model.ProcessingResult, len(m.results[batchID]))
    copy(out, m.results[batchID])
    return out, nil
}

func (m *Memory) GetPricingSettings(ctx context.Context, tenantID string) (model.PricingSettings, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if s, ok := m.settings[tenantID]; ok { return s, nil }
    return DefaultPricingSettings(), nil
}

func (m *Memory) SavePricingSettings(ctx context.Context, tenantID string, s model.PricingSettings) error {
    m.mu.Lock(); defer m.mu.Unlock()
    m.settings[tenantID] = s
    return nil
}

func (m *Memory) UpsertCustomerMargin(ctx context.Context, tenantID string, cm model.CustomerMargin) (model.CustomerMargin, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    cm.TenantID = tenantID
    // replace an existing row for the same customer+carrier
    for _, id := range m.marginTen[tenantID] {
        ex := m.margins[id]
        if strings.EqualFold(ex.CustomerName, cm.CustomerName) && ex.CarrierCode == cm.CarrierCode && ex.CarrierName == cm.CarrierName {
            cm.ID = ex.ID
            m.margins[ex.ID] = cm
            return cm, nil
        }
    }
    cm.ID = uuid.New().String()
    m.margins[cm.ID] = cm
    m.marginTen[tenantID] = append(m.marginTen[tenantID], cm.ID)
    return cm, nil
}

func (m *Memory) ListCustomerMargins(ctx context.Context, tenantID, customerName string) ([]model.CustomerMargin, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []model.CustomerMargin{}
    for _, id := range m.marginTen[tenantID] {
        cm := m.margins[id]
        if customerName != "" && !strings.EqualFold(cm.CustomerName, customerName) { continue }
        out = append(out, cm)
    }
    sort.Slice(out, func(i, j int) bool {
        if out[i].CustomerName != out[j].CustomerName { return out[i].CustomerName < out[j].CustomerName }
        return out[i].CarrierName < out[j].CarrierName
    })
    return out, nil
}

func (m *Memory) DeleteCustomerMargin(ctx context.Context, tenantID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    cm, ok := m.margins[id]
    if !ok || cm.TenantID != tenantID { return ErrNotFound }
    delete(m.margins, id)
    ids := m.marginTen[tenantID]
    for i, v := range ids {
        if v == id { m.marginTen[tenantID] = append(ids[:i], ids[i+1:]...); break }
    }
    return nil
}

// LookupMargin prefers an exact carrier-code match, then a carrier-name
// match, then a customer-wide default row (no carrier set).
func (m *Memory) LookupMargin(ctx context.Context, tenantID, customerName, carrierName, carrierCode string) (float64, bool, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    var nameHit, defaultHit *model.CustomerMargin
    for _, id := range m.marginTen[tenantID] {
        cm := m.margins[id]
        if !strings.EqualFold(cm.CustomerName, customerName) { continue }
        if carrierCode != "" && cm.CarrierCode == carrierCode {
            return cm.MarginPercent, true, nil
        }
        if carrierName != "" && strings.EqualFold(cm.CarrierName, carrierName) {
            v := cm
            nameHit = &v
        }
        if cm.CarrierCode == "" && cm.CarrierName == "" {
            v := cm
            defaultHit = &v
        }
    }
    if nameHit != nil { return nameHit.MarginPercent, true, nil }
    if defaultHit != nil { return defaultHit.MarginPercent, true, nil }
    return 0, false, nil
}

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    sub := model.Subscription{ID: uuid.New().String(), TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}
    m.subs[req.TenantID] = append(m.subs[req.TenantID], sub)
    return sub, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []model.Subscription{}
    for _, s := range m.subs[tenantID] {
        for _, ev := range s.Events {
            if ev == eventType { out = append(out, s); break }
        }
    }
    return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    subs := m.subs[tenantID]
    start := 0
    if cursor != "" {
        for i, s := range subs {
            if s.ID == cursor { start = i + 1; break }
        }
    }
    if limit <= 0 || limit > 500 { limit = 100 }
    out := []model.Subscription{}
    last := ""
    for _, s := range subs[start:] {
        out = append(out, s)
        last = s.ID
        if len(out) == limit { break }
    }
    next := ""
    if len(out) == limit && start+len(out) < len(subs) { next = last }
    return out, next, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, tenantID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    subs := m.subs[tenantID]
    for i, s := range subs {
        if s.ID == id {
            m.subs[tenantID] = append(subs[:i], subs[i+1:]...)
            return nil
        }
    }
    return ErrNotFound
}

func (m *Memory) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    id := uuid.New().String()
    m.deliveries[id] = &memDelivery{
        WebhookDelivery: WebhookDelivery{
            ID: id, TenantID: tenantID, SubscriptionID: subscriptionID,
            EventType: eventType, URL: url, Secret: secret, Payload: payload,
            Status: "pending",
        },
        NextAttemptAt: time.Now(),
    }
    m.deliveriesByTenant[tenantID] = append(m.deliveriesByTenant[tenantID], id)
    return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []WebhookDelivery{}
    now := time.Now()
    for _, d := range m.deliveries {
        if (d.Status == "pending" || d.Status == "retry") && !d.NextAttemptAt.After(now) {
            out = append(out, d.WebhookDelivery)
            if len(out) == limit { break }
        }
    }
    return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d, ok := m.deliveries[id]
    if !ok { return ErrNotFound }
    d.ResponseCode = responseCode
    d.LatencyMs = latencyMs
    if success {
        d.Status = "delivered"
        now := time.Now()
        d.DeliveredAt = &now
        return nil
    }
    d.Attempts++
    d.Status = "retry"
    d.LastError = lastError
    if nextAttemptAt != nil { d.NextAttemptAt = *nextAttemptAt }
    return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d, ok := m.deliveries[id]
    if !ok { return ErrNotFound }
    d.Status = "failed"
    d.LastError = lastError
    d.ResponseCode = responseCode
    d.LatencyMs = latencyMs
    return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    ids := m.deliveriesByTenant[tenantID]
    start := 0
    if cursor != "" {
        for i, id := range ids {
            if id == cursor { start = i + 1; break }
        }
    }
    if limit <= 0 || limit > 500 { limit = 100 }
    out := []map[string]any{}
    last := ""
    for _, id := range ids[start:] {
        d := m.deliveries[id]
        if status != "" && d.Status != status { continue }
        rec := map[string]any{"id": d.ID, "eventType": d.EventType, "status": d.Status, "attempts": d.Attempts, "url": d.URL}
        if d.LastError != "" { rec["lastError"] = d.LastError }
        out = append(out, rec)
        last = id
        if len(out) == limit { break }
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}

func (m *Memory) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d, ok := m.deliveries[id]
    if !ok || d.TenantID != tenantID { return ErrNotFound }
    d.Status = "pending"
    d.NextAttemptAt = time.Now()
    return nil
}
