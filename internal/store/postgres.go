package store

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"
    "os"
    "path/filepath"
    "sort"
    "strings"
    "time"

    "github.com/google/uuid"
    _ "github.com/jackc/pgx/v5/stdlib"

    "freightquote/internal/model"
)

type Postgres struct {
    db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
    db, err := sql.Open("pgx", dsn)
    if err != nil {
        return nil, err
    }
    if err := db.Ping(); err != nil {
        return nil, err
    }
    return &Postgres{db: db}, nil
}

// Ping reports database connectivity, used by the readiness probe.
func (p *Postgres) Ping(ctx context.Context) error {
    return p.db.PingContext(ctx)
}

// MigrateDir applies every .sql file in dir in name order. Dev helper;
// production schemas are managed externally.
func (p *Postgres) MigrateDir(dir string) error {
    entries, err := os.ReadDir(dir)
    if err != nil { return err }
    names := []string{}
    for _, e := range entries {
        if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") { names = append(names, e.Name()) }
    }
    sort.Strings(names)
    for _, n := range names {
        sqlBytes, err := os.ReadFile(filepath.Join(dir, n))
        if err != nil { return err }
        if _, err := p.db.Exec(string(sqlBytes)); err != nil { return err }
    }
    return nil
}

func (p *Postgres) CreateBatch(ctx context.Context, tenantID, name, customer string, totalShipments int) (model.Batch, error) {
    b := model.Batch{
        ID:       uuid.New().String(),
        TenantID: tenantID,
        Name:     name,
        Customer: customer,
        Status:   model.StatusProcessing,
        Stats:    model.BatchStats{TotalShipments: totalShipments},
        CreatedAt: time.Now().UTC().Format(time.RFC3339),
    }
    _, err := p.db.ExecContext(ctx, `INSERT INTO batches (id, tenant_id, name, customer, status, total_shipments, created_at) VALUES ($1,$2,$3,$4,$5,$6,now())`,
        b.ID, tenantID, nullIfEmpty(name), nullIfEmpty(customer), b.Status, totalShipments)
    if err != nil { return model.Batch{}, err }
    return b, nil
}

func (p *Postgres) GetBatch(ctx context.Context, tenantID, id string) (model.Batch, error) {
    row := p.db.QueryRowContext(ctx, `SELECT id::text, COALESCE(name,''), COALESCE(customer,''), status, total_shipments, success_count, error_count, quote_count, best_price, total_profit, created_at, completed_at
        FROM batches WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    return scanBatch(row, tenantID)
}

func (p *Postgres) ListBatches(ctx context.Context, tenantID, cursor string, limit int) ([]model.Batch, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    var rows *sql.Rows
    var err error
    q := `SELECT id::text, COALESCE(name,''), COALESCE(customer,''), status, total_shipments, success_count, error_count, quote_count, best_price, total_profit, created_at, completed_at FROM batches WHERE tenant_id=$1`
    if cursor != "" {
        rows, err = p.db.QueryContext(ctx, q+` AND id::text < $2 ORDER BY id DESC LIMIT $3`, tenantID, cursor, limit)
    } else {
        rows, err = p.db.QueryContext(ctx, q+` ORDER BY id DESC LIMIT $2`, tenantID, limit)
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []model.Batch{}
    last := ""
    for rows.Next() {
        b, err := scanBatch(rows, tenantID)
        if err != nil { return nil, "", err }
        out = append(out, b)
        last = b.ID
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanBatch(r rowScanner, tenantID string) (model.Batch, error) {
    var b model.Batch
    var created time.Time
    var completed sql.NullTime
    var best sql.NullFloat64
    err := r.Scan(&b.ID, &b.Name, &b.Customer, &b.Status, &b.Stats.TotalShipments, &b.Stats.SuccessCount, &b.Stats.ErrorCount, &b.Stats.QuoteCount, &best, &b.Stats.TotalProfit, &created, &completed)
    if errors.Is(err, sql.ErrNoRows) { return model.Batch{}, ErrNotFound }
    if err != nil { return model.Batch{}, err }
    b.TenantID = tenantID
    if best.Valid { b.Stats.BestPrice = best.Float64 }
    b.CreatedAt = created.UTC().Format(time.RFC3339)
    if completed.Valid { b.CompletedAt = completed.Time.UTC().Format(time.RFC3339) }
    return b, nil
}

func (p *Postgres) FinalizeBatch(ctx context.Context, tenantID, id, status string, stats model.BatchStats) (model.Batch, error) {
    res, err := p.db.ExecContext(ctx, `UPDATE batches SET status=$3, success_count=$4, error_count=$5, quote_count=$6, best_price=$7, total_profit=$8, completed_at=now() WHERE tenant_id=$1 AND id=$2`,
        tenantID, id, status, stats.SuccessCount, stats.ErrorCount, stats.QuoteCount, nullIfZero(stats.BestPrice), stats.TotalProfit)
    if err != nil { return model.Batch{}, err }
    if n, _ := res.RowsAffected(); n == 0 { return model.Batch{}, ErrNotFound }
    return p.GetBatch(ctx, tenantID, id)
}

func (p *Postgres) SaveResult(ctx context.Context, tenantID string, res model.ProcessingResult) error {
    shipment, _ := json.Marshal(res.Shipment)
    quotes, _ := json.Marshal(res.Quotes)
    _, err := p.db.ExecContext(ctx, `INSERT INTO batch_results (id, tenant_id, batch_id, shipment, route, reason, quotes, status, error, processed_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now())
        ON CONFLICT (id) DO UPDATE SET route=EXCLUDED.route, reason=EXCLUDED.reason, quotes=EXCLUDED.quotes, status=EXCLUDED.status, error=EXCLUDED.error, processed_at=now()`,
        res.ID, tenantID, res.BatchID, shipment, nullIfEmpty(res.Route), nullIfEmpty(res.Reason), quotes, res.Status, nullIfEmpty(res.Error))
    return err
}

func (p *Postgres) ListResults(ctx context.Context, tenantID, batchID string) ([]model.ProcessingResult, error) {
    if _, err := p.GetBatch(ctx, tenantID, batchID); err != nil { return nil, err }
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, shipment, COALESCE(route,''), COALESCE(reason,''), quotes, status, COALESCE(error,''), processed_at
        FROM batch_results WHERE tenant_id=$1 AND batch_id=$2 ORDER BY processed_at, id`, tenantID, batchID)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.ProcessingResult{}
    for rows.Next() {
        var r model.ProcessingResult
        var shipment, quotes []byte
        var processed sql.NullTime
        if err := rows.Scan(&r.ID, &shipment, &r.Route, &r.Reason, &quotes, &r.Status, &r.Error, &processed); err != nil { return nil, err }
        r.BatchID = batchID
        _ = json.Unmarshal(shipment, &r.Shipment)
        _ = json.Unmarshal(quotes, &r.Quotes)
        if processed.Valid { r.ProcessedAt = processed.Time.UTC().Format(time.RFC3339) }
        out = append(out, r)
    }
    return out, nil
}

func (p *Postgres) GetPricingSettings(ctx context.Context, tenantID string) (model.PricingSettings, error) {
    var s model.PricingSettings
    err := p.db.QueryRowContext(ctx, `SELECT markup_type, markup_value, minimum_profit, uses_customer_margins, fallback_markup_pct
        FROM pricing_settings WHERE tenant_id=$1`, tenantID).
        Scan(&s.MarkupType, &s.MarkupValue, &s.MinimumProfit, &s.UsesCustomerMargins, &s.FallbackMarkupPercentage)
    if errors.Is(err, sql.ErrNoRows) { return DefaultPricingSettings(), nil }
    if err != nil { return model.PricingSettings{}, err }
    return s, nil
}

func (p *Postgres) SavePricingSettings(ctx context.Context, tenantID string, s model.PricingSettings) error {
    _, err := p.db.ExecContext(ctx, `INSERT INTO pricing_settings (tenant_id, markup_type, markup_value, minimum_profit, uses_customer_margins, fallback_markup_pct, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,now())
        ON CONFLICT (tenant_id) DO UPDATE SET markup_type=EXCLUDED.markup_type, markup_value=EXCLUDED.markup_value, minimum_profit=EXCLUDED.minimum_profit,
            uses_customer_margins=EXCLUDED.uses_customer_margins, fallback_markup_pct=EXCLUDED.fallback_markup_pct, updated_at=now()`,
        tenantID, s.MarkupType, s.MarkupValue, s.MinimumProfit, s.UsesCustomerMargins, s.FallbackMarkupPercentage)
    return err
}

func (p *Postgres) UpsertCustomerMargin(ctx context.Context, tenantID string, m model.CustomerMargin) (model.CustomerMargin, error) {
    m.TenantID = tenantID
    if m.ID == "" { m.ID = uuid.New().String() }
    _, err := p.db.ExecContext(ctx, `INSERT INTO customer_margins (id, tenant_id, customer_name, carrier_name, carrier_code, margin_pct)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (tenant_id, lower(customer_name), COALESCE(carrier_code,''), COALESCE(carrier_name,'')) DO UPDATE SET margin_pct=EXCLUDED.margin_pct`,
        m.ID, tenantID, m.CustomerName, nullIfEmpty(m.CarrierName), nullIfEmpty(m.CarrierCode), m.MarginPercent)
    if err != nil { return model.CustomerMargin{}, err }
    return m, nil
}

func (p *Postgres) ListCustomerMargins(ctx context.Context, tenantID, customerName string) ([]model.CustomerMargin, error) {
    q := `SELECT id::text, customer_name, COALESCE(carrier_name,''), COALESCE(carrier_code,''), margin_pct FROM customer_margins WHERE tenant_id=$1`
    var rows *sql.Rows
    var err error
    if customerName != "" {
        rows, err = p.db.QueryContext(ctx, q+` AND lower(customer_name)=lower($2) ORDER BY customer_name, carrier_name`, tenantID, customerName)
    } else {
        rows, err = p.db.QueryContext(ctx, q+` ORDER BY customer_name, carrier_name`, tenantID)
    }
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.CustomerMargin{}
    for rows.Next() {
        var m model.CustomerMargin
        if err := rows.Scan(&m.ID, &m.CustomerName, &m.CarrierName, &m.CarrierCode, &m.MarginPercent); err != nil { return nil, err }
        m.TenantID = tenantID
        out = append(out, m)
    }
    return out, nil
}

func (p *Postgres) DeleteCustomerMargin(ctx context.Context, tenantID, id string) error {
    res, err := p.db.ExecContext(ctx, `DELETE FROM customer_margins WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

func (p *Postgres) LookupMargin(ctx context.Context, tenantID, customerName, carrierName, carrierCode string) (float64, bool, error) {
    // Exact carrier-code match wins, then carrier-name, then the
    // customer-wide default row.
    var pct float64
    err := p.db.QueryRowContext(ctx, `SELECT margin_pct FROM customer_margins
        WHERE tenant_id=$1 AND lower(customer_name)=lower($2)
        ORDER BY (carrier_code=$3 AND $3<>'') DESC, (lower(carrier_name)=lower($4) AND $4<>'') DESC, (carrier_code IS NULL AND carrier_name IS NULL) DESC
        LIMIT 1`, tenantID, customerName, carrierCode, carrierName).Scan(&pct)
    if errors.Is(err, sql.ErrNoRows) { return 0, false, nil }
    if err != nil { return 0, false, err }
    return pct, true, nil
}

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
    id := uuid.New().String()
    ev, _ := json.Marshal(req.Events)
    _, err := p.db.ExecContext(ctx, `INSERT INTO subscriptions (id, tenant_id, url, events, secret) VALUES ($1,$2,$3,$4,$5)`, id, req.TenantID, req.URL, ev, req.Secret)
    if err != nil { return model.Subscription{}, err }
    return model.Subscription{ID: id, TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, secret, events FROM subscriptions WHERE tenant_id=$1 AND events @> $2::jsonb`, tenantID, `["`+eventType+`"]`)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.Subscription{}
    for rows.Next() {
        var s model.Subscription
        var ev []byte
        if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &ev); err != nil { return nil, err }
        s.TenantID = tenantID
        _ = json.Unmarshal(ev, &s.Events)
        out = append(out, s)
    }
    return out, nil
}

func (p *Postgres) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    var rows *sql.Rows
    var err error
    if cursor != "" {
        rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, secret, events FROM subscriptions WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
    } else {
        rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, secret, events FROM subscriptions WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    var out []model.Subscription
    var last string
    for rows.Next() {
        var s model.Subscription
        var ev []byte
        if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &ev); err != nil { return nil, "", err }
        s.TenantID = tenantID
        _ = json.Unmarshal(ev, &s.Events)
        out = append(out, s)
        last = s.ID
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) DeleteSubscription(ctx context.Context, tenantID, id string) error {
    _, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    return err
}

// Webhook deliveries
func (p *Postgres) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
    id := uuid.New().String()
    _, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, tenant_id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,'pending',0,now())`, id, tenantID, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), payload)
    if err != nil { return "", err }
    return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, tenant_id::text, COALESCE(subscription_id::text,''), event_type, url, COALESCE(secret,''), payload, status, attempts
        FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []WebhookDelivery{}
    for rows.Next() {
        var d WebhookDelivery
        if err := rows.Scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil { return nil, err }
        out = append(out, d)
    }
    return out, nil
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    if !success {
        if nextAttemptAt == nil { t := time.Now().Add(1 * time.Minute); nextAttemptAt = &t }
        _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$2, next_attempt_at=$3, response_code=$4, latency_ms=$5, updated_at=now() WHERE id=$1`,
            id, nullIfEmpty(lastError), *nextAttemptAt, responseCode, latencyMs)
        return err
    }
    _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='delivered', delivered_at=now(), response_code=$2, latency_ms=$3, updated_at=now() WHERE id=$1`, id, responseCode, latencyMs)
    return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='failed', last_error=$2, response_code=$3, latency_ms=$4, updated_at=now() WHERE id=$1`, id, nullIfEmpty(lastError), responseCode, latencyMs)
    return err
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    q := `SELECT id::text, event_type, status, attempts, next_attempt_at, COALESCE(last_error,''), url FROM webhook_deliveries WHERE tenant_id=$1`
    var rows *sql.Rows
    var err error
    if status != "" {
        rows, err = p.db.QueryContext(ctx, q+` AND status=$2 ORDER BY id LIMIT $3`, tenantID, status, limit)
    } else {
        rows, err = p.db.QueryContext(ctx, q+` ORDER BY id LIMIT $2`, tenantID, limit)
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []map[string]any{}
    var last string
    for rows.Next() {
        var id, typ, st, lastErr, url string
        var attempts int
        var nextAt sql.NullTime
        if err := rows.Scan(&id, &typ, &st, &attempts, &nextAt, &lastErr, &url); err != nil { return nil, "", err }
        m := map[string]any{"id": id, "eventType": typ, "status": st, "attempts": attempts, "url": url}
        if nextAt.Valid { m["nextAttemptAt"] = nextAt.Time }
        if lastErr != "" { m["lastError"] = lastErr }
        out = append(out, m)
        last = id
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
    _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='pending', next_attempt_at=now() WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    return err
}

func nullIfEmpty(s string) any { if s == "" { return nil }; return s }

func nullIfZero(f float64) any { if f == 0 { return nil }; return f }
