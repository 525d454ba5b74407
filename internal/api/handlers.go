package api

import (
    "context"
    "encoding/json"
    "fmt"
    "log"
    "net/http"
    "strings"
    "time"

    "freightquote/internal/buildinfo"
    "freightquote/internal/classify"
    "freightquote/internal/importexport"
    "freightquote/internal/metrics"
    "freightquote/internal/model"
    "freightquote/internal/pricing"
    "freightquote/internal/rfq"
    "freightquote/internal/store"
)

// engineFor builds a pricing engine scoped to one tenant's margin rows.
func (s *Server) engineFor(tenant string) *pricing.Engine {
    return &pricing.Engine{
        Margins: store.TenantMargins{Store: s.Store, TenantID: tenant},
        Cache:   pricing.NewMarginCache(),
    }
}

func (s *Server) settingsFor(ctx context.Context, tenant string, override *model.PricingSettings) (model.PricingSettings, error) {
    if override != nil {
        return *override, pricing.ValidateSettings(*override)
    }
    return s.Store.GetPricingSettings(ctx, tenant)
}

// QuoteHandler handles POST /v1/quotes: one shipment, synchronously.
func (s *Server) QuoteHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    _, tenant := s.withTenant(r)
    var req struct {
        Shipment     model.ShipmentRequest  `json:"shipment"`
        CustomerName string                 `json:"customerName"`
        Settings     *model.PricingSettings `json:"settings"`
    }
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    settings, err := s.settingsFor(r.Context(), tenant, req.Settings)
    if err != nil {
        writeErr(w, err, "Load settings failed", r.URL.Path)
        return
    }
    proc := rfq.NewProcessor(s.Rates, s.engineFor(tenant))
    proc.Delay = 0
    results, err := proc.ProcessAll(r.Context(), []model.ShipmentRequest{req.Shipment}, rfq.RunOptions{
        Settings:     settings,
        CustomerName: req.CustomerName,
    })
    if err != nil {
        writeErr(w, err, "Quote failed", r.URL.Path)
        return
    }
    res := results[0]
    s.recordShipment(res)
    writeJSON(w, http.StatusOK, res)
}

// ClassifyHandler handles POST /v1/classify: routing verdict only, no
// network calls.
func (s *Server) ClassifyHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    var sh model.ShipmentRequest
    if err := json.NewDecoder(r.Body).Decode(&sh); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    d := classify.Classify(sh)
    writeJSON(w, http.StatusOK, map[string]any{
        "route":    d.Route,
        "reason":   d.Reason,
        "variants": classify.Variants(d.Route),
    })
}

// BatchesHandler handles POST/GET /v1/batches.
func (s *Server) BatchesHandler(w http.ResponseWriter, r *http.Request) {
    switch r.Method {
    case http.MethodPost:
        _, tenant := s.withTenant(r)
        var req batchRequest
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if err := validateBatchRequest(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid batch request", err.Error(), r.URL.Path)
            return
        }
        settings, err := s.settingsFor(r.Context(), tenant, req.Settings)
        if err != nil {
            writeErr(w, err, "Load settings failed", r.URL.Path)
            return
        }
        b, err := s.Store.CreateBatch(r.Context(), tenant, req.Name, req.CustomerName, len(req.Shipments))
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Create batch failed", err.Error(), r.URL.Path)
            return
        }
        go s.runBatch(tenant, b, req, settings)
        writeJSON(w, http.StatusAccepted, map[string]any{"batchId": b.ID, "status": b.Status})
    case http.MethodGet:
        _, tenant := s.withTenant(r)
        cursor := r.URL.Query().Get("cursor")
        limit := 100
        if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
        items, next, err := s.Store.ListBatches(r.Context(), tenant, cursor, limit)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "List batches failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// runBatch drives one batch to completion in the background.
func (s *Server) runBatch(tenant string, b model.Batch, req batchRequest, settings model.PricingSettings) {
    ctx := context.Background()
    s.Pub.BatchStarted(ctx, tenant, b)
    s.Broker.Publish(b.ID, SSEEvent{Type: "batch.started", Data: map[string]any{
        "batchId": b.ID, "shipmentCount": len(req.Shipments),
    }})

    proc := rfq.NewProcessor(s.Rates, s.engineFor(tenant))
    results, err := proc.ProcessAll(ctx, req.Shipments, rfq.RunOptions{
        Settings:     settings,
        CustomerName: req.CustomerName,
        BatchID:      b.ID,
        Concurrency:  req.Concurrency,
        Progress: func(current, total int, label string) {
            s.Broker.Publish(b.ID, SSEEvent{Type: "batch.progress", Data: map[string]any{
                "batchId": b.ID, "current": current, "total": total, "shipment": label,
            }})
        },
        OnResult: func(res model.ProcessingResult) {
            if err := s.Store.SaveResult(ctx, tenant, res); err != nil {
                log.Printf("batch %s: save result %s: %v", b.ID, res.ID, err)
            }
            s.recordShipment(res)
            evt := "shipment.completed"
            if res.Status == model.StatusError {
                evt = "shipment.failed"
                s.Pub.ShipmentFailed(ctx, tenant, b.ID, res)
            }
            s.Broker.Publish(b.ID, SSEEvent{Type: evt, Data: map[string]any{
                "batchId": b.ID, "shipmentId": res.ID, "status": res.Status,
                "quotes": len(res.Quotes), "error": res.Error,
            }})
        },
    })
    if err != nil {
        log.Printf("batch %s aborted: %v", b.ID, err)
        if _, ferr := s.Store.FinalizeBatch(ctx, tenant, b.ID, "error", model.BatchStats{TotalShipments: len(req.Shipments)}); ferr != nil {
            log.Printf("batch %s: finalize: %v", b.ID, ferr)
        }
        s.Broker.Publish(b.ID, SSEEvent{Type: "batch.failed", Data: map[string]any{"batchId": b.ID, "error": err.Error()}})
        return
    }
    stats := rfq.Aggregate(results)
    final, ferr := s.Store.FinalizeBatch(ctx, tenant, b.ID, "completed", stats)
    if ferr != nil {
        log.Printf("batch %s: finalize: %v", b.ID, ferr)
        final = b
        final.Stats = stats
    }
    s.Pub.BatchCompleted(ctx, tenant, final, stats)
    s.Broker.Publish(b.ID, SSEEvent{Type: "batch.completed", Data: map[string]any{
        "batchId": b.ID, "stats": stats,
    }})
}

func (s *Server) recordShipment(res model.ProcessingResult) {
    route := res.Route
    if route == "" { route = "unclassified" }
    metrics.ShipmentsProcessed.WithLabelValues(route, res.Status).Inc()
    for _, q := range res.Quotes {
        metrics.QuotesReturned.WithLabelValues(q.SourceNetwork).Inc()
    }
}

// BatchByIDHandler handles GET /v1/batches/{id} plus the /results,
// /export and /events/stream sub-resources.
func (s *Server) BatchByIDHandler(w http.ResponseWriter, r *http.Request) {
    rest := strings.TrimPrefix(r.URL.Path, "/v1/batches/")
    if rest == r.URL.Path || rest == "" {
        writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
        return
    }
    parts := strings.Split(rest, "/")
    id := parts[0]
    _, tenant := s.withTenant(r)

    if len(parts) > 2 && parts[1] == "events" && parts[2] == "stream" {
        s.streamBatchEvents(w, r, id)
        return
    }
    if len(parts) > 1 && parts[1] == "results" {
        if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
        items, err := s.Store.ListResults(r.Context(), tenant, id)
        if err != nil {
            writeErr(w, err, "List results failed", r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, map[string]any{"items": items})
        return
    }
    if len(parts) > 1 && parts[1] == "export" {
        if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
        items, err := s.Store.ListResults(r.Context(), tenant, id)
        if err != nil {
            writeErr(w, err, "Export failed", r.URL.Path)
            return
        }
        w.Header().Set("Content-Type", "text/csv")
        w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "batch-"+id+".csv"))
        if err := importexport.WriteResults(w, items); err != nil {
            log.Printf("export batch %s: %v", id, err)
        }
        return
    }
    if r.Method != http.MethodGet {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    b, err := s.Store.GetBatch(r.Context(), tenant, id)
    if err != nil {
        writeErr(w, err, "Get batch failed", r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, b)
}

// streamBatchEvents serves SSE progress for one batch.
func (s *Server) streamBatchEvents(w http.ResponseWriter, r *http.Request, batchID string) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    flusher, ok := w.(http.Flusher)
    if !ok { writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path); return }
    w.Header().Set("Content-Type", "text/event-stream")
    w.Header().Set("Cache-Control", "no-cache")
    w.Header().Set("Connection", "keep-alive")
    ch := s.Broker.Subscribe(batchID)
    defer s.Broker.Unsubscribe(batchID, ch)
    // initial heartbeat
    fmt.Fprintf(w, "event: heartbeat\n")
    fmt.Fprintf(w, "data: {\"batchId\":%q,\"ts\":%q}\n\n", batchID, time.Now().Format(time.RFC3339))
    flusher.Flush()
    notify := r.Context().Done()
    for {
        select {
        case <-notify:
            return
        case evt := <-ch:
            b, _ := json.Marshal(evt.Data)
            fmt.Fprintf(w, "event: %s\n", evt.Type)
            fmt.Fprintf(w, "data: %s\n\n", string(b))
            flusher.Flush()
            if evt.Type == "batch.completed" || evt.Type == "batch.failed" {
                return
            }
        case <-time.After(15 * time.Second):
            fmt.Fprintf(w, "event: heartbeat\n")
            fmt.Fprintf(w, "data: {\"batchId\":%q,\"ts\":%q}\n\n", batchID, time.Now().Format(time.RFC3339))
            flusher.Flush()
        }
    }
}

// PricingSettingsHandler handles GET/PUT /v1/pricing/settings.
func (s *Server) PricingSettingsHandler(w http.ResponseWriter, r *http.Request) {
    _, tenant := s.withTenant(r)
    switch r.Method {
    case http.MethodGet:
        settings, err := s.Store.GetPricingSettings(r.Context(), tenant)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Load settings failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, settings)
    case http.MethodPut:
        p := s.getPrincipal(r)
        if !p.CanPrice() { writeProblem(w, 403, "Forbidden", "pricing or admin required", r.URL.Path); return }
        var settings model.PricingSettings
        if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if err := pricing.ValidateSettings(settings); err != nil {
            writeErr(w, err, "Invalid settings", r.URL.Path)
            return
        }
        if err := s.Store.SavePricingSettings(r.Context(), tenant, settings); err != nil {
            writeProblem(w, http.StatusInternalServerError, "Save settings failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, settings)
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// PricingPreviewHandler handles POST /v1/pricing/preview: applies the
// given settings to a carrier cost without touching the networks.
func (s *Server) PricingPreviewHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    _, tenant := s.withTenant(r)
    var req struct {
        CarrierRate  float64                `json:"carrierRate"`
        CustomerName string                 `json:"customerName"`
        CarrierName  string                 `json:"carrierName"`
        CarrierCode  string                 `json:"carrierCode"`
        CustomPrice  *float64               `json:"customPrice"`
        Settings     *model.PricingSettings `json:"settings"`
    }
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if req.CarrierRate <= 0 {
        writeProblem(w, http.StatusBadRequest, "Invalid preview request", "carrierRate must be > 0", r.URL.Path)
        return
    }
    settings, err := s.settingsFor(r.Context(), tenant, req.Settings)
    if err != nil {
        writeErr(w, err, "Load settings failed", r.URL.Path)
        return
    }
    q := model.Quote{
        CarrierName:      req.CarrierName,
        CarrierCode:      req.CarrierCode,
        CarrierTotalRate: req.CarrierRate,
    }
    priced, err := s.engineFor(tenant).Price(r.Context(), q, settings, pricing.Options{
        CustomerName: req.CustomerName,
        CustomPrice:  req.CustomPrice,
    })
    if err != nil {
        writeErr(w, err, "Preview failed", r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, priced)
}

// MarginsHandler handles GET/POST /v1/margins.
func (s *Server) MarginsHandler(w http.ResponseWriter, r *http.Request) {
    _, tenant := s.withTenant(r)
    p := s.getPrincipal(r)
    switch r.Method {
    case http.MethodGet:
        customer := r.URL.Query().Get("customer")
        items, err := s.Store.ListCustomerMargins(r.Context(), tenant, customer)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "List margins failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, map[string]any{"items": items})
    case http.MethodPost:
        if !p.CanPrice() { writeProblem(w, 403, "Forbidden", "pricing or admin required", r.URL.Path); return }
        var m model.CustomerMargin
        if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if err := validateMargin(&m); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid margin", err.Error(), r.URL.Path)
            return
        }
        saved, err := s.Store.UpsertCustomerMargin(r.Context(), tenant, m)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Save margin failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusCreated, saved)
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// MarginByIDHandler handles DELETE /v1/margins/{id}.
func (s *Server) MarginByIDHandler(w http.ResponseWriter, r *http.Request) {
    if !strings.HasPrefix(r.URL.Path, "/v1/margins/") { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodDelete { w.WriteHeader(http.StatusMethodNotAllowed); return }
    p := s.getPrincipal(r)
    if !p.CanPrice() { writeProblem(w, 403, "Forbidden", "pricing or admin required", r.URL.Path); return }
    _, tenant := s.withTenant(r)
    id := strings.TrimPrefix(r.URL.Path, "/v1/margins/")
    if err := s.Store.DeleteCustomerMargin(r.Context(), tenant, id); err != nil {
        writeErr(w, err, "Delete margin failed", r.URL.Path)
        return
    }
    w.WriteHeader(http.StatusNoContent)
}

// ImportShipmentsHandler handles POST /v1/imports/shipments: a CSV body
// in the upload template becomes a shipment list, optionally starting a
// batch in one call (?start=1).
func (s *Server) ImportShipmentsHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    _, tenant := s.withTenant(r)
    shipments, rowErrs, err := importexport.ParseShipments(r.Body)
    if err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid CSV", err.Error(), r.URL.Path)
        return
    }
    warnings := make([]string, 0, len(rowErrs))
    for _, re := range rowErrs {
        warnings = append(warnings, re.Error())
    }
    if r.URL.Query().Get("start") == "" {
        writeJSON(w, http.StatusOK, map[string]any{
            "shipments": shipments, "count": len(shipments), "warnings": warnings,
        })
        return
    }
    if len(shipments) == 0 {
        writeProblem(w, http.StatusBadRequest, "Empty import", "no parsable shipment rows", r.URL.Path)
        return
    }
    settings, err := s.Store.GetPricingSettings(r.Context(), tenant)
    if err != nil {
        writeErr(w, err, "Load settings failed", r.URL.Path)
        return
    }
    req := batchRequest{
        Name:         r.URL.Query().Get("name"),
        CustomerName: r.URL.Query().Get("customer"),
        Shipments:    shipments,
    }
    b, err := s.Store.CreateBatch(r.Context(), tenant, req.Name, req.CustomerName, len(shipments))
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "Create batch failed", err.Error(), r.URL.Path)
        return
    }
    go s.runBatch(tenant, b, req, settings)
    writeJSON(w, http.StatusAccepted, map[string]any{
        "batchId": b.ID, "count": len(shipments), "warnings": warnings,
    })
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions.
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    switch r.Method {
    case http.MethodPost:
        var req model.SubscriptionRequest
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if req.TenantID == "" { req.TenantID = p.Tenant }
        sub, err := s.Store.CreateSubscription(r.Context(), req)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusCreated, sub)
    case http.MethodGet:
        cursor := r.URL.Query().Get("cursor")
        limit := 100
        if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
        items, next, err := s.Store.ListSubscriptions(r.Context(), p.Tenant, cursor, limit)
        if err != nil { writeProblem(w, 500, "List subscriptions failed", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id}.
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
    if !strings.HasPrefix(r.URL.Path, "/v1/subscriptions/") { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodDelete { w.WriteHeader(405); return }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
    if err := s.Store.DeleteSubscription(r.Context(), p.Tenant, id); err != nil { writeErr(w, err, "Delete subscription failed", r.URL.Path); return }
    w.WriteHeader(204)
}

// WebhookDeliveriesHandler lists delivery attempts (admin).
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/admin/webhook-deliveries" { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    if r.Method != http.MethodGet { w.WriteHeader(405); return }
    status := r.URL.Query().Get("status")
    cursor := r.URL.Query().Get("cursor")
    limit := 100
    if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
    items, next, err := s.Store.ListWebhookDeliveries(r.Context(), p.Tenant, status, cursor, limit)
    if err != nil { writeProblem(w, 500, "List deliveries failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}

// WebhookDeliveryRetryHandler requeues one delivery (admin).
func (s *Server) WebhookDeliveryRetryHandler(w http.ResponseWriter, r *http.Request) {
    if !strings.HasPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/") || !strings.HasSuffix(r.URL.Path, "/retry") { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodPost { w.WriteHeader(405); return }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/"), "/retry")
    if err := s.Store.RetryWebhookDelivery(r.Context(), p.Tenant, id); err != nil { writeErr(w, err, "Retry delivery failed", r.URL.Path); return }
    writeJSON(w, 202, map[string]int{"accepted": 1})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
    // Check DB connectivity when using Postgres store
    type pinger interface{ Ping(ctx context.Context) error }
    if pg, ok := s.Store.(pinger); ok {
        ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
        defer cancel()
        if err := pg.Ping(ctx); err != nil { writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path); return }
    }
    writeJSON(w, 200, map[string]string{"status": "ready"})
}

func (s *Server) VersionHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, 200, buildinfo.Info())
}
