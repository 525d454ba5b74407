package api

import (
    "bytes"
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "freightquote/internal/auth"
    "freightquote/internal/model"
    "freightquote/internal/store"
    "freightquote/internal/webhooks"
)

// cannedFetcher serves fixed raw quotes without touching the network.
type cannedFetcher struct{}

func (cannedFetcher) FetchQuotes(ctx context.Context, s model.ShipmentRequest, variant string) ([]model.RawQuote, error) {
    if variant == model.VariantReefer {
        return []model.RawQuote{model.FreshXRaw{CarrierCode: "FRSH", CarrierName: "Fresh Lines", Total: 1200}}, nil
    }
    return []model.RawQuote{
        model.Project44Raw{CarrierCode: "ODFL", ServiceLevelCode: "STD", RateQuoteDetail: model.Project44RateDetail{Total: 800}},
    }, nil
}

func newTestServer(t *testing.T) *Server {
    t.Helper()
    st := store.NewMemory()
    return &Server{
        Store:  st,
        Pub:    webhooks.NewPublisher(st),
        Auth:   auth.NewVerifierFromEnv(),
        Broker: NewBroker(),
        Rates:  cannedFetcher{},
    }
}

func TestHealthReadyVersion(t *testing.T) {
    s := newTestServer(t)
    rr := httptest.NewRecorder()
    s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
    if rr.Code != 200 { t.Fatalf("health: got %d", rr.Code) }
    rr = httptest.NewRecorder()
    s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
    if rr.Code != 200 { t.Fatalf("ready: got %d", rr.Code) }
    rr = httptest.NewRecorder()
    s.VersionHandler(rr, httptest.NewRequest(http.MethodGet, "/version", nil))
    if rr.Code != 200 { t.Fatalf("version: got %d", rr.Code) }
}

func TestQuoteSync(t *testing.T) {
    s := newTestServer(t)
    body := []byte(`{"shipment":{"originZip":"60601","destinationZip":"30301","pallets":4,"grossWeight":4500}}`)
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/quotes", bytes.NewReader(body))
    req.Header.Set("Content-Type", "application/json")
    s.QuoteHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("quote: got %d body %s", rr.Code, rr.Body.String()) }
    var res model.ProcessingResult
    if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil { t.Fatalf("decode: %v", err) }
    if res.Status != model.StatusSuccess || res.Route != model.RouteStandard {
        t.Fatalf("result: %+v", res)
    }
    if len(res.Quotes) != 1 || res.Quotes[0].CustomerPrice <= res.Quotes[0].CarrierTotalRate {
        t.Fatalf("quotes: %+v", res.Quotes)
    }
}

func TestClassifyEndpoint(t *testing.T) {
    s := newTestServer(t)
    body := []byte(`{"originZip":"60601","destinationZip":"30301","pallets":12,"grossWeight":9000}`)
    rr := httptest.NewRecorder()
    s.ClassifyHandler(rr, httptest.NewRequest(http.MethodPost, "/v1/classify", bytes.NewReader(body)))
    if rr.Code != 200 { t.Fatalf("classify: got %d", rr.Code) }
    var out struct {
        Route    string   `json:"route"`
        Variants []string `json:"variants"`
    }
    _ = json.Unmarshal(rr.Body.Bytes(), &out)
    if out.Route != model.RouteDual || len(out.Variants) != 2 {
        t.Fatalf("classify: %+v", out)
    }
}

func waitForBatch(t *testing.T, s *Server, tenant, id string) model.Batch {
    t.Helper()
    deadline := time.Now().Add(3 * time.Second)
    for time.Now().Before(deadline) {
        b, err := s.Store.GetBatch(context.Background(), tenant, id)
        if err == nil && b.Status == "completed" {
            return b
        }
        time.Sleep(10 * time.Millisecond)
    }
    t.Fatalf("batch %s did not complete", id)
    return model.Batch{}
}

func TestBatchLifecycle(t *testing.T) {
    s := newTestServer(t)
    body := []byte(`{"name":"august run","customerName":"Acme Foods","concurrency":2,"shipments":[
        {"rfqNumber":"R1","originZip":"60601","destinationZip":"30301","pallets":4,"grossWeight":4500},
        {"rfqNumber":"R2","originZip":"90210","destinationZip":"10001","pallets":2,"grossWeight":900,"isReefer":true}
    ]}`)
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/batches", bytes.NewReader(body))
    s.BatchesHandler(rr, req)
    if rr.Code != http.StatusAccepted { t.Fatalf("create batch: got %d body %s", rr.Code, rr.Body.String()) }
    var created struct{ BatchID string `json:"batchId"` }
    _ = json.Unmarshal(rr.Body.Bytes(), &created)
    if created.BatchID == "" { t.Fatalf("missing batchId") }

    b := waitForBatch(t, s, "t_demo", created.BatchID)
    if b.Stats.TotalShipments != 2 || b.Stats.SuccessCount != 2 {
        t.Fatalf("stats: %+v", b.Stats)
    }

    // results
    rr = httptest.NewRecorder()
    s.BatchByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/batches/"+created.BatchID+"/results", nil))
    if rr.Code != 200 { t.Fatalf("results: got %d", rr.Code) }
    var resp struct{ Items []model.ProcessingResult `json:"items"` }
    _ = json.Unmarshal(rr.Body.Bytes(), &resp)
    if len(resp.Items) != 2 { t.Fatalf("want 2 results, got %d", len(resp.Items)) }

    // CSV export
    rr = httptest.NewRecorder()
    s.BatchByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/batches/"+created.BatchID+"/export", nil))
    if rr.Code != 200 { t.Fatalf("export: got %d", rr.Code) }
    if ct := rr.Header().Get("Content-Type"); ct != "text/csv" { t.Fatalf("content type: %s", ct) }
    if !strings.Contains(rr.Body.String(), "customer_price") {
        t.Fatalf("export header missing: %s", rr.Body.String())
    }

    // list
    rr = httptest.NewRecorder()
    s.BatchesHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/batches?limit=10", nil))
    if rr.Code != 200 { t.Fatalf("list: got %d", rr.Code) }
}

func TestBatchRejectsEmpty(t *testing.T) {
    s := newTestServer(t)
    rr := httptest.NewRecorder()
    s.BatchesHandler(rr, httptest.NewRequest(http.MethodPost, "/v1/batches", strings.NewReader(`{"shipments":[]}`)))
    if rr.Code != http.StatusBadRequest { t.Fatalf("empty batch: got %d", rr.Code) }
}

func TestPricingSettingsRoundTrip(t *testing.T) {
    s := newTestServer(t)
    rr := httptest.NewRecorder()
    s.PricingSettingsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/pricing/settings", nil))
    if rr.Code != 200 { t.Fatalf("get defaults: got %d", rr.Code) }

    body := []byte(`{"markupType":"percentage","markupValue":25,"minimumProfit":150}`)
    rr = httptest.NewRecorder()
    s.PricingSettingsHandler(rr, httptest.NewRequest(http.MethodPut, "/v1/pricing/settings", bytes.NewReader(body)))
    if rr.Code != 200 { t.Fatalf("put: got %d body %s", rr.Code, rr.Body.String()) }

    rr = httptest.NewRecorder()
    s.PricingSettingsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/pricing/settings", nil))
    var got model.PricingSettings
    _ = json.Unmarshal(rr.Body.Bytes(), &got)
    if got.MarkupValue != 25 || got.MinimumProfit != 150 {
        t.Fatalf("round trip: %+v", got)
    }
}

func TestPricingSettingsRejectsInvalid(t *testing.T) {
    s := newTestServer(t)
    body := []byte(`{"markupType":"percentage","markupValue":100}`)
    rr := httptest.NewRecorder()
    s.PricingSettingsHandler(rr, httptest.NewRequest(http.MethodPut, "/v1/pricing/settings", bytes.NewReader(body)))
    if rr.Code != http.StatusUnprocessableEntity {
        t.Fatalf("invalid settings: got %d", rr.Code)
    }
}

func TestPricingPreview(t *testing.T) {
    s := newTestServer(t)
    body := []byte(`{"carrierRate":770,"settings":{"markupType":"percentage","markupValue":23}}`)
    rr := httptest.NewRecorder()
    s.PricingPreviewHandler(rr, httptest.NewRequest(http.MethodPost, "/v1/pricing/preview", bytes.NewReader(body)))
    if rr.Code != 200 { t.Fatalf("preview: got %d body %s", rr.Code, rr.Body.String()) }
    var got model.QuoteWithPricing
    _ = json.Unmarshal(rr.Body.Bytes(), &got)
    if got.CustomerPrice != 1000 {
        t.Fatalf("preview price: %v", got.CustomerPrice)
    }
}

func TestMarginsCRUD(t *testing.T) {
    s := newTestServer(t)
    body := []byte(`{"customerName":"Acme Foods","carrierCode":"ODFL","marginPercent":28}`)
    rr := httptest.NewRecorder()
    s.MarginsHandler(rr, httptest.NewRequest(http.MethodPost, "/v1/margins", bytes.NewReader(body)))
    if rr.Code != http.StatusCreated { t.Fatalf("create margin: got %d body %s", rr.Code, rr.Body.String()) }
    var m model.CustomerMargin
    _ = json.Unmarshal(rr.Body.Bytes(), &m)
    if m.ID == "" { t.Fatalf("missing id") }

    rr = httptest.NewRecorder()
    s.MarginsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/margins?customer=Acme+Foods", nil))
    if rr.Code != 200 { t.Fatalf("list margins: got %d", rr.Code) }
    var resp struct{ Items []model.CustomerMargin `json:"items"` }
    _ = json.Unmarshal(rr.Body.Bytes(), &resp)
    if len(resp.Items) != 1 { t.Fatalf("items: %+v", resp.Items) }

    rr = httptest.NewRecorder()
    s.MarginByIDHandler(rr, httptest.NewRequest(http.MethodDelete, "/v1/margins/"+m.ID, nil))
    if rr.Code != http.StatusNoContent { t.Fatalf("delete margin: got %d", rr.Code) }
}

func TestImportShipmentsCSV(t *testing.T) {
    s := newTestServer(t)
    csv := "rfq_number,origin_zip,destination_zip,pallets,gross_weight\nR1,60601,30301,4,4500\n"
    rr := httptest.NewRecorder()
    s.ImportShipmentsHandler(rr, httptest.NewRequest(http.MethodPost, "/v1/imports/shipments", strings.NewReader(csv)))
    if rr.Code != 200 { t.Fatalf("import: got %d body %s", rr.Code, rr.Body.String()) }
    var out struct {
        Count     int                     `json:"count"`
        Shipments []model.ShipmentRequest `json:"shipments"`
    }
    _ = json.Unmarshal(rr.Body.Bytes(), &out)
    if out.Count != 1 || out.Shipments[0].RFQNumber != "R1" {
        t.Fatalf("import: %+v", out)
    }
}

func TestImportAndStartBatch(t *testing.T) {
    s := newTestServer(t)
    csv := "rfq_number,origin_zip,destination_zip,pallets,gross_weight\nR1,60601,30301,4,4500\n"
    rr := httptest.NewRecorder()
    s.ImportShipmentsHandler(rr, httptest.NewRequest(http.MethodPost, "/v1/imports/shipments?start=1&customer=Acme", strings.NewReader(csv)))
    if rr.Code != http.StatusAccepted { t.Fatalf("import+start: got %d body %s", rr.Code, rr.Body.String()) }
    var out struct{ BatchID string `json:"batchId"` }
    _ = json.Unmarshal(rr.Body.Bytes(), &out)
    b := waitForBatch(t, s, "t_demo", out.BatchID)
    if b.Stats.SuccessCount != 1 { t.Fatalf("stats: %+v", b.Stats) }
}

func TestSubscriptionsAdmin(t *testing.T) {
    s := newTestServer(t)
    body := []byte(`{"url":"https://example.test/hook","events":["batch.completed"],"secret":"s3cr3t"}`)
    rr := httptest.NewRecorder()
    s.SubscriptionsHandler(rr, httptest.NewRequest(http.MethodPost, "/v1/subscriptions", bytes.NewReader(body)))
    if rr.Code != http.StatusCreated { t.Fatalf("create sub: got %d", rr.Code) }
    var sub model.Subscription
    _ = json.Unmarshal(rr.Body.Bytes(), &sub)

    rr = httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/subscriptions", bytes.NewReader(body))
    req.Header.Set("X-Role", "user")
    s.SubscriptionsHandler(rr, req)
    if rr.Code != http.StatusForbidden { t.Fatalf("non-admin create: got %d", rr.Code) }

    rr = httptest.NewRecorder()
    s.SubscriptionByIDHandler(rr, httptest.NewRequest(http.MethodDelete, "/v1/subscriptions/"+sub.ID, nil))
    if rr.Code != 204 { t.Fatalf("delete sub: got %d", rr.Code) }
}

func TestBatchEmitsWebhookEvents(t *testing.T) {
    s := newTestServer(t)
    _, err := s.Store.CreateSubscription(context.Background(), model.SubscriptionRequest{
        TenantID: "t_demo", URL: "https://example.test/hook", Events: []string{"batch.completed"},
    })
    if err != nil { t.Fatalf("sub: %v", err) }

    body := []byte(`{"shipments":[{"rfqNumber":"R1","originZip":"60601","destinationZip":"30301","pallets":4,"grossWeight":4500}]}`)
    rr := httptest.NewRecorder()
    s.BatchesHandler(rr, httptest.NewRequest(http.MethodPost, "/v1/batches", bytes.NewReader(body)))
    if rr.Code != http.StatusAccepted { t.Fatalf("create: %d", rr.Code) }
    var created struct{ BatchID string `json:"batchId"` }
    _ = json.Unmarshal(rr.Body.Bytes(), &created)
    waitForBatch(t, s, "t_demo", created.BatchID)

    deadline := time.Now().Add(2 * time.Second)
    for time.Now().Before(deadline) {
        items, err := s.Store.FetchDueWebhookDeliveries(context.Background(), 10)
        if err == nil && len(items) > 0 {
            if items[0].EventType != webhooks.EventBatchCompleted {
                t.Fatalf("event type: %s", items[0].EventType)
            }
            return
        }
        time.Sleep(10 * time.Millisecond)
    }
    t.Fatal("expected a queued batch.completed delivery")
}
