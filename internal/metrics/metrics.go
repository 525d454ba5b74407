package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
)

var (
    // Registry is the dedicated Prometheus registry for the API
    Registry = prometheus.NewRegistry()
    // HTTPRequests counts requests by method, path, and status
    HTTPRequests = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
        []string{"method", "path", "status"},
    )
    // HTTPDuration records request durations in seconds
    HTTPDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
        []string{"method", "path", "status"},
    )

    // ShipmentsProcessed counts pipeline outcomes by route and status
    ShipmentsProcessed = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "shipments_processed_total", Help: "Shipments processed by route and terminal status."},
        []string{"route", "status"},
    )
    // QuotesReturned counts normalized quotes by source network
    QuotesReturned = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "quotes_returned_total", Help: "Normalized quotes by source network."},
        []string{"network"},
    )
    // UpstreamFetchFailures counts rating failures by network
    UpstreamFetchFailures = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "upstream_fetch_failures_total", Help: "Upstream rating failures by network."},
        []string{"network"},
    )
    // ShipmentDuration tracks per-shipment pipeline latency in seconds
    ShipmentDuration = prometheus.NewHistogram(
        prometheus.HistogramOpts{Name: "shipment_processing_duration_seconds", Help: "Per-shipment quoting pipeline duration.", Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30}},
    )

    // WebhookDeliveries counts webhook delivery outcomes by event type and status
    WebhookDeliveries = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
        []string{"event_type", "status"},
    )
    // WebhookLatency tracks webhook delivery latencies in milliseconds
    WebhookLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
        []string{"event_type", "status"},
    )
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
    regOnce.Do(func() {
        Registry.MustRegister(HTTPRequests)
        Registry.MustRegister(HTTPDuration)
        Registry.MustRegister(ShipmentsProcessed)
        Registry.MustRegister(QuotesReturned)
        Registry.MustRegister(UpstreamFetchFailures)
        Registry.MustRegister(ShipmentDuration)
        Registry.MustRegister(WebhookDeliveries)
        Registry.MustRegister(WebhookLatency)
        // Go/process collectors on our registry
        Registry.MustRegister(collectors.NewGoCollector())
        Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
    })
}

var regOnce sync.Once
