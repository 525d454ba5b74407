// Package rfq runs shipments through the classify/fetch/normalize/price
// pipeline and aggregates run-level statistics.
package rfq

import (
    "context"
    "fmt"
    "sync"
    "time"

    "github.com/google/uuid"

    "freightquote/internal/classify"
    "freightquote/internal/metrics"
    "freightquote/internal/model"
    "freightquote/internal/normalize"
    "freightquote/internal/pricing"
    "freightquote/internal/rates"
)

// DefaultDelay is the pause between shipments in sequential mode, a
// crude courtesy to the upstream rating APIs.
const DefaultDelay = 500 * time.Millisecond

// Processor orchestrates batch quoting runs. Shipments are independent
// and share no mutable state, so the bounded-concurrency mode changes
// throughput only, never the per-shipment contract.
type Processor struct {
    Fetcher rates.Fetcher
    Engine  *pricing.Engine
    Delay   time.Duration
}

func NewProcessor(f rates.Fetcher, e *pricing.Engine) *Processor {
    return &Processor{Fetcher: f, Engine: e, Delay: DefaultDelay}
}

// RunOptions configure one batch run.
type RunOptions struct {
    Settings     model.PricingSettings
    CustomerName string
    BatchID      string
    // Concurrency > 1 fans shipments out to a bounded worker set and
    // skips the inter-shipment delay. Default is strictly sequential.
    Concurrency int
    // Progress is invoked once per shipment as it starts.
    Progress func(current, total int, label string)
    // OnResult is invoked once per shipment when it reaches a terminal
    // state, in completion order.
    OnResult func(model.ProcessingResult)
}

// ProcessAll runs every shipment to a terminal state and returns one
// result per shipment in input order. Only configuration errors abort
// the run before it starts; per-shipment failures are recorded on the
// result and processing continues. Cancellation is cooperative and
// checked between shipments: already-finished results are returned.
func (p *Processor) ProcessAll(ctx context.Context, shipments []model.ShipmentRequest, opts RunOptions) ([]model.ProcessingResult, error) {
    if err := pricing.ValidateSettings(opts.Settings); err != nil {
        return nil, err
    }
    results := make([]model.ProcessingResult, len(shipments))
    if opts.Concurrency > 1 {
        p.runBounded(ctx, shipments, opts, results)
        return results, nil
    }

    total := len(shipments)
    for i, s := range shipments {
        if ctx.Err() != nil {
            for j := i; j < total; j++ {
                results[j] = pendingResult(shipments[j], opts.BatchID)
            }
            break
        }
        if opts.Progress != nil {
            opts.Progress(i+1, total, shipmentLabel(s, i))
        }
        results[i] = p.processOne(ctx, s, opts)
        if opts.OnResult != nil {
            opts.OnResult(results[i])
        }
        if p.Delay > 0 && i < total-1 {
            select {
            case <-time.After(p.Delay):
            case <-ctx.Done():
            }
        }
    }
    return results, nil
}

// runBounded is the worker-set variant. Result order still matches
// input order; Progress fires as shipments are picked up.
func (p *Processor) runBounded(ctx context.Context, shipments []model.ShipmentRequest, opts RunOptions, results []model.ProcessingResult) {
    sem := make(chan struct{}, opts.Concurrency)
    var wg sync.WaitGroup
    var mu sync.Mutex
    started := 0
    total := len(shipments)
    for i, s := range shipments {
        if ctx.Err() != nil {
            results[i] = pendingResult(s, opts.BatchID)
            continue
        }
        wg.Add(1)
        sem <- struct{}{}
        go func(i int, s model.ShipmentRequest) {
            defer wg.Done()
            defer func() { <-sem }()
            if opts.Progress != nil {
                mu.Lock()
                started++
                opts.Progress(started, total, shipmentLabel(s, i))
                mu.Unlock()
            }
            r := p.processOne(ctx, s, opts)
            results[i] = r
            if opts.OnResult != nil {
                mu.Lock()
                opts.OnResult(r)
                mu.Unlock()
            }
        }(i, s)
    }
    wg.Wait()
}

// processOne takes a single shipment through validate → classify →
// fetch per variant → normalize → price. Every failure is captured on
// the result; the terminal status is final.
func (p *Processor) processOne(ctx context.Context, s model.ShipmentRequest, opts RunOptions) model.ProcessingResult {
    start := time.Now()
    defer func() { metrics.ShipmentDuration.Observe(time.Since(start).Seconds()) }()
    res := model.ProcessingResult{
        ID:       uuid.New().String(),
        BatchID:  opts.BatchID,
        Shipment: s,
        Status:   model.StatusProcessing,
    }
    if err := Validate(s); err != nil {
        return fail(res, err)
    }
    decision := classify.Classify(s)
    res.Route = decision.Route
    res.Reason = decision.Reason

    var quotes []model.Quote
    for _, variant := range classify.Variants(decision.Route) {
        raws, err := p.Fetcher.FetchQuotes(ctx, s, variant)
        if err != nil {
            return fail(res, err)
        }
        quotes = append(quotes, normalize.Normalize(raws, s, variant)...)
    }

    priced := make([]model.QuoteWithPricing, 0, len(quotes))
    for _, q := range quotes {
        pq, err := p.Engine.Price(ctx, q, opts.Settings, pricing.Options{
            CustomerName: opts.CustomerName,
            Route:        decision.Route,
        })
        if err != nil {
            return fail(res, err)
        }
        priced = append(priced, pq)
    }
    res.Quotes = priced
    res.Status = model.StatusSuccess
    res.ProcessedAt = time.Now().UTC().Format(time.RFC3339)
    return res
}

// Aggregate computes run statistics over the full result set. Failed
// shipments are excluded from price and profit math, not counted as
// zeroes.
func Aggregate(results []model.ProcessingResult) model.BatchStats {
    stats := model.BatchStats{TotalShipments: len(results)}
    for _, r := range results {
        switch r.Status {
        case model.StatusSuccess:
            stats.SuccessCount++
            stats.QuoteCount += len(r.Quotes)
            for _, q := range r.Quotes {
                if q.CustomerPrice > 0 && (stats.BestPrice == 0 || q.CustomerPrice < stats.BestPrice) {
                    stats.BestPrice = q.CustomerPrice
                }
                stats.TotalProfit += q.Profit
            }
        case model.StatusError:
            stats.ErrorCount++
        }
    }
    return stats
}

func fail(res model.ProcessingResult, err error) model.ProcessingResult {
    res.Status = model.StatusError
    res.Error = err.Error()
    res.ProcessedAt = time.Now().UTC().Format(time.RFC3339)
    return res
}

func pendingResult(s model.ShipmentRequest, batchID string) model.ProcessingResult {
    return model.ProcessingResult{
        ID:       uuid.New().String(),
        BatchID:  batchID,
        Shipment: s,
        Status:   model.StatusPending,
    }
}

func shipmentLabel(s model.ShipmentRequest, i int) string {
    if s.RFQNumber != "" {
        return s.RFQNumber
    }
    return fmt.Sprintf("%s -> %s (#%d)", s.OriginZip, s.DestinationZip, i+1)
}
