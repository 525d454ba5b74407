// Package pricing converts carrier cost into customer price.
package pricing

import (
    "context"
    "errors"
    "fmt"
    "math"

    "freightquote/internal/model"
)

// ErrInvalidConfiguration marks pricing settings that produce a
// mathematically invalid result. It is fatal for the pricing call and
// must never degrade to 0, Inf, or NaN.
var ErrInvalidConfiguration = errors.New("invalid pricing configuration")

// MarginSource looks up a per-customer-per-carrier margin percentage.
// The second return is false when no margin is configured.
type MarginSource interface {
    LookupMargin(ctx context.Context, customerName, carrierName, carrierCode string) (float64, bool, error)
}

// Engine prices normalized quotes. Margins is optional; when nil,
// customer-margin lookups always miss and the fallback percentage
// applies. Cache is owned by the caller, which must Clear it whenever
// the active customer context changes.
type Engine struct {
    Margins MarginSource
    Cache   *MarginCache
}

// Options carry the per-call pricing context.
type Options struct {
    CustomerName string
    Route        string
    // CustomPrice, when set, is an authoritative manual override: it is
    // used verbatim and is NOT subject to minimum-profit enforcement.
    CustomPrice *float64
}

// ValidateSettings rejects configurations that cannot price any quote.
// A batch run calls this once before starting.
func ValidateSettings(s model.PricingSettings) error {
    switch s.MarkupType {
    case model.MarkupPercentage, model.MarkupFlat:
    default:
        return fmt.Errorf("%w: unknown markup type %q", ErrInvalidConfiguration, s.MarkupType)
    }
    if s.MarkupType == model.MarkupPercentage && s.MarkupValue >= 100 {
        return fmt.Errorf("%w: percentage markup %.2f%% >= 100%%", ErrInvalidConfiguration, s.MarkupValue)
    }
    if s.MarkupValue < 0 {
        return fmt.Errorf("%w: negative markup value %.2f", ErrInvalidConfiguration, s.MarkupValue)
    }
    if s.MinimumProfit < 0 {
        return fmt.Errorf("%w: negative minimum profit %.2f", ErrInvalidConfiguration, s.MinimumProfit)
    }
    if s.UsesCustomerMargins && s.FallbackMarkupPercentage >= 100 {
        return fmt.Errorf("%w: fallback margin %.2f%% >= 100%%", ErrInvalidConfiguration, s.FallbackMarkupPercentage)
    }
    return nil
}

// Price applies the markup policy to one quote. Branch order: manual
// override, customer-specific margin, fallback margin, flat markup,
// then minimum-profit floor (overrides excepted). Profit and applied
// margin percentage are always recomputed from the final numbers.
func (e *Engine) Price(ctx context.Context, q model.Quote, settings model.PricingSettings, opts Options) (model.QuoteWithPricing, error) {
    cost := q.CarrierTotalRate
    priced := model.QuoteWithPricing{
        Quote:           q,
        ChargeBreakdown: BuildChargeBreakdown(q),
    }

    if opts.CustomPrice != nil {
        priced.CustomerPrice = round2(*opts.CustomPrice)
        priced.AppliedMarginType = model.MarginTypeFlat
        priced.IsCustomPrice = true
        finalize(&priced, cost)
        return priced, nil
    }

    var price float64
    switch {
    case settings.UsesCustomerMargins:
        margin, ok := e.customerMargin(ctx, opts.CustomerName, q, opts.Route)
        if !ok {
            margin = settings.FallbackMarkupPercentage
            if margin <= 0 {
                margin = model.DefaultFallbackMarkup
            }
            priced.AppliedMarginType = model.MarginTypeFallback
        } else {
            priced.AppliedMarginType = model.MarginTypeCustomer
        }
        p, err := marginPrice(cost, margin)
        if err != nil {
            return model.QuoteWithPricing{}, err
        }
        price = p
    case settings.MarkupType == model.MarkupPercentage:
        p, err := marginPrice(cost, settings.MarkupValue)
        if err != nil {
            return model.QuoteWithPricing{}, err
        }
        price = p
        priced.AppliedMarginType = model.MarginTypeFlat
    default:
        price = cost + settings.MarkupValue
        priced.AppliedMarginType = model.MarginTypeFlat
    }

    price = round2(price)
    // Hard floor: no non-override quote leaves the engine with profit
    // below the configured minimum.
    if price-cost < settings.MinimumProfit {
        price = round2(cost + settings.MinimumProfit)
    }
    priced.CustomerPrice = price
    finalize(&priced, cost)
    return priced, nil
}

// customerMargin resolves the margin for a customer+carrier pair,
// consulting the cache first. Reefer routes never use customer margins.
func (e *Engine) customerMargin(ctx context.Context, customer string, q model.Quote, route string) (float64, bool) {
    if customer == "" || route == model.RouteReefer || e.Margins == nil {
        return 0, false
    }
    if e.Cache != nil {
        if pct, ok := e.Cache.Get(customer, q.CarrierCode); ok {
            return pct, true
        }
    }
    pct, ok, err := e.Margins.LookupMargin(ctx, customer, q.CarrierName, q.CarrierCode)
    if err != nil || !ok || pct <= 0 {
        return 0, false
    }
    if e.Cache != nil {
        e.Cache.Put(customer, q.CarrierCode, pct)
    }
    return pct, true
}

// marginPrice applies the percentage-of-price formula
// price = cost / (1 - pct/100), guarding the undefined region.
func marginPrice(cost, pct float64) (float64, error) {
    if pct >= 100 {
        return 0, fmt.Errorf("%w: margin %.2f%% leaves a non-positive denominator", ErrInvalidConfiguration, pct)
    }
    return cost / (1 - pct/100), nil
}

// finalize recomputes profit and applied margin from the final price,
// never from an intermediate step.
func finalize(p *model.QuoteWithPricing, cost float64) {
    p.Profit = round2(p.CustomerPrice - cost)
    p.MarkupApplied = p.Profit
    if p.CustomerPrice > 0 {
        p.AppliedMarginPercentage = round2(p.Profit / p.CustomerPrice * 100)
    } else {
        p.AppliedMarginPercentage = 0
    }
}

func round2(f float64) float64 {
    return math.Round(f*100) / 100
}
