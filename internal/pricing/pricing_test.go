package pricing

import (
    "context"
    "errors"
    "math"
    "testing"

    "freightquote/internal/model"
)

type stubMargins struct {
    pct    float64
    ok     bool
    err    error
    calls  int
}

func (s *stubMargins) LookupMargin(ctx context.Context, customerName, carrierName, carrierCode string) (float64, bool, error) {
    s.calls++
    return s.pct, s.ok, s.err
}

func pctSettings(v float64) model.PricingSettings {
    return model.PricingSettings{MarkupType: model.MarkupPercentage, MarkupValue: v}
}

func TestPercentageMarkupFormula(t *testing.T) {
    e := &Engine{}
    q := model.Quote{CarrierTotalRate: 770}
    priced, err := e.Price(context.Background(), q, pctSettings(23), Options{})
    if err != nil {
        t.Fatalf("price: %v", err)
    }
    // 770 / (1 - 0.23) = 1000
    if priced.CustomerPrice != 1000 {
        t.Fatalf("price: %v", priced.CustomerPrice)
    }
    if priced.Profit != 230 {
        t.Fatalf("profit: %v", priced.Profit)
    }
    if priced.AppliedMarginPercentage != 23 {
        t.Fatalf("applied margin: %v", priced.AppliedMarginPercentage)
    }
}

func TestFlatMarkup(t *testing.T) {
    e := &Engine{}
    settings := model.PricingSettings{MarkupType: model.MarkupFlat, MarkupValue: 150}
    priced, err := e.Price(context.Background(), model.Quote{CarrierTotalRate: 600}, settings, Options{})
    if err != nil {
        t.Fatalf("price: %v", err)
    }
    if priced.CustomerPrice != 750 || priced.Profit != 150 {
        t.Fatalf("flat markup: price=%v profit=%v", priced.CustomerPrice, priced.Profit)
    }
}

func TestMinimumProfitFloor(t *testing.T) {
    e := &Engine{}
    settings := model.PricingSettings{MarkupType: model.MarkupPercentage, MarkupValue: 5, MinimumProfit: 100}
    priced, err := e.Price(context.Background(), model.Quote{CarrierTotalRate: 500}, settings, Options{})
    if err != nil {
        t.Fatalf("price: %v", err)
    }
    // 5% margin gives ~526.32, profit ~26.32: below the floor.
    if priced.CustomerPrice != 600 {
        t.Fatalf("floor should lift to cost+minProfit: %v", priced.CustomerPrice)
    }
    if priced.Profit != 100 {
        t.Fatalf("profit at floor: %v", priced.Profit)
    }
}

func TestCustomPriceOverrideSkipsFloor(t *testing.T) {
    e := &Engine{}
    settings := model.PricingSettings{MarkupType: model.MarkupPercentage, MarkupValue: 20, MinimumProfit: 500}
    custom := 510.0
    priced, err := e.Price(context.Background(), model.Quote{CarrierTotalRate: 500}, settings, Options{CustomPrice: &custom})
    if err != nil {
        t.Fatalf("price: %v", err)
    }
    if priced.CustomerPrice != 510 {
        t.Fatalf("override must be verbatim: %v", priced.CustomerPrice)
    }
    if !priced.IsCustomPrice {
        t.Fatalf("override must be flagged")
    }
    // Profit is still recomputed from the final numbers (10, far below
    // the 500 floor the override ignores).
    if priced.Profit != 10 {
        t.Fatalf("profit: %v", priced.Profit)
    }
}

func TestCustomerMarginUsedWhenConfigured(t *testing.T) {
    src := &stubMargins{pct: 30, ok: true}
    e := &Engine{Margins: src, Cache: NewMarginCache()}
    settings := model.PricingSettings{MarkupType: model.MarkupPercentage, MarkupValue: 18, UsesCustomerMargins: true}
    q := model.Quote{CarrierCode: "ODFL", CarrierName: "Old Dominion Freight Line", CarrierTotalRate: 700}
    priced, err := e.Price(context.Background(), q, settings, Options{CustomerName: "Acme Foods", Route: model.RouteStandard})
    if err != nil {
        t.Fatalf("price: %v", err)
    }
    if priced.AppliedMarginType != model.MarginTypeCustomer {
        t.Fatalf("margin type: %s", priced.AppliedMarginType)
    }
    if priced.CustomerPrice != 1000 {
        t.Fatalf("30%% margin on 700: %v", priced.CustomerPrice)
    }
    // Second call for the same pair hits the cache.
    if _, err := e.Price(context.Background(), q, settings, Options{CustomerName: "Acme Foods", Route: model.RouteStandard}); err != nil {
        t.Fatalf("price: %v", err)
    }
    if src.calls != 1 {
        t.Fatalf("lookup should be cached: %d calls", src.calls)
    }
}

func TestCustomerMarginFallback(t *testing.T) {
    src := &stubMargins{ok: false}
    e := &Engine{Margins: src}
    settings := model.PricingSettings{MarkupType: model.MarkupPercentage, MarkupValue: 18, UsesCustomerMargins: true}
    priced, err := e.Price(context.Background(), model.Quote{CarrierTotalRate: 770}, settings, Options{CustomerName: "Acme Foods", Route: model.RouteStandard})
    if err != nil {
        t.Fatalf("price: %v", err)
    }
    if priced.AppliedMarginType != model.MarginTypeFallback {
        t.Fatalf("margin type: %s", priced.AppliedMarginType)
    }
    // No fallback configured: the 23% default applies.
    if priced.CustomerPrice != 1000 {
        t.Fatalf("default fallback: %v", priced.CustomerPrice)
    }
}

func TestReeferNeverUsesCustomerMargins(t *testing.T) {
    src := &stubMargins{pct: 30, ok: true}
    e := &Engine{Margins: src}
    settings := model.PricingSettings{MarkupType: model.MarkupPercentage, MarkupValue: 18, UsesCustomerMargins: true, FallbackMarkupPercentage: 23}
    _, err := e.Price(context.Background(), model.Quote{CarrierTotalRate: 770}, settings, Options{CustomerName: "Acme Foods", Route: model.RouteReefer})
    if err != nil {
        t.Fatalf("price: %v", err)
    }
    if src.calls != 0 {
        t.Fatalf("reefer route must skip margin lookup: %d calls", src.calls)
    }
}

func TestMarginAtOrAbove100Rejected(t *testing.T) {
    e := &Engine{Margins: &stubMargins{pct: 100, ok: true}, Cache: NewMarginCache()}
    settings := model.PricingSettings{MarkupType: model.MarkupPercentage, MarkupValue: 18, UsesCustomerMargins: true}
    _, err := e.Price(context.Background(), model.Quote{CarrierCode: "X", CarrierTotalRate: 500}, settings, Options{CustomerName: "Acme", Route: model.RouteStandard})
    if !errors.Is(err, ErrInvalidConfiguration) {
        t.Fatalf("want ErrInvalidConfiguration, got %v", err)
    }
}

func TestValidateSettings(t *testing.T) {
    if err := ValidateSettings(pctSettings(18)); err != nil {
        t.Fatalf("valid settings rejected: %v", err)
    }
    cases := []model.PricingSettings{
        {MarkupType: "bogus", MarkupValue: 10},
        {MarkupType: model.MarkupPercentage, MarkupValue: 100},
        {MarkupType: model.MarkupPercentage, MarkupValue: -1},
        {MarkupType: model.MarkupFlat, MarkupValue: 100, MinimumProfit: -5},
        {MarkupType: model.MarkupPercentage, MarkupValue: 10, UsesCustomerMargins: true, FallbackMarkupPercentage: 100},
    }
    for i, s := range cases {
        if err := ValidateSettings(s); !errors.Is(err, ErrInvalidConfiguration) {
            t.Fatalf("case %d: want ErrInvalidConfiguration, got %v", i, err)
        }
    }
}

func TestPricingIsIdempotent(t *testing.T) {
    e := &Engine{}
    q := model.Quote{CarrierTotalRate: 733.33}
    first, err := e.Price(context.Background(), q, pctSettings(21), Options{})
    if err != nil {
        t.Fatalf("price: %v", err)
    }
    second, err := e.Price(context.Background(), q, pctSettings(21), Options{})
    if err != nil {
        t.Fatalf("price: %v", err)
    }
    if first.CustomerPrice != second.CustomerPrice || first.Profit != second.Profit {
        t.Fatalf("pricing must be deterministic: %v vs %v", first, second)
    }
    if math.Round(first.CustomerPrice*100) != first.CustomerPrice*100 {
        t.Fatalf("price not rounded to cents: %v", first.CustomerPrice)
    }
}

func TestMarginCacheClear(t *testing.T) {
    c := NewMarginCache()
    c.Put("Acme", "ODFL", 25)
    if _, ok := c.Get("Acme", "ODFL"); !ok {
        t.Fatalf("expected hit")
    }
    c.Clear()
    if _, ok := c.Get("Acme", "ODFL"); ok {
        t.Fatalf("expected miss after clear")
    }
    if c.Len() != 0 {
        t.Fatalf("len after clear: %d", c.Len())
    }
}
