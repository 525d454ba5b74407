package normalize

import (
    "testing"

    "freightquote/internal/model"
)

var shipment = model.ShipmentRequest{OriginZip: "60601", DestinationZip: "30301", Pallets: 4, GrossWeight: 4500}

func TestProject44TotalIsVerbatim(t *testing.T) {
    raw := model.Project44Raw{
        CarrierCode:      "ODFL",
        ServiceLevelCode: "STD",
        TransitDays:      3,
        RateQuoteDetail: model.Project44RateDetail{
            Total: 842.17,
            Charges: []model.Charge{
                {Code: "BASE", Description: "Linehaul", Amount: 700.00},
                {Code: "FUEL", Description: "Fuel surcharge", Amount: 142.17},
            },
        },
    }
    got := Normalize([]model.RawQuote{raw}, shipment, model.VariantStandard)
    if len(got) != 1 {
        t.Fatalf("want 1 quote, got %d", len(got))
    }
    q := got[0]
    if q.CarrierTotalRate != 842.17 {
        t.Fatalf("total must pass through verbatim: %v", q.CarrierTotalRate)
    }
    if len(q.Charges) != 2 || q.Charges[0].Amount != 700.00 {
        t.Fatalf("charges must pass through unmodified: %+v", q.Charges)
    }
    if q.CarrierName != "Old Dominion Freight Line" {
        t.Fatalf("carrier name: %q", q.CarrierName)
    }
    if q.SourceNetwork != model.NetworkProject44 || q.QuoteMode != model.VariantStandard {
        t.Fatalf("tagging: %s/%s", q.SourceNetwork, q.QuoteMode)
    }
}

func TestProject44ZeroTotalDropped(t *testing.T) {
    raws := []model.RawQuote{
        model.Project44Raw{CarrierCode: "SAIA", RateQuoteDetail: model.Project44RateDetail{Total: 0}},
        model.Project44Raw{CarrierCode: "EXLA", RateQuoteDetail: model.Project44RateDetail{Total: 512.30}},
    }
    got := Normalize(raws, shipment, model.VariantStandard)
    if len(got) != 1 || got[0].CarrierCode != "EXLA" {
        t.Fatalf("unusable quote should be dropped, usable kept: %+v", got)
    }
}

func TestFreshXComponentSumFallback(t *testing.T) {
    raw := model.FreshXRaw{
        CarrierName:   "Fresh Lines",
        CarrierCode:   "FRSH",
        BaseRate:      900,
        FuelSurcharge: 150,
        PremiumsAndDiscounts: -50,
    }
    got := Normalize([]model.RawQuote{raw}, shipment, model.VariantReefer)
    if len(got) != 1 {
        t.Fatalf("want 1 quote, got %d", len(got))
    }
    if got[0].CarrierTotalRate != 1000 {
        t.Fatalf("component sum: %v", got[0].CarrierTotalRate)
    }
}

func TestFreshXPreSummedTotalWins(t *testing.T) {
    raw := model.FreshXRaw{CarrierCode: "FRSH", BaseRate: 900, FuelSurcharge: 150, Total: 1025.50}
    got := Normalize([]model.RawQuote{raw}, shipment, model.VariantReefer)
    if got[0].CarrierTotalRate != 1025.50 {
        t.Fatalf("pre-summed total should win: %v", got[0].CarrierTotalRate)
    }
}

func TestFreshXTemperaturePreserved(t *testing.T) {
    reefer := shipment
    reefer.IsReefer = true
    reefer.Temperature = "FROZEN"
    got := Normalize([]model.RawQuote{model.FreshXRaw{CarrierCode: "FRSH", Total: 1200}}, reefer, model.VariantReefer)
    if got[0].Temperature != "FROZEN" {
        t.Fatalf("shipment temperature should carry through: %q", got[0].Temperature)
    }
    echoed := Normalize([]model.RawQuote{model.FreshXRaw{CarrierCode: "FRSH", Total: 1200, Temperature: "CHILLED"}}, reefer, model.VariantReefer)
    if echoed[0].Temperature != "CHILLED" {
        t.Fatalf("carrier-echoed temperature should win: %q", echoed[0].Temperature)
    }
}

func TestCarrierNameFallbacks(t *testing.T) {
    if CarrierName("SEFL") != "Southeastern Freight Lines" {
        t.Fatalf("known code")
    }
    if CarrierName("ZZZZ") != "ZZZZ" {
        t.Fatalf("unknown code falls back to the code")
    }
    if CarrierName("") != UnknownCarrier {
        t.Fatalf("empty code falls back to sentinel")
    }
}

func TestDedupeKeepsCheapest(t *testing.T) {
    quotes := []model.Quote{
        {CarrierCode: "ODFL", ServiceLevelCode: "STD", CarrierTotalRate: 900},
        {CarrierCode: "SAIA", ServiceLevelCode: "STD", CarrierTotalRate: 850},
        {CarrierCode: "ODFL", ServiceLevelCode: "STD", CarrierTotalRate: 812.50},
        {CarrierCode: "ODFL", ServiceLevelCode: "GTD", CarrierTotalRate: 1100},
    }
    got := Dedupe(quotes)
    if len(got) != 3 {
        t.Fatalf("want 3 survivors, got %d", len(got))
    }
    if got[0].CarrierCode != "ODFL" || got[0].CarrierTotalRate != 812.50 {
        t.Fatalf("cheapest duplicate should survive in place: %+v", got[0])
    }
    if got[1].CarrierCode != "SAIA" || got[2].ServiceLevelCode != "GTD" {
        t.Fatalf("order should be first-seen: %+v", got)
    }
}
