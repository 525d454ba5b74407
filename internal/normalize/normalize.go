// Package normalize maps network-specific raw quotes into the internal
// Quote representation.
package normalize

import (
    "log"

    "freightquote/internal/model"
)

// UnknownCarrier is the display-name sentinel when a carrier code cannot
// be resolved and no code is present to fall back to.
const UnknownCarrier = "Unknown Carrier"

// carrierNames resolves common SCAC/carrier codes to display names.
var carrierNames = map[string]string{
    "ABFS": "ABF Freight",
    "AACT": "AAA Cooper Transportation",
    "CNWY": "XPO Logistics",
    "CTII": "Central Transport",
    "DAFG": "Dayton Freight Lines",
    "DHRN": "Dohrn Transfer",
    "EXLA": "Estes Express Lines",
    "FXFE": "FedEx Freight Priority",
    "FXNL": "FedEx Freight Economy",
    "HMES": "Holland",
    "MDTL": "Midwest Motor Express",
    "ODFL": "Old Dominion Freight Line",
    "PENS": "Peninsula Truck Lines",
    "PITD": "PITT OHIO",
    "PYLE": "A. Duie Pyle",
    "RDFS": "Roadrunner Freight",
    "RLCA": "R+L Carriers",
    "SAIA": "Saia LTL Freight",
    "SEFL": "Southeastern Freight Lines",
    "UPGF": "TForce Freight",
    "WARD": "Ward Transport",
    "XPOL": "XPO Logistics",
}

// CarrierName resolves a code to a display name, falling back to the raw
// code and finally to the UnknownCarrier sentinel.
func CarrierName(code string) string {
    if name, ok := carrierNames[code]; ok {
        return name
    }
    if code != "" {
        return code
    }
    return UnknownCarrier
}

// Normalize converts a batch of raw quotes from one fetch into Quotes.
// Records without a usable pricing signal are dropped with a log note:
// partial results from a multi-carrier fetch are expected, not an error.
// Duplicate (carrierCode, serviceLevelCode) pairs keep only the cheapest.
func Normalize(raws []model.RawQuote, shipment model.ShipmentRequest, variant string) []model.Quote {
    quotes := make([]model.Quote, 0, len(raws))
    for _, raw := range raws {
        q, ok := one(raw, shipment, variant)
        if !ok {
            log.Printf("normalize: dropping %s quote with no usable pricing (carrier=%s service=%s)",
                raw.Network(), rawCarrierCode(raw), rawServiceCode(raw))
            continue
        }
        quotes = append(quotes, q)
    }
    return Dedupe(quotes)
}

func one(raw model.RawQuote, shipment model.ShipmentRequest, variant string) (model.Quote, bool) {
    switch r := raw.(type) {
    case model.Project44Raw:
        return fromProject44(r, shipment, variant)
    case model.FreshXRaw:
        return fromFreshX(r, shipment, variant)
    default:
        return model.Quote{}, false
    }
}

// fromProject44 uses the upstream total verbatim when present and passes
// its charge list through unmodified. Charges are displayed exactly as
// received, never recomputed, so they cannot drift from the carrier's
// stated total.
func fromProject44(r model.Project44Raw, shipment model.ShipmentRequest, variant string) (model.Quote, bool) {
    if r.RateQuoteDetail.Total <= 0 {
        return model.Quote{}, false
    }
    code := r.CarrierCode
    if code == "" {
        code = r.SCAC
    }
    q := model.Quote{
        CarrierName:             CarrierName(code),
        CarrierCode:             code,
        SCAC:                    r.SCAC,
        ServiceLevelCode:        r.ServiceLevelCode,
        ServiceLevelDescription: r.ServiceLevelDescription,
        TransitDays:             r.TransitDays,
        CarrierTotalRate:        r.RateQuoteDetail.Total,
        Charges:                 r.RateQuoteDetail.Charges,
        SourceNetwork:           model.NetworkProject44,
        QuoteMode:               variant,
        OriginZip:               shipment.OriginZip,
        DestinationZip:          shipment.DestinationZip,
    }
    return q, true
}

// fromFreshX prefers a pre-summed non-zero total, else falls back to the
// component sum. Quotes with neither signal are invalid.
func fromFreshX(r model.FreshXRaw, shipment model.ShipmentRequest, variant string) (model.Quote, bool) {
    total := r.Total
    if total <= 0 {
        total = r.BaseRate + r.FuelSurcharge + r.PremiumsAndDiscounts
    }
    if total <= 0 {
        return model.Quote{}, false
    }
    code := r.CarrierCode
    if code == "" {
        code = r.SCAC
    }
    name := r.CarrierName
    if name == "" {
        name = CarrierName(code)
    }
    q := model.Quote{
        CarrierName:             name,
        CarrierCode:             code,
        SCAC:                    r.SCAC,
        ServiceLevelCode:        r.ServiceLevel,
        ServiceLevelDescription: r.ServiceLevel,
        TransitDays:             r.TransitDays,
        BaseRate:                r.BaseRate,
        FuelSurcharge:           r.FuelSurcharge,
        PremiumsAndDiscounts:    r.PremiumsAndDiscounts,
        CarrierTotalRate:        total,
        SourceNetwork:           model.NetworkFreshX,
        QuoteMode:               variant,
        Temperature:             reeferTemperature(r, shipment),
        OriginZip:               shipment.OriginZip,
        DestinationZip:          shipment.DestinationZip,
    }
    return q, true
}

// reeferTemperature preserves the requested temperature on reefer quotes,
// preferring what the carrier echoed back.
func reeferTemperature(r model.FreshXRaw, shipment model.ShipmentRequest) string {
    if r.Temperature != "" {
        return r.Temperature
    }
    return shipment.Temperature
}

// Dedupe keeps the cheapest quote per (carrierCode, serviceLevelCode),
// preserving first-seen order of the survivors.
func Dedupe(quotes []model.Quote) []model.Quote {
    type key struct{ carrier, service string }
    best := make(map[key]int, len(quotes))
    out := make([]model.Quote, 0, len(quotes))
    for _, q := range quotes {
        k := key{q.CarrierCode, q.ServiceLevelCode}
        if i, seen := best[k]; seen {
            if q.CarrierTotalRate < out[i].CarrierTotalRate {
                out[i] = q
            }
            continue
        }
        best[k] = len(out)
        out = append(out, q)
    }
    return out
}

func rawCarrierCode(raw model.RawQuote) string {
    switch r := raw.(type) {
    case model.Project44Raw:
        if r.CarrierCode != "" {
            return r.CarrierCode
        }
        return r.SCAC
    case model.FreshXRaw:
        if r.CarrierCode != "" {
            return r.CarrierCode
        }
        return r.SCAC
    }
    return ""
}

func rawServiceCode(raw model.RawQuote) string {
    switch r := raw.(type) {
    case model.Project44Raw:
        return r.ServiceLevelCode
    case model.FreshXRaw:
        return r.ServiceLevel
    }
    return ""
}
