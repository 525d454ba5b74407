package pricing

import (
    "strings"

    "freightquote/internal/model"
)

// BuildChargeBreakdown buckets a quote's charges for display. Quotes
// that carried an upstream charge list keep those charges verbatim;
// component-only quotes get synthetic base/fuel/premium entries so the
// breakdown always reconciles with the carrier total.
func BuildChargeBreakdown(q model.Quote) model.ChargeBreakdown {
    var bd model.ChargeBreakdown
    if len(q.Charges) > 0 {
        for _, c := range q.Charges {
            switch classifyCharge(c) {
            case "base":
                bd.Base = append(bd.Base, c)
            case "fuel":
                bd.Fuel = append(bd.Fuel, c)
            case "accessorial":
                bd.Accessorial = append(bd.Accessorial, c)
            case "discount":
                bd.Discounts = append(bd.Discounts, c)
            case "premium":
                bd.Premiums = append(bd.Premiums, c)
            default:
                bd.Other = append(bd.Other, c)
            }
        }
        return bd
    }
    if q.BaseRate != 0 {
        bd.Base = append(bd.Base, model.Charge{Code: "BASE", Description: "Base rate", Amount: q.BaseRate})
    }
    if q.FuelSurcharge != 0 {
        bd.Fuel = append(bd.Fuel, model.Charge{Code: "FUEL", Description: "Fuel surcharge", Amount: q.FuelSurcharge})
    }
    switch {
    case q.PremiumsAndDiscounts > 0:
        bd.Premiums = append(bd.Premiums, model.Charge{Code: "PREM", Description: "Premiums", Amount: q.PremiumsAndDiscounts})
    case q.PremiumsAndDiscounts < 0:
        bd.Discounts = append(bd.Discounts, model.Charge{Code: "DISC", Description: "Discounts", Amount: q.PremiumsAndDiscounts})
    }
    if len(bd.Base) == 0 && len(bd.Fuel) == 0 && len(bd.Premiums) == 0 && len(bd.Discounts) == 0 && q.CarrierTotalRate > 0 {
        bd.Other = append(bd.Other, model.Charge{Code: "TOTAL", Description: "Carrier total", Amount: q.CarrierTotalRate})
    }
    return bd
}

var accessorialCodes = map[string]struct{}{
    "LGATE":  {},
    "LIFT":   {},
    "RESD":   {},
    "RESDEL": {},
    "INSDLV": {},
    "INPU":   {},
    "APPT":   {},
    "NOTIFY": {},
    "LTDACC": {},
    "HAZM":   {},
}

func classifyCharge(c model.Charge) string {
    code := strings.ToUpper(strings.TrimSpace(c.Code))
    desc := strings.ToLower(c.Description)
    if _, ok := accessorialCodes[code]; ok {
        return "accessorial"
    }
    switch {
    case c.Amount < 0 || code == "DISC" || strings.Contains(desc, "discount"):
        return "discount"
    case code == "BASE" || code == "LH" || code == "LINEHAUL" || code == "FRT" ||
        strings.Contains(desc, "base") || strings.Contains(desc, "linehaul") || strings.Contains(desc, "freight charge"):
        return "base"
    case code == "FUEL" || code == "FSC" || strings.Contains(desc, "fuel"):
        return "fuel"
    case code == "PREM" || strings.Contains(desc, "premium"):
        return "premium"
    case strings.Contains(desc, "liftgate") || strings.Contains(desc, "residential") ||
        strings.Contains(desc, "inside") || strings.Contains(desc, "appointment") ||
        strings.Contains(desc, "limited access") || strings.Contains(desc, "accessorial"):
        return "accessorial"
    default:
        return "other"
    }
}
