package pricing

import (
    "testing"

    "freightquote/internal/model"
)

func TestBreakdownBucketsItemizedCharges(t *testing.T) {
    q := model.Quote{
        CarrierTotalRate: 1000,
        Charges: []model.Charge{
            {Code: "LH", Description: "Linehaul", Amount: 700},
            {Code: "FSC", Description: "Fuel surcharge", Amount: 160},
            {Code: "LGATE", Description: "Liftgate delivery", Amount: 95},
            {Code: "DISC", Description: "Volume discount", Amount: -55},
            {Code: "MISC", Description: "Paperwork", Amount: 100},
        },
    }
    bd := BuildChargeBreakdown(q)
    if len(bd.Base) != 1 || bd.Base[0].Amount != 700 {
        t.Fatalf("base: %+v", bd.Base)
    }
    if len(bd.Fuel) != 1 || len(bd.Accessorial) != 1 || len(bd.Discounts) != 1 {
        t.Fatalf("buckets: %+v", bd)
    }
    if len(bd.Other) != 1 || bd.Other[0].Code != "MISC" {
        t.Fatalf("other: %+v", bd.Other)
    }
}

func TestBreakdownNegativeAmountIsDiscount(t *testing.T) {
    bd := BuildChargeBreakdown(model.Quote{Charges: []model.Charge{{Code: "ADJ", Description: "Adjustment", Amount: -20}}})
    if len(bd.Discounts) != 1 {
        t.Fatalf("negative charge must be a discount: %+v", bd)
    }
}

func TestBreakdownSyntheticComponents(t *testing.T) {
    q := model.Quote{BaseRate: 900, FuelSurcharge: 150, PremiumsAndDiscounts: -50, CarrierTotalRate: 1000}
    bd := BuildChargeBreakdown(q)
    if len(bd.Base) != 1 || len(bd.Fuel) != 1 || len(bd.Discounts) != 1 {
        t.Fatalf("synthetic buckets: %+v", bd)
    }
}

func TestBreakdownTotalOnlyFallback(t *testing.T) {
    bd := BuildChargeBreakdown(model.Quote{CarrierTotalRate: 842.17})
    if len(bd.Other) != 1 || bd.Other[0].Amount != 842.17 {
        t.Fatalf("total-only quote should land in Other: %+v", bd)
    }
}
