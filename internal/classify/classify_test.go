package classify

import (
    "strings"
    "testing"

    "freightquote/internal/model"
)

func TestClassifySmallStandard(t *testing.T) {
    d := Classify(model.ShipmentRequest{Pallets: 4, GrossWeight: 4500})
    if d.Route != model.RouteStandard {
        t.Fatalf("route: got %s", d.Route)
    }
    if !strings.Contains(d.Reason, "4 pallets / 4,500 lbs") {
        t.Fatalf("reason missing actual values: %q", d.Reason)
    }
    if v := Variants(d.Route); len(v) != 1 || v[0] != model.VariantStandard {
        t.Fatalf("variants: %v", v)
    }
}

func TestClassifyDualByPallets(t *testing.T) {
    d := Classify(model.ShipmentRequest{Pallets: 12, GrossWeight: 9000})
    if d.Route != model.RouteDual {
        t.Fatalf("route: got %s", d.Route)
    }
    v := Variants(d.Route)
    if len(v) != 2 || v[0] != model.VariantVolume || v[1] != model.VariantStandard {
        t.Fatalf("dual variants: %v", v)
    }
}

func TestClassifyDualByWeight(t *testing.T) {
    d := Classify(model.ShipmentRequest{Pallets: 6, GrossWeight: 18000})
    if d.Route != model.RouteDual {
        t.Fatalf("route: got %s", d.Route)
    }
    if !strings.Contains(d.Reason, "18,000 lbs") {
        t.Fatalf("reason: %q", d.Reason)
    }
}

func TestClassifyBoundaryMeetsThreshold(t *testing.T) {
    if d := Classify(model.ShipmentRequest{Pallets: 10, GrossWeight: 1000}); d.Route != model.RouteDual {
        t.Fatalf("10 pallets should be dual, got %s", d.Route)
    }
    if d := Classify(model.ShipmentRequest{Pallets: 2, GrossWeight: 15000}); d.Route != model.RouteDual {
        t.Fatalf("15,000 lbs should be dual, got %s", d.Route)
    }
    if d := Classify(model.ShipmentRequest{Pallets: 9, GrossWeight: 14999.9}); d.Route != model.RouteStandard {
        t.Fatalf("just below thresholds should be standard, got %s", d.Route)
    }
}

func TestClassifyReeferWinsOverSize(t *testing.T) {
    d := Classify(model.ShipmentRequest{Pallets: 20, GrossWeight: 30000, IsReefer: true, Temperature: "FROZEN"})
    if d.Route != model.RouteReefer {
        t.Fatalf("reefer must win: got %s", d.Route)
    }
    if !strings.Contains(d.Reason, "FROZEN") {
        t.Fatalf("reason should carry temperature: %q", d.Reason)
    }
    if v := Variants(d.Route); len(v) != 1 || v[0] != model.VariantReefer {
        t.Fatalf("variants: %v", v)
    }
}

func TestClassifyReeferDefaultsChilled(t *testing.T) {
    d := Classify(model.ShipmentRequest{Pallets: 2, GrossWeight: 900, IsReefer: true})
    if !strings.Contains(d.Reason, "CHILLED") {
        t.Fatalf("unset temperature should default to CHILLED: %q", d.Reason)
    }
}
