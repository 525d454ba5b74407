// Package classify decides which quoting network(s) apply to a shipment.
package classify

import (
    "fmt"
    "strconv"
    "strings"

    "freightquote/internal/model"
)

// Volume thresholds for the standard LTL network. At or above either,
// a shipment is worth rating as volume LTL in addition to standard.
const (
    VolumePalletThreshold = 10
    VolumeWeightThreshold = 15000.0 // lbs
)

// Classify routes a shipment. Pure and total: reefer always wins, then
// size promotes to dual-mode, otherwise standard. The reason names the
// triggering condition with the shipment's actual values.
func Classify(s model.ShipmentRequest) model.Decision {
    if s.IsReefer {
        reason := fmt.Sprintf("reefer shipment (temperature %s); routed to the reefer network regardless of size (%d pallets, %s lbs)",
            temperatureOrDefault(s.Temperature), s.Pallets, formatWeight(s.GrossWeight))
        return model.Decision{Route: model.RouteReefer, Reason: reason}
    }
    if s.Pallets >= VolumePalletThreshold || s.GrossWeight >= VolumeWeightThreshold {
        reason := fmt.Sprintf("%d pallets / %s lbs meets volume thresholds (>= %d pallets or >= %s lbs); quoting volume and standard LTL",
            s.Pallets, formatWeight(s.GrossWeight), VolumePalletThreshold, formatWeight(VolumeWeightThreshold))
        return model.Decision{Route: model.RouteDual, Reason: reason}
    }
    reason := fmt.Sprintf("%d pallets / %s lbs below volume thresholds (< %d pallets and < %s lbs); standard LTL only",
        s.Pallets, formatWeight(s.GrossWeight), VolumePalletThreshold, formatWeight(VolumeWeightThreshold))
    return model.Decision{Route: model.RouteStandard, Reason: reason}
}

// Variants returns the fetch variants a route requires, in the order the
// fetches should be issued. Dual-mode shipments are rated twice.
func Variants(route string) []string {
    switch route {
    case model.RouteReefer:
        return []string{model.VariantReefer}
    case model.RouteDual:
        return []string{model.VariantVolume, model.VariantStandard}
    default:
        return []string{model.VariantStandard}
    }
}

func temperatureOrDefault(t string) string {
    if strings.TrimSpace(t) == "" {
        return "CHILLED"
    }
    return t
}

// formatWeight renders a weight with thousands separators ("4,500").
func formatWeight(w float64) string {
    s := strconv.FormatFloat(w, 'f', -1, 64)
    intPart := s
    frac := ""
    if i := strings.IndexByte(s, '.'); i >= 0 {
        intPart, frac = s[:i], s[i:]
    }
    if len(intPart) <= 3 {
        return s
    }
    var b strings.Builder
    pre := len(intPart) % 3
    if pre > 0 {
        b.WriteString(intPart[:pre])
    }
    for i := pre; i < len(intPart); i += 3 {
        if b.Len() > 0 {
            b.WriteByte(',')
        }
        b.WriteString(intPart[i : i+3])
    }
    return b.String() + frac
}
