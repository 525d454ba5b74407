package rfq

import (
    "fmt"
    "math"
    "regexp"

    "freightquote/internal/model"
)

// InputError marks a shipment that fails basic validation. It is
// surfaced before any network call and aborts only that shipment.
type InputError struct {
    Field string
    Msg   string
}

func (e *InputError) Error() string {
    return fmt.Sprintf("invalid shipment input: %s: %s", e.Field, e.Msg)
}

var zipRe = regexp.MustCompile(`^\d{5}(-\d{4})?$`)

// Validation bounds. Shipments outside these are template mistakes,
// not real freight moves.
const (
    maxPallets = 60
    maxWeight  = 100000.0
)

// Validate checks a shipment before it is sent upstream. If itemized
// line items are present, their summed weight must match the declared
// gross weight within a small tolerance.
func Validate(s model.ShipmentRequest) error {
    if !zipRe.MatchString(s.OriginZip) {
        return &InputError{Field: "originZip", Msg: fmt.Sprintf("%q is not a valid ZIP code", s.OriginZip)}
    }
    if !zipRe.MatchString(s.DestinationZip) {
        return &InputError{Field: "destinationZip", Msg: fmt.Sprintf("%q is not a valid ZIP code", s.DestinationZip)}
    }
    if s.Pallets < 1 || s.Pallets > maxPallets {
        return &InputError{Field: "pallets", Msg: fmt.Sprintf("%d outside range 1-%d", s.Pallets, maxPallets)}
    }
    if s.GrossWeight <= 0 || s.GrossWeight > maxWeight {
        return &InputError{Field: "grossWeight", Msg: fmt.Sprintf("%.0f outside range 1-%.0f lbs", s.GrossWeight, maxWeight)}
    }
    if len(s.LineItems) > 0 {
        var sum float64
        for i, li := range s.LineItems {
            if li.Weight <= 0 {
                return &InputError{Field: fmt.Sprintf("lineItems[%d].weight", i), Msg: "must be positive"}
            }
            sum += li.Weight
        }
        tol := math.Max(s.GrossWeight*0.01, 1.0)
        if math.Abs(sum-s.GrossWeight) > tol {
            return &InputError{
                Field: "lineItems",
                Msg:   fmt.Sprintf("itemized weight %.1f lbs does not match declared gross weight %.1f lbs", sum, s.GrossWeight),
            }
        }
    }
    return nil
}
