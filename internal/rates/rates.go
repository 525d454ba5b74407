// Package rates fetches raw quotes from the upstream rating networks.
package rates

import (
    "context"
    "fmt"

    "freightquote/internal/model"
)

// Fetcher retrieves raw quotes for one (shipment, variant) pair. An
// empty slice is a valid "no quotes" outcome, not an error.
type Fetcher interface {
    FetchQuotes(ctx context.Context, shipment model.ShipmentRequest, variant string) ([]model.RawQuote, error)
}

// FetchError wraps an upstream rating failure. It is caught per
// shipment and recorded as the shipment's error text; one shipment's
// failure never aborts a batch.
type FetchError struct {
    Network string
    Status  int
    Err     error
}

func (e *FetchError) Error() string {
    if e.Status != 0 {
        return fmt.Sprintf("%s rating failed: status %d", e.Network, e.Status)
    }
    return fmt.Sprintf("%s rating failed: %v", e.Network, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
