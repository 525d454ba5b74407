package api

import (
	"fmt"

	"freightquote/internal/model"
)

const maxBatchShipments = 500

type batchRequest struct {
	Name         string                  `json:"name"`
	CustomerName string                  `json:"customerName"`
	Shipments    []model.ShipmentRequest `json:"shipments"`
	Concurrency  int                     `json:"concurrency"`
	Settings     *model.PricingSettings  `json:"settings"`
}

func validateBatchRequest(req *batchRequest) error {
	if len(req.Shipments) == 0 {
		return fmt.Errorf("shipments must not be empty")
	}
	if len(req.Shipments) > maxBatchShipments {
		return fmt.Errorf("at most %d shipments per batch", maxBatchShipments)
	}
	if req.Concurrency < 0 {
		return fmt.Errorf("concurrency must be >= 0")
	}
	if req.Concurrency > 16 {
		return fmt.Errorf("concurrency must be <= 16")
	}
	return nil
}

func validateMargin(m *model.CustomerMargin) error {
	if m.CustomerName == "" {
		return fmt.Errorf("customerName is required")
	}
	if m.MarginPercent < 0 || m.MarginPercent >= 100 {
		return fmt.Errorf("marginPercent must be in [0,100)")
	}
	return nil
}
