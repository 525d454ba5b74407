package model

// Raw carrier quote shapes. These are ephemeral: they exist only between
// the upstream fetch and normalization. Each upstream network has its own
// schema, modeled as an explicit variant rather than probed dynamically.

// RawQuote is the tagged union over network-specific quote records.
type RawQuote interface {
    Network() string
}

// Project44Raw mirrors the rateQuoteDetail shape returned by the
// standard/volume LTL network.
type Project44Raw struct {
    CarrierCode string `json:"carrierCode"`
    SCAC        string `json:"scac,omitempty"`

    ServiceLevelCode        string `json:"serviceLevelCode,omitempty"`
    ServiceLevelDescription string `json:"serviceLevelDescription,omitempty"`
    TransitDays             int    `json:"transitDays,omitempty"`
    CurrencyCode            string `json:"currencyCode,omitempty"`

    RateQuoteDetail Project44RateDetail `json:"rateQuoteDetail"`
}

// Project44RateDetail carries the pre-summed total and its itemized charges.
type Project44RateDetail struct {
    Total   float64  `json:"total"`
    Charges []Charge `json:"charges,omitempty"`
}

func (Project44Raw) Network() string { return NetworkProject44 }

// FreshXRaw is the flat reefer-network quote shape.
type FreshXRaw struct {
    CarrierName  string `json:"carrierName,omitempty"`
    CarrierCode  string `json:"carrierCode,omitempty"`
    SCAC         string `json:"scac,omitempty"`
    ServiceLevel string `json:"serviceLevel,omitempty"`
    TransitDays  int    `json:"transitDays,omitempty"`

    BaseRate             float64 `json:"baseRate,omitempty"`
    FuelSurcharge        float64 `json:"fuelSurcharge,omitempty"`
    PremiumsAndDiscounts float64 `json:"premiumsAndDiscounts,omitempty"`
    Total                float64 `json:"total,omitempty"` // pre-summed when non-zero

    Temperature string `json:"temperature,omitempty"`
}

func (FreshXRaw) Network() string { return NetworkFreshX }
