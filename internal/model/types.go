package model

// Core domain types for freight quoting

// Routing networks a shipment can be sent to for rating.
const (
    RouteReefer   = "reefer-network"
    RouteStandard = "standard-network"
    RouteDual     = "dual-mode"
)

// Fetch variants. Dual-mode shipments are rated twice, once per variant,
// and each result set is tagged with the variant that produced it.
const (
    VariantStandard = "standard"
    VariantVolume   = "volume"
    VariantReefer   = "reefer"
)

// Source networks for raw quotes.
const (
    NetworkProject44 = "project44"
    NetworkFreshX    = "freshx"
)

// ShipmentRequest describes a single freight move (one RFQ row).
// Immutable once constructed by the import boundary.
type ShipmentRequest struct {
    RFQNumber      string  `json:"rfqNumber,omitempty"`
    OriginZip      string  `json:"originZip"`
    DestinationZip string  `json:"destinationZip"`
    Pallets        int     `json:"pallets"`
    GrossWeight    float64 `json:"grossWeight"` // lbs
    IsStackable    bool    `json:"isStackable,omitempty"`
    IsReefer       bool    `json:"isReefer,omitempty"`
    Temperature    string  `json:"temperature,omitempty"` // AMBIENT, CHILLED, FROZEN
    IsFoodGrade    bool    `json:"isFoodGrade,omitempty"`

    LineItems        []LineItem `json:"lineItems,omitempty"`
    AccessorialCodes []string   `json:"accessorialCodes,omitempty"`

    // Optional address / contact / scheduling fields carried through
    // from the import template. None of these affect classification
    // or pricing; they ride along into the upstream rating request.
    OriginCity         string `json:"originCity,omitempty"`
    OriginState        string `json:"originState,omitempty"`
    OriginAddress      string `json:"originAddress,omitempty"`
    OriginCompany      string `json:"originCompany,omitempty"`
    OriginContactName  string `json:"originContactName,omitempty"`
    OriginContactPhone string `json:"originContactPhone,omitempty"`
    OriginContactEmail string `json:"originContactEmail,omitempty"`

    DestinationCity         string `json:"destinationCity,omitempty"`
    DestinationState        string `json:"destinationState,omitempty"`
    DestinationAddress      string `json:"destinationAddress,omitempty"`
    DestinationCompany      string `json:"destinationCompany,omitempty"`
    DestinationContactName  string `json:"destinationContactName,omitempty"`
    DestinationContactPhone string `json:"destinationContactPhone,omitempty"`
    DestinationContactEmail string `json:"destinationContactEmail,omitempty"`

    PickupDate        string `json:"pickupDate,omitempty"` // YYYY-MM-DD
    PickupStartTime   string `json:"pickupStartTime,omitempty"`
    PickupEndTime     string `json:"pickupEndTime,omitempty"`
    DeliveryDate      string `json:"deliveryDate,omitempty"`
    DeliveryStartTime string `json:"deliveryStartTime,omitempty"`
    DeliveryEndTime   string `json:"deliveryEndTime,omitempty"`

    DeclaredValue        float64 `json:"declaredValue,omitempty"`
    FreightClass         string  `json:"freightClass,omitempty"`
    CommodityDescription string  `json:"commodityDescription,omitempty"`
    PreferredCurrency    string  `json:"preferredCurrency,omitempty"`
    PaymentTerms         string  `json:"paymentTerms,omitempty"`
}

// LineItem is one itemized handling unit on a shipment.
type LineItem struct {
    Description  string  `json:"description,omitempty"`
    Quantity     int     `json:"quantity"`
    Weight       float64 `json:"weight"` // lbs, total for the line
    LengthIn     float64 `json:"lengthIn,omitempty"`
    WidthIn      float64 `json:"widthIn,omitempty"`
    HeightIn     float64 `json:"heightIn,omitempty"`
    FreightClass string  `json:"freightClass,omitempty"`
    Stackable    bool    `json:"stackable,omitempty"`
}

// Charge is a single itemized charge as reported by a carrier.
type Charge struct {
    Code        string  `json:"code,omitempty"`
    Description string  `json:"description,omitempty"`
    Amount      float64 `json:"amount"`
}

// Quote is the normalized internal representation of one carrier quote.
// Immutable after normalization; pricing fields live on QuoteWithPricing.
type Quote struct {
    CarrierName string `json:"carrierName"`
    CarrierCode string `json:"carrierCode,omitempty"`
    SCAC        string `json:"scac,omitempty"`

    ServiceLevelCode        string `json:"serviceLevelCode,omitempty"`
    ServiceLevelDescription string `json:"serviceLevelDescription,omitempty"`
    TransitDays             int    `json:"transitDays,omitempty"`

    // Cost components. When the upstream supplied a pre-summed total,
    // CarrierTotalRate holds it verbatim and Charges is the upstream
    // charge list unmodified; the component fields may then be zero.
    BaseRate             float64  `json:"baseRate,omitempty"`
    FuelSurcharge        float64  `json:"fuelSurcharge,omitempty"`
    PremiumsAndDiscounts float64  `json:"premiumsAndDiscounts,omitempty"`
    CarrierTotalRate     float64  `json:"carrierTotalRate"`
    Charges              []Charge `json:"charges,omitempty"`

    SourceNetwork string `json:"sourceNetwork"`
    QuoteMode     string `json:"quoteMode,omitempty"`   // fetch variant that produced it
    Temperature   string `json:"temperature,omitempty"` // reefer routes only

    // Pickup/dropoff snapshot
    OriginZip      string `json:"originZip,omitempty"`
    DestinationZip string `json:"destinationZip,omitempty"`
}

// Margin types recorded on a priced quote.
const (
    MarginTypeCustomer = "customer"
    MarginTypeFallback = "fallback"
    MarginTypeFlat     = "flat"
)

// ChargeBreakdown buckets a quote's itemized charges for display.
type ChargeBreakdown struct {
    Base        []Charge `json:"base,omitempty"`
    Fuel        []Charge `json:"fuel,omitempty"`
    Accessorial []Charge `json:"accessorial,omitempty"`
    Discounts   []Charge `json:"discounts,omitempty"`
    Premiums    []Charge `json:"premiums,omitempty"`
    Other       []Charge `json:"other,omitempty"`
}

// QuoteWithPricing is a Quote after the pricing engine has run.
// Invariants: Profit = CustomerPrice - CarrierTotalRate;
// AppliedMarginPercentage = Profit / CustomerPrice * 100 when CustomerPrice > 0.
type QuoteWithPricing struct {
    Quote

    CustomerPrice           float64         `json:"customerPrice"`
    Profit                  float64         `json:"profit"`
    MarkupApplied           float64         `json:"markupApplied"`
    AppliedMarginType       string          `json:"appliedMarginType"`
    AppliedMarginPercentage float64         `json:"appliedMarginPercentage"`
    IsCustomPrice           bool            `json:"isCustomPrice,omitempty"`
    ChargeBreakdown         ChargeBreakdown `json:"chargeBreakdown"`
}

// Markup types for PricingSettings.
const (
    MarkupPercentage = "percentage"
    MarkupFlat       = "flat"
)

// PricingSettings is the externally-owned pricing configuration.
// MarkupValue is a percentage when MarkupType is "percentage" and a
// dollar amount when MarkupType is "flat".
type PricingSettings struct {
    MarkupType               string  `json:"markupType"`
    MarkupValue              float64 `json:"markupValue"`
    MinimumProfit            float64 `json:"minimumProfit"`
    UsesCustomerMargins      bool    `json:"usesCustomerMargins,omitempty"`
    FallbackMarkupPercentage float64 `json:"fallbackMarkupPercentage,omitempty"`
}

// DefaultFallbackMarkup is applied when customer margins are enabled but
// no explicit fallback percentage has been configured.
const DefaultFallbackMarkup = 23.0

// Decision is the classifier's routing verdict for one shipment.
// Reason names the triggering condition and its actual values; it is
// surfaced to the user and part of the contract.
type Decision struct {
    Route  string `json:"route"`
    Reason string `json:"reason"`
}

// Per-shipment processing lifecycle. Terminal states are final.
const (
    StatusPending    = "pending"
    StatusProcessing = "processing"
    StatusSuccess    = "success"
    StatusError      = "error"
)

// ProcessingResult bundles everything produced for one shipment.
type ProcessingResult struct {
    ID          string             `json:"id"`
    BatchID     string             `json:"batchId,omitempty"`
    Shipment    ShipmentRequest    `json:"shipment"`
    Route       string             `json:"route,omitempty"`
    Reason      string             `json:"reason,omitempty"`
    Quotes      []QuoteWithPricing `json:"quotes,omitempty"`
    Status      string             `json:"status"`
    Error       string             `json:"error,omitempty"`
    ProcessedAt string             `json:"processedAt,omitempty"`
}

// BatchStats are aggregates over a full run. Failed shipments are
// excluded from price/profit math.
type BatchStats struct {
    TotalShipments int     `json:"totalShipments"`
    SuccessCount   int     `json:"successCount"`
    ErrorCount     int     `json:"errorCount"`
    QuoteCount     int     `json:"quoteCount"`
    BestPrice      float64 `json:"bestPrice,omitempty"`
    TotalProfit    float64 `json:"totalProfit"`
}

// Batch is a named quoting run.
type Batch struct {
    ID          string     `json:"id"`
    TenantID    string     `json:"tenantId"`
    Name        string     `json:"name,omitempty"`
    Customer    string     `json:"customer,omitempty"`
    Status      string     `json:"status"`
    Stats       BatchStats `json:"stats"`
    CreatedAt   string     `json:"createdAt,omitempty"`
    CompletedAt string     `json:"completedAt,omitempty"`
}

// CustomerMargin is one per-customer-per-carrier margin row.
type CustomerMargin struct {
    ID            string  `json:"id"`
    TenantID      string  `json:"tenantId"`
    CustomerName  string  `json:"customerName"`
    CarrierName   string  `json:"carrierName,omitempty"`
    CarrierCode   string  `json:"carrierCode,omitempty"`
    MarginPercent float64 `json:"marginPercent"`
}

// SubscriptionRequest registers a webhook endpoint for batch events.
type SubscriptionRequest struct {
    TenantID string   `json:"tenantId"`
    URL      string   `json:"url"`
    Events   []string `json:"events"`
    Secret   string   `json:"secret"`
}

// Subscription is a stored webhook subscription.
type Subscription struct {
    ID       string   `json:"id"`
    TenantID string   `json:"tenantId"`
    URL      string   `json:"url"`
    Events   []string `json:"events"`
    Secret   string   `json:"secret,omitempty"`
}
