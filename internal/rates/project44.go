package rates

import (
    "bytes"
    "context"
    "encoding/json"
    "fmt"
    "net/http"
    "net/url"
    "strings"
    "sync"
    "time"

    "freightquote/internal/model"
)

// Project44Client rates standard and volume LTL shipments. OAuth
// client-credentials tokens are cached until shortly before expiry.
type Project44Client struct {
    BaseURL      string
    ClientID     string
    ClientSecret string
    HTTP         *http.Client

    mu          sync.Mutex
    token       string
    tokenExpiry time.Time
}

func NewProject44Client(baseURL, clientID, clientSecret string) *Project44Client {
    return &Project44Client{
        BaseURL:      strings.TrimRight(baseURL, "/"),
        ClientID:     clientID,
        ClientSecret: clientSecret,
        HTTP:         &http.Client{Timeout: 30 * time.Second},
    }
}

type p44RateRequest struct {
    OriginAddress      p44Address    `json:"originAddress"`
    DestinationAddress p44Address    `json:"destinationAddress"`
    LineItems          []p44LineItem `json:"lineItems"`
    AccessorialCodes   []string      `json:"accessorialServiceCodes,omitempty"`
    TotalPallets       int           `json:"totalPallets,omitempty"`
    TotalWeight        float64       `json:"totalWeight,omitempty"`
    EnhancedHandlingUnits bool       `json:"enhancedHandlingUnits,omitempty"` // volume LTL
    PickupDate         string        `json:"pickupDate,omitempty"`
}

type p44Address struct {
    PostalCode string `json:"postalCode"`
    City       string `json:"city,omitempty"`
    State      string `json:"stateOrProvinceCode,omitempty"`
    Country    string `json:"countryCode"`
}

type p44LineItem struct {
    TotalWeight  float64 `json:"totalWeight"`
    PackageType  string  `json:"packageType"`
    Quantity     int     `json:"totalPieces"`
    FreightClass string  `json:"freightClass,omitempty"`
    Stackable    bool    `json:"stackable,omitempty"`
    LengthIn     float64 `json:"packageLength,omitempty"`
    WidthIn      float64 `json:"packageWidth,omitempty"`
    HeightIn     float64 `json:"packageHeight,omitempty"`
}

type p44RateResponse struct {
    RateQuotes []model.Project44Raw `json:"rateQuotes"`
}

// FetchQuotes issues one rating query. The volume variant sets the
// enhanced-handling flag so the network rates the shipment as VLTL.
func (c *Project44Client) FetchQuotes(ctx context.Context, s model.ShipmentRequest, variant string) ([]model.RawQuote, error) {
    tok, err := c.accessToken(ctx)
    if err != nil {
        return nil, &FetchError{Network: model.NetworkProject44, Err: err}
    }
    body, _ := json.Marshal(buildP44Request(s, variant))
    req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v4/ltl/quotes/rates/query", bytes.NewReader(body))
    if err != nil {
        return nil, &FetchError{Network: model.NetworkProject44, Err: err}
    }
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("Authorization", "Bearer "+tok)
    resp, err := c.HTTP.Do(req)
    if err != nil {
        return nil, &FetchError{Network: model.NetworkProject44, Err: err}
    }
    defer func() { _ = resp.Body.Close() }()
    if resp.StatusCode < 200 || resp.StatusCode >= 300 {
        return nil, &FetchError{Network: model.NetworkProject44, Status: resp.StatusCode}
    }
    var out p44RateResponse
    if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
        return nil, &FetchError{Network: model.NetworkProject44, Err: err}
    }
    raws := make([]model.RawQuote, 0, len(out.RateQuotes))
    for _, q := range out.RateQuotes {
        raws = append(raws, q)
    }
    return raws, nil
}

func buildP44Request(s model.ShipmentRequest, variant string) p44RateRequest {
    items := make([]p44LineItem, 0, len(s.LineItems))
    for _, li := range s.LineItems {
        items = append(items, p44LineItem{
            TotalWeight:  li.Weight,
            PackageType:  "PLT",
            Quantity:     li.Quantity,
            FreightClass: li.FreightClass,
            Stackable:    li.Stackable,
            LengthIn:     li.LengthIn,
            WidthIn:      li.WidthIn,
            HeightIn:     li.HeightIn,
        })
    }
    if len(items) == 0 {
        items = append(items, p44LineItem{
            TotalWeight: s.GrossWeight,
            PackageType: "PLT",
            Quantity:    s.Pallets,
            Stackable:   s.IsStackable,
        })
    }
    return p44RateRequest{
        OriginAddress:      p44Address{PostalCode: s.OriginZip, City: s.OriginCity, State: s.OriginState, Country: "US"},
        DestinationAddress: p44Address{PostalCode: s.DestinationZip, City: s.DestinationCity, State: s.DestinationState, Country: "US"},
        LineItems:          items,
        AccessorialCodes:   s.AccessorialCodes,
        TotalPallets:       s.Pallets,
        TotalWeight:        s.GrossWeight,
        EnhancedHandlingUnits: variant == model.VariantVolume,
        PickupDate:         s.PickupDate,
    }
}

// accessToken returns a cached OAuth token, refreshing when within a
// minute of expiry.
func (c *Project44Client) accessToken(ctx context.Context) (string, error) {
    c.mu.Lock()
    defer c.mu.Unlock()
    if c.token != "" && time.Until(c.tokenExpiry) > time.Minute {
        return c.token, nil
    }
    form := url.Values{}
    form.Set("grant_type", "client_credentials")
    form.Set("client_id", c.ClientID)
    form.Set("client_secret", c.ClientSecret)
    req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v4/oauth2/token", strings.NewReader(form.Encode()))
    if err != nil {
        return "", err
    }
    req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
    resp, err := c.HTTP.Do(req)
    if err != nil {
        return "", err
    }
    defer func() { _ = resp.Body.Close() }()
    if resp.StatusCode != http.StatusOK {
        return "", fmt.Errorf("token exchange: status %d", resp.StatusCode)
    }
    var tok struct {
        AccessToken string `json:"access_token"`
        ExpiresIn   int    `json:"expires_in"`
    }
    if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
        return "", err
    }
    if tok.AccessToken == "" {
        return "", fmt.Errorf("token exchange: empty access_token")
    }
    c.token = tok.AccessToken
    c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
    return c.token, nil
}
