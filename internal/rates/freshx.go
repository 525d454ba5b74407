package rates

import (
    "bytes"
    "context"
    "encoding/json"
    "net/http"
    "strings"
    "time"

    "freightquote/internal/model"
)

// FreshXClient rates temperature-controlled shipments against the
// reefer network. Authentication is a static API key header.
type FreshXClient struct {
    BaseURL string
    APIKey  string
    HTTP    *http.Client
}

func NewFreshXClient(baseURL, apiKey string) *FreshXClient {
    return &FreshXClient{
        BaseURL: strings.TrimRight(baseURL, "/"),
        APIKey:  apiKey,
        HTTP:    &http.Client{Timeout: 30 * time.Second},
    }
}

type freshxRequest struct {
    OriginZip      string  `json:"originZip"`
    DestinationZip string  `json:"destinationZip"`
    Pallets        int     `json:"palletCount"`
    Weight         float64 `json:"totalWeight"`
    Temperature    string  `json:"temperature"`
    FoodGrade      bool    `json:"isFoodGrade,omitempty"`
    Stackable      bool    `json:"isStackable,omitempty"`
    PickupDate     string  `json:"pickupDate,omitempty"`
}

type freshxResponse struct {
    Quotes []model.FreshXRaw `json:"quotes"`
}

func (c *FreshXClient) FetchQuotes(ctx context.Context, s model.ShipmentRequest, variant string) ([]model.RawQuote, error) {
    temp := s.Temperature
    if temp == "" {
        temp = "CHILLED"
    }
    body, _ := json.Marshal(freshxRequest{
        OriginZip:      s.OriginZip,
        DestinationZip: s.DestinationZip,
        Pallets:        s.Pallets,
        Weight:         s.GrossWeight,
        Temperature:    temp,
        FoodGrade:      s.IsFoodGrade,
        Stackable:      s.IsStackable,
        PickupDate:     s.PickupDate,
    })
    req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/quotes", bytes.NewReader(body))
    if err != nil {
        return nil, &FetchError{Network: model.NetworkFreshX, Err: err}
    }
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("X-Api-Key", c.APIKey)
    resp, err := c.HTTP.Do(req)
    if err != nil {
        return nil, &FetchError{Network: model.NetworkFreshX, Err: err}
    }
    defer func() { _ = resp.Body.Close() }()
    if resp.StatusCode < 200 || resp.StatusCode >= 300 {
        return nil, &FetchError{Network: model.NetworkFreshX, Status: resp.StatusCode}
    }
    var out freshxResponse
    if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
        return nil, &FetchError{Network: model.NetworkFreshX, Err: err}
    }
    raws := make([]model.RawQuote, 0, len(out.Quotes))
    for _, q := range out.Quotes {
        raws = append(raws, q)
    }
    return raws, nil
}
