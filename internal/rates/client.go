package rates

import (
    "context"

    "golang.org/x/time/rate"

    "freightquote/internal/metrics"
    "freightquote/internal/model"
)

// Client dispatches fetches to the network that serves each variant and
// applies a shared courtesy rate limit across both upstreams.
type Client struct {
    Project44 Fetcher
    FreshX    Fetcher
    Limiter   *rate.Limiter
}

// NewClient wires both network clients behind one limiter. rps <= 0
// disables throttling.
func NewClient(p44 *Project44Client, freshx *FreshXClient, rps float64) *Client {
    var lim *rate.Limiter
    if rps > 0 {
        lim = rate.NewLimiter(rate.Limit(rps), 1)
    }
    return &Client{Project44: p44, FreshX: freshx, Limiter: lim}
}

func (c *Client) FetchQuotes(ctx context.Context, s model.ShipmentRequest, variant string) ([]model.RawQuote, error) {
    if c.Limiter != nil {
        if err := c.Limiter.Wait(ctx); err != nil {
            return nil, err
        }
    }
    network := model.NetworkProject44
    f := c.Project44
    if variant == model.VariantReefer {
        network = model.NetworkFreshX
        f = c.FreshX
    }
    raws, err := f.FetchQuotes(ctx, s, variant)
    if err != nil {
        metrics.UpstreamFetchFailures.WithLabelValues(network).Inc()
    }
    return raws, err
}
