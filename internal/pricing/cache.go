package pricing

import "sync"

// MarginCache memoizes customer+carrier margin lookups for the duration
// of a customer session. It has no expiry: the owner must call Clear
// when the active customer changes, or stale entries will silently
// misprice quotes.
type MarginCache struct {
    mu sync.RWMutex
    m  map[string]float64
}

func NewMarginCache() *MarginCache {
    return &MarginCache{m: map[string]float64{}}
}

func (c *MarginCache) Get(customer, carrierCode string) (float64, bool) {
    c.mu.RLock()
    defer c.mu.RUnlock()
    pct, ok := c.m[customer+"|"+carrierCode]
    return pct, ok
}

func (c *MarginCache) Put(customer, carrierCode string, pct float64) {
    c.mu.Lock()
    defer c.mu.Unlock()
    c.m[customer+"|"+carrierCode] = pct
}

// Clear drops every cached margin.
func (c *MarginCache) Clear() {
    c.mu.Lock()
    defer c.mu.Unlock()
    c.m = map[string]float64{}
}

// Len reports the number of cached entries.
func (c *MarginCache) Len() int {
    c.mu.RLock()
    defer c.mu.RUnlock()
    return len(c.m)
}
