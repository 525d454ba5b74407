package api

import (
    "context"
    "net/http"
    "strings"

    "freightquote/internal/auth"
    "freightquote/internal/config"
    "freightquote/internal/rates"
    "freightquote/internal/store"
    "freightquote/internal/webhooks"
)

type Server struct {
    Store  store.Store
    Pub    *webhooks.Publisher
    Auth   *auth.Verifier
    Broker EventBroker
    Rates  rates.Fetcher
    Cfg    *config.Config
}

// NewServer wires the service from config. Without a DATABASE_URL the
// in-memory store is used; without a REDIS_URL the in-process broker.
func NewServer(cfg *config.Config) (*Server, error) {
    var s store.Store
    if strings.TrimSpace(cfg.Database.URL) == "" {
        s = store.NewMemory()
    } else {
        sp, err := store.NewPostgres(cfg.Database.URL)
        if err != nil {
            return nil, err
        }
        if cfg.Database.Migrate {
            _ = sp.MigrateDir("db/migrations")
        }
        s = sp
    }
    var broker EventBroker
    if cfg.Redis.URL != "" {
        if rb, err := NewRedisBroker(cfg.Redis.URL); err == nil { broker = rb } else { broker = NewBroker() }
    } else {
        broker = NewBroker()
    }
    rc := rates.NewClient(
        rates.NewProject44Client(cfg.Project44.BaseURL, cfg.Project44.ClientID, cfg.Project44.ClientSecret),
        rates.NewFreshXClient(cfg.FreshX.BaseURL, cfg.FreshX.APIKey),
        cfg.Pricing.UpstreamRPS,
    )
    return &Server{
        Store:  s,
        Pub:    webhooks.NewPublisher(s),
        Auth:   auth.NewVerifierFromEnv(),
        Broker: broker,
        Rates:  rc,
        Cfg:    cfg,
    }, nil
}

func (s *Server) withTenant(r *http.Request) (context.Context, string) {
    tenant := s.getPrincipal(r).Tenant
    ctx := context.WithValue(r.Context(), ctxKeyTenant{}, tenant)
    return ctx, tenant
}

type ctxKeyTenant struct{}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
    return webhooks.NewWorker(s.Store)
}
