package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-engine/internal/enrich"
	"github.com/sells-group/lead-engine/internal/resilience"
	"github.com/sells-group/lead-engine/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "leads.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initEnricher() (enrich.Enricher, error) {
	if cfg.Enrich.BaseURL == "" {
		return nil, eris.New("enrichment base URL is required (LEADENGINE_ENRICH_BASE_URL)")
	}

	retry := resilience.DefaultRetryConfig()
	if cfg.Enrich.MaxRetries > 0 {
		retry.MaxAttempts = cfg.Enrich.MaxRetries
	}

	return enrich.NewHTTP(enrich.HTTPOptions{
		BaseURL:           cfg.Enrich.BaseURL,
		APIKey:            cfg.Enrich.APIKey,
		Timeout:           time.Duration(cfg.Enrich.TimeoutSecs) * time.Second,
		RequestsPerSecond: cfg.Enrich.RequestsPerSecond,
		Retry:             retry,
	}), nil
}
