package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rotisserie/eris"

	"github.com/arbscout/sourcing-cli/internal/bizconfig"
	"github.com/arbscout/sourcing-cli/internal/model"
	"github.com/arbscout/sourcing-cli/internal/pipeline"
	"github.com/arbscout/sourcing-cli/internal/render"
	"github.com/arbscout/sourcing-cli/internal/resilience"
	"github.com/arbscout/sourcing-cli/internal/store"
	"github.com/arbscout/sourcing-cli/pkg/catalog"
)

// scoringEnv bundles the long-lived pieces a command needs: the backing
// store, the configuration resolver, the scorer, and the output renderer.
type scoringEnv struct {
	Store    store.Store
	Resolver *bizconfig.Resolver
	Scorer   *pipeline.Scorer
	Renderer *render.Renderer
}

func (e *scoringEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initScoring(ctx context.Context) (*scoringEnv, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	resolver, err := bizconfig.NewResolver(st)
	if err != nil {
		st.Close()
		return nil, err
	}

	renderer, err := render.New(cfg.Render.Locale, cfg.Render.Currency)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &scoringEnv{
		Store:    st,
		Resolver: resolver,
		Scorer:   pipeline.NewScorer(resolver),
		Renderer: renderer,
	}, nil
}

func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.SQLitePath)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	case "memory":
		return store.NewMemory(), nil
	default:
		return nil, eris.Errorf("env: unknown store driver %q", cfg.Store.Driver)
	}
}

// catalogClient builds the snapshot API client over the shared store's
// snapshot cache. Requires catalog.key to be configured.
func catalogClient(st store.Store) (catalog.Client, error) {
	if cfg.Catalog.Key == "" {
		return nil, eris.New("env: catalog.key is not configured (set ARBSCOUT_CATALOG_KEY)")
	}

	breaker := resilience.NewBreaker(resilience.BreakerFromConfig(
		cfg.Catalog.BreakerThreshold, cfg.Catalog.BreakerCooldown))

	retry := resilience.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.Catalog.MaxRetries

	cache := catalog.NewCache(time.Duration(cfg.Catalog.CacheTTLHours)*time.Hour, st)

	return catalog.NewClient(cfg.Catalog.Key, cfg.Catalog.Domain,
		catalog.WithBaseURL(cfg.Catalog.BaseURL),
		catalog.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Catalog.TimeoutSecs) * time.Second}),
		catalog.WithRateLimit(cfg.Catalog.RequestsPerMin),
		catalog.WithTokenReserve(cfg.Catalog.TokenBudget),
		catalog.WithBreaker(breaker),
		catalog.WithRetryPolicy(retry),
		catalog.WithCache(cache),
	), nil
}

// loadSnapshotFile reads one raw snapshot, or an array of them, from a JSON
// file. "-" reads stdin.
func loadSnapshotFile(path string) ([]*model.RawSnapshot, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "env: read snapshot file %s", path)
	}

	// Accept either a single object or an array.
	var many []*model.RawSnapshot
	if err := json.Unmarshal(data, &many); err == nil {
		return many, nil
	}

	var one model.RawSnapshot
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, eris.Wrapf(err, "env: parse snapshot file %s", path)
	}
	return []*model.RawSnapshot{&one}, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
