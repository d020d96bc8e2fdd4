package main

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/vigyl/internal/cache"
	"github.com/sells-group/vigyl/internal/generate"
	"github.com/sells-group/vigyl/internal/match"
	"github.com/sells-group/vigyl/internal/model"
	"github.com/sells-group/vigyl/internal/provider"
	"github.com/sells-group/vigyl/internal/resilience"
	"github.com/sells-group/vigyl/internal/seed"
	"github.com/sells-group/vigyl/internal/store"
	anthropicpkg "github.com/sells-group/vigyl/pkg/anthropic"
	sfpkg "github.com/sells-group/vigyl/pkg/salesforce"
)

// vigylEnv holds the store, cache and generation stack shared by commands.
type vigylEnv struct {
	Store   store.Store
	Cache   *cache.Adapter
	Catalog *seed.Catalog
	Matcher match.Matcher
	Gen     *generate.Orchestrator // nil unless generation was requested
}

// Close releases resources held by the environment.
func (e *vigylEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "vigyl.db"
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

func initCatalog() (*seed.Catalog, error) {
	if cfg.Seed.Path == "" {
		return seed.Default(), nil
	}
	c, err := seed.LoadFile(cfg.Seed.Path)
	if err != nil {
		return nil, eris.Wrap(err, "load seed catalog")
	}
	zap.L().Info("loaded seed catalog", zap.String("path", cfg.Seed.Path), zap.Int("industries", c.Len()))
	return c, nil
}

// initEnv opens and migrates the store. withGen also builds the Anthropic
// provider and the orchestrator. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string, withGen bool) (*vigylEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	catalog, err := initCatalog()
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	env := &vigylEnv{
		Store:   st,
		Cache:   cache.New(st, cache.WithCASRetries(cfg.Cache.CASRetries)),
		Catalog: catalog,
		Matcher: match.New(cfg.Match.SimilarityThreshold),
	}
	if withGen {
		env.Gen = initOrchestrator(catalog, env.Matcher)
	}
	return env, nil
}

func initOrchestrator(catalog *seed.Catalog, matcher match.Matcher) *generate.Orchestrator {
	initial, maxBackoff := cfg.Generation.RetryBackoff()
	p := provider.New(anthropicpkg.NewClient(cfg.Anthropic.Key), catalog, matcher, provider.Config{
		Model:           cfg.Anthropic.Model,
		MaxTokens:       cfg.Anthropic.MaxTokens,
		ImpactMaxTokens: cfg.Anthropic.ImpactMaxTokens,
		CacheTTL:        cfg.Anthropic.CacheTTL,
		Retry:           resilience.NewRetryConfig(cfg.Generation.RetryAttempts, initial, maxBackoff),
		Breaker:         resilience.NewCircuitBreakerConfig(cfg.Generation.CircuitThreshold, cfg.Generation.CircuitReset()),
	})
	return generate.New(p, catalog,
		generate.WithMatcher(matcher),
		generate.WithCallTimeout(cfg.Generation.CallTimeout()),
		generate.WithMaxIndustries(cfg.Generation.ImpactMaxIndustries),
	)
}

func initSalesforce() (sfpkg.Client, error) {
	return sfpkg.Connect(sfpkg.Config{
		LoginURL:  cfg.Salesforce.LoginURL,
		Username:  cfg.Salesforce.Username,
		ClientID:  cfg.Salesforce.ClientID,
		KeyPath:   cfg.Salesforce.KeyPath,
		RateLimit: cfg.Salesforce.RateLimit,
	})
}

// addProfileFlags registers the flags that describe the signed-in user.
func addProfileFlags(cmd *cobra.Command) {
	cmd.Flags().String("user", "", "user id (required)")
	cmd.Flags().String("company", "", "user's company name")
	cmd.Flags().String("persona", "sales", "persona: sales, hr, investor, executive, marketing")
	cmd.Flags().StringSlice("industries", nil, "target industries (comma-separated)")
	cmd.Flags().String("product", "", "product description")
	cmd.Flags().String("region", "", "sales region")
	_ = cmd.MarkFlagRequired("user")
}

func profileFromFlags(cmd *cobra.Command) model.Profile {
	user, _ := cmd.Flags().GetString("user")
	company, _ := cmd.Flags().GetString("company")
	persona, _ := cmd.Flags().GetString("persona")
	industries, _ := cmd.Flags().GetStringSlice("industries")
	product, _ := cmd.Flags().GetString("product")
	region, _ := cmd.Flags().GetString("region")

	return model.Profile{
		UserID:             strings.TrimSpace(user),
		CompanyName:        strings.TrimSpace(company),
		Persona:            persona,
		TargetIndustries:   industries,
		ProductDescription: product,
		Region:             region,
	}
}
