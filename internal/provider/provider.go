// Package provider implements the intelligence provider on top of the
// Anthropic messages API.
package provider

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vigyl/internal/match"
	"github.com/sells-group/vigyl/internal/model"
	"github.com/sells-group/vigyl/internal/persona"
	"github.com/sells-group/vigyl/internal/resilience"
	"github.com/sells-group/vigyl/internal/seed"
	"github.com/sells-group/vigyl/pkg/anthropic"
)

const providerName = "anthropic"

// Config tunes the Anthropic provider.
type Config struct {
	Model           string
	MaxTokens       int64
	ImpactMaxTokens int64
	CacheTTL        string
	Temperature     *float64
	Retry           resilience.RetryConfig
	Breaker         resilience.CircuitBreakerConfig
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = "claude-sonnet-4-5-20250929"
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 8192
	}
	if c.ImpactMaxTokens <= 0 {
		c.ImpactMaxTokens = 4096
	}
	if c.CacheTTL == "" {
		c.CacheTTL = "5m"
	}
	return c
}

// Anthropic generates intelligence with Claude. It satisfies
// generate.Provider.
type Anthropic struct {
	client  anthropic.Client
	catalog *seed.Catalog
	matcher match.Matcher
	cfg     Config
	breaker *resilience.CircuitBreaker
}

// New creates an Anthropic provider. The catalog bounds the industries the
// model is asked about.
func New(client anthropic.Client, catalog *seed.Catalog, matcher match.Matcher, cfg Config) *Anthropic {
	if catalog == nil {
		catalog = seed.Default()
	}
	cfg = cfg.withDefaults()

	breakerCfg := cfg.Breaker
	breakerCfg.ShouldTrip = resilience.IsTransient
	breakerCfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("provider circuit breaker state change",
			zap.String("provider", providerName),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}

	return &Anthropic{
		client:  client,
		catalog: catalog,
		matcher: matcher,
		cfg:     cfg,
		breaker: resilience.NewCircuitBreaker(breakerCfg),
	}
}

// call sends one prompt through the circuit breaker with retries and
// returns the raw text of the reply.
func (a *Anthropic) call(ctx context.Context, operation, system, user string, maxTokens int64) (string, error) {
	retry := a.cfg.Retry
	retry.OnRetry = resilience.RetryLogger(providerName, operation)

	req := anthropic.MessageRequest{
		Model:       a.cfg.Model,
		MaxTokens:   maxTokens,
		System:      anthropic.BuildCachedSystemBlocks(system, a.cfg.CacheTTL),
		Messages:    []anthropic.Message{{Role: "user", Content: user}},
		Temperature: a.cfg.Temperature,
	}

	start := time.Now()
	resp, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return resilience.ExecuteVal(ctx, a.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return a.client.CreateMessage(ctx, req)
		})
	})
	if err != nil {
		return "", eris.Wrapf(err, "provider: %s", operation)
	}

	resp.Usage.LogCost(a.cfg.Model, operation)
	zap.L().Debug("provider call complete",
		zap.String("operation", operation),
		zap.String("stop_reason", resp.StopReason),
		zap.Duration("elapsed", time.Since(start)),
	)
	if resp.StopReason == "max_tokens" {
		zap.L().Warn("provider reply truncated at max_tokens", zap.String("operation", operation))
	}
	return resp.Text(), nil
}

// GenerateFullIntelligence asks for industry metrics, signals and prospects
// in one call.
func (a *Anthropic) GenerateFullIntelligence(ctx context.Context, profile model.Profile) (*model.Intelligence, error) {
	pc := persona.Lookup(profile.Persona)
	targets := a.matcher.MatchUserIndustries(a.catalog.Industries(), profile.TargetIndustries)

	text, err := a.call(ctx, "full_intelligence", systemPrompt(pc), fullPrompt(profile, pc, targets), a.cfg.MaxTokens)
	if err != nil {
		return nil, err
	}
	return parseIntelligence(text)
}

// GenerateAIImpactForIndustry asks for the AI impact analysis of one
// industry.
func (a *Anthropic) GenerateAIImpactForIndustry(ctx context.Context, industry model.IndustryRef, profile model.Profile) (*model.AIImpactAnalysis, error) {
	pc := persona.Lookup(profile.Persona)

	text, err := a.call(ctx, "ai_impact", systemPrompt(pc), impactPrompt(profile, industry), a.cfg.ImpactMaxTokens)
	if err != nil {
		return nil, err
	}
	analysis, err := parseImpact(text)
	if err != nil {
		return nil, eris.Wrapf(err, "provider: ai impact for %s", industry.ID)
	}
	if analysis.IndustryID == "" {
		analysis.IndustryID = industry.ID
	}
	if analysis.IndustryName == "" {
		analysis.IndustryName = industry.Name
	}
	return analysis, nil
}

// ExpandProspects asks for more prospects in one industry, excluding the
// companies already known.
func (a *Anthropic) ExpandProspects(ctx context.Context, industry model.Industry, profile model.Profile, existing []model.Prospect) ([]model.Prospect, error) {
	pc := persona.Lookup(profile.Persona)

	text, err := a.call(ctx, "expand_prospects", systemPrompt(pc), expandPrompt(profile, pc, industry, existing), a.cfg.MaxTokens)
	if err != nil {
		return nil, err
	}
	return parseProspects(text)
}
