// Package generate orchestrates calls to the intelligence provider: the full
// intelligence run, the resumable per-industry AI impact loop, and the
// prospect expand sub-run. Results are reconciled against the seed catalog
// before they leave this package.
package generate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vigyl/internal/match"
	"github.com/sells-group/vigyl/internal/merge"
	"github.com/sells-group/vigyl/internal/model"
	"github.com/sells-group/vigyl/internal/seed"
)

// Provider is the external intelligence collaborator.
type Provider interface {
	GenerateFullIntelligence(ctx context.Context, profile model.Profile) (*model.Intelligence, error)
	GenerateAIImpactForIndustry(ctx context.Context, industry model.IndustryRef, profile model.Profile) (*model.AIImpactAnalysis, error)
	ExpandProspects(ctx context.Context, industry model.Industry, profile model.Profile, existing []model.Prospect) ([]model.Prospect, error)
}

// Mode selects how a full generation reports failure.
type Mode int

const (
	// ModeForeground is the blocking first load: errors reach the user.
	ModeForeground Mode = iota
	// ModeBackground is the silent refresh over existing data: errors are
	// logged and the last-known-good snapshot stays in place.
	ModeBackground
)

func (m Mode) String() string {
	if m == ModeBackground {
		return "background"
	}
	return "foreground"
}

// Orchestrator runs generation against a Provider and the seed catalog.
type Orchestrator struct {
	provider      Provider
	catalog       *seed.Catalog
	matcher       match.Matcher
	callTimeout   time.Duration
	maxIndustries int
	now           func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMatcher sets the fuzzy matcher used for industry resolution.
func WithMatcher(m match.Matcher) Option {
	return func(o *Orchestrator) { o.matcher = m }
}

// WithCallTimeout bounds each provider call. Zero means no per-call limit.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.callTimeout = d }
}

// WithMaxIndustries caps the work list of a full-mode AI impact run.
func WithMaxIndustries(n int) Option {
	return func(o *Orchestrator) { o.maxIndustries = n }
}

// WithClock overrides the time source for GeneratedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an Orchestrator.
func New(p Provider, catalog *seed.Catalog, opts ...Option) *Orchestrator {
	if catalog == nil {
		catalog = seed.Default()
	}
	o := &Orchestrator{
		provider: p,
		catalog:  catalog,
		matcher:  match.New(match.DefaultThreshold),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Catalog returns the seed catalog the orchestrator merges against.
func (o *Orchestrator) Catalog() *seed.Catalog {
	return o.catalog
}

// Matcher returns the orchestrator's fuzzy matcher.
func (o *Orchestrator) Matcher() match.Matcher {
	return o.matcher
}

func (o *Orchestrator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.callTimeout)
}

// GenerateFull runs one full intelligence generation and reconciles the
// returned industries with the seed catalog. An incomplete profile is a
// configuration error and the provider is never called. In background mode a
// provider failure is logged and returned wrapped with ErrBackgroundRefresh.
func (o *Orchestrator) GenerateFull(ctx context.Context, profile model.Profile, mode Mode) (*model.Intelligence, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	log := zap.L().With(
		zap.String("component", "generate"),
		zap.String("mode", mode.String()),
		zap.String("user_id", profile.UserID),
	)
	start := time.Now()

	callCtx, cancel := o.callContext(ctx)
	defer cancel()

	intel, err := o.provider.GenerateFullIntelligence(callCtx, profile)
	if err == nil && intel == nil {
		err = eris.New("provider returned no intelligence")
	}
	if err != nil {
		if mode == ModeBackground {
			log.Warn("background refresh failed, keeping last snapshot", zap.Error(err))
			return nil, fmt.Errorf("%w: %w", ErrBackgroundRefresh, err)
		}
		log.Error("full intelligence generation failed", zap.Error(err))
		return nil, eris.Wrap(err, "generate: full intelligence")
	}

	seedIndustries := o.catalog.Industries()
	for _, dropped := range merge.Unmatched(seedIndustries, intel.Industries) {
		log.Info("dropping industry with no seed match",
			zap.String("slug", dropped.Slug),
			zap.String("name", dropped.Name),
		)
	}

	out := &model.Intelligence{
		Industries: merge.Industries(seedIndustries, intel.Industries),
		Signals:    make([]model.Signal, 0, len(intel.Signals)),
		Prospects:  make([]model.Prospect, 0, len(intel.Prospects)),
	}
	for _, s := range intel.Signals {
		s.Normalize()
		out.Signals = append(out.Signals, s)
	}
	out.Prospects = merge.AppendProspects(nil, o.normalizeProspects(out.Industries, intel.Prospects))

	log.Info("full intelligence generated",
		zap.Int("industries", len(out.Industries)),
		zap.Int("ai_industries", len(intel.Industries)),
		zap.Int("signals", len(out.Signals)),
		zap.Int("prospects", len(out.Prospects)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

// normalizeProspects clamps fields and points each prospect's IndustryID at a
// known industry when the provider returned a name or slug instead.
func (o *Orchestrator) normalizeProspects(industries []model.Industry, prospects []model.Prospect) []model.Prospect {
	out := make([]model.Prospect, 0, len(prospects))
	for _, p := range prospects {
		p.Normalize()
		p.CompanyName = strings.TrimSpace(p.CompanyName)
		if p.CompanyName == "" {
			continue
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if _, ok := findByID(industries, p.IndustryID); !ok && p.IndustryID != "" {
			if ind, ok := o.matcher.FindIndustry(industries, p.IndustryID); ok {
				p.IndustryID = ind.ID
			}
		}
		out = append(out, p)
	}
	return out
}

func findByID(industries []model.Industry, id string) (model.Industry, bool) {
	for _, ind := range industries {
		if ind.ID == id {
			return ind, true
		}
	}
	return model.Industry{}, false
}

// Expand asks the provider for more prospects in one industry and returns
// existing with the new, deduplicated prospects appended.
func (o *Orchestrator) Expand(ctx context.Context, profile model.Profile, industry model.Industry, existing []model.Prospect) ([]model.Prospect, int, error) {
	if err := profile.Validate(); err != nil {
		return nil, 0, err
	}

	callCtx, cancel := o.callContext(ctx)
	defer cancel()

	extra, err := o.provider.ExpandProspects(callCtx, industry, profile, existing)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "generate: expand %s", industry.ID)
	}
	for n := range extra {
		if extra[n].IndustryID == "" {
			extra[n].IndustryID = industry.ID
		}
	}

	out := merge.AppendProspects(existing, o.normalizeProspects([]model.Industry{industry}, extra))
	added := len(out) - len(existing)
	zap.L().Info("expanded prospects",
		zap.String("industry", industry.ID),
		zap.Int("returned", len(extra)),
		zap.Int("added", added),
	)
	return out, added, nil
}
