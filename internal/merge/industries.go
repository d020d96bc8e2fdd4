// Package merge reconciles seed identity with AI-sourced intelligence.
package merge

import (
	"strings"

	"github.com/sells-group/vigyl/internal/model"
)

// industryIndex keys AI industries by slug and by lowercased name. Later
// entries overwrite earlier ones on key collision.
type industryIndex struct {
	bySlug map[string]model.Industry
	byName map[string]model.Industry
}

func indexIndustries(ai []model.Industry) industryIndex {
	idx := industryIndex{
		bySlug: make(map[string]model.Industry, len(ai)),
		byName: make(map[string]model.Industry, len(ai)),
	}
	for _, ind := range ai {
		if ind.Slug != "" {
			idx.bySlug[ind.Slug] = ind
		}
		if name := nameKey(ind.Name); name != "" {
			idx.byName[name] = ind
		}
	}
	return idx
}

func (idx industryIndex) lookup(seed model.Industry) (model.Industry, bool) {
	if ind, ok := idx.bySlug[seed.Slug]; ok {
		return ind, true
	}
	ind, ok := idx.byName[nameKey(seed.Name)]
	return ind, ok
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Industries overlays AI industries onto the seed catalog. The result has
// exactly one entry per seed industry, in seed order. Matched entries keep the
// seed's id, slug and name, take the AI health score and trend as-is, and take
// the AI top signals and score history only when non-empty. AI industries with
// no seed match are not included.
func Industries(seed, ai []model.Industry) []model.Industry {
	idx := indexIndustries(ai)
	out := make([]model.Industry, len(seed))
	for n, s := range seed {
		src, ok := idx.lookup(s)
		if !ok {
			out[n] = s.Clone()
			continue
		}
		out[n] = overlay(s, src)
	}
	return out
}

func overlay(seed, ai model.Industry) model.Industry {
	merged := seed.Clone()
	merged.HealthScore = ai.HealthScore
	merged.TrendDirection = ai.TrendDirection
	if len(ai.TopSignals) > 0 {
		merged.TopSignals = append([]string(nil), ai.TopSignals...)
	}
	if len(ai.ScoreHistory) > 0 {
		merged.ScoreHistory = append([]model.ScorePoint(nil), ai.ScoreHistory...)
	}
	return merged
}

// Unmatched returns the AI industries whose slug and name match no seed entry.
func Unmatched(seed, ai []model.Industry) []model.Industry {
	slugs := make(map[string]bool, len(seed))
	names := make(map[string]bool, len(seed))
	for _, s := range seed {
		slugs[s.Slug] = true
		names[nameKey(s.Name)] = true
	}

	var out []model.Industry
	for _, ind := range ai {
		if !slugs[ind.Slug] && !names[nameKey(ind.Name)] {
			out = append(out, ind)
		}
	}
	return out
}
