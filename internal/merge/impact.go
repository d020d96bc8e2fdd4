package merge

import (
	"github.com/sells-group/vigyl/internal/match"
	"github.com/sells-group/vigyl/internal/model"
)

// UpsertImpact returns a new list where result replaces the entry with the
// same IndustryID, or is appended when none exists. The input is not modified.
func UpsertImpact(list []model.AIImpactAnalysis, result model.AIImpactAnalysis) []model.AIImpactAnalysis {
	out := make([]model.AIImpactAnalysis, 0, len(list)+1)
	replaced := false
	for _, existing := range list {
		if !replaced && existing.IndustryID == result.IndustryID {
			out = append(out, result)
			replaced = true
			continue
		}
		out = append(out, existing)
	}
	if !replaced {
		out = append(out, result)
	}
	return out
}

// UpsertImpacts applies UpsertImpact for every result in order.
func UpsertImpacts(list, results []model.AIImpactAnalysis) []model.AIImpactAnalysis {
	out := append([]model.AIImpactAnalysis(nil), list...)
	for _, r := range results {
		out = UpsertImpact(out, r)
	}
	return out
}

// ResolveImpactIndustry fills in the result's industry identity. A result
// whose IndustryID is present in industries is returned unchanged; otherwise
// the requested ref wins, and failing that the IndustryName is fuzzy matched.
func ResolveImpactIndustry(m match.Matcher, industries []model.Industry, requested model.IndustryRef, result model.AIImpactAnalysis) (model.AIImpactAnalysis, bool) {
	for _, ind := range industries {
		if ind.ID == result.IndustryID {
			if result.IndustryName == "" {
				result.IndustryName = ind.Name
			}
			return result, true
		}
	}
	if requested.ID != "" {
		result.IndustryID = requested.ID
		if result.IndustryName == "" {
			result.IndustryName = requested.Name
		}
		return result, true
	}
	if ind, ok := m.FindIndustry(industries, result.IndustryName); ok {
		result.IndustryID = ind.ID
		return result, true
	}
	return result, false
}

// ImpactIDs lists the industry ids present in an impact list, in order.
func ImpactIDs(list []model.AIImpactAnalysis) []string {
	ids := make([]string, len(list))
	for n, a := range list {
		ids[n] = a.IndustryID
	}
	return ids
}
