// Package match resolves free-text industry names against the seed catalog.
package match

import (
	"strings"
	"unicode/utf8"

	"github.com/agext/levenshtein"
	"golang.org/x/text/cases"

	"github.com/sells-group/vigyl/internal/model"
)

// DefaultThreshold is the similarity a pair must exceed to count as a match.
const DefaultThreshold = 0.6

// unitCost is classic edit distance: insert, delete and substitute all cost 1.
var unitCost = levenshtein.NewParams().InsCost(1).DelCost(1).SubCost(1)

// Matcher matches names using substring containment and normalized edit
// distance. The zero value uses DefaultThreshold.
type Matcher struct {
	Threshold float64
}

// New returns a Matcher with the given threshold; non-positive values fall
// back to DefaultThreshold.
func New(threshold float64) Matcher {
	return Matcher{Threshold: threshold}
}

func (m Matcher) threshold() float64 {
	if m.Threshold <= 0 {
		return DefaultThreshold
	}
	return m.Threshold
}

// fold case-folds s for comparison. Casers are stateful, so one is built per call.
func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// Similarity returns 1 - editDistance(a, b) / max(len(a), len(b)) over
// case-folded runes. Two empty strings are identical.
func Similarity(a, b string) float64 {
	a, b = fold(a), fold(b)
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return 1
	}
	dist := levenshtein.Distance(a, b, unitCost)
	return 1 - float64(dist)/float64(longest)
}

// IsMatch reports whether name and target refer to the same thing: either
// contains the other ignoring case, or their similarity exceeds the
// threshold. Blank inputs never match.
func (m Matcher) IsMatch(name, target string) bool {
	n, t := fold(name), fold(target)
	if n == "" || t == "" {
		return false
	}
	if strings.Contains(t, n) || strings.Contains(n, t) {
		return true
	}
	return Similarity(n, t) > m.threshold()
}

// IsMatch uses the default matcher.
func IsMatch(name, target string) bool {
	return Matcher{}.IsMatch(name, target)
}

// MatchUserIndustries maps a user's stated target industries onto the
// catalog. It never returns an empty result: when names is empty or nothing
// matches, the full catalog is returned in catalog order.
func (m Matcher) MatchUserIndustries(catalog []model.Industry, names []string) []model.Industry {
	var out []model.Industry
	for _, ind := range catalog {
		for _, name := range names {
			if m.IsMatch(name, ind.Name) || m.IsMatch(name, ind.Slug) {
				out = append(out, ind.Clone())
				break
			}
		}
	}
	if len(out) == 0 {
		return model.CloneIndustries(catalog)
	}
	return out
}

// MatchUserIndustries uses the default matcher.
func MatchUserIndustries(catalog []model.Industry, names []string) []model.Industry {
	return Matcher{}.MatchUserIndustries(catalog, names)
}

// FindIndustry returns the catalog entry that best matches name: an exact
// slug or name first, then substring containment, then the highest similarity
// above the threshold.
func (m Matcher) FindIndustry(catalog []model.Industry, name string) (model.Industry, bool) {
	key := fold(name)
	if key == "" {
		return model.Industry{}, false
	}

	for _, ind := range catalog {
		if fold(ind.Slug) == key || fold(ind.Name) == key {
			return ind, true
		}
	}
	for _, ind := range catalog {
		n := fold(ind.Name)
		if strings.Contains(n, key) || strings.Contains(key, n) {
			return ind, true
		}
	}

	best, bestScore := -1, m.threshold()
	for n, ind := range catalog {
		if s := Similarity(key, ind.Name); s > bestScore {
			best, bestScore = n, s
		}
	}
	if best < 0 {
		return model.Industry{}, false
	}
	return catalog[best], true
}

// FindIndustry uses the default matcher.
func FindIndustry(catalog []model.Industry, name string) (model.Industry, bool) {
	return Matcher{}.FindIndustry(catalog, name)
}
