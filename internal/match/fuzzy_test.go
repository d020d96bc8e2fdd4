package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vigyl/internal/model"
	"github.com/sells-group/vigyl/internal/seed"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"", "", 1},
		{"fintech", "fintech", 1},
		{"Fintech", "FINTECH", 1},
		{"kitten", "sitting", 1 - 3.0/7.0},
		{"abc", "", 0},
		{"insurance", "insurence", 1 - 1.0/9.0},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.InDelta(t, tt.want, Similarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestSimilarity_Symmetric(t *testing.T) {
	words := []string{"", "a", "fintech", "FinTech Services", "healthcare", "health care", "Real Estate", "realty", "Ünïcödé", "saas"}
	for _, a := range words {
		for _, b := range words {
			assert.Equal(t, Similarity(a, b), Similarity(b, a), "similarity(%q,%q)", a, b)
		}
	}
}

func TestIsMatch(t *testing.T) {
	assert.True(t, IsMatch("Fintech", "fintech"))
	assert.True(t, IsMatch("FinTech Services", "Fintech"), "target contained in name")
	assert.True(t, IsMatch("Health", "Healthcare"), "name contained in target")
	assert.True(t, IsMatch("Insurence", "Insurance"), "typo within edit distance")
	assert.False(t, IsMatch("Retail", "Energy"))
	assert.False(t, IsMatch("", "Energy"))
	assert.False(t, IsMatch("   ", "Energy"))
}

func TestMatcher_Threshold(t *testing.T) {
	strict := New(0.95)
	assert.False(t, strict.IsMatch("Insurence", "Insurance"))

	loose := New(0)
	assert.Equal(t, DefaultThreshold, loose.threshold())
}

func TestMatchUserIndustries_Fallback(t *testing.T) {
	catalog := seed.Default().Industries()

	for name, input := range map[string][]string{
		"nil":       nil,
		"empty":     {},
		"unmatched": {"Underwater Basket Weaving"},
	} {
		t.Run(name, func(t *testing.T) {
			got := MatchUserIndustries(catalog, input)
			assert.Equal(t, catalog, got)
		})
	}
}

func TestMatchUserIndustries_Matches(t *testing.T) {
	catalog := seed.Default().Industries()

	got := MatchUserIndustries(catalog, []string{"Fintech", "health care", "real-estate"})
	ids := make([]string, len(got))
	for n, ind := range got {
		ids[n] = ind.ID
	}
	assert.Equal(t, []string{"ind-fintech", "ind-healthcare", "ind-real-estate"}, ids)
}

func TestFindIndustry(t *testing.T) {
	catalog := []model.Industry{
		{ID: "1", Slug: "fintech", Name: "Fintech"},
		{ID: "2", Slug: "real-estate", Name: "Real Estate"},
		{ID: "3", Slug: "insurance", Name: "Insurance"},
	}

	ind, ok := FindIndustry(catalog, "real-estate")
	require.True(t, ok)
	assert.Equal(t, "2", ind.ID)

	ind, ok = FindIndustry(catalog, "Commercial Real Estate")
	require.True(t, ok)
	assert.Equal(t, "2", ind.ID)

	ind, ok = FindIndustry(catalog, "Insurnce")
	require.True(t, ok)
	assert.Equal(t, "3", ind.ID)

	_, ok = FindIndustry(catalog, "Aerospace")
	assert.False(t, ok)

	_, ok = FindIndustry(catalog, "")
	assert.False(t, ok)
}

