// Package model defines the intelligence records shared by the seed catalog,
// the merge engine, the generation orchestrator and the cache store.
package model

import "time"

// TrendDirection describes where an industry's health score is heading.
type TrendDirection string

const (
	TrendImproving TrendDirection = "improving"
	TrendDeclining TrendDirection = "declining"
	TrendStable    TrendDirection = "stable"
)

// Valid reports whether d is one of the known trend directions.
func (d TrendDirection) Valid() bool {
	switch d {
	case TrendImproving, TrendDeclining, TrendStable:
		return true
	default:
		return false
	}
}

// ScorePoint is one sample of an industry's health score over time.
type ScorePoint struct {
	Date  time.Time `json:"date" yaml:"date"`
	Score int       `json:"score" yaml:"score"`
}

// Industry is a market segment tracked by the dashboard. ID and Slug are
// assigned by the seed catalog and never change; the remaining fields are
// volatile metrics that a merge may overwrite.
type Industry struct {
	ID             string         `json:"id" yaml:"id"`
	Slug           string         `json:"slug" yaml:"slug"`
	Name           string         `json:"name" yaml:"name"`
	HealthScore    int            `json:"healthScore" yaml:"health_score"`
	TrendDirection TrendDirection `json:"trendDirection" yaml:"trend_direction"`
	TopSignals     []string       `json:"topSignals" yaml:"top_signals"`
	ScoreHistory   []ScorePoint   `json:"scoreHistory" yaml:"score_history"`
}

// Ref returns the minimal identity passed to per-industry generation calls.
func (i Industry) Ref() IndustryRef {
	return IndustryRef{ID: i.ID, Name: i.Name}
}

// Clone returns a deep copy of the industry.
func (i Industry) Clone() Industry {
	out := i
	out.TopSignals = append([]string(nil), i.TopSignals...)
	out.ScoreHistory = append([]ScorePoint(nil), i.ScoreHistory...)
	return out
}

// Normalize clamps metrics into range and defaults unknown enum values.
func (i *Industry) Normalize() {
	i.HealthScore = ClampScore(i.HealthScore)
	if !i.TrendDirection.Valid() {
		i.TrendDirection = TrendStable
	}
	for n := range i.ScoreHistory {
		i.ScoreHistory[n].Score = ClampScore(i.ScoreHistory[n].Score)
	}
}

// IndustryRef identifies an industry for a single generation call.
type IndustryRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CloneIndustries deep-copies a list of industries.
func CloneIndustries(in []Industry) []Industry {
	if in == nil {
		return nil
	}
	out := make([]Industry, len(in))
	for n, ind := range in {
		out[n] = ind.Clone()
	}
	return out
}

// ClampScore bounds a 0–100 score.
func ClampScore(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// ClampIndex bounds a 0–100 floating point index.
func ClampIndex(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
