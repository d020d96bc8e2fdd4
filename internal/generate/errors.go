package generate

import (
	"context"
	"errors"

	"github.com/sells-group/vigyl/internal/model"
	"github.com/sells-group/vigyl/internal/resilience"
)

var (
	// ErrBackgroundRefresh marks a failed silent refresh. The caller keeps
	// the data it already shows.
	ErrBackgroundRefresh = errors.New("generate: background refresh failed")

	// ErrImpactTotalFailure is returned when an AI impact run ends with no
	// results at all.
	ErrImpactTotalFailure = errors.New("generate: AI impact analysis failed for every industry")

	// ErrNoIndustries is returned when an AI impact run has nothing to do.
	ErrNoIndustries = errors.New("generate: no industries to analyze")
)

// UserMessage maps a generation error to the banner text shown to the user.
// It returns "" for nil.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, model.ErrInvalidProfile):
		return "Complete your company profile to generate intelligence."
	case errors.Is(err, ErrImpactTotalFailure):
		return "AI impact analysis could not be generated for any industry. Please try again."
	case errors.Is(err, ErrNoIndustries):
		return "There are no industries to analyze yet."
	case errors.Is(err, context.Canceled):
		return "Generation was cancelled."
	case errors.Is(err, context.DeadlineExceeded):
		return "The intelligence provider took too long to respond. Showing the most recent data."
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "The intelligence provider is unavailable right now. Showing the most recent data."
	}

	switch resilience.Classify(err) {
	case resilience.KindRateLimited:
		return "The intelligence provider is rate limiting requests. Try again in a few minutes."
	case resilience.KindTransient:
		return "Couldn't reach the intelligence provider. Showing the most recent data."
	default:
		return "Intelligence generation failed. Showing the most recent data."
	}
}
