// Package persona holds the per-persona configuration that drives labels in
// the dashboard and the focus of generation prompts. Call sites look a
// persona up once and read fields; they never branch on the persona string.
package persona

import (
	"strings"

	"github.com/sells-group/vigyl/internal/model"
)

// Persona identifies who the dashboard is tuned for.
type Persona string

const (
	Sales     Persona = "sales"
	HR        Persona = "hr"
	Investor  Persona = "investor"
	Executive Persona = "executive"
	Marketing Persona = "marketing"
)

// Default is used when a profile carries no persona or an unknown one.
const Default = Sales

// Labels are the user-visible nouns that change with the persona.
type Labels struct {
	Prospects string `json:"prospects"`
	Score     string `json:"score"`
	Pipeline  string `json:"pipeline"`
	Signals   string `json:"signals"`
}

// Config is everything persona-specific.
type Config struct {
	Persona     Persona            `json:"persona"`
	Labels      Labels             `json:"labels"`
	PromptFocus string             `json:"-"`
	SignalTypes []model.SignalType `json:"-"`
}

var configs = map[Persona]Config{
	Sales: {
		Persona: Sales,
		Labels:  Labels{Prospects: "Prospects", Score: "Vigyl Score", Pipeline: "Pipeline", Signals: "Market Signals"},
		PromptFocus: "Focus on companies likely to buy in the next two quarters and the events that create " +
			"urgency for a sales conversation.",
		SignalTypes: []model.SignalType{model.SignalFunding, model.SignalExpansion, model.SignalLeadership, model.SignalMAndA},
	},
	HR: {
		Persona: HR,
		Labels:  Labels{Prospects: "Talent Targets", Score: "Talent Pressure", Pipeline: "Outreach", Signals: "Workforce Signals"},
		PromptFocus: "Focus on hiring freezes, layoffs, leadership churn and skills shifts that change where " +
			"talent is available.",
		SignalTypes: []model.SignalType{model.SignalLayoffs, model.SignalLeadership, model.SignalTechnology},
	},
	Investor: {
		Persona: Investor,
		Labels:  Labels{Prospects: "Watchlist", Score: "Opportunity Score", Pipeline: "Diligence", Signals: "Market Signals"},
		PromptFocus: "Focus on capital flows, consolidation and regulatory moves that reprice companies in " +
			"each industry.",
		SignalTypes: []model.SignalType{model.SignalFunding, model.SignalMAndA, model.SignalRegulatory, model.SignalMarketShift},
	},
	Executive: {
		Persona: Executive,
		Labels:  Labels{Prospects: "Accounts", Score: "Priority Score", Pipeline: "Initiatives", Signals: "Strategic Signals"},
		PromptFocus: "Focus on strategic shifts, competitive moves and regulation that should change " +
			"next quarter's plan.",
		SignalTypes: []model.SignalType{model.SignalRegulatory, model.SignalMarketShift, model.SignalMAndA},
	},
	Marketing: {
		Persona: Marketing,
		Labels:  Labels{Prospects: "Target Accounts", Score: "Intent Score", Pipeline: "Campaigns", Signals: "Market Signals"},
		PromptFocus: "Focus on launches, expansions and technology adoption that open a messaging window.",
		SignalTypes: []model.SignalType{model.SignalExpansion, model.SignalTechnology, model.SignalMarketShift},
	},
}

// Parse normalizes a raw persona string, returning Default when unknown.
func Parse(s string) Persona {
	p := Persona(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := configs[p]; ok {
		return p
	}
	return Default
}

// Lookup returns the configuration for a raw persona string.
func Lookup(s string) Config {
	c := configs[Parse(s)]
	c.SignalTypes = append([]model.SignalType(nil), c.SignalTypes...)
	return c
}

// All returns every known persona in a stable order.
func All() []Persona {
	return []Persona{Sales, HR, Investor, Executive, Marketing}
}
