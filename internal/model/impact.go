package model

import "time"

// FunctionImpact is one business function placed in an automation zone.
type FunctionImpact struct {
	Function       string  `json:"function"`
	Description    string  `json:"description"`
	AutomationRate float64 `json:"automationRate"`
}

// ImpactZones groups business functions by how AI changes them.
type ImpactZones struct {
	AILed         []FunctionImpact `json:"ai_led"`
	Collaborative []FunctionImpact `json:"collaborative"`
	HumanLed      []FunctionImpact `json:"human_led"`
}

// ValueChainStage describes AI exposure at one step of an industry value chain.
type ValueChainStage struct {
	Stage       string  `json:"stage"`
	ImpactLevel string  `json:"impactLevel"`
	Score       float64 `json:"score"`
}

// KPI is a metric the persona should track for an industry.
type KPI struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

// AIImpactAnalysis is the per-industry AI impact assessment. Results are keyed
// by IndustryID; IndustryName is a secondary key used when the provider
// returns a name without a matching id.
type AIImpactAnalysis struct {
	IndustryID                    string            `json:"industryId"`
	IndustryName                  string            `json:"industryName"`
	Zones                         ImpactZones       `json:"zones"`
	AutomationRate                float64           `json:"automationRate"`
	JobDisplacementIndex          float64           `json:"jobDisplacementIndex"`
	HumanResilienceScore          float64           `json:"humanResilienceScore"`
	CollaborativeOpportunityIndex float64           `json:"collaborativeOpportunityIndex"`
	ValueChain                    []ValueChainStage `json:"valueChain"`
	KPIs                          []KPI             `json:"kpis"`
	GeneratedAt                   time.Time         `json:"generatedAt"`
}

// Normalize clamps every aggregate index into 0–100.
func (a *AIImpactAnalysis) Normalize() {
	a.AutomationRate = ClampIndex(a.AutomationRate)
	a.JobDisplacementIndex = ClampIndex(a.JobDisplacementIndex)
	a.HumanResilienceScore = ClampIndex(a.HumanResilienceScore)
	a.CollaborativeOpportunityIndex = ClampIndex(a.CollaborativeOpportunityIndex)
	for n := range a.ValueChain {
		a.ValueChain[n].Score = ClampIndex(a.ValueChain[n].Score)
	}
}
