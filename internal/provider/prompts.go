package provider

import (
	"fmt"
	"strings"

	"github.com/sells-group/vigyl/internal/model"
	"github.com/sells-group/vigyl/internal/persona"
)

const systemTemplate = `You are Vigyl, a B2B market intelligence analyst. You track industry health,
market signals and the companies most affected by them. %s

Always answer with a single JSON object and nothing else. Scores are integers from 0 to 100.
Dates use the format YYYY-MM-DD.`

func systemPrompt(pc persona.Config) string {
	return fmt.Sprintf(systemTemplate, pc.PromptFocus)
}

func describeProfile(p model.Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Company: %s\n", p.CompanyName)
	if p.ProductDescription != "" {
		fmt.Fprintf(&b, "What they sell: %s\n", p.ProductDescription)
	}
	if p.Region != "" {
		fmt.Fprintf(&b, "Region: %s\n", p.Region)
	}
	return b.String()
}

func signalTypeList(pc persona.Config) string {
	names := make([]string, len(pc.SignalTypes))
	for n, st := range pc.SignalTypes {
		names[n] = string(st)
	}
	return strings.Join(names, ", ")
}

const fullTemplate = `%s
Assess these industries (use the slug exactly as given):
%s
Prioritize these signal types: %s.

Return JSON shaped like:
{
  "industries": [{"slug": "...", "name": "...", "healthScore": 0, "trendDirection": "improving|declining|stable",
                  "topSignals": ["..."], "scoreHistory": [{"date": "YYYY-MM-DD", "score": 0}]}],
  "signals": [{"title": "...", "summary": "...", "signalType": "funding|regulatory|layoffs|expansion|leadership|technology|market_shift|m_and_a",
               "sentiment": "positive|negative|neutral", "severity": 1, "industryTags": ["slug"],
               "sources": [{"name": "...", "url": "...", "publishedAt": "YYYY-MM-DD"}]}],
  "prospects": [{"companyName": "...", "vigylScore": 0, "pressureResponse": "contracting|strategic_investment|growth_mode",
                 "industryId": "slug", "relatedSignals": ["signal title"], "whyNow": "...",
                 "contacts": [{"name": "...", "title": "..."}]}]
}
Return 6 to 10 signals and 8 to 12 prospects.`

func fullPrompt(p model.Profile, pc persona.Config, targets []model.Industry) string {
	var list strings.Builder
	for _, ind := range targets {
		fmt.Fprintf(&list, "- %s (%s), current health %d\n", ind.Name, ind.Slug, ind.HealthScore)
	}
	return fmt.Sprintf(fullTemplate, describeProfile(p), list.String(), signalTypeList(pc))
}

const impactTemplate = `%s
Analyze how AI is changing the %s industry (id %s).

Return JSON shaped like:
{
  "industryId": "%s",
  "industryName": "%s",
  "zones": {
    "ai_led": [{"function": "...", "description": "...", "automationRate": 0}],
    "collaborative": [{"function": "...", "description": "...", "automationRate": 0}],
    "human_led": [{"function": "...", "description": "...", "automationRate": 0}]
  },
  "automationRate": 0,
  "jobDisplacementIndex": 0,
  "humanResilienceScore": 0,
  "collaborativeOpportunityIndex": 0,
  "valueChain": [{"stage": "...", "impactLevel": "low|medium|high", "score": 0}],
  "kpis": [{"name": "...", "value": "...", "description": "..."}]
}
Use three to five functions per zone and every index from 0 to 100.`

func impactPrompt(p model.Profile, ref model.IndustryRef) string {
	return fmt.Sprintf(impactTemplate, describeProfile(p), ref.Name, ref.ID, ref.ID, ref.Name)
}

const expandTemplate = `%s
Find more %s in the %s industry (slug %s) beyond the ones already known:
%s
Return JSON shaped like:
{"prospects": [{"companyName": "...", "vigylScore": 0, "pressureResponse": "contracting|strategic_investment|growth_mode",
                "industryId": "%s", "relatedSignals": ["..."], "whyNow": "...", "contacts": [{"name": "...", "title": "..."}]}]}
Return 5 to 8 new companies.`

func expandPrompt(p model.Profile, pc persona.Config, ind model.Industry, existing []model.Prospect) string {
	var known strings.Builder
	for _, pr := range existing {
		fmt.Fprintf(&known, "- %s\n", pr.CompanyName)
	}
	if known.Len() == 0 {
		known.WriteString("- (none)\n")
	}
	noun := strings.ToLower(pc.Labels.Prospects)
	return fmt.Sprintf(expandTemplate, describeProfile(p), noun, ind.Name, ind.Slug, known.String(), ind.Slug)
}
