package provider

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/vigyl/internal/model"
)

// wireIndustry and wireSignal mirror the model types with dates as strings,
// since the model writes dates in whatever layout it likes.
type wireIndustry struct {
	Slug           string   `json:"slug"`
	Name           string   `json:"name"`
	HealthScore    float64  `json:"healthScore"`
	TrendDirection string   `json:"trendDirection"`
	TopSignals     []string `json:"topSignals"`
	ScoreHistory   []struct {
		Date  string  `json:"date"`
		Score float64 `json:"score"`
	} `json:"scoreHistory"`
}

type wireSource struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
}

type wireSignal struct {
	Title        string       `json:"title"`
	Summary      string       `json:"summary"`
	SignalType   string       `json:"signalType"`
	Sentiment    string       `json:"sentiment"`
	Severity     float64      `json:"severity"`
	IndustryTags []string     `json:"industryTags"`
	Sources      []wireSource `json:"sources"`
}

type wireProspect struct {
	CompanyName      string          `json:"companyName"`
	VigylScore       float64         `json:"vigylScore"`
	PressureResponse string          `json:"pressureResponse"`
	IndustryID       string          `json:"industryId"`
	RelatedSignals   []string        `json:"relatedSignals"`
	WhyNow           string          `json:"whyNow"`
	Contacts         []model.Contact `json:"contacts"`
}

type wireIntelligence struct {
	Industries []wireIndustry `json:"industries"`
	Signals    []wireSignal   `json:"signals"`
	Prospects  []wireProspect `json:"prospects"`
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01",
	"January 2006",
	"Jan 2006",
}

func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// cleanJSON strips markdown fences and any prose around the outermost object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

func decode(text string, v any) error {
	cleaned := cleanJSON(text)
	if cleaned == "" {
		return eris.New("provider: empty reply")
	}
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return eris.Wrap(err, "provider: parse reply")
	}
	return nil
}

func parseIntelligence(text string) (*model.Intelligence, error) {
	var w wireIntelligence
	if err := decode(text, &w); err != nil {
		return nil, err
	}

	out := &model.Intelligence{
		Industries: make([]model.Industry, 0, len(w.Industries)),
		Signals:    make([]model.Signal, 0, len(w.Signals)),
	}
	for _, wi := range w.Industries {
		ind := model.Industry{
			Slug:           strings.TrimSpace(wi.Slug),
			Name:           strings.TrimSpace(wi.Name),
			HealthScore:    int(wi.HealthScore + 0.5),
			TrendDirection: model.TrendDirection(strings.ToLower(wi.TrendDirection)),
			TopSignals:     wi.TopSignals,
		}
		for _, p := range wi.ScoreHistory {
			if d := parseDate(p.Date); !d.IsZero() {
				ind.ScoreHistory = append(ind.ScoreHistory, model.ScorePoint{Date: d, Score: model.ClampScore(int(p.Score + 0.5))})
			}
		}
		ind.Normalize()
		out.Industries = append(out.Industries, ind)
	}

	for _, ws := range w.Signals {
		if strings.TrimSpace(ws.Title) == "" {
			continue
		}
		sig := model.Signal{
			ID:           uuid.NewString(),
			Title:        strings.TrimSpace(ws.Title),
			Summary:      ws.Summary,
			SignalType:   model.SignalType(strings.ToLower(ws.SignalType)),
			Sentiment:    model.Sentiment(strings.ToLower(ws.Sentiment)),
			Severity:     int(ws.Severity + 0.5),
			IndustryTags: ws.IndustryTags,
		}
		for _, src := range ws.Sources {
			sig.Sources = append(sig.Sources, model.Source{Name: src.Name, URL: src.URL, PublishedAt: parseDate(src.PublishedAt)})
		}
		sig.Normalize()
		out.Signals = append(out.Signals, sig)
	}

	out.Prospects = assignProspectIDs(w.Prospects)
	return out, nil
}

func parseImpact(text string) (*model.AIImpactAnalysis, error) {
	var a model.AIImpactAnalysis
	if err := decode(text, &a); err != nil {
		return nil, err
	}
	a.GeneratedAt = time.Time{}
	a.Normalize()
	return &a, nil
}

func parseProspects(text string) ([]model.Prospect, error) {
	var w struct {
		Prospects []wireProspect `json:"prospects"`
	}
	if err := decode(text, &w); err != nil {
		return nil, err
	}
	return assignProspectIDs(w.Prospects), nil
}

// assignProspectIDs converts wire prospects, giving each a fresh id. Pipeline
// state always starts at researching; user edits are overlaid later.
func assignProspectIDs(in []wireProspect) []model.Prospect {
	out := make([]model.Prospect, 0, len(in))
	for _, w := range in {
		p := model.Prospect{
			ID:               uuid.NewString(),
			CompanyName:      strings.TrimSpace(w.CompanyName),
			VigylScore:       int(w.VigylScore + 0.5),
			PressureResponse: model.PressureResponse(strings.ToLower(w.PressureResponse)),
			IndustryID:       strings.TrimSpace(w.IndustryID),
			RelatedSignals:   w.RelatedSignals,
			PipelineStage:    model.StageResearching,
			WhyNow:           w.WhyNow,
			Contacts:         w.Contacts,
		}
		p.Normalize()
		out = append(out, p)
	}
	return out
}
