package merge

import (
	"strings"

	"github.com/sells-group/vigyl/internal/model"
)

// ApplyPipeline overlays user pipeline edits onto generated prospects. Edits
// match by prospect id first and by company name second, so a regenerated
// prospect with a new id keeps the stage and notes the user recorded.
func ApplyPipeline(prospects []model.Prospect, edits []model.PipelineEdit) []model.Prospect {
	if len(edits) == 0 {
		return prospects
	}

	byID := make(map[string]model.PipelineEdit, len(edits))
	byName := make(map[string]model.PipelineEdit, len(edits))
	for _, e := range edits {
		if e.ProspectID != "" {
			byID[e.ProspectID] = e
		}
		if key := strings.ToLower(strings.TrimSpace(e.CompanyName)); key != "" {
			byName[key] = e
		}
	}

	out := make([]model.Prospect, len(prospects))
	for n, p := range prospects {
		e, ok := byID[p.ID]
		if !ok {
			e, ok = byName[p.NameKey()]
		}
		if ok {
			if e.Stage.Valid() {
				p.PipelineStage = e.Stage
			}
			p.Notes = e.Notes
			if e.CRMID != "" {
				p.CRMID = e.CRMID
			}
		}
		out[n] = p
	}
	return out
}

// AppendProspects adds prospects that are not already present by id or
// company name, preserving the order of both lists.
func AppendProspects(existing, extra []model.Prospect) []model.Prospect {
	ids := make(map[string]bool, len(existing))
	names := make(map[string]bool, len(existing))
	for _, p := range existing {
		ids[p.ID] = true
		names[p.NameKey()] = true
	}

	out := append([]model.Prospect(nil), existing...)
	for _, p := range extra {
		if ids[p.ID] || names[p.NameKey()] {
			continue
		}
		ids[p.ID] = true
		names[p.NameKey()] = true
		out = append(out, p)
	}
	return out
}
