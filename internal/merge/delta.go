package merge

import (
	"time"

	"github.com/sells-group/vigyl/internal/model"
)

// ApplyDelta merges a partial update into a snapshot and returns the result.
// base may be nil for an owner with no row yet. Applying the same delta twice
// yields the same snapshot.
func ApplyDelta(base *model.Snapshot, ownerID string, delta model.SnapshotDelta, now time.Time) *model.Snapshot {
	var out *model.Snapshot
	if base == nil {
		out = &model.Snapshot{OwnerID: ownerID}
	} else {
		out = base.Clone()
	}

	if delta.Industries != nil {
		out.Industries = model.CloneIndustries(delta.Industries)
	}
	if delta.Signals != nil {
		out.Signals = append([]model.Signal(nil), delta.Signals...)
	}
	if delta.Prospects != nil {
		out.Prospects = append([]model.Prospect(nil), delta.Prospects...)
	}
	switch {
	case delta.ReplaceAIImpact:
		out.AIImpact = append([]model.AIImpactAnalysis(nil), delta.AIImpact...)
	case delta.AIImpact != nil:
		out.AIImpact = UpsertImpacts(out.AIImpact, delta.AIImpact)
	}

	out.UpdatedAt = now.UTC()
	return out
}
