package model

import "time"

// Intelligence is the payload of one full generation run.
type Intelligence struct {
	Industries []Industry `json:"industries"`
	Signals    []Signal   `json:"signals"`
	Prospects  []Prospect `json:"prospects"`
}

// Snapshot is the reconciled intelligence for one owner as stored in the
// cache row. Version increments on every successful save and is used as the
// compare-and-set token.
type Snapshot struct {
	OwnerID    string             `json:"ownerId"`
	Industries []Industry         `json:"industries"`
	Signals    []Signal           `json:"signals"`
	Prospects  []Prospect         `json:"prospects"`
	AIImpact   []AIImpactAnalysis `json:"aiImpact"`
	UpdatedAt  time.Time          `json:"updated_at"`
	Version    int64              `json:"-"`
}

// Clone returns a copy that shares no top-level slices with s. Nested slices
// of signals, prospects and impact entries are treated as immutable values.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Industries = CloneIndustries(s.Industries)
	out.Signals = append([]Signal(nil), s.Signals...)
	out.Prospects = append([]Prospect(nil), s.Prospects...)
	out.AIImpact = append([]AIImpactAnalysis(nil), s.AIImpact...)
	return &out
}

// HasData reports whether the snapshot carries anything to display.
func (s *Snapshot) HasData() bool {
	return s != nil && (len(s.Industries) > 0 || len(s.Signals) > 0 || len(s.Prospects) > 0)
}

// Industry returns the industry with the given id.
func (s *Snapshot) Industry(id string) (Industry, bool) {
	if s == nil {
		return Industry{}, false
	}
	for _, ind := range s.Industries {
		if ind.ID == id {
			return ind, true
		}
	}
	return Industry{}, false
}

// SnapshotDelta is a partial update applied with merge-and-save semantics.
// Nil slices leave the stored field unchanged. AIImpact entries are upserted
// by IndustryID unless ReplaceAIImpact is set, in which case the stored list
// is replaced wholesale.
type SnapshotDelta struct {
	Industries      []Industry         `json:"industries,omitempty"`
	Signals         []Signal           `json:"signals,omitempty"`
	Prospects       []Prospect         `json:"prospects,omitempty"`
	AIImpact        []AIImpactAnalysis `json:"aiImpact,omitempty"`
	ReplaceAIImpact bool               `json:"replaceAiImpact,omitempty"`
}

// Empty reports whether the delta would change nothing.
func (d SnapshotDelta) Empty() bool {
	return d.Industries == nil && d.Signals == nil && d.Prospects == nil &&
		d.AIImpact == nil && !d.ReplaceAIImpact
}
