package model

import (
	"strings"
	"time"
)

// PressureResponse classifies how a prospect is reacting to market pressure.
type PressureResponse string

const (
	PressureContracting         PressureResponse = "contracting"
	PressureStrategicInvestment PressureResponse = "strategic_investment"
	PressureGrowthMode          PressureResponse = "growth_mode"
)

// Valid reports whether p is a known pressure response.
func (p PressureResponse) Valid() bool {
	switch p {
	case PressureContracting, PressureStrategicInvestment, PressureGrowthMode:
		return true
	default:
		return false
	}
}

// PipelineStage is the user-managed sales stage of a prospect.
type PipelineStage string

const (
	StageResearching      PipelineStage = "researching"
	StageContacted        PipelineStage = "contacted"
	StageMeetingScheduled PipelineStage = "meeting_scheduled"
	StageProposalSent     PipelineStage = "proposal_sent"
	StageWon              PipelineStage = "won"
	StageLost             PipelineStage = "lost"
)

// Valid reports whether s is a known pipeline stage.
func (s PipelineStage) Valid() bool {
	switch s {
	case StageResearching, StageContacted, StageMeetingScheduled,
		StageProposalSent, StageWon, StageLost:
		return true
	default:
		return false
	}
}

// Contact is a decision maker at a prospect company.
type Contact struct {
	Name     string `json:"name" yaml:"name"`
	Title    string `json:"title" yaml:"title"`
	Email    string `json:"email,omitempty" yaml:"email"`
	LinkedIn string `json:"linkedin,omitempty" yaml:"linkedin"`
}

// Prospect is a company surfaced as a sales target.
type Prospect struct {
	ID               string           `json:"id" yaml:"id"`
	CompanyName      string           `json:"companyName" yaml:"company_name"`
	VigylScore       int              `json:"vigylScore" yaml:"vigyl_score"`
	PressureResponse PressureResponse `json:"pressureResponse" yaml:"pressure_response"`
	IndustryID       string           `json:"industryId" yaml:"industry_id"`
	RelatedSignals   []string         `json:"relatedSignals" yaml:"related_signals"`
	PipelineStage    PipelineStage    `json:"pipelineStage" yaml:"pipeline_stage"`
	WhyNow           string           `json:"whyNow" yaml:"why_now"`
	Notes            string           `json:"notes" yaml:"notes"`
	Contacts         []Contact        `json:"contacts" yaml:"contacts"`
	CRMID            string           `json:"crmId,omitempty" yaml:"crm_id"`
}

// Normalize clamps the score and defaults unknown enums.
func (p *Prospect) Normalize() {
	p.VigylScore = ClampScore(p.VigylScore)
	if !p.PressureResponse.Valid() {
		p.PressureResponse = PressureStrategicInvestment
	}
	if !p.PipelineStage.Valid() {
		p.PipelineStage = StageResearching
	}
}

// NameKey is the case-insensitive key used to match prospects across runs.
func (p Prospect) NameKey() string {
	return strings.ToLower(strings.TrimSpace(p.CompanyName))
}

// PipelineEdit is a user mutation of a prospect's pipeline state. Edits are
// stored apart from the generated snapshot so regeneration never loses them.
type PipelineEdit struct {
	ProspectID  string        `json:"prospectId"`
	CompanyName string        `json:"companyName"`
	Stage       PipelineStage `json:"stage"`
	Notes       string        `json:"notes"`
	CRMID       string        `json:"crmId,omitempty"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}
