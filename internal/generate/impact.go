package generate

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vigyl/internal/merge"
	"github.com/sells-group/vigyl/internal/model"
)

// Progress describes the industry currently in flight. Current is 1-based.
type Progress struct {
	Current      int    `json:"current"`
	Total        int    `json:"total"`
	IndustryName string `json:"industryName"`
}

// ImpactSink receives AI impact progress and partial results as the loop
// runs. Publish is called with the whole accumulator after every success.
type ImpactSink interface {
	Progress(p Progress)
	Publish(ctx context.Context, results []model.AIImpactAnalysis) error
}

// ImpactJob describes one AI impact run. A nil Subset is full mode: every
// industry is analyzed and the accumulator starts empty. A non-nil Subset is
// resume mode: only those industry ids are analyzed and the accumulator
// starts from Existing.
type ImpactJob struct {
	Profile    model.Profile
	Industries []model.Industry
	Existing   []model.AIImpactAnalysis
	Subset     []string
}

// Resume reports whether the job runs in resume mode.
func (j ImpactJob) Resume() bool {
	return j.Subset != nil
}

// ImpactReport summarizes a finished run.
type ImpactReport struct {
	Results   []model.AIImpactAnalysis `json:"results"`
	Completed []string                 `json:"completed"`
	Failed    []string                 `json:"failed"`
}

// WorkList resolves the industries a job will analyze, in order.
func (o *Orchestrator) WorkList(job ImpactJob) []model.Industry {
	if !job.Resume() {
		list := model.CloneIndustries(job.Industries)
		if o.maxIndustries > 0 && len(list) > o.maxIndustries {
			list = list[:o.maxIndustries]
		}
		return list
	}

	catalog := o.catalog.Industries()
	seen := make(map[string]bool, len(job.Subset))
	var list []model.Industry
	for _, id := range job.Subset {
		if seen[id] {
			continue
		}
		seen[id] = true
		ind, ok := findByID(job.Industries, id)
		if !ok {
			ind, ok = findByID(catalog, id)
		}
		if !ok {
			zap.L().Warn("skipping unknown industry in AI impact subset", zap.String("industry_id", id))
			continue
		}
		list = append(list, ind)
	}
	return list
}

// RunAIImpact analyzes each industry of the work list sequentially. Each
// success is upserted into the accumulator by IndustryID and published
// immediately. A failed industry is logged and skipped. The run fails with
// ErrImpactTotalFailure only when the accumulator ends up empty. ctx is
// checked between industries.
func (o *Orchestrator) RunAIImpact(ctx context.Context, job ImpactJob, sink ImpactSink) (*ImpactReport, error) {
	if err := job.Profile.Validate(); err != nil {
		return nil, err
	}

	work := o.WorkList(job)
	if len(work) == 0 {
		return nil, ErrNoIndustries
	}

	log := zap.L().With(
		zap.String("component", "ai_impact"),
		zap.String("user_id", job.Profile.UserID),
		zap.Bool("resume", job.Resume()),
		zap.Int("total", len(work)),
	)

	report := &ImpactReport{}
	if job.Resume() {
		report.Results = append([]model.AIImpactAnalysis(nil), job.Existing...)
	}

	for n, ind := range work {
		if err := ctx.Err(); err != nil {
			log.Info("AI impact run cancelled", zap.Int("completed", len(report.Completed)))
			return report, eris.Wrap(err, "generate: ai impact cancelled")
		}

		sink.Progress(Progress{Current: n + 1, Total: len(work), IndustryName: ind.Name})

		ref := ind.Ref()
		result, err := o.analyzeIndustry(ctx, ref, job.Profile)
		if err != nil {
			log.Warn("AI impact failed for industry, skipping",
				zap.String("industry", ind.ID),
				zap.Error(err),
			)
			report.Failed = append(report.Failed, ind.ID)
			continue
		}

		resolved, _ := merge.ResolveImpactIndustry(o.matcher, job.Industries, ref, *result)
		report.Results = merge.UpsertImpact(report.Results, resolved)
		report.Completed = append(report.Completed, resolved.IndustryID)

		if err := sink.Publish(ctx, report.Results); err != nil {
			log.Error("failed to publish AI impact result",
				zap.String("industry", ind.ID),
				zap.Error(err),
			)
		}
	}

	log.Info("AI impact run finished",
		zap.Int("completed", len(report.Completed)),
		zap.Int("failed", len(report.Failed)),
	)

	if len(report.Results) == 0 {
		return report, ErrImpactTotalFailure
	}
	return report, nil
}

func (o *Orchestrator) analyzeIndustry(ctx context.Context, ref model.IndustryRef, profile model.Profile) (*model.AIImpactAnalysis, error) {
	callCtx, cancel := o.callContext(ctx)
	defer cancel()

	result, err := o.provider.GenerateAIImpactForIndustry(callCtx, ref, profile)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, eris.Errorf("provider returned no analysis for %s", ref.ID)
	}

	out := *result
	out.Normalize()
	if out.GeneratedAt.IsZero() {
		out.GeneratedAt = o.now().UTC().Truncate(time.Second)
	}
	return &out, nil
}
