package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/vigyl/internal/cache"
	"github.com/sells-group/vigyl/internal/generate"
	"github.com/sells-group/vigyl/internal/model"
)

var impactCmd = &cobra.Command{
	Use:   "impact",
	Short: "Run AI impact analysis for a user's industries",
	Long:  "Analyzes every industry in the user's snapshot, or only the --industry ids given, saving each result as it arrives.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "generate", true)
		if err != nil {
			return err
		}
		defer env.Close()

		profile := profileFromFlags(cmd)
		sess, err := env.Cache.Resolve(ctx, profile.UserID)
		if err != nil {
			return err
		}
		if !sess.CanWrite() {
			return eris.Wrapf(cache.ErrReadOnly, "impact: %s is a team member of %s", sess.UserID, sess.OwnerID)
		}

		snap, err := env.Cache.Load(ctx, sess)
		if err != nil {
			return err
		}

		job := generate.ImpactJob{Profile: profile, Industries: env.Catalog.Industries()}
		if snap.HasData() {
			job.Industries = snap.Industries
			job.Existing = snap.AIImpact
		}
		if subset, _ := cmd.Flags().GetStringSlice("industry"); len(subset) > 0 {
			job.Subset = subset
		}

		sink := &persistSink{adapter: env.Cache, sess: sess, replace: !job.Resume(), out: os.Stderr}
		report, err := env.Gen.RunAIImpact(ctx, job, sink)
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "Analyzed %d industries", len(report.Completed))
		if len(report.Failed) > 0 {
			fmt.Fprintf(os.Stdout, ", %d failed: %v", len(report.Failed), report.Failed)
		}
		fmt.Fprintln(os.Stdout)
		return nil
	},
}

// persistSink saves every published accumulator through the cache adapter
// and prints progress.
type persistSink struct {
	adapter *cache.Adapter
	sess    cache.Session
	replace bool
	out     io.Writer
}

func (s *persistSink) Progress(p generate.Progress) {
	fmt.Fprintf(s.out, "[%d/%d] %s\n", p.Current, p.Total, p.IndustryName)
}

func (s *persistSink) Publish(ctx context.Context, results []model.AIImpactAnalysis) error {
	_, err := s.adapter.PersistDelta(ctx, s.sess, model.SnapshotDelta{
		AIImpact:        results,
		ReplaceAIImpact: s.replace,
	})
	return err
}

func init() {
	addProfileFlags(impactCmd)
	impactCmd.Flags().StringSlice("industry", nil, "industry ids to analyze (resume mode)")
	rootCmd.AddCommand(impactCmd)
}
