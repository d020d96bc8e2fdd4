package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/vigyl/internal/cache"
	"github.com/sells-group/vigyl/internal/crm"
	"github.com/sells-group/vigyl/internal/model"
)

var crmCmd = &cobra.Command{
	Use:   "crm",
	Short: "Salesforce integration",
}

var crmSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push a user's prospects to Salesforce as Accounts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "crm", false)
		if err != nil {
			return err
		}
		defer env.Close()

		user, _ := cmd.Flags().GetString("user")
		sess, err := env.Cache.Resolve(ctx, user)
		if err != nil {
			return err
		}
		if !sess.CanWrite() {
			return eris.Wrapf(cache.ErrReadOnly, "crm sync: %s is a team member of %s", sess.UserID, sess.OwnerID)
		}
		snap, err := env.Cache.Load(ctx, sess)
		if err != nil {
			return err
		}
		if !snap.HasData() {
			return eris.Errorf("crm sync: no cached intelligence for %s", sess.OwnerID)
		}

		rawStages, _ := cmd.Flags().GetStringSlice("stage")
		stages := make([]model.PipelineStage, 0, len(rawStages))
		for _, s := range rawStages {
			st := model.PipelineStage(s)
			if !st.Valid() {
				return eris.Errorf("crm sync: unknown stage %q", s)
			}
			stages = append(stages, st)
		}

		sf, err := initSalesforce()
		if err != nil {
			return err
		}
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		report, err := crm.NewSyncer(sf, concurrency).Sync(ctx, snap, stages)
		if err != nil {
			return err
		}

		for _, edit := range crm.Edits(snap, report) {
			if _, err := env.Cache.SavePipeline(ctx, sess, edit); err != nil {
				zap.L().Warn("failed to record CRM id",
					zap.String("prospect_id", edit.ProspectID),
					zap.Error(err),
				)
			}
		}

		printReport(os.Stdout, report)
		if report.Failed > 0 {
			return eris.Errorf("crm sync: %d prospects failed", report.Failed)
		}
		return nil
	},
}

func printReport(w io.Writer, report *crm.Report) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COMPANY\tACTION\tCRM ID\tERROR")
	for _, r := range report.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.CompanyName, r.Action, r.CRMID, r.Error)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\n%d created, %d updated, %d linked, %d failed, %d contacts\n",
		report.Created, report.Updated, report.Linked, report.Failed, report.Contacts)
}

func init() {
	crmSyncCmd.Flags().String("user", "", "user id (required)")
	crmSyncCmd.Flags().StringSlice("stage", nil, "only sync prospects in these pipeline stages")
	crmSyncCmd.Flags().Int("concurrency", crm.DefaultLookupConcurrency, "concurrent account lookups")
	_ = crmSyncCmd.MarkFlagRequired("user")
	crmCmd.AddCommand(crmSyncCmd)
	rootCmd.AddCommand(crmCmd)
}
