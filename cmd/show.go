package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sells-group/vigyl/internal/model"
	"github.com/sells-group/vigyl/internal/persona"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a user's cached intelligence",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "store", false)
		if err != nil {
			return err
		}
		defer env.Close()

		user, _ := cmd.Flags().GetString("user")
		sess, err := env.Cache.Resolve(ctx, user)
		if err != nil {
			return err
		}
		snap, err := env.Cache.Load(ctx, sess)
		if err != nil {
			return err
		}
		if !snap.HasData() {
			fmt.Fprintln(os.Stderr, "No cached intelligence; showing seed data.")
			snap = env.Catalog.Snapshot(sess.OwnerID)
		}

		p, _ := cmd.Flags().GetString("persona")
		printSnapshot(os.Stdout, snap, persona.Lookup(p).Labels)
		return nil
	},
}

func trendMarker(t model.TrendDirection) string {
	switch t {
	case model.TrendImproving:
		return color.New(color.FgGreen).Sprint("▲")
	case model.TrendDeclining:
		return color.New(color.FgRed).Sprint("▼")
	default:
		return color.New(color.FgYellow).Sprint("■")
	}
}

func scoreColor(score int) *color.Color {
	switch {
	case score >= 70:
		return color.New(color.FgGreen)
	case score >= 40:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}

// printSnapshot writes a human-readable summary of snap.
func printSnapshot(w io.Writer, snap *model.Snapshot, labels persona.Labels) {
	if snap == nil {
		fmt.Fprintln(w, "No data.")
		return
	}
	bold := color.New(color.Bold)

	fmt.Fprintln(w, bold.Sprint("Industries"))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, ind := range snap.Industries {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", ind.Name, scoreColor(ind.HealthScore).Sprint(ind.HealthScore), trendMarker(ind.TrendDirection))
	}
	_ = tw.Flush()

	fmt.Fprintln(w)
	fmt.Fprintln(w, bold.Sprint(labels.Signals))
	for _, s := range snap.Signals {
		fmt.Fprintf(w, "  [%d] %s (%s, %s)\n", s.Severity, s.Title, s.SignalType, s.Sentiment)
	}

	prospects := append([]model.Prospect(nil), snap.Prospects...)
	sort.SliceStable(prospects, func(i, j int) bool { return prospects[i].VigylScore > prospects[j].VigylScore })

	fmt.Fprintln(w)
	fmt.Fprintln(w, bold.Sprint(labels.Prospects))
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", "Company", labels.Score, labels.Pipeline, "CRM")
	for _, p := range prospects {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", p.CompanyName, scoreColor(p.VigylScore).Sprint(p.VigylScore), p.PipelineStage, p.CRMID)
	}
	_ = tw.Flush()

	if len(snap.AIImpact) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, bold.Sprint("AI Impact"))
		for _, a := range snap.AIImpact {
			fmt.Fprintf(w, "  %s: automation %.0f, displacement %.0f, resilience %.0f\n",
				a.IndustryName, a.AutomationRate, a.JobDisplacementIndex, a.HumanResilienceScore)
		}
	}

	if !snap.UpdatedAt.IsZero() {
		fmt.Fprintf(w, "\nUpdated %s\n", snap.UpdatedAt.Format("2006-01-02 15:04 MST"))
	}
}

func init() {
	showCmd.Flags().String("user", "", "user id (required)")
	showCmd.Flags().String("persona", "sales", "persona used for labels")
	_ = showCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(showCmd)
}
