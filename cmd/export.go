package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/vigyl/internal/export"
	"github.com/sells-group/vigyl/internal/persona"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a user's prospects, industries and signals to xlsx",
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
			return eris.Errorf("export: no cached intelligence for %s", sess.OwnerID)
		}

		out, _ := cmd.Flags().GetString("out")
		p, _ := cmd.Flags().GetString("persona")
		if err := export.Save(out, snap, persona.Lookup(p).Labels); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Wrote %d prospects to %s\n", len(snap.Prospects), out)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("user", "", "user id (required)")
	exportCmd.Flags().String("out", "prospects.xlsx", "output file")
	exportCmd.Flags().String("persona", "sales", "persona used for column labels")
	_ = exportCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(exportCmd)
}
