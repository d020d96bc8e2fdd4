package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "store", false)
		if err != nil {
			return err
		}
		defer env.Close()

		zap.L().Info("schema is up to date", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

var teamCmd = &cobra.Command{
	Use:   "team",
	Short: "Manage team membership",
}

var teamAddCmd = &cobra.Command{
	Use:   "add <owner-id> <member-id>",
	Short: "Give a member read-only access to an owner's intelligence",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "store", false)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.AddTeamMember(ctx, args[0], args[1]); err != nil {
			return err
		}
		zap.L().Info("added team member", zap.String("owner_id", args[0]), zap.String("member_id", args[1]))
		return nil
	},
}

func init() {
	teamCmd.AddCommand(teamAddCmd)
	rootCmd.AddCommand(migrateCmd, teamCmd)
}
