package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/vigyl/internal/cache"
	"github.com/sells-group/vigyl/internal/session"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate fresh intelligence for a user and save it",
	Long:  "Opens a session for the user, runs a full intelligence generation and waits for it to be merged and saved.",
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
			return eris.Wrapf(cache.ErrReadOnly, "generate: %s is a team member of %s", sess.UserID, sess.OwnerID)
		}

		c := session.New(env.Gen, env.Cache, sess, profile)
		defer c.Close()

		task, err := c.Mount(ctx)
		if err != nil {
			return err
		}
		if task == nil {
			return eris.New("generate: no generation was started")
		}
		if err := task.Wait(ctx); err != nil {
			return eris.Wrap(err, "generate")
		}

		v := c.View()
		if v.Error != "" {
			return eris.New(v.Error)
		}
		printSnapshot(os.Stdout, v.Data, v.Labels)
		if v.Notice != "" {
			fmt.Fprintln(os.Stderr, v.Notice)
		}
		return nil
	},
}

func init() {
	addProfileFlags(generateCmd)
	rootCmd.AddCommand(generateCmd)
}
