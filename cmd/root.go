package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/sells-group/vigyl/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "vigyl",
	Short: "Sales intelligence merge, cache and refresh layer",
	Long:  "Merges the seed catalog with AI-generated industries, signals, prospects and AI impact analyses, caches a snapshot per owner and serves it to the dashboard.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// addConfigFlags registers the flags that override config.yaml and VIGYL_*
// settings.
func addConfigFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (default ./config.yaml)")
	fs.String("store-driver", "", "store driver: sqlite or postgres")
	fs.String("database-url", "", "SQLite path or Postgres connection string")
	fs.String("seed", "", "seed catalog YAML replacing the bundled one")
	fs.String("log-level", "", "log level: debug, info, warn, error")
}

// loadConfig fills cfg from the config file, the environment and cmd's flags
// and installs the global logger.
func loadConfig(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	c, err := config.Load(config.WithFile(path), config.WithFlags(cmd.Flags()))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg = c

	if err := config.InitLogger(cfg.Log); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	return nil
}

func init() {
	addConfigFlags(rootCmd.PersistentFlags())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
