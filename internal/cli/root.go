package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	output     string
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	envConfig := os.Getenv("CONFIG_PATH")
	if envConfig == "" {
		envConfig = "config/config.yaml"
	}

	cmd := &cobra.Command{
		Use:           "duel",
		Short:         "Head-to-head exam duels in the terminal",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", envConfig, "path to YAML config")
	cmd.PersistentFlags().StringVarP(&output, "output", "o", outputTable, "output format: table or yaml")
	cmd.AddCommand(NewPlayCmd(&configPath))
	cmd.AddCommand(NewCreateCmd(&configPath))
	cmd.AddCommand(NewAcceptCmd(&configPath))
	cmd.AddCommand(NewDeclineCmd(&configPath))
	cmd.AddCommand(NewPendingCmd(&configPath))
	cmd.AddCommand(NewOnlineCmd(&configPath))
	cmd.AddCommand(NewHistoryCmd(&configPath))
	cmd.AddCommand(NewRankingCmd(&configPath))
	cmd.AddCommand(NewStatsCmd(&configPath))
	cmd.AddCommand(NewQueueCmd(&configPath))
	cmd.AddCommand(NewRewardsCmd(&configPath))
	cmd.AddCommand(NewMigrateCmd(&configPath))
	return cmd
}
