package commands

import (
	"github.com/spf13/cobra"

	"github.com/fundsync-dev/fundsync/internal/buildinfo"
	"github.com/fundsync-dev/fundsync/internal/config"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:     "fundsync",
		Short:   "Forward UPI payment notifications to Streamlabs",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", config.FileName, "path to fundsync.yaml")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "file with FUNDSYNC_* overrides")

	rootCmd.AddCommand(
		newInitCommand(),
		newAuthCommand(opts),
		newIngestCommand(opts),
		newWatchCommand(opts),
		newHistoryCommand(opts),
		newAddCommand(opts),
		newTestDonationCommand(opts),
		newServeCommand(opts),
	)

	return rootCmd
}
