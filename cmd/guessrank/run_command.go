package main

import (
	"github.com/spf13/cobra"

	"guessrank/internal/daemonrun"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to Discord and run the bot in the foreground",
		Long: `Connect to Discord and run the bot until interrupted.

Only one instance may run per state directory. Send SIGINT or SIGTERM to
shut down; clip processing in flight is cancelled and staged files are
cleaned on the next start.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{LogLevel: logLevel})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	return cmd
}
