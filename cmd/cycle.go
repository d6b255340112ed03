package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// newCycleCmd creates the 'cycle' subcommand: one complete watch pass,
// suitable for cron.
func newCycleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cycle",
		Short: "Runs one watch cycle and exits",
		Long: `Schedules a frontpage crawl for every configured site plus a staleness
sweep, processes the resulting jobs, and exits. With the in-memory queue the
jobs are drained in-process; with Pub/Sub they are left to the long-running
workers.`,
		RunE: runCycleCommand,
	}
}

func runCycleCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := appInstance.RunCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	appInstance.Logger().Info("cycle command finished")
	return nil
}
