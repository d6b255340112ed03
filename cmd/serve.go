package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// newServeCmd creates the 'serve' subcommand: the long-running mode with a
// worker pool consuming every lane and the ops HTTP server.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Runs the worker pool and ops HTTP server",
		Long: `Starts lane workers consuming crawl, re-check and notification jobs, and
serves health probes, Prometheus metrics and the operator API over HTTP.
Cycles are triggered externally, either by POST /v1/cycle or a scheduler
running 'headlinewatch cycle' against the shared queue.`,
		RunE: runServeCommand,
	}
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := appInstance.RunServer(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	appInstance.Logger().Info("serve command finished")
	return nil
}
