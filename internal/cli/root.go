// Package cli implements the sage command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sage/internal/config"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sage",
		Short: "A research assistant that plans, researches, critiques and strategizes",
		Long: `sage runs a multi-stage pipeline over a query: research (web search and
ingested documents), summarization, a quality gate and strategy formulation.
Run it once from the command line, in batch from a task file, interactively
with 'chat', or as an HTTP service with 'serve'.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	root.AddCommand(newServeCmd(), newRunCmd(), newBatchCmd(), newIngestCmd(), newAskCmd(), newChatCmd())
	return root
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadApp reads configuration and wires the components for one command.
func loadApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	a, err := newApp(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	return a, nil
}
