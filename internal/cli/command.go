// Package cli holds the command scaffolding shared by placeorders and
// processorders.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/slackmgr/orderqueue/internal/config"
	"github.com/slackmgr/orderqueue/internal/logging"
	"github.com/slackmgr/types"
	"github.com/spf13/cobra"
)

// RunFunc is the body of a command. ctx is cancelled on SIGINT or SIGTERM.
type RunFunc func(ctx context.Context, cfg *config.Config, logger types.Logger) error

// NewCommand creates a root command with a --config flag. The command loads
// the configuration, builds the logger and calls run. A run that ends
// because of a signal is not an error.
func NewCommand(name, short string, run RunFunc) *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:           name,
		Short:         short,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.NewLoader(configFile).Load()
			if err != nil {
				return err
			}

			logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
			if err != nil {
				return err
			}

			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			err = run(ctx, cfg, logger.WithField("command", name))
			if err != nil && errors.Is(err, context.Canceled) && ctx.Err() != nil {
				logger.Info("Shutting down")
				return nil
			}

			return err
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "config file path (values may also be set with "+config.EnvPrefix+"_* environment variables)")

	return cmd
}

// Main executes cmd and exits with status 1 if it fails.
func Main(cmd *cobra.Command) {
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd.Name(), err)
		os.Exit(1)
	}
}
