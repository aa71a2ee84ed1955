package cmd

import (
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leofalp/agentflow/api/rest"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(options *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := options.newApp(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = application.Close() }()

			server := rest.NewServer(rest.Dependencies{
				Workflows: application.Scheduler,
				Tasks:     application.Tasks,
				Catalog:   application.Registry,
				Metrics:   application.Observer,
				Logger:    application.Logger,
			}, application.Config.Server)

			listenErr := make(chan error, 1)
			go func() { listenErr <- server.Listen() }()

			select {
			case err := <-listenErr:
				return err
			case <-ctx.Done():
				application.Logger.Info("shutting down", zap.Duration("timeout", shutdownTimeout))
				if err := server.Shutdown(shutdownTimeout); err != nil {
					return err
				}
				if err := <-listenErr; err != nil && !errors.Is(err, os.ErrClosed) {
					return err
				}
				return nil
			}
		},
	}
}
