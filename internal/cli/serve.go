package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP chat API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, log, err := opts.load(false)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			app, cleanup, err := appFactory(config, log)
			if err != nil {
				return err
			}
			defer cleanup()

			log.Info("providers ready", zap.Strings("providers", app.Core.Providers.List()))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				if err := app.HTTPServer.Start(); err != nil {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return err
				}
			case <-ctx.Done():
			}

			log.Info("shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
			defer cancel()
			if err := app.HTTPServer.Stop(shutdownCtx); err != nil {
				log.Error("HTTP server forced to shutdown", zap.Error(err))
				return err
			}
			log.Info("server exited")
			return nil
		},
	}
}
