package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fundsync-dev/fundsync/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(opts *globalOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept notifications over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.drain()

			if listen == "" {
				listen = a.cfg.Server.Listen
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return runServe(ctx, a, listen)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "address to listen on (default from config)")

	return cmd
}

func runServe(ctx context.Context, a *app, listen string) error {
	srv := server.New(a.pipeline, a.store, a.forwarder, a.logger)

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Listen(listen)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
