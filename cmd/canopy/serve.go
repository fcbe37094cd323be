package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpAdapter "github.com/aretw0/canopy/pkg/adapters/http"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve <scenario>",
	Short: "Start the HTTP debugger for a scenario",
	Long: `Builds the scenario's tree and serves its index over HTTP (tree, nodes,
paths, stats, event trail, SSE event stream and Prometheus metrics) while the
scenario's operations are replayed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		delay, _ := cmd.Flags().GetDuration("delay")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := openSession(ctx, args[0])
		if err != nil {
			return err
		}
		defer s.close()

		if err := s.build(); err != nil {
			return err
		}
		d, err := s.primary()
		if err != nil {
			return err
		}

		handler := httpAdapter.NewHandler(d.Index,
			httpAdapter.WithStreams(d.Streams),
			httpAdapter.WithTrail(s.sink),
			httpAdapter.WithGatherer(d.Registry),
			httpAdapter.WithLogger(logger),
		)
		srv := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Starting Canopy debugger", "addr", srv.Addr, "scenario", s.scenario.Name, "root", d.Root.ID())
			serverErrors <- srv.ListenAndServe()
		}()

		go func() {
			if err := s.replay(ctx, delay); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Scenario stopped", "err", err)
				return
			}
			logger.Info("Scenario applied", "ops", len(s.outcomes))
		}()

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case <-ctx.Done():
			logger.Info("Shutdown signal received, stopping debugger")

			// Give outstanding requests a deadline for completion.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Graceful shutdown did not complete", "timeout", 5*time.Second, "err", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("error killing server: %w", err)
				}
			}
			logger.Info("Canopy debugger stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (default from config, :8080)")
	serveCmd.Flags().String("redis", "", "Record the event trail in redis at this address")
	serveCmd.Flags().Duration("delay", 0, "Pause between replayed operations")
}
