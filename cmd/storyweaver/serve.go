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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/aretw0/storyweaver/internal/cli"
	httpadapter "github.com/aretw0/storyweaver/pkg/adapters/http"
	"github.com/aretw0/storyweaver/pkg/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Starts the story backend (/api/story, /api/image) together with the
wizard session API (/wizard/sessions), its SSE stream and /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			port, _ := cmd.Flags().GetInt("port")
			if err := cfg.Override(map[string]any{"port": port}); err != nil {
				return err
			}
		}
		logger := newLogger(cmd, cfg)

		// The HTTP server is the backend itself, so it always generates in-process.
		svc, err := cli.NewLocalService(cfg, logger)
		if err != nil {
			return err
		}

		metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
		hooks := metrics.Hooks().Merge(observability.LogHooks(logger))
		eng, err := cli.NewEngine(cfg, svc, logger, hooks)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		mgr, closeStore, err := cli.NewSessionManager(ctx, cfg, cli.StoreMemory, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := closeStore(); err != nil {
				logger.Warn("failed to close session store", "err", err)
			}
		}()

		handler := httpadapter.NewHandler(
			httpadapter.WithStoryService(svc),
			httpadapter.WithWizard(eng, mgr),
			httpadapter.WithMetrics(prometheus.DefaultGatherer),
			httpadapter.WithLogger(logger),
			httpadapter.WithDefaultScenes(cfg.DefaultScenes),
		)

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			logger.Info("Starting Storyweaver server", "address", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		// Blocking main and waiting for shutdown.
		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case <-ctx.Done():
			logger.Info("Start shutdown")

			// Give outstanding requests a deadline for completion.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			// Asking listener to shut down and shed load.
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Graceful shutdown did not complete", "timeout", 5*time.Second, "err", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("error killing server: %w", err)
				}
			}
			logger.Info("Storyweaver server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 3001, "Port to listen on (overrides PORT)")
}
