package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eshaffer321/stripe-ledger-recon/internal/api"
	"github.com/eshaffer321/stripe-ledger-recon/internal/application/service"
)

const (
	shutdownTimeout    = 30 * time.Second
	jobCleanupInterval = 10 * time.Minute
)

func newServeCommand(a *app) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.API.Port = port
			}
			return a.runServe(cmd.Context())
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "port to listen on (default from config)")
	return cmd
}

// runServe runs the API server until SIGINT or SIGTERM.
func (a *app) runServe(ctx context.Context) error {
	logger := a.logger.With("system", "api")

	store, err := a.openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	engine, closeEngine, err := a.newEngine(store)
	if err != nil {
		return err
	}
	defer closeEngine()

	reconcileService := service.NewReconcileService(engine, a.logger.With("system", "jobs"))
	reconcileService.StartBackgroundCleanup(jobCleanupInterval)
	defer reconcileService.StopBackgroundCleanup()

	apiCfg := api.Config{
		Port:           a.cfg.API.Port,
		AllowedOrigins: a.cfg.API.AllowedOrigins,
	}
	server := api.NewServer(apiCfg, store, reconcileService, logger)

	// Handle graceful shutdown
	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	go func() {
		select {
		case <-quit:
			logger.Info("received shutdown signal")
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", slog.Any("error", err))
		}
		close(done)
	}()

	// Start server (blocks until shutdown)
	if err := server.Start(); err != nil {
		return err
	}

	<-done
	logger.Info("server stopped")
	return nil
}
