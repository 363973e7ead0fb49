package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eshaffer321/stripe-ledger-recon/internal/application/reconcile"
	"github.com/eshaffer321/stripe-ledger-recon/internal/application/service"
	"github.com/eshaffer321/stripe-ledger-recon/internal/infrastructure/events"
	"github.com/eshaffer321/stripe-ledger-recon/internal/infrastructure/storage"
)

func newReconcileCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "reconcile [transactions|balances|all]",
		Short:     "Run a reconciliation and print its summary as one JSON line",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"transactions", "balances", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var arg string
			if len(args) == 1 {
				arg = args[0]
			}
			kind, err := service.ParseJobKind(arg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

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

			result, err := service.Run(ctx, engine, kind)
			if err != nil {
				return fmt.Errorf("reconcile %s: %w", kind, err)
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}

// newEngine builds an engine over repo with the configured event publisher.
// The returned func closes the publisher.
func (a *app) newEngine(repo storage.Repository) (*reconcile.Engine, func(), error) {
	cfg, err := reconcile.ConfigFrom(a.cfg.Reconciliation)
	if err != nil {
		return nil, nil, err
	}
	publisher := events.New(a.cfg.Events.Kafka, a.logger.With("system", "events"))
	engine := reconcile.NewEngine(repo, publisher, cfg, a.logger)
	return engine, func() {
		if err := publisher.Close(); err != nil {
			a.logger.Warn("failed to close event publisher", "error", err)
		}
	}, nil
}
