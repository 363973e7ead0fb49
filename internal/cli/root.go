// Package cli implements the recon command line.
//
// Commands print their payload on stdout and log on stderr, so the output of
// `recon reconcile` can be piped straight into another program.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/eshaffer321/stripe-ledger-recon/internal/infrastructure/config"
	"github.com/eshaffer321/stripe-ledger-recon/internal/infrastructure/logging"
	"github.com/eshaffer321/stripe-ledger-recon/internal/infrastructure/storage"
)

// app carries what every command needs once the root pre-run has finished.
type app struct {
	configPath string
	envFile    string
	verbose    bool

	cfg    *config.Config
	logger *slog.Logger
	stderr io.Writer
}

// NewRootCommand builds the recon command tree writing to stdout and stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stderr: stderr}

	root := &cobra.Command{
		Use:   "recon",
		Short: "Reconcile Stripe payments against the ledger",
		Long: `recon matches Stripe charges to ledger transactions and compares
Stripe balance movements with ledger account balances.

Example:
  recon import --file snapshot.yaml
  recon reconcile all
  recon matches --match-type started --date-from 2024-01-01 --format csv`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&a.configPath, "config", "config.yaml", "config file (environment variables are used when it does not exist)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", "", ".env file to load (default is ./.env when present)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newReconcileCommand(a),
		newMatchesCommand(a),
		newBalancesCommand(a),
		newImportCommand(a),
		newRunsCommand(a),
		newServeCommand(a),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	root := NewRootCommand(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func (a *app) init() error {
	if err := config.LoadDotEnv(a.envFile); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}

	cfg, err := config.LoadOrEnv(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg

	loggingCfg := cfg.Observability.Logging
	if a.verbose {
		loggingCfg.Level = "debug"
	}
	// stdout carries command output, so logs always go to stderr
	a.logger = logging.NewLoggerTo(a.stderr, loggingCfg)
	return nil
}

// openStorage opens the configured database.
func (a *app) openStorage(ctx context.Context) (*storage.Storage, error) {
	store, err := storage.NewStorage(ctx, a.cfg.Storage, a.logger.With("system", "storage"))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return store, nil
}
