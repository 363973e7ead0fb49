package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eshaffer321/stripe-ledger-recon/internal/infrastructure/storage"
)

func newImportCommand(a *app) *cobra.Command {
	var (
		file    string
		replace bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a YAML or JSON snapshot of Stripe and ledger records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return errors.New("--file is required")
			}
			snap, err := storage.LoadSnapshotFile(file)
			if err != nil {
				return fmt.Errorf("load snapshot: %w", err)
			}

			store, err := a.openStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			stats, err := store.ImportSnapshot(cmd.Context(), snap, replace)
			if err != nil {
				return fmt.Errorf("import %s: %w", file, err)
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "snapshot file")
	cmd.Flags().BoolVar(&replace, "replace", false, "empty the input tables before importing")
	return cmd
}
