package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bibbank/microcredit/internal/application/dto"
)

var errNotConfigured = errors.New("command backend not configured")

func newRecalculateCmd(deps Deps) *cobra.Command {
	var req dto.RecalculateScoresRequest
	cmd := &cobra.Command{
		Use:   "recalculate",
		Short: "Re-score borrowers now",
		Long: `Recompute credit scores for the given borrowers, or for every active
borrower. A borrower already re-evaluated today is left unchanged.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if deps.Recalculator == nil {
				return errNotConfigured
			}
			uc, cleanup, err := deps.Recalculator(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := uc.Execute(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("recalculate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed=%d updated=%d fallbacks=%d failed=%d\n",
				res.Processed, res.Updated, res.Fallbacks, res.Failed)
			if res.Failed > 0 {
				return fmt.Errorf("%d borrowers failed", res.Failed)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&req.BorrowerIDs, "borrower", nil, "Borrower ID to re-score (repeatable)")
	cmd.Flags().IntVar(&req.Workers, "workers", 0, "Concurrent workers (default from config)")
	return cmd
}

func newSweepCmd(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run the arrears sweep now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if deps.Sweeper == nil {
				return errNotConfigured
			}
			uc, cleanup, err := deps.Sweeper(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := uc.Execute(cmd.Context())
			if err != nil {
				return fmt.Errorf("sweep: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "checked=%d newly_overdue=%d moved_to_arrears=%d failed=%d\n",
				res.LoansChecked, res.NewlyOverdue, res.MovedToArrears, res.Failed)
			return nil
		},
	}
}

func newMigrateCmd(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if deps.Migrate == nil {
				return errNotConfigured
			}
			if err := deps.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
