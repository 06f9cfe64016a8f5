// Package cli implements microcreditctl, the operator command line.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/bibbank/microcredit/internal/application/dto"
)

// Recalculator is satisfied by *usecase.RecalculateScoresUseCase.
type Recalculator interface {
	Execute(ctx context.Context, req dto.RecalculateScoresRequest) (dto.RecalculateScoresResponse, error)
}

// Sweeper is satisfied by *usecase.SweepArrearsUseCase.
type Sweeper interface {
	Execute(ctx context.Context) (dto.SweepArrearsResponse, error)
}

// Deps builds the backends of the commands that touch storage. Each builder
// returns a cleanup func that the command calls when it is done.
type Deps struct {
	Recalculator func(ctx context.Context) (Recalculator, func(), error)
	Sweeper      func(ctx context.Context) (Sweeper, func(), error)
	Migrate      func(ctx context.Context) error
}

// NewRootCmd assembles the command tree.
func NewRootCmd(deps Deps) *cobra.Command {
	root := &cobra.Command{
		Use:           "microcreditctl",
		Short:         "Operate the microcredit engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newScheduleCmd(),
		newRecalculateCmd(deps),
		newSweepCmd(deps),
		newMigrateCmd(deps),
	)
	return root
}
