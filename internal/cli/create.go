package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/mealplan/internal/app"
	"github.com/roach88/mealplan/internal/config"
)

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <seed.yaml>",
		Short: "Create an order and its plan from a seed file",
		Long: `Create an order and its weekly plan from a YAML seed file.

The seed names the order's participants and date window, the foods and
users to register, and the restaurant and offered foods for each day.
Every participant starts with an empty entry on every day.

Example:
  mealplan create --db ./mealplan.db ./week-10.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := config.LoadSeed(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load seed", err)
			}
			return withRuntime(cmd, rootOpts, func(ctx context.Context, rt *app.Runtime, out *OutputFormatter) error {
				p, err := rt.CreateFromSeed(ctx, seed)
				if err != nil {
					return err
				}
				view := newPlanView(p, planLocation(ctx, rt, p))
				return out.Result(view, func(w io.Writer) {
					fmt.Fprintf(w, "Created plan %s for order %s (%d days)\n", p.ID, p.OrderID, len(view.Days))
				})
			})
		},
	}
	return cmd
}
