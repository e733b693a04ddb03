package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/mealplan/internal/app"
)

// NewExpireCommand creates the expire command.
func NewExpireCommand(rootOpts *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "expire <plan-id>",
		Short: "Close every open entry once the order deadline has passed",
		Long: `Expire every member entry of the plan that is not already expired.
Selected foods are kept so the dishes are still priced.

Refuses to run before the order's deadline unless --force is given.

Example:
  mealplan expire plan-1
  mealplan expire plan-1 --force`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			planID := args[0]
			return withRuntime(cmd, rootOpts, func(ctx context.Context, rt *app.Runtime, out *OutputFormatter) error {
				n, err := rt.ExpireOverdue(ctx, planID, time.Now(), force)
				if errors.Is(err, app.ErrBeforeDeadline) {
					return WrapExitError(ExitFailure, "refusing to expire", err)
				}
				if err != nil {
					return err
				}
				data := map[string]interface{}{"plan_id": planID, "expired": n}
				return out.Result(data, func(w io.Writer) {
					fmt.Fprintf(w, "Expired %d entries of plan %s\n", n, planID)
				})
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "expire even before the deadline")
	return cmd
}
