package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/mealplan/internal/app"
	"github.com/roach88/mealplan/internal/suborder"
)

// NewTransitionCommand creates the transition command group.
func NewTransitionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transition",
		Short: "Drive restaurant sub-order transactions",
		Long: `Initiate restaurant sub-orders and move them through their lifecycle.

Transitions:
  initiate-transaction, partner-confirm-sub-order, partner-reject-sub-order,
  start-delivery, complete-delivery, cancel-delivery, expired-delivery,
  expired-start-delivery, operator-cancel-plan,
  operator-cancel-after-partner-confirmed,
  operator-cancel-after-partner-rejected, restaurant-review,
  expired-review-time, restaurant-review-after-expire-time`,
	}

	cmd.AddCommand(newInitiateCommand(rootOpts))
	cmd.AddCommand(newApplyCommand(rootOpts))
	cmd.AddCommand(newHistoryCommand(rootOpts))
	return cmd
}

func newInitiateCommand(rootOpts *RootOptions) *cobra.Command {
	var day, restaurant string
	var params []string

	cmd := &cobra.Command{
		Use:           "initiate <plan-id>",
		Short:         "Create the sub-order for a day's restaurant",
		Example:       "  mealplan transition initiate plan-1 --day 2024-03-04 --restaurant r1",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			planID := args[0]
			p, err := parseParams(params)
			if err != nil {
				return err
			}
			return withRuntime(cmd, rootOpts, func(ctx context.Context, rt *app.Runtime, out *OutputFormatter) error {
				key, err := resolveDay(ctx, rt, planID, day)
				if err != nil {
					return err
				}
				if restaurant == "" {
					pl, err := rt.Store.GetPlan(ctx, planID)
					if err != nil {
						return err
					}
					restaurant = pl.OrderDetail[key].Restaurant.ID
				}
				if restaurant == "" {
					return NewExitError(ExitCommandError, "day has no restaurant; pass --restaurant")
				}
				so, err := rt.SubOrders.Initiate(ctx, planID, key, restaurant, p)
				if err != nil {
					return err
				}
				return out.Result(so, func(w io.Writer) {
					fmt.Fprintf(w, "Initiated sub-order %s for %s on day %s\n", so.ID, so.RestaurantID, so.Day)
				})
			})
		},
	}

	cmd.Flags().StringVar(&day, "day", "", "day as YYYY-MM-DD or day key (required)")
	cmd.Flags().StringVar(&restaurant, "restaurant", "", "restaurant id (defaults to the day's restaurant)")
	cmd.Flags().StringArrayVar(&params, "param", nil, "transition parameter key=value (repeatable)")
	_ = cmd.MarkFlagRequired("day")
	return cmd
}

func newApplyCommand(rootOpts *RootOptions) *cobra.Command {
	var params []string

	cmd := &cobra.Command{
		Use:           "apply <sub-order-id> <transition>",
		Short:         "Apply a transition to a sub-order",
		Example:       "  mealplan transition apply 0190f3c2-... partner-confirm-sub-order",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := suborder.ParseTransition(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid transition", err)
			}
			p, err := parseParams(params)
			if err != nil {
				return err
			}
			return withRuntime(cmd, rootOpts, func(ctx context.Context, rt *app.Runtime, out *OutputFormatter) error {
				state, err := rt.SubOrders.ApplyTransition(ctx, args[0], t, p)
				if err != nil {
					return err
				}
				data := map[string]string{"sub_order_id": args[0], "transition": string(t), "state": string(state)}
				return out.Result(data, func(w io.Writer) {
					fmt.Fprintf(w, "Sub-order %s is now %s\n", args[0], state)
				})
			})
		},
	}

	cmd.Flags().StringArrayVar(&params, "param", nil, "transition parameter key=value (repeatable)")
	return cmd
}

func newHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "history <sub-order-id>",
		Short:         "List the transitions applied to a sub-order",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, rootOpts, func(ctx context.Context, rt *app.Runtime, out *OutputFormatter) error {
				records, err := rt.SubOrders.History(ctx, args[0])
				if err != nil {
					return err
				}
				return out.Result(records, func(w io.Writer) {
					fmt.Fprintf(w, "Sub-order %s\n", args[0])
					for _, r := range records {
						fmt.Fprintf(w, "  %s  %-40s %s -> %s\n", r.At.Format(time.RFC3339), r.Transition, r.From, r.To)
					}
				})
			})
		},
	}
}
