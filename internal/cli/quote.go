package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/mealplan/internal/app"
	"github.com/roach88/mealplan/internal/quotation"
)

// NewQuoteCommand creates the quote command.
func NewQuoteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "quote <plan-id>",
		Short: "Price a plan",
		Long: `Count the ordered dishes of every day and price them with the configured
service fee, VAT, transport fee and promotion.

Entries that are disallowed or expired but still carry a food are priced.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, rootOpts, func(ctx context.Context, rt *app.Runtime, out *OutputFormatter) error {
				q, err := rt.Quotes.ComputeQuotation(ctx, args[0])
				if err != nil {
					return err
				}
				loc := rt.Location
				if p, err := rt.Store.GetPlan(ctx, args[0]); err == nil {
					loc = planLocation(ctx, rt, p)
				}
				return out.Result(q, func(w io.Writer) { writeQuotation(w, q, loc) })
			})
		},
	}
}

func writeQuotation(w io.Writer, q quotation.Quotation, loc *time.Location) {
	fmt.Fprintf(w, "Quotation for plan %s\n", q.PlanID)
	for _, d := range q.PerDay {
		fmt.Fprintln(w)
		writeRollup(w, d, loc)
	}
	t := q.Totals
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-14s %12d\n", "Dishes", t.TotalDishes)
	fmt.Fprintf(w, "%-14s %12d\n", "Delivery days", t.DeliveryDays)
	fmt.Fprintf(w, "%-14s %12d\n", "Subtotal", t.Subtotal)
	fmt.Fprintf(w, "%-14s %12d\n", "Promotion", -t.Promotion)
	fmt.Fprintf(w, "%-14s %12d\n", "Service fee", t.ServiceFee)
	fmt.Fprintf(w, "%-14s %12d\n", "Transport fee", t.TransportFee)
	fmt.Fprintf(w, "%-14s %12d\n", "VAT", t.VAT)
	fmt.Fprintf(w, "%-14s %12d\n", "Total", t.Total)
}

func writeRollup(w io.Writer, d quotation.DayRollup, loc *time.Location) {
	fmt.Fprintf(w, "%s  %d dishes  %d\n", d.Day.Date(loc), d.TotalDishes, d.TotalPrice)
	for _, f := range d.FoodFrequency {
		fmt.Fprintf(w, "  %-24s x%-3d %10d\n", f.FoodName, f.Frequency, f.UnitPrice*int64(f.Frequency))
	}
}

// NewRemindCommand creates the remind command.
func NewRemindCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remind <plan-id>",
		Short: "List members who still need to pick food",
		Long: `List, per day, the members whose entry is empty or declined, next to
what has already been ordered. Disallowed members are never listed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, rootOpts, func(ctx context.Context, rt *app.Runtime, out *OutputFormatter) error {
				p, err := rt.Store.GetPlan(ctx, args[0])
				if err != nil {
					return err
				}
				reminders, err := rt.Quotes.Reminders(ctx, args[0])
				if err != nil {
					return err
				}
				if reminders == nil {
					reminders = []quotation.DayReminder{}
				}
				loc := planLocation(ctx, rt, p)
				return out.Result(reminders, func(w io.Writer) {
					if len(reminders) == 0 {
						fmt.Fprintf(w, "Everyone has picked for plan %s\n", args[0])
						return
					}
					for _, r := range reminders {
						fmt.Fprintf(w, "%s  pending: %s\n", r.Day.Date(loc), strings.Join(displayNames(ctx, rt, r.Pending), ", "))
						writeRollup(w, r.Ordered, loc)
					}
				})
			})
		},
	}
}

// displayNames resolves member ids through the user directory, falling
// back to the id.
func displayNames(ctx context.Context, rt *app.Runtime, ids []string) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		name, err := rt.Store.DisplayName(ctx, id)
		if err != nil || name == "" {
			name = id
		}
		names = append(names, name)
	}
	return names
}
