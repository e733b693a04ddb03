package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/mealplan/internal/app"
	"github.com/roach88/mealplan/internal/plan"
)

// PlanView is the CLI rendering of a plan.
type PlanView struct {
	PlanID    string    `json:"plan_id"`
	OrderID   string    `json:"order_id"`
	UpdatedAt time.Time `json:"updated_at"`
	Days      []DayView `json:"days"`
}

// DayView is one day of a PlanView.
type DayView struct {
	Day            plan.DayKey  `json:"day"`
	Date           string       `json:"date"`
	Restaurant     string       `json:"restaurant"`
	TransactionID  string       `json:"transaction_id,omitempty"`
	LastTransition string       `json:"last_transition,omitempty"`
	Members        []MemberView `json:"members"`
}

// MemberView is one member entry of a DayView.
type MemberView struct {
	MemberID    string      `json:"member_id"`
	Status      plan.Status `json:"status"`
	FoodID      string      `json:"food_id,omitempty"`
	FoodName    string      `json:"food_name,omitempty"`
	Requirement string      `json:"requirement,omitempty"`
}

func newPlanView(p plan.Plan, loc *time.Location) PlanView {
	view := PlanView{PlanID: p.ID, OrderID: p.OrderID, UpdatedAt: p.UpdatedAt}
	for _, key := range p.OrderDetail.Days() {
		day := p.OrderDetail[key]
		dv := DayView{
			Day:            key,
			Date:           key.Date(loc),
			Restaurant:     day.Restaurant.Name,
			TransactionID:  day.TransactionID,
			LastTransition: day.LastTransition,
		}
		for _, memberID := range day.MemberIDs() {
			e := day.Entry(memberID)
			mv := MemberView{MemberID: memberID, Status: e.Status, FoodID: e.FoodID, Requirement: e.Requirement}
			if f, ok := day.FoodList[e.FoodID]; ok {
				mv.FoodName = f.Name
			}
			dv.Members = append(dv.Members, mv)
		}
		view.Days = append(view.Days, dv)
	}
	return view
}

func (v PlanView) writeText(w io.Writer) {
	fmt.Fprintf(w, "Plan %s (order %s)\n", v.PlanID, v.OrderID)
	for _, d := range v.Days {
		fmt.Fprintln(w)
		restaurant := d.Restaurant
		if restaurant == "" {
			restaurant = "(no restaurant)"
		}
		fmt.Fprintf(w, "%s  %s\n", d.Date, restaurant)
		if d.TransactionID != "" {
			fmt.Fprintf(w, "  sub-order %s [%s]\n", d.TransactionID, d.LastTransition)
		}
		for _, m := range d.Members {
			line := fmt.Sprintf("  %-12s %-10s", m.MemberID, m.Status)
			if m.FoodName != "" {
				line += " " + m.FoodName
			} else if m.FoodID != "" {
				line += " " + m.FoodID
			}
			if m.Requirement != "" {
				line += fmt.Sprintf(" (%s)", m.Requirement)
			}
			fmt.Fprintln(w, line)
		}
	}
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <plan-id>",
		Short: "Show a plan's member entries day by day",
		Example: `  mealplan show plan-1
  mealplan show plan-1 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, rootOpts, func(ctx context.Context, rt *app.Runtime, out *OutputFormatter) error {
				p, err := rt.Store.GetPlan(ctx, args[0])
				if err != nil {
					return err
				}
				view := newPlanView(p, planLocation(ctx, rt, p))
				return out.Result(view, view.writeText)
			})
		},
	}
}
