package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/mealplan/internal/app"
	"github.com/roach88/mealplan/internal/store"
	"github.com/roach88/mealplan/internal/verify"
)

// AlertView is an outbox alert with its report decoded.
type AlertView struct {
	ID        int64          `json:"id"`
	JobID     string         `json:"job_id"`
	PlanID    string         `json:"plan_id"`
	Outcome   string         `json:"outcome"`
	CreatedAt time.Time      `json:"created_at"`
	Summary   string         `json:"summary"`
	Report    *verify.Report `json:"report,omitempty"`
}

// VerificationView is one verification job record.
type VerificationView struct {
	JobID      string    `json:"job_id"`
	ActorID    string    `json:"actor_id"`
	Outcome    string    `json:"outcome"`
	Mismatches int       `json:"mismatches"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Error      string    `json:"error,omitempty"`
}

// NewAlertsCommand creates the alerts command.
func NewAlertsCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		planID  string
		limit   int
		results bool
	)

	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List lost-update alerts and verification results",
		Long: `List the lost-update alerts stored in the outbox, newest first.

With --results, list every verification job of a plan instead, including
the ones that matched.

Examples:
  mealplan alerts
  mealplan alerts --plan plan-1 --limit 5
  mealplan alerts --plan plan-1 --results`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if results && planID == "" {
				return NewExitError(ExitCommandError, "--results requires --plan")
			}
			return withRuntime(cmd, rootOpts, func(ctx context.Context, rt *app.Runtime, out *OutputFormatter) error {
				if results {
					return listVerifications(ctx, rt, out, planID)
				}
				return listAlerts(ctx, rt, out, planID, limit)
			})
		},
	}

	cmd.Flags().StringVar(&planID, "plan", "", "only this plan")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum alerts to list (0 for all)")
	cmd.Flags().BoolVar(&results, "results", false, "list verification results instead of alerts")
	return cmd
}

func listAlerts(ctx context.Context, rt *app.Runtime, out *OutputFormatter, planID string, limit int) error {
	alerts, err := rt.Store.ListAlerts(ctx, planID, limit)
	if err != nil {
		return err
	}
	views := make([]AlertView, 0, len(alerts))
	for _, a := range alerts {
		views = append(views, newAlertView(a))
	}
	return out.Result(views, func(w io.Writer) {
		if len(views) == 0 {
			fmt.Fprintln(w, "No alerts")
			return
		}
		for _, v := range views {
			fmt.Fprintf(w, "%s  [%s] %s\n", v.CreatedAt.Format(time.RFC3339), v.Outcome, v.Summary)
			if v.Report == nil {
				continue
			}
			for _, d := range v.Report.Days {
				for _, row := range d.Rows {
					fmt.Fprintf(w, "    %s %s: expected %s, found %s\n",
						d.Date, row.Member.Name, entryText(&row.Expected), entryText(row.Actual))
				}
			}
		}
	})
}

func newAlertView(a store.Alert) AlertView {
	v := AlertView{
		ID:        a.ID,
		JobID:     a.JobID,
		PlanID:    a.PlanID,
		Outcome:   a.Outcome,
		CreatedAt: a.CreatedAt,
	}
	var r verify.Report
	if err := json.Unmarshal([]byte(a.Payload), &r); err != nil {
		v.Summary = fmt.Sprintf("unreadable report: %v", err)
		return v
	}
	v.Report = &r
	v.Summary = r.Summary()
	return v
}

func entryText(e *verify.EntryView) string {
	if e == nil {
		return "nothing"
	}
	if e.Food.Name != "" {
		return fmt.Sprintf("%s %s", e.Status, e.Food.Name)
	}
	return string(e.Status)
}

func listVerifications(ctx context.Context, rt *app.Runtime, out *OutputFormatter, planID string) error {
	records, err := rt.Store.ListVerifications(ctx, planID)
	if err != nil {
		return err
	}
	views := make([]VerificationView, 0, len(records))
	for _, r := range records {
		views = append(views, VerificationView{
			JobID:      r.JobID,
			ActorID:    r.ActorID,
			Outcome:    r.Outcome,
			Mismatches: r.Mismatches,
			StartedAt:  r.StartedAt,
			FinishedAt: r.FinishedAt,
			Error:      r.Error,
		})
	}
	return out.Result(views, func(w io.Writer) {
		fmt.Fprintf(w, "Verifications for plan %s\n", planID)
		for _, v := range views {
			line := fmt.Sprintf("  %s  %-10s %-12s mismatches=%d", v.StartedAt.Format(time.RFC3339), v.Outcome, v.ActorID, v.Mismatches)
			if v.Error != "" {
				line += " error=" + v.Error
			}
			fmt.Fprintln(w, line)
		}
	})
}
