package notify

import (
	"context"
	"log/slog"

	"github.com/roach88/mealplan/internal/verify"
)

// LogSink logs each report as one structured record.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink. A nil logger uses slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Publish implements verify.Sink.
func (s *LogSink) Publish(ctx context.Context, r verify.Report) error {
	attrs := []any{
		"job_id", r.JobID,
		"order_id", r.OrderID,
		"plan_id", r.PlanID,
		"actor", r.Actor.Name,
		"outcome", string(r.Outcome),
		"mismatches", r.MismatchCount(),
		"days", len(r.Days),
		"actions", len(r.Actions),
	}
	if r.Note != "" {
		attrs = append(attrs, "note", r.Note)
	}
	for _, d := range r.Days {
		for _, row := range d.Rows {
			attrs = append(attrs, slog.Group("entry",
				"date", d.Date,
				"member", row.Member.Name,
				"expected_food", row.Expected.Food.Name,
				"expected_status", string(row.Expected.Status),
				"actual", actualString(row.Actual),
			))
		}
	}
	s.logger.WarnContext(ctx, "plan consistency alert: "+r.Summary(), attrs...)
	return nil
}

func actualString(a *verify.EntryView) string {
	if a == nil {
		return "unknown"
	}
	if a.Food.ID == "" {
		return string(a.Status)
	}
	return string(a.Status) + "/" + a.Food.Name
}
