package notify

import (
	"context"
	"fmt"

	"github.com/roach88/mealplan/internal/store"
	"github.com/roach88/mealplan/internal/verify"
)

// AlertStore is the subset of store.Store the outbox needs.
type AlertStore interface {
	InsertAlert(ctx context.Context, a store.Alert) (bool, error)
	RecordVerification(ctx context.Context, v store.Verification) error
}

// Outbox stores published reports and job results.
type Outbox struct {
	store AlertStore
}

var (
	_ verify.Sink     = (*Outbox)(nil)
	_ verify.Recorder = (*Outbox)(nil)
)

// NewOutbox creates an Outbox.
func NewOutbox(s AlertStore) *Outbox {
	return &Outbox{store: s}
}

// Publish implements verify.Sink. A second report for the same job is
// ignored.
func (o *Outbox) Publish(ctx context.Context, r verify.Report) error {
	payload, err := marshalReport(r)
	if err != nil {
		return err
	}
	_, err = o.store.InsertAlert(ctx, store.Alert{
		JobID:     r.JobID,
		PlanID:    r.PlanID,
		Outcome:   string(r.Outcome),
		Payload:   payload,
		CreatedAt: r.DetectedAt,
	})
	if err != nil {
		return fmt.Errorf("store alert for job %s: %w", r.JobID, err)
	}
	return nil
}

// RecordResult implements verify.Recorder.
func (o *Outbox) RecordResult(ctx context.Context, res verify.Result) error {
	return o.store.RecordVerification(ctx, store.Verification{
		JobID:      res.JobID,
		PlanID:     res.PlanID,
		OrderID:    res.OrderID,
		ActorID:    res.ActorID,
		Outcome:    string(res.Outcome),
		Mismatches: res.Mismatches,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Error:      res.Err,
	})
}
