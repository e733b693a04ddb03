package store

import (
	"context"
	"fmt"
	"time"
)

// Alert is one published verification report kept in the outbox.
type Alert struct {
	ID        int64
	JobID     string
	PlanID    string
	Outcome   string
	Payload   string
	CreatedAt time.Time
}

// Verification is the outcome record of one verification job.
type Verification struct {
	JobID      string
	PlanID     string
	OrderID    string
	ActorID    string
	Outcome    string
	Mismatches int
	StartedAt  time.Time
	FinishedAt time.Time
	Error      string
}

// InsertAlert appends an alert to the outbox. A job publishes at most one
// alert; a second insert for the same job is ignored and reports false.
func (s *Store) InsertAlert(ctx context.Context, a Alert) (bool, error) {
	if err := s.guard(ctx, a.PlanID); err != nil {
		return false, err
	}
	created := a.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (job_id, plan_id, outcome, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO NOTHING
	`, a.JobID, a.PlanID, a.Outcome, a.Payload, formatTime(created))
	if err != nil {
		return false, classify(a.PlanID, fmt.Errorf("insert alert: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// ListAlerts returns outbox alerts newest first. An empty planID lists all
// plans; limit <= 0 means no limit.
func (s *Store) ListAlerts(ctx context.Context, planID string, limit int) ([]Alert, error) {
	if err := s.guard(ctx, planID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, plan_id, outcome, payload, created_at
		FROM alerts
		WHERE ? = '' OR plan_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, planID, planID, limit)
	if err != nil {
		return nil, classify(planID, fmt.Errorf("query alerts: %w", err))
	}
	defer rows.Close()

	alerts := []Alert{}
	for rows.Next() {
		var (
			a       Alert
			created string
		)
		if err := rows.Scan(&a.ID, &a.JobID, &a.PlanID, &a.Outcome, &a.Payload, &created); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		if a.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(planID, fmt.Errorf("iterate alerts: %w", err))
	}
	return alerts, nil
}

// RecordVerification stores the outcome of a verification job. Recording
// the same job twice keeps the first record.
func (s *Store) RecordVerification(ctx context.Context, v Verification) error {
	if err := s.guard(ctx, v.PlanID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO verifications (job_id, plan_id, order_id, actor_id, outcome, mismatches, started_at, finished_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO NOTHING
	`, v.JobID, v.PlanID, v.OrderID, v.ActorID, v.Outcome, v.Mismatches,
		formatTime(v.StartedAt), formatTime(v.FinishedAt), v.Error)
	if err != nil {
		return classify(v.PlanID, fmt.Errorf("insert verification: %w", err))
	}
	return nil
}

// ListVerifications returns a plan's verification records oldest first.
func (s *Store) ListVerifications(ctx context.Context, planID string) ([]Verification, error) {
	if err := s.guard(ctx, planID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, plan_id, order_id, actor_id, outcome, mismatches, started_at, finished_at, error
		FROM verifications
		WHERE plan_id = ?
		ORDER BY started_at ASC, job_id COLLATE BINARY ASC
	`, planID)
	if err != nil {
		return nil, classify(planID, fmt.Errorf("query verifications: %w", err))
	}
	defer rows.Close()

	out := []Verification{}
	for rows.Next() {
		var (
			v                 Verification
			started, finished string
		)
		if err := rows.Scan(&v.JobID, &v.PlanID, &v.OrderID, &v.ActorID, &v.Outcome, &v.Mismatches,
			&started, &finished, &v.Error); err != nil {
			return nil, fmt.Errorf("scan verification: %w", err)
		}
		if v.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if v.FinishedAt, err = parseTime(finished); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(planID, fmt.Errorf("iterate verifications: %w", err))
	}
	return out, nil
}
