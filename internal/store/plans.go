package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/mealplan/internal/plan"
)

// CreatePlan stores a new plan and appends its id to the owning order's
// plan list in one transaction.
func (s *Store) CreatePlan(ctx context.Context, p plan.Plan) error {
	if err := s.guard(ctx, p.ID); err != nil {
		return err
	}
	if err := p.OrderDetail.Validate(); err != nil {
		return fmt.Errorf("create plan %s: %w", p.ID, err)
	}

	detail, err := marshalJSON(p.OrderDetail)
	if err != nil {
		return fmt.Errorf("marshal order detail: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(p.ID, fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback()

	var plans string
	err = tx.QueryRowContext(ctx, `SELECT plans FROM orders WHERE id = ?`, p.OrderID).Scan(&plans)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("order %s: %w", p.OrderID, ErrNotFound)
		}
		return classify(p.ID, fmt.Errorf("read order plans: %w", err))
	}
	var ids []string
	if err := unmarshalJSON(plans, &ids); err != nil {
		return fmt.Errorf("unmarshal plans: %w", err)
	}
	ids = append(ids, p.ID)
	updated, err := marshalJSON(ids)
	if err != nil {
		return fmt.Errorf("marshal plans: %w", err)
	}

	now := s.timestamp()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO plans (id, order_id, order_detail, updated_at)
		VALUES (?, ?, ?, ?)
	`, p.ID, p.OrderID, detail, now)
	if err != nil {
		if isConstraint(err) {
			return fmt.Errorf("plan %s: %w", p.ID, ErrDuplicate)
		}
		return classify(p.ID, fmt.Errorf("insert plan: %w", err))
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders SET plans = ?, updated_at = ? WHERE id = ?
	`, updated, now, p.OrderID)
	if err != nil {
		return classify(p.ID, fmt.Errorf("update order plans: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return classify(p.ID, fmt.Errorf("commit: %w", err))
	}
	return nil
}

// GetPlan returns the current plan document. Unknown ids fail with
// PLAN_NOT_FOUND.
func (s *Store) GetPlan(ctx context.Context, planID string) (plan.Plan, error) {
	if err := s.guard(ctx, planID); err != nil {
		return plan.Plan{}, err
	}

	var (
		p                 plan.Plan
		detail, updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, order_id, order_detail, updated_at
		FROM plans
		WHERE id = ?
	`, planID).Scan(&p.ID, &p.OrderID, &detail, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return plan.Plan{}, plan.NewPlanNotFound(planID)
		}
		return plan.Plan{}, classify(planID, fmt.Errorf("read plan: %w", err))
	}

	if err := unmarshalJSON(detail, &p.OrderDetail); err != nil {
		return plan.Plan{}, fmt.Errorf("unmarshal order detail of plan %s: %w", planID, err)
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return plan.Plan{}, err
	}
	return p, nil
}

// ReplaceOrderDetail overwrites the whole plan document.
//
// There is no version token: whatever was stored is replaced, including
// changes written by others since the caller's read. The only check is that
// the set of day keys is unchanged.
func (s *Store) ReplaceOrderDetail(ctx context.Context, planID string, detail plan.OrderDetail) error {
	if err := s.guard(ctx, planID); err != nil {
		return err
	}

	data, err := marshalJSON(detail)
	if err != nil {
		return fmt.Errorf("marshal order detail: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(planID, fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback()

	var stored string
	err = tx.QueryRowContext(ctx, `SELECT order_detail FROM plans WHERE id = ?`, planID).Scan(&stored)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return plan.NewPlanNotFound(planID)
		}
		return classify(planID, fmt.Errorf("read plan: %w", err))
	}
	var current plan.OrderDetail
	if err := unmarshalJSON(stored, &current); err != nil {
		return fmt.Errorf("unmarshal stored order detail: %w", err)
	}
	if !current.SameDays(detail) {
		return plan.NewDayKeysChanged(planID, len(current), len(detail))
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE plans SET order_detail = ?, updated_at = ? WHERE id = ?
	`, data, s.timestamp(), planID)
	if err != nil {
		return classify(planID, fmt.Errorf("replace order detail: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return classify(planID, fmt.Errorf("commit: %w", err))
	}
	return nil
}
