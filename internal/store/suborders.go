package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/mealplan/internal/plan"
	"github.com/roach88/mealplan/internal/suborder"
)

var _ suborder.Store = (*Store)(nil)

// CreateSubOrder inserts a sub-order and its first transition record.
// A second sub-order for the same (plan, day, restaurant) wraps ErrDuplicate.
func (s *Store) CreateSubOrder(ctx context.Context, so suborder.SubOrder, rec suborder.Record) error {
	if err := s.guard(ctx, so.PlanID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(so.PlanID, fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sub_orders (id, plan_id, day, restaurant_id, last_transition, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, so.ID, so.PlanID, string(so.Day), so.RestaurantID, string(so.LastTransition),
		formatTime(so.CreatedAt), formatTime(so.UpdatedAt))
	if err != nil {
		if isConstraint(err) {
			return fmt.Errorf("sub-order for plan %s day %s restaurant %s: %w",
				so.PlanID, so.Day, so.RestaurantID, ErrDuplicate)
		}
		return classify(so.PlanID, fmt.Errorf("insert sub-order: %w", err))
	}

	if err := insertTransition(ctx, tx, rec); err != nil {
		return classify(so.PlanID, err)
	}

	if err := tx.Commit(); err != nil {
		return classify(so.PlanID, fmt.Errorf("commit: %w", err))
	}
	return nil
}

// GetSubOrder returns SUB_ORDER_NOT_FOUND for unknown ids.
func (s *Store) GetSubOrder(ctx context.Context, id string) (suborder.SubOrder, error) {
	if err := s.guard(ctx, ""); err != nil {
		return suborder.SubOrder{}, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, plan_id, day, restaurant_id, last_transition, created_at, updated_at
		FROM sub_orders
		WHERE id = ?
	`, id)
	so, err := scanSubOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return suborder.SubOrder{}, plan.NewSubOrderNotFound(id)
		}
		return suborder.SubOrder{}, classify("", err)
	}
	return so, nil
}

// LastTransition returns the stored last transition label of a sub-order.
func (s *Store) LastTransition(ctx context.Context, subOrderID string) (string, error) {
	so, err := s.GetSubOrder(ctx, subOrderID)
	if err != nil {
		return "", err
	}
	return string(so.LastTransition), nil
}

// ListSubOrders returns a plan's sub-orders ordered by day then restaurant.
func (s *Store) ListSubOrders(ctx context.Context, planID string) ([]suborder.SubOrder, error) {
	if err := s.guard(ctx, planID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, plan_id, day, restaurant_id, last_transition, created_at, updated_at
		FROM sub_orders
		WHERE plan_id = ?
		ORDER BY CAST(day AS INTEGER) ASC, restaurant_id COLLATE BINARY ASC
	`, planID)
	if err != nil {
		return nil, classify(planID, fmt.Errorf("query sub-orders: %w", err))
	}
	defer rows.Close()

	subs := []suborder.SubOrder{}
	for rows.Next() {
		so, err := scanSubOrder(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, so)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(planID, fmt.Errorf("iterate sub-orders: %w", err))
	}
	return subs, nil
}

// AppendTransition advances a sub-order only if its last transition is
// still expectedLast, and records rec. It reports false when another writer
// moved the sub-order first.
func (s *Store) AppendTransition(ctx context.Context, id string, expectedLast suborder.Transition, rec suborder.Record) (bool, error) {
	if err := s.guard(ctx, ""); err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, classify("", fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE sub_orders SET last_transition = ?, updated_at = ?
		WHERE id = ? AND last_transition = ?
	`, string(rec.Transition), formatTime(rec.At), id, string(expectedLast))
	if err != nil {
		return false, classify("", fmt.Errorf("update sub-order: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM sub_orders WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return false, plan.NewSubOrderNotFound(id)
		}
		if err != nil {
			return false, classify("", fmt.Errorf("check sub-order: %w", err))
		}
		return false, nil
	}

	if err := insertTransition(ctx, tx, rec); err != nil {
		return false, classify("", err)
	}

	if err := tx.Commit(); err != nil {
		return false, classify("", fmt.Errorf("commit: %w", err))
	}
	return true, nil
}

// ListTransitions returns a sub-order's history oldest first.
func (s *Store) ListTransitions(ctx context.Context, id string) ([]suborder.Record, error) {
	if err := s.guard(ctx, ""); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sub_order_id, transition, from_state, to_state, params, at
		FROM sub_order_transitions
		WHERE sub_order_id = ?
		ORDER BY id ASC
	`, id)
	if err != nil {
		return nil, classify("", fmt.Errorf("query transitions: %w", err))
	}
	defer rows.Close()

	records := []suborder.Record{}
	for rows.Next() {
		var (
			rec                              suborder.Record
			transition, from, to, params, at string
		)
		if err := rows.Scan(&rec.SubOrderID, &transition, &from, &to, &params, &at); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		rec.Transition = suborder.Transition(transition)
		rec.From = suborder.State(from)
		rec.To = suborder.State(to)
		if rec.Params, err = unmarshalParams(params); err != nil {
			return nil, err
		}
		if rec.At, err = parseTime(at); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("", fmt.Errorf("iterate transitions: %w", err))
	}
	return records, nil
}

func insertTransition(ctx context.Context, tx *sql.Tx, rec suborder.Record) error {
	params, err := marshalParams(rec.Params)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sub_order_transitions (sub_order_id, transition, from_state, to_state, params, at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.SubOrderID, string(rec.Transition), string(rec.From), string(rec.To), params, formatTime(rec.At))
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubOrder(row rowScanner) (suborder.SubOrder, error) {
	var (
		so                          suborder.SubOrder
		day, last, created, updated string
	)
	if err := row.Scan(&so.ID, &so.PlanID, &day, &so.RestaurantID, &last, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return suborder.SubOrder{}, err
		}
		return suborder.SubOrder{}, fmt.Errorf("scan sub-order: %w", err)
	}
	so.Day = plan.DayKey(day)
	so.LastTransition = suborder.Transition(last)

	var err error
	if so.CreatedAt, err = parseTime(created); err != nil {
		return suborder.SubOrder{}, err
	}
	if so.UpdatedAt, err = parseTime(updated); err != nil {
		return suborder.SubOrder{}, err
	}
	return so, nil
}
