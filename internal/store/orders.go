package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/mealplan/internal/plan"
)

// CreateOrder inserts a new order. Orders are never deleted.
func (s *Store) CreateOrder(ctx context.Context, o plan.Order) error {
	if err := s.guard(ctx, ""); err != nil {
		return err
	}

	participants, err := marshalJSON(nonNil(o.Participants))
	if err != nil {
		return fmt.Errorf("marshal participants: %w", err)
	}
	plans, err := marshalJSON(nonNil(o.Plans))
	if err != nil {
		return fmt.Errorf("marshal plans: %w", err)
	}
	info, err := marshalJSON(o.GeneralInfo)
	if err != nil {
		return fmt.Errorf("marshal general info: %w", err)
	}

	now := s.timestamp()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (id, company_id, booker_id, state, participants, plans, general_info, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.ID, o.CompanyID, o.BookerID, string(o.State), participants, plans, info, now, now)
	if err != nil {
		if isConstraint(err) {
			return fmt.Errorf("order %s: %w", o.ID, ErrDuplicate)
		}
		return classify("", fmt.Errorf("insert order: %w", err))
	}
	return nil
}

// GetOrder returns the order with the given id, wrapping ErrNotFound when
// there is none.
func (s *Store) GetOrder(ctx context.Context, id string) (plan.Order, error) {
	if err := s.guard(ctx, ""); err != nil {
		return plan.Order{}, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, company_id, booker_id, state, participants, plans, general_info
		FROM orders
		WHERE id = ?
	`, id)

	var (
		o                         plan.Order
		state, parts, plans, info string
	)
	if err := row.Scan(&o.ID, &o.CompanyID, &o.BookerID, &state, &parts, &plans, &info); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return plan.Order{}, fmt.Errorf("order %s: %w", id, ErrNotFound)
		}
		return plan.Order{}, classify("", fmt.Errorf("scan order: %w", err))
	}
	o.State = plan.OrderState(state)
	if err := unmarshalJSON(parts, &o.Participants); err != nil {
		return plan.Order{}, fmt.Errorf("unmarshal participants: %w", err)
	}
	if err := unmarshalJSON(plans, &o.Plans); err != nil {
		return plan.Order{}, fmt.Errorf("unmarshal plans: %w", err)
	}
	if err := unmarshalJSON(info, &o.GeneralInfo); err != nil {
		return plan.Order{}, fmt.Errorf("unmarshal general info: %w", err)
	}
	return o, nil
}

// AdvanceOrder moves an order to next, enforcing the order lifecycle.
func (s *Store) AdvanceOrder(ctx context.Context, id string, next plan.OrderState) (plan.Order, error) {
	o, err := s.GetOrder(ctx, id)
	if err != nil {
		return plan.Order{}, err
	}
	advanced, err := o.Advance(next)
	if err != nil {
		return plan.Order{}, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET state = ?, updated_at = ?
		WHERE id = ? AND state = ?
	`, string(advanced.State), s.timestamp(), id, string(o.State))
	if err != nil {
		return plan.Order{}, classify("", fmt.Errorf("update order state: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return plan.Order{}, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return plan.Order{}, fmt.Errorf("order %s changed state concurrently", id)
	}
	return advanced, nil
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
