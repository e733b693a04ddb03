package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/mealplan/internal/config"
	"github.com/roach88/mealplan/internal/plan"
)

// ErrBeforeDeadline is returned by ExpireOverdue when the order's deadline
// has not passed and force is not set.
var ErrBeforeDeadline = errors.New("order deadline has not passed")

// CreateFromSeed registers the seed's foods and users, then creates its
// order and plan.
func (r *Runtime) CreateFromSeed(ctx context.Context, seed *config.Seed) (plan.Plan, error) {
	order, p, err := seed.Build(r.Config.Timezone)
	if err != nil {
		return plan.Plan{}, err
	}

	for _, id := range seed.FoodIDs() {
		f := seed.Foods[id]
		if err := r.Store.UpsertFood(ctx, id, f.Name, f.Price); err != nil {
			return plan.Plan{}, err
		}
	}
	for _, id := range seed.UserIDs() {
		if err := r.Store.UpsertUser(ctx, id, seed.Users[id]); err != nil {
			return plan.Plan{}, err
		}
	}
	if err := r.Store.CreateOrder(ctx, order); err != nil {
		return plan.Plan{}, fmt.Errorf("create order %s: %w", order.ID, err)
	}
	if err := r.Store.CreatePlan(ctx, p); err != nil {
		return plan.Plan{}, fmt.Errorf("create plan %s: %w", p.ID, err)
	}

	r.logger.Info("plan created",
		"plan_id", p.ID,
		"order_id", order.ID,
		"days", len(p.OrderDetail),
		"participants", len(order.Participants),
	)
	return r.Store.GetPlan(ctx, p.ID)
}

// ExpireOverdue expires every open entry of planID once its order's
// deadline has passed. force skips the deadline check.
func (r *Runtime) ExpireOverdue(ctx context.Context, planID string, now time.Time, force bool) (int, error) {
	if !force {
		p, err := r.Store.GetPlan(ctx, planID)
		if err != nil {
			return 0, err
		}
		order, err := r.Store.GetOrder(ctx, p.OrderID)
		if err != nil {
			return 0, err
		}
		if deadline := order.GeneralInfo.Deadline; now.Before(deadline) {
			return 0, fmt.Errorf("plan %s: %w (deadline %s)", planID, ErrBeforeDeadline, deadline.Format(time.RFC3339))
		}
	}
	return r.Mutator.ExpirePlan(ctx, planID)
}
