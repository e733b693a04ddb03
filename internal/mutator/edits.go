package mutator

import (
	"context"
	"fmt"

	"github.com/roach88/mealplan/internal/plan"
	"github.com/roach88/mealplan/internal/retry"
	"github.com/roach88/mealplan/internal/verify"
)

// SubmitMemberEdit applies edit to memberID's entry on day and returns the
// entry as written.
//
// The returned entry is what this cycle wrote, not a promise about what
// the store holds later: a concurrent writer may still overwrite it, which
// the verifier reports separately.
func (m *Mutator) SubmitMemberEdit(ctx context.Context, actorID, planID string, day plan.DayKey, memberID string, edit plan.Edit) (plan.MemberOrderEntry, error) {
	expected, err := m.SubmitEdits(ctx, actorID, planID, []EditAction{{Day: day, MemberID: memberID, Edit: edit}})
	if err != nil {
		return plan.MemberOrderEntry{}, err
	}
	return expected[day][memberID], nil
}

// DisallowMember marks memberID as not allowed to order on day.
func (m *Mutator) DisallowMember(ctx context.Context, actorID, planID string, day plan.DayKey, memberID string) (plan.MemberOrderEntry, error) {
	return m.SubmitMemberEdit(ctx, actorID, planID, day, memberID, plan.Disallow())
}

// RestoreMember undoes a disallow or decline of memberID on day.
func (m *Mutator) RestoreMember(ctx context.Context, actorID, planID string, day plan.DayKey, memberID string) (plan.MemberOrderEntry, error) {
	return m.SubmitMemberEdit(ctx, actorID, planID, day, memberID, plan.Restore())
}

// SubmitEdits applies actions in order in one locked cycle and returns the
// final entry of every touched member. Either every action applies or
// none is written.
func (m *Mutator) SubmitEdits(ctx context.Context, actorID, planID string, actions []EditAction) (verify.Expected, error) {
	if len(actions) == 0 {
		return verify.Expected{}, nil
	}
	order, err := m.checkEditable(ctx, planID)
	if err == nil {
		err = checkParticipants(order, planID, actions)
	}
	if err != nil {
		m.observeEdits(actions, err)
		return nil, err
	}

	days := make([]plan.DayKey, 0, len(actions))
	for _, a := range actions {
		days = append(days, a.Day)
	}

	c, err := m.mutate(ctx, actorID, planID, days, func(detail plan.OrderDetail, c *cycle) (plan.OrderDetail, error) {
		var err error
		for _, a := range actions {
			detail, err = m.applyEdit(detail, c, actorID, a)
			if err != nil {
				return nil, err
			}
		}
		return detail, nil
	})
	m.observeEdits(actions, err)
	if err != nil {
		m.logger.Debug("plan edit rejected",
			"plan_id", planID,
			"actor_id", actorID,
			"code", string(plan.CodeOf(err)),
			"error", err,
		)
		return nil, err
	}
	return c.expected, nil
}

// ExpirePlan closes every entry that is not already expired, keeping any
// food selection. It is the deadline sweep and returns the number of
// entries expired.
func (m *Mutator) ExpirePlan(ctx context.Context, planID string) (int, error) {
	// Day keys never change, so they can be read before locking.
	p, err := m.store.GetPlan(ctx, planID)
	if err != nil {
		return 0, plan.WithLocation(err, planID, "", "")
	}

	c, err := m.mutate(ctx, SystemActor, planID, p.OrderDetail.Days(), func(detail plan.OrderDetail, c *cycle) (plan.OrderDetail, error) {
		var err error
		for _, day := range detail.Days() {
			d := detail[day]
			for _, memberID := range d.MemberIDs() {
				if d.MemberOrders[memberID].Status.Terminal() {
					continue
				}
				detail, err = m.applyEdit(detail, c, SystemActor, EditAction{Day: day, MemberID: memberID, Edit: plan.Expire()})
				if err != nil {
					return nil, err
				}
			}
		}
		return detail, nil
	})
	if err != nil {
		return 0, err
	}
	return len(c.actions), nil
}

// RecordTransaction points day at a sub-order transaction. It implements
// suborder.DayRecorder and goes through the same locked cycle as member
// edits so it cannot clobber them.
//
// With a TransactionReader the label is re-read under the lock and
// lastTransition is ignored, so a delayed call cannot move the day back
// to an older label.
func (m *Mutator) RecordTransaction(ctx context.Context, planID string, day plan.DayKey, transactionID, lastTransition string) error {
	_, err := m.mutate(ctx, SystemActor, planID, []plan.DayKey{day}, func(detail plan.OrderDetail, c *cycle) (plan.OrderDetail, error) {
		d, ok := detail.Day(day)
		if !ok {
			return nil, plan.NewUnknownDay(day)
		}
		label := lastTransition
		if m.txns != nil {
			err := retry.Do(ctx, m.retries, func() error {
				var err error
				label, err = m.txns.LastTransition(ctx, transactionID)
				return err
			}, m.onRetry("read_transaction", planID))
			if err != nil {
				return nil, fmt.Errorf("read sub-order %s: %w", transactionID, err)
			}
		}
		return detail.WithDay(day, d.WithTransaction(transactionID, label))
	})
	return err
}

func (m *Mutator) observeEdits(actions []EditAction, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(plan.CodeOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	for _, a := range actions {
		m.metrics.ObserveEdit(string(a.Edit.Kind), outcome)
	}
}
