package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/mealplan/internal/store"
	"github.com/roach88/mealplan/internal/suborder"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

func (h *Harness) check(ctx context.Context, a Assertion, final FinalState) error {
	switch a.Type {
	case AssertEntry:
		return assertEntry(a, final)
	case AssertQuote:
		return assertQuote(a, final)
	case AssertVerifications:
		return assertVerifications(a, final)
	case AssertAlerts:
		if final.Alerts != *a.Count {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%d alerts", *a.Count), Actual: fmt.Sprintf("%d", final.Alerts)}
		}
		return nil
	case AssertSubOrder:
		return h.assertSubOrder(ctx, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func assertEntry(a Assertion, final FinalState) error {
	day, ok := final.Days[a.Day]
	if !ok {
		return &AssertionError{Type: a.Type, Expected: "day " + a.Day, Actual: "no such day"}
	}
	got, ok := day.Members[a.Member]
	if !ok {
		return &AssertionError{Type: a.Type, Expected: "member " + a.Member, Actual: "no entry"}
	}

	var diffs []string
	if a.Status != "" && got.Status != a.Status {
		diffs = append(diffs, fmt.Sprintf("status %s != %s", got.Status, a.Status))
	}
	if a.Food != "" && got.Food != a.Food {
		diffs = append(diffs, fmt.Sprintf("food %q != %q", got.Food, a.Food))
	}
	if a.Requirement != "" && got.Requirement != a.Requirement {
		diffs = append(diffs, fmt.Sprintf("requirement %q != %q", got.Requirement, a.Requirement))
	}
	if len(diffs) > 0 {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s on %s {status=%s food=%s}", a.Member, a.Day, a.Status, a.Food),
			Actual:   strings.Join(diffs, "; "),
		}
	}
	return nil
}

func assertQuote(a Assertion, final FinalState) error {
	if a.Total != nil && final.Quote.Total != *a.Total {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("total %d", *a.Total), Actual: fmt.Sprintf("%d", final.Quote.Total)}
	}
	if a.Count != nil && final.Quote.TotalDishes != *a.Count {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%d dishes", *a.Count), Actual: fmt.Sprintf("%d", final.Quote.TotalDishes)}
	}
	return nil
}

// assertVerifications counts records with the given outcome, or all
// records when no outcome is given.
func assertVerifications(a Assertion, final FinalState) error {
	got := 0
	for outcome, n := range final.Verifications {
		if a.Outcome == "" || outcome == a.Outcome {
			got += n
		}
	}
	if got != *a.Count {
		label := "verifications"
		if a.Outcome != "" {
			label = a.Outcome + " " + label
		}
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%d %s", *a.Count, label), Actual: fmt.Sprintf("%d (%v)", got, final.Verifications)}
	}
	return nil
}

func (h *Harness) assertSubOrder(ctx context.Context, a Assertion) error {
	day, err := h.resolveDay(a.Day)
	if err != nil {
		return err
	}
	h.mu.Lock()
	id, ok := h.subOrders[day]
	h.mu.Unlock()
	if !ok {
		return &AssertionError{Type: a.Type, Expected: "sub-order on " + a.Day, Actual: "none initiated"}
	}

	st, err := store.Open(h.cfg.Database)
	if err != nil {
		return fmt.Errorf("reopen store: %w", err)
	}
	defer st.Close()

	so, err := st.GetSubOrder(ctx, id)
	if err != nil {
		return err
	}
	state, err := so.State()
	if err != nil {
		return err
	}
	if state != suborder.State(a.State) {
		return &AssertionError{Type: a.Type, Expected: a.State, Actual: string(state)}
	}
	return nil
}
