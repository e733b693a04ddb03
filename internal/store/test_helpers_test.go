package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/mealplan/internal/plan"
)

var testLoc = time.UTC

// createTestStore creates a new temp-dir store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestOrder returns a three-day order with two participants.
func createTestOrder(id string) plan.Order {
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, testLoc)
	return plan.Order{
		ID:           id,
		CompanyID:    "company-1",
		BookerID:     "booker-1",
		Participants: []string{"alice", "bob"},
		State:        plan.OrderStatePicking,
		GeneralInfo: plan.GeneralInfo{
			StartDate:    start,
			EndDate:      start.AddDate(0, 0, 2),
			Deadline:     start.Add(-24 * time.Hour),
			DeliveryHour: "12:00",
		},
	}
}

// createTestPlan stores an order and a plan for it and returns the plan.
func createTestPlan(t *testing.T, s *Store, orderID, planID string) plan.Plan {
	t.Helper()
	ctx := context.Background()
	order := createTestOrder(orderID)
	if err := s.CreateOrder(ctx, order); err != nil {
		t.Fatalf("CreateOrder() failed: %v", err)
	}

	first := plan.DayKeyOf(order.GeneralInfo.StartDate, testLoc)
	p, err := plan.NewPlan(planID, order, map[plan.DayKey]plan.DaySetup{
		first: {
			Restaurant: plan.Restaurant{ID: "r1", Name: "Pho House"},
			FoodList: map[string]plan.Food{
				"f1": {Name: "Pho", Price: 50000},
				"f2": {Name: "Banh Mi", Price: 30000},
			},
		},
	})
	if err != nil {
		t.Fatalf("NewPlan() failed: %v", err)
	}
	if err := s.CreatePlan(ctx, p); err != nil {
		t.Fatalf("CreatePlan() failed: %v", err)
	}
	return p
}
