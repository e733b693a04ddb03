package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mealplan/internal/plan"
)

func TestCreateOrder_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	order := createTestOrder("order-1")
	require.NoError(t, s.CreateOrder(ctx, order))

	got, err := s.GetOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, order.Participants, got.Participants)
	assert.Equal(t, plan.OrderStatePicking, got.State)
	assert.Empty(t, got.Plans)
	assert.True(t, order.GeneralInfo.StartDate.Equal(got.GeneralInfo.StartDate))

	err = s.CreateOrder(ctx, order)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestGetOrder_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.GetOrder(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdvanceOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateOrder(ctx, createTestOrder("order-1")))

	o, err := s.AdvanceOrder(ctx, "order-1", plan.OrderStateInProgress)
	require.NoError(t, err)
	assert.Equal(t, plan.OrderStateInProgress, o.State)

	_, err = s.AdvanceOrder(ctx, "order-1", plan.OrderStateReviewed)
	assert.True(t, plan.IsInvalidTransition(err), "got %v", err)

	stored, err := s.GetOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, plan.OrderStateInProgress, stored.State)
}

func TestCreatePlan_AppendsToOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	p := createTestPlan(t, s, "order-1", "plan-1")

	order, err := s.GetOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"plan-1"}, order.Plans)

	got, err := s.GetPlan(ctx, "plan-1")
	require.NoError(t, err)
	assert.Equal(t, p.OrderDetail, got.OrderDetail)
	assert.Equal(t, "order-1", got.OrderID)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestCreatePlan_UnknownOrder(t *testing.T) {
	s := createTestStore(t)
	order := createTestOrder("ghost")
	p, err := plan.NewPlan("plan-1", order, nil)
	require.NoError(t, err)

	err = s.CreatePlan(context.Background(), p)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetPlan_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.GetPlan(context.Background(), "missing")
	assert.True(t, plan.HasCode(err, plan.ErrCodePlanNotFound), "got %v", err)
}

func TestReplaceOrderDetail_WholeDocument(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	p := createTestPlan(t, s, "order-1", "plan-1")
	day := p.OrderDetail.Days()[0]

	// Two writers read the same snapshot; the later write wins wholesale.
	first := p.OrderDetail.Clone()
	d := first[day].WithMemberEntry("alice", plan.MemberOrderEntry{FoodID: "f1", Status: plan.StatusJoined})
	first[day] = d

	second := p.OrderDetail.Clone()
	d = second[day].WithMemberEntry("bob", plan.MemberOrderEntry{FoodID: "f2", Status: plan.StatusJoined})
	second[day] = d

	require.NoError(t, s.ReplaceOrderDetail(ctx, "plan-1", first))
	require.NoError(t, s.ReplaceOrderDetail(ctx, "plan-1", second))

	got, err := s.GetPlan(ctx, "plan-1")
	require.NoError(t, err)
	assert.Equal(t, plan.StatusEmpty, got.OrderDetail[day].Entry("alice").Status, "first write is lost")
	assert.Equal(t, "f2", got.OrderDetail[day].Entry("bob").FoodID)
}

func TestReplaceOrderDetail_DayKeysImmutable(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	p := createTestPlan(t, s, "order-1", "plan-1")

	fewer := p.OrderDetail.Clone()
	delete(fewer, p.OrderDetail.Days()[0])
	err := s.ReplaceOrderDetail(ctx, "plan-1", fewer)
	assert.True(t, plan.HasCode(err, plan.ErrCodeDayKeysChanged), "got %v", err)

	more := p.OrderDetail.Clone()
	more[plan.DayKeyOf(time.Date(2030, 1, 1, 0, 0, 0, 0, testLoc), testLoc)] = plan.DayOrder{}
	err = s.ReplaceOrderDetail(ctx, "plan-1", more)
	assert.True(t, plan.HasCode(err, plan.ErrCodeDayKeysChanged), "got %v", err)

	err = s.ReplaceOrderDetail(ctx, "missing", p.OrderDetail)
	assert.True(t, plan.HasCode(err, plan.ErrCodePlanNotFound), "got %v", err)
}

func TestReplaceOrderDetail_CanceledContext(t *testing.T) {
	s := createTestStore(t)
	p := createTestPlan(t, s, "order-1", "plan-1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.ReplaceOrderDetail(ctx, "plan-1", p.OrderDetail)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}
