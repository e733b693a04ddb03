package suborder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mealplan/internal/ids"
	"github.com/roach88/mealplan/internal/plan"
)

// memStore is an in-memory Store for service tests.
type memStore struct {
	mu       sync.Mutex
	subs     map[string]SubOrder
	history  map[string][]Record
	stealOne bool // next AppendTransition reports a lost race once
}

func newMemStore() *memStore {
	return &memStore{subs: map[string]SubOrder{}, history: map[string][]Record{}}
}

func (m *memStore) CreateSubOrder(_ context.Context, so SubOrder, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[so.ID]; ok {
		return errors.New("duplicate sub-order")
	}
	m.subs[so.ID] = so
	m.history[so.ID] = []Record{rec}
	return nil
}

func (m *memStore) GetSubOrder(_ context.Context, id string) (SubOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	so, ok := m.subs[id]
	if !ok {
		return SubOrder{}, plan.NewSubOrderNotFound(id)
	}
	return so, nil
}

func (m *memStore) AppendTransition(_ context.Context, id string, expectedLast Transition, rec Record) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stealOne {
		m.stealOne = false
		return false, nil
	}
	so := m.subs[id]
	if so.LastTransition != expectedLast {
		return false, nil
	}
	so.LastTransition = rec.Transition
	so.UpdatedAt = rec.At
	m.subs[id] = so
	m.history[id] = append(m.history[id], rec)
	return true, nil
}

func (m *memStore) ListTransitions(_ context.Context, id string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.history[id]...), nil
}

type mockRecorder struct {
	mock.Mock
}

func (r *mockRecorder) RecordTransaction(ctx context.Context, planID string, day plan.DayKey, transactionID, lastTransition string) error {
	args := r.Called(ctx, planID, day, transactionID, lastTransition)
	return args.Error(0)
}

var fixedNow = time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)

func newTestService(st Store, rec DayRecorder) *Service {
	return NewService(st, rec, ids.NewFixedGenerator("so-1", "so-2"),
		WithClock(func() time.Time { return fixedNow }))
}

func TestService_InitiateMirrorsOntoDay(t *testing.T) {
	st := newMemStore()
	rec := &mockRecorder{}
	rec.On("RecordTransaction", mock.Anything, "plan-1", plan.DayKey("111"), "so-1", "initiate-transaction").Return(nil)

	svc := newTestService(st, rec)
	so, err := svc.Initiate(context.Background(), "plan-1", "111", "r1", nil)
	require.NoError(t, err)

	assert.Equal(t, "so-1", so.ID)
	state, err := so.State()
	require.NoError(t, err)
	assert.Equal(t, StateInitiated, state)
	rec.AssertExpectations(t)
}

func TestService_ApplyTransition(t *testing.T) {
	st := newMemStore()
	rec := &mockRecorder{}
	rec.On("RecordTransaction", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	svc := newTestService(st, rec)
	ctx := context.Background()

	so, err := svc.Initiate(ctx, "plan-1", "111", "r1", nil)
	require.NoError(t, err)

	state, err := svc.ApplyTransition(ctx, so.ID, TransitionPartnerConfirm, map[string]string{"by": "partner-7"})
	require.NoError(t, err)
	assert.Equal(t, StatePartnerConfirmed, state)

	history, err := svc.History(ctx, so.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, StateInitiated, history[1].From)
	assert.Equal(t, StatePartnerConfirmed, history[1].To)
	assert.Equal(t, "partner-7", history[1].Params["by"])

	rec.AssertCalled(t, "RecordTransaction", mock.Anything, "plan-1", plan.DayKey("111"), so.ID, "partner-confirm-sub-order")
}

func TestService_ApplyTransition_InvalidIsSurfaced(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st, nil)
	ctx := context.Background()

	so, err := svc.Initiate(ctx, "plan-1", "111", "r1", nil)
	require.NoError(t, err)

	state, err := svc.ApplyTransition(ctx, so.ID, TransitionCompleteDelivery, nil)
	require.Error(t, err)
	assert.True(t, plan.IsInvalidTransition(err))
	assert.Equal(t, StateInitiated, state)

	stored, err := st.GetSubOrder(ctx, so.ID)
	require.NoError(t, err)
	assert.Equal(t, TransitionInitiate, stored.LastTransition)
}

func TestService_ApplyTransition_RetriesLostRace(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st, nil)
	ctx := context.Background()

	so, err := svc.Initiate(ctx, "plan-1", "111", "r1", nil)
	require.NoError(t, err)

	st.stealOne = true
	state, err := svc.ApplyTransition(ctx, so.ID, TransitionPartnerReject, nil)
	require.NoError(t, err)
	assert.Equal(t, StatePartnerRejected, state)
}

func TestService_ApplyTransition_NotFound(t *testing.T) {
	svc := newTestService(newMemStore(), nil)
	_, err := svc.ApplyTransition(context.Background(), "missing", TransitionPartnerConfirm, nil)
	require.Error(t, err)
	assert.Equal(t, plan.ErrCodeSubOrderNotFound, plan.CodeOf(err))
}

func TestService_MirrorFailureDoesNotFailTransition(t *testing.T) {
	st := newMemStore()
	rec := &mockRecorder{}
	rec.On("RecordTransaction", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(plan.NewLockTimeout("plan:plan-1", time.Second))
	svc := newTestService(st, rec)

	so, err := svc.Initiate(context.Background(), "plan-1", "111", "r1", nil)
	require.NoError(t, err)
	assert.Equal(t, TransitionInitiate, so.LastTransition)
}
