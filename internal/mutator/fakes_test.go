package mutator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/roach88/mealplan/internal/lock"
	"github.com/roach88/mealplan/internal/plan"
	"github.com/roach88/mealplan/internal/retry"
	"github.com/roach88/mealplan/internal/verify"
)

const (
	day1 = plan.DayKey("1709510400000") // 2024-03-04 UTC
	day2 = plan.DayKey("1709596800000") // 2024-03-05 UTC
)

// memPlans is a PlanStore with the same contract as the SQLite store:
// whole-document replace, no version check.
type memPlans struct {
	mu     sync.Mutex
	plans  map[string]plan.Plan
	reads  int
	writes int

	// failReads and failWrites make the next N calls STORE_UNAVAILABLE.
	failReads  int
	failWrites int

	// barrier, when set, holds every read until that many readers have
	// taken their snapshot.
	barrier *readBarrier

	// readDelay sleeps after taking the snapshot.
	readDelay time.Duration
}

func newMemPlans(ps ...plan.Plan) *memPlans {
	m := &memPlans{plans: map[string]plan.Plan{}}
	for _, p := range ps {
		m.plans[p.ID] = p
	}
	return m
}

func (m *memPlans) GetPlan(ctx context.Context, planID string) (plan.Plan, error) {
	m.mu.Lock()
	m.reads++
	if m.failReads > 0 {
		m.failReads--
		m.mu.Unlock()
		return plan.Plan{}, plan.NewStoreUnavailable(planID, errors.New("connection reset"))
	}
	p, ok := m.plans[planID]
	if ok {
		p.OrderDetail = p.OrderDetail.Clone()
	}
	barrier, delay := m.barrier, m.readDelay
	m.mu.Unlock()

	if !ok {
		return plan.Plan{}, plan.NewPlanNotFound(planID)
	}
	if barrier != nil {
		barrier.arrive()
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	return p, nil
}

func (m *memPlans) ReplaceOrderDetail(ctx context.Context, planID string, detail plan.OrderDetail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.failWrites > 0 {
		m.failWrites--
		return plan.NewStoreUnavailable(planID, errors.New("disk I/O error"))
	}
	p, ok := m.plans[planID]
	if !ok {
		return plan.NewPlanNotFound(planID)
	}
	if !p.OrderDetail.SameDays(detail) {
		return plan.NewDayKeysChanged(planID, len(p.OrderDetail), len(detail))
	}
	p.OrderDetail = detail.Clone()
	m.plans[planID] = p
	return nil
}

func (m *memPlans) get(planID string) plan.Plan {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.plans[planID]
}

func (m *memPlans) counts() (reads, writes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads, m.writes
}

type readBarrier struct {
	mu      sync.Mutex
	n       int
	arrived int
	open    chan struct{}
}

func newReadBarrier(n int) *readBarrier {
	return &readBarrier{n: n, open: make(chan struct{})}
}

func (b *readBarrier) arrive() {
	b.mu.Lock()
	b.arrived++
	if b.arrived == b.n {
		close(b.open)
	}
	b.mu.Unlock()
	<-b.open
}

// captureScheduler records jobs and checks the plan lock is already free
// when a job is scheduled.
type captureScheduler struct {
	mu       sync.Mutex
	jobs     []verify.Job
	locker   lock.Locker
	lockFree []bool
}

func (s *captureScheduler) Schedule(job verify.Job) {
	free := true
	if s.locker != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		unlock, err := lock.LockAll(ctx, s.locker, lock.ScopePlan.Keys(job.PlanID, nil))
		cancel()
		if err != nil {
			free = false
		} else {
			unlock()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	s.lockFree = append(s.lockFree, free)
}

func (s *captureScheduler) all() []verify.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]verify.Job(nil), s.jobs...)
}

// transactionLabels is a TransactionReader over a map of labels.
type transactionLabels struct {
	mu     sync.Mutex
	labels map[string]string
}

func (t *transactionLabels) set(id, label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.labels[id] = label
}

func (t *transactionLabels) LastTransition(_ context.Context, id string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	label, ok := t.labels[id]
	if !ok {
		return "", plan.NewSubOrderNotFound(id)
	}
	return label, nil
}

type fixedOrders map[string]plan.Order

func (f fixedOrders) GetOrder(_ context.Context, id string) (plan.Order, error) {
	o, ok := f[id]
	if !ok {
		return plan.Order{}, errors.New("order not found")
	}
	return o, nil
}

// testPlan has two days and three members. carol is already expired on
// day2.
func testPlan() plan.Plan {
	foods := map[string]plan.Food{
		"f1": {Name: "Pho", Price: 50000},
		"f2": {Name: "Banh Mi", Price: 30000},
	}
	members := func() map[string]plan.MemberOrderEntry {
		return map[string]plan.MemberOrderEntry{
			"alice": plan.EmptyEntry(),
			"bob":   plan.EmptyEntry(),
			"carol": plan.EmptyEntry(),
		}
	}
	d2 := members()
	d2["carol"] = plan.MemberOrderEntry{FoodID: "f1", Status: plan.StatusExpired}
	return plan.Plan{
		ID:      "plan-1",
		OrderID: "order-1",
		OrderDetail: plan.OrderDetail{
			day1: {Restaurant: plan.Restaurant{ID: "r1"}, FoodList: foods, MemberOrders: members()},
			day2: {Restaurant: plan.Restaurant{ID: "r1"}, FoodList: foods, MemberOrders: d2},
		},
	}
}

var fastRetry = retry.Policy{Attempts: 3, Backoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond}
