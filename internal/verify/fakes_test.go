package verify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/roach88/mealplan/internal/plan"
)

const (
	day1 = plan.DayKey("1709510400000") // 2024-03-04 UTC
	day2 = plan.DayKey("1709596800000") // 2024-03-05 UTC
)

var (
	jobStart = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	errBoom  = errors.New("boom")
)

// fakePlans serves one plan. When block is set, GetPlan waits for ctx.
// The first failReads reads fail with err; with failReads zero every read
// fails with err.
type fakePlans struct {
	mu        sync.Mutex
	plan      plan.Plan
	err       error
	failReads int
	block     bool
	reads     int
}

func (f *fakePlans) GetPlan(ctx context.Context, planID string) (plan.Plan, error) {
	f.mu.Lock()
	f.reads++
	p, err, block := f.plan, f.err, f.block
	if f.failReads > 0 && f.reads > f.failReads {
		err = nil
	}
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return plan.Plan{}, ctx.Err()
	}
	if err != nil {
		return plan.Plan{}, err
	}
	if p.ID != planID {
		return plan.Plan{}, plan.NewPlanNotFound(planID)
	}
	return plan.Plan{ID: p.ID, OrderID: p.OrderID, OrderDetail: p.OrderDetail.Clone()}, nil
}

// captureSink records published reports.
type captureSink struct {
	mu      sync.Mutex
	reports []Report
	err     error
}

func (s *captureSink) Publish(_ context.Context, r Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.reports = append(s.reports, r)
	return nil
}

func (s *captureSink) published() []Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Report(nil), s.reports...)
}

type mapCatalog map[string]string

func (m mapCatalog) FoodName(_ context.Context, id string) (string, error) {
	if n, ok := m[id]; ok {
		return n, nil
	}
	return "", errors.New("unknown food")
}

type mapDirectory map[string]string

func (m mapDirectory) DisplayName(_ context.Context, id string) (string, error) {
	if n, ok := m[id]; ok {
		return n, nil
	}
	return "", errors.New("unknown user")
}

type captureRecorder struct {
	mu      sync.Mutex
	results []Result
}

func (r *captureRecorder) RecordResult(_ context.Context, res Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
	return nil
}

func (r *captureRecorder) all() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Result(nil), r.results...)
}

func fixedClock() func() time.Time {
	return func() time.Time { return jobStart.Add(2 * time.Second) }
}

// actualPlan is what the store holds after another writer clobbered alice
// on day1 and carol on day2.
func actualPlan() plan.Plan {
	return plan.Plan{
		ID:      "plan-1",
		OrderID: "order-1",
		OrderDetail: plan.OrderDetail{
			day1: {
				Restaurant: plan.Restaurant{ID: "r1", Name: "Pho House"},
				FoodList: map[string]plan.Food{
					"f1": {Name: "Pho", Price: 50000},
					"f2": {Name: "Banh Mi", Price: 30000},
				},
				MemberOrders: map[string]plan.MemberOrderEntry{
					"alice": plan.EmptyEntry(),
					"bob":   {FoodID: "f2", Status: plan.StatusJoined},
				},
			},
			day2: {
				FoodList: map[string]plan.Food{},
				MemberOrders: map[string]plan.MemberOrderEntry{
					"carol": {FoodID: "f3", Status: plan.StatusJoined},
				},
			},
		},
	}
}

// writtenJob describes what the booker's bulk edit wrote.
func writtenJob() Job {
	exp := Expected{}
	exp.Set(day1, "alice", plan.MemberOrderEntry{FoodID: "f1", Status: plan.StatusJoined, Requirement: "no chili"})
	exp.Set(day1, "bob", plan.MemberOrderEntry{FoodID: "f2", Status: plan.StatusJoined})
	exp.Set(day2, "carol", plan.MemberOrderEntry{FoodID: "f3", Status: plan.StatusNotAllowed})

	at := jobStart.Add(-time.Second)
	return Job{
		JobID:     "job-1",
		OrderID:   "order-1",
		PlanID:    "plan-1",
		ActorID:   "booker-1",
		StartedAt: jobStart,
		Expected:  exp,
		Actions: []Action{
			{Seq: 1, At: at, ActorID: "booker-1", Day: day1, MemberID: "alice", Edit: plan.EditSetFood, FoodID: "f1"},
			{Seq: 2, At: at, ActorID: "booker-1", Day: day1, MemberID: "alice", Edit: plan.EditSetRequirement, Requirement: "no chili"},
			{Seq: 3, At: at, ActorID: "booker-1", Day: day2, MemberID: "carol", Edit: plan.EditDisallow},
		},
		WrittenDigest: "written-digest",
	}
}

// matchingPlan holds exactly what writtenJob wrote.
func matchingPlan() plan.Plan {
	p := actualPlan()
	job := writtenJob()
	for day, members := range job.Expected {
		d := p.OrderDetail[day]
		for id, e := range members {
			d = d.WithMemberEntry(id, e)
		}
		p.OrderDetail[day] = d
	}
	return p
}
