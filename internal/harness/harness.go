package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/mealplan/internal/app"
	"github.com/roach88/mealplan/internal/config"
	"github.com/roach88/mealplan/internal/mutator"
	"github.com/roach88/mealplan/internal/plan"
	"github.com/roach88/mealplan/internal/quotation"
	"github.com/roach88/mealplan/internal/store"
	"github.com/roach88/mealplan/internal/suborder"
	"github.com/roach88/mealplan/internal/testutil"
)

// Harness executes one scenario against a fresh runtime.
type Harness struct {
	scenario *Scenario
	cfg      config.Config
	seed     *config.Seed
	clock    *testutil.StepClock
	logger   *slog.Logger

	rt     *app.Runtime
	order  plan.Order
	planID string
	loc    *time.Location

	mu        sync.Mutex
	sessions  map[string]*mutator.Session
	subOrders map[plan.DayKey]string
}

// Option configures Run.
type Option func(*Harness)

// WithLogger sets the logger passed to the runtime. Defaults to a
// discarding logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// WithDatabase sets the database path. Defaults to a file in a temporary
// directory removed after the run.
func WithDatabase(path string) Option {
	return func(h *Harness) { h.cfg.Database = path }
}

// Run executes the scenario and returns the result. An error means the
// scenario could not be executed at all; step and assertion failures are
// reported through Result.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	h, cleanup, err := newHarness(scenario, opts...)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	result := NewResult()

	if err := h.open(ctx); err != nil {
		return nil, err
	}
	if err := h.setup(ctx); err != nil {
		h.rt.Close()
		return nil, err
	}

	for i, step := range scenario.Steps {
		switch {
		case len(step.Concurrent) > 0:
			h.runConcurrent(ctx, i, step.Concurrent, result)
		case step.Settle:
			err := h.settle(ctx)
			h.record(result, i, step, TraceEvent{Op: OpSettle}, err)
			if h.rt == nil {
				return nil, err
			}
		default:
			ev, err := h.runStep(ctx, step)
			h.record(result, i, step, ev, err)
		}
	}

	// Close drains the verification runner so every job has recorded its
	// outcome before the final state is read.
	if err := h.rt.Close(); err != nil {
		result.AddError(fmt.Sprintf("close runtime: %v", err))
	}

	final, err := h.readFinal(ctx)
	if err != nil {
		return nil, err
	}
	result.Final = final

	for i, a := range scenario.Assertions {
		if err := h.check(ctx, a, final); err != nil {
			result.AddError(fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}

	h.logger.Info("scenario finished",
		"scenario", scenario.Name,
		"steps", len(scenario.Steps),
		"pass", result.Pass,
	)
	return result, nil
}

func newHarness(scenario *Scenario, opts ...Option) (*Harness, func(), error) {
	cfg := config.Default()
	cfg.Lock.Backend = config.BackendMemory
	cfg.Alerts.Log = false
	if scenario.Config.Kind != 0 {
		data, err := yaml.Marshal(&scenario.Config)
		if err != nil {
			return nil, nil, fmt.Errorf("encode scenario config: %w", err)
		}
		if err := config.Parse(scenario.Name+" config", data, &cfg); err != nil {
			return nil, nil, err
		}
	}

	data, err := yaml.Marshal(&scenario.Seed)
	if err != nil {
		return nil, nil, fmt.Errorf("encode scenario seed: %w", err)
	}
	seed, err := config.ParseSeed(scenario.Name+" seed", data)
	if err != nil {
		return nil, nil, err
	}

	start := DefaultClockStart
	if scenario.Clock != "" {
		if start, err = time.Parse(time.RFC3339, scenario.Clock); err != nil {
			return nil, nil, fmt.Errorf("clock: %w", err)
		}
	}

	h := &Harness{
		scenario:  scenario,
		cfg:       cfg,
		seed:      seed,
		clock:     testutil.NewStepClock(start, time.Millisecond),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		sessions:  make(map[string]*mutator.Session),
		subOrders: make(map[plan.DayKey]string),
	}
	h.cfg.Database = ""
	for _, opt := range opts {
		opt(h)
	}

	cleanup := func() {}
	if h.cfg.Database == "" {
		dir, err := os.MkdirTemp("", "mealplan-scenario-*")
		if err != nil {
			return nil, nil, fmt.Errorf("create scenario directory: %w", err)
		}
		h.cfg.Database = filepath.Join(dir, "scenario.db")
		cleanup = func() { os.RemoveAll(dir) }
	}
	return h, cleanup, nil
}

func (h *Harness) open(ctx context.Context) error {
	rt, err := app.Open(ctx, h.cfg, app.WithLogger(h.logger), app.WithClock(h.clock.Now))
	if err != nil {
		return fmt.Errorf("open runtime: %w", err)
	}
	h.rt = rt
	return nil
}

// settle closes the runtime, which drains verification, and opens a new
// one on the same database. Sessions start over.
func (h *Harness) settle(ctx context.Context) error {
	closeErr := h.rt.Close()
	h.rt = nil
	if err := h.open(ctx); err != nil {
		return err
	}

	h.mu.Lock()
	h.sessions = make(map[string]*mutator.Session)
	h.mu.Unlock()
	return closeErr
}

func (h *Harness) setup(ctx context.Context) error {
	p, err := h.rt.CreateFromSeed(ctx, h.seed)
	if err != nil {
		return fmt.Errorf("seed scenario %s: %w", h.scenario.Name, err)
	}
	order, err := h.rt.Store.GetOrder(ctx, p.OrderID)
	if err != nil {
		return fmt.Errorf("read seeded order: %w", err)
	}
	h.order = order
	h.planID = p.ID
	h.loc = order.GeneralInfo.Location()
	return nil
}

// runConcurrent starts every step of the group at once and records them
// in declaration order once all have returned.
func (h *Harness) runConcurrent(ctx context.Context, index int, steps []Step, result *Result) {
	events := make([]TraceEvent, len(steps))
	errs := make([]error, len(steps))

	var (
		wg    sync.WaitGroup
		ready = make(chan struct{})
	)
	for i, step := range steps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ready
			events[i], errs[i] = h.runStep(ctx, step)
		}()
	}
	close(ready)
	wg.Wait()

	for i, step := range steps {
		h.record(result, index, step, events[i], errs[i])
	}
}

// record appends ev to the trace and checks the step's expectation.
func (h *Harness) record(result *Result, index int, step Step, ev TraceEvent, err error) {
	ev.Step = index
	ev.Outcome = OutcomeOK
	if err != nil {
		ev.Outcome = string(plan.CodeOf(err))
		if ev.Outcome == "" {
			ev.Outcome = "error"
		}
	}
	result.Trace = append(result.Trace, ev)

	label := fmt.Sprintf("step %d", index)
	if step.Name != "" {
		label += " (" + step.Name + ")"
	}
	switch {
	case step.ExpectError == "" && err != nil:
		result.AddError(fmt.Sprintf("%s: unexpected error: %v", label, err))
	case step.ExpectError != "" && err == nil:
		result.AddError(fmt.Sprintf("%s: expected %s, succeeded", label, step.ExpectError))
	case step.ExpectError != "" && ev.Outcome != step.ExpectError:
		result.AddError(fmt.Sprintf("%s: expected %s, got %v", label, step.ExpectError, err))
	}
}

func (h *Harness) runStep(ctx context.Context, step Step) (TraceEvent, error) {
	actor := step.Actor
	if actor == "" {
		actor = h.order.BookerID
	}

	switch {
	case step.Edit != nil:
		return h.runEdit(ctx, actor, *step.Edit)
	case len(step.Batch) > 0:
		return h.runBatch(ctx, actor, step.Batch)
	case step.Initiate != nil:
		return h.runInitiate(ctx, actor, *step.Initiate)
	case step.Transition != nil:
		return h.runTransition(ctx, actor, *step.Transition)
	case step.Expire != nil:
		return h.runExpire(ctx, *step.Expire)
	}
	return TraceEvent{}, fmt.Errorf("empty step")
}

// session returns the actor's session, so that an actor's edits keep
// their order across concurrent groups.
func (h *Harness) session(actor string) *mutator.Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[actor]
	if !ok {
		s = h.rt.Mutator.Session(actor)
		h.sessions[actor] = s
	}
	return s
}

func (h *Harness) runEdit(ctx context.Context, actor string, line config.BatchEdit) (TraceEvent, error) {
	ev := TraceEvent{Op: OpEdit, Actor: actor, Day: line.Day, Member: line.Member}
	day, err := h.resolveDay(line.Day)
	if err != nil {
		return ev, err
	}
	edit, err := line.Edit()
	if err != nil {
		return ev, err
	}

	entry, err := h.session(actor).SubmitMemberEdit(ctx, h.planID, day, line.Member, edit)
	if err != nil {
		return ev, err
	}
	ev.Status = string(entry.Status)
	ev.Food = entry.FoodID
	return ev, nil
}

func (h *Harness) runBatch(ctx context.Context, actor string, lines []config.BatchEdit) (TraceEvent, error) {
	ev := TraceEvent{Op: OpBatch, Actor: actor}
	actions := make([]mutator.EditAction, 0, len(lines))
	for _, line := range lines {
		day, err := h.resolveDay(line.Day)
		if err != nil {
			return ev, err
		}
		edit, err := line.Edit()
		if err != nil {
			return ev, err
		}
		actions = append(actions, mutator.EditAction{Day: day, MemberID: line.Member, Edit: edit})
	}

	if _, err := h.session(actor).SubmitEdits(ctx, h.planID, actions); err != nil {
		return ev, err
	}
	ev.Count = len(actions)
	return ev, nil
}

func (h *Harness) runInitiate(ctx context.Context, actor string, s InitiateStep) (TraceEvent, error) {
	ev := TraceEvent{Op: OpInitiate, Actor: actor, Day: s.Day}
	day, err := h.resolveDay(s.Day)
	if err != nil {
		return ev, err
	}

	restaurant := s.Restaurant
	if restaurant == "" {
		p, err := h.rt.Store.GetPlan(ctx, h.planID)
		if err != nil {
			return ev, err
		}
		restaurant = p.OrderDetail[day].Restaurant.ID
	}

	so, err := h.rt.SubOrders.Initiate(ctx, h.planID, day, restaurant, s.Params)
	if err != nil {
		return ev, err
	}
	h.mu.Lock()
	h.subOrders[day] = so.ID
	h.mu.Unlock()

	state, err := so.State()
	if err != nil {
		return ev, err
	}
	ev.State = string(state)
	return ev, nil
}

func (h *Harness) runTransition(ctx context.Context, actor string, s TransitionStep) (TraceEvent, error) {
	ev := TraceEvent{Op: OpTransition, Actor: actor, Day: s.Day}
	day, err := h.resolveDay(s.Day)
	if err != nil {
		return ev, err
	}
	t, err := suborder.ParseTransition(s.Name)
	if err != nil {
		return ev, err
	}

	h.mu.Lock()
	id, ok := h.subOrders[day]
	h.mu.Unlock()
	if !ok {
		return ev, plan.NewSubOrderNotFound("for day " + s.Day)
	}

	state, err := h.rt.SubOrders.ApplyTransition(ctx, id, t, s.Params)
	if err != nil {
		return ev, err
	}
	ev.State = string(state)
	return ev, nil
}

func (h *Harness) runExpire(ctx context.Context, s ExpireStep) (TraceEvent, error) {
	ev := TraceEvent{Op: OpExpire}
	now := h.clock.Peek()
	if s.At != "" {
		at, err := time.Parse(time.RFC3339, s.At)
		if err != nil {
			return ev, err
		}
		now = at
	}

	n, err := h.rt.ExpireOverdue(ctx, h.planID, now, s.Force)
	if err != nil {
		return ev, err
	}
	ev.Count = n
	return ev, nil
}

// resolveDay accepts a YYYY-MM-DD date in the order's timezone or a raw
// day key.
func (h *Harness) resolveDay(s string) (plan.DayKey, error) {
	t, err := time.ParseInLocation(time.DateOnly, s, h.loc)
	if err == nil {
		return plan.DayKeyOf(t, h.loc), nil
	}
	if key, err := plan.ParseDayKey(s); err == nil {
		return key, nil
	}
	return "", fmt.Errorf("invalid day %q", s)
}

// readFinal reopens the database the closed runtime left behind.
func (h *Harness) readFinal(ctx context.Context) (FinalState, error) {
	st, err := store.Open(h.cfg.Database)
	if err != nil {
		return FinalState{}, fmt.Errorf("reopen store: %w", err)
	}
	defer st.Close()

	p, err := st.GetPlan(ctx, h.planID)
	if err != nil {
		return FinalState{}, fmt.Errorf("read final plan: %w", err)
	}

	final := FinalState{
		Days:          make(map[string]DayState, len(p.OrderDetail)),
		Quote:         quotation.Compute(p, h.cfg.Pricing).Totals,
		Verifications: make(map[string]int),
	}
	for _, key := range p.OrderDetail.Days() {
		d := p.OrderDetail[key]
		ds := DayState{
			Restaurant:     d.Restaurant.Name,
			LastTransition: d.LastTransition,
			Members:        make(map[string]EntryState, len(d.MemberOrders)),
		}
		for _, id := range d.MemberIDs() {
			e := d.MemberOrders[id]
			ds.Members[id] = EntryState{Status: string(e.Status), Food: e.FoodID, Requirement: e.Requirement}
		}
		final.Days[key.Date(h.loc)] = ds
	}

	records, err := st.ListVerifications(ctx, h.planID)
	if err != nil {
		return FinalState{}, fmt.Errorf("read verifications: %w", err)
	}
	for _, r := range records {
		final.Verifications[r.Outcome]++
	}

	alerts, err := st.ListAlerts(ctx, h.planID, 0)
	if err != nil {
		return FinalState{}, fmt.Errorf("read alerts: %w", err)
	}
	final.Alerts = len(alerts)
	return final, nil
}
