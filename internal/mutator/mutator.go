package mutator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/mealplan/internal/ids"
	"github.com/roach88/mealplan/internal/lock"
	"github.com/roach88/mealplan/internal/metrics"
	"github.com/roach88/mealplan/internal/plan"
	"github.com/roach88/mealplan/internal/retry"
	"github.com/roach88/mealplan/internal/verify"
)

// PlanStore reads and wholesale-replaces plan documents. There is no
// version token.
type PlanStore interface {
	GetPlan(ctx context.Context, planID string) (plan.Plan, error)
	ReplaceOrderDetail(ctx context.Context, planID string, detail plan.OrderDetail) error
}

// OrderReader reads the order owning a plan. Optional: without it, edits
// are not checked against the order lifecycle and day keys render in UTC.
type OrderReader interface {
	GetOrder(ctx context.Context, orderID string) (plan.Order, error)
}

// TransactionReader reads the current last transition of a sub-order
// transaction. Optional: without it, RecordTransaction writes the label it
// was given.
type TransactionReader interface {
	LastTransition(ctx context.Context, transactionID string) (string, error)
}

// SystemActor is the actor recorded for sweeps and sub-order mirrors.
const SystemActor = "system"

// EditAction is one edit of one member's entry on one day.
type EditAction struct {
	Day      plan.DayKey `json:"day" yaml:"day"`
	MemberID string      `json:"memberId" yaml:"memberId"`
	Edit     plan.Edit   `json:"edit" yaml:"edit"`
}

// Mutator runs locked read-modify-write cycles against a PlanStore.
type Mutator struct {
	store     PlanStore
	locker    lock.Locker
	scope     lock.Scope
	orders    OrderReader
	txns      TransactionReader
	scheduler verify.Scheduler
	jobIDs    ids.Generator
	clock     *Clock
	retries   retry.Policy
	metrics   *metrics.Collector
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Mutator.
type Option func(*Mutator)

// WithScope sets the lock scope. Default lock.ScopePlan.
func WithScope(s lock.Scope) Option { return func(m *Mutator) { m.scope = s } }

// WithOrders sets the order reader.
func WithOrders(o OrderReader) Option { return func(m *Mutator) { m.orders = o } }

// WithTransactions sets where RecordTransaction reads the current label of
// a sub-order.
func WithTransactions(r TransactionReader) Option { return func(m *Mutator) { m.txns = r } }

// WithScheduler sets where verification jobs go. Without one, nothing is
// verified.
func WithScheduler(s verify.Scheduler) Option { return func(m *Mutator) { m.scheduler = s } }

// WithJobIDs sets the verification job id generator. Default UUIDv7.
func WithJobIDs(g ids.Generator) Option { return func(m *Mutator) { m.jobIDs = g } }

// WithRetryPolicy sets the store retry policy.
func WithRetryPolicy(p retry.Policy) Option { return func(m *Mutator) { m.retries = p } }

// WithMetrics sets the metrics collector.
func WithMetrics(c *metrics.Collector) Option { return func(m *Mutator) { m.metrics = c } }

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option { return func(m *Mutator) { m.logger = l } }

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option { return func(m *Mutator) { m.now = now } }

// New creates a Mutator.
func New(store PlanStore, locker lock.Locker, opts ...Option) *Mutator {
	m := &Mutator{
		store:   store,
		locker:  locker,
		scope:   lock.ScopePlan,
		jobIDs:  ids.UUIDv7Generator{},
		clock:   NewClock(),
		retries: retry.DefaultPolicy,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// cycle is the outcome of one locked mutation.
type cycle struct {
	plan     plan.Plan
	written  plan.OrderDetail
	expected verify.Expected
	actions  []verify.Action
	started  time.Time
}

// mutateFunc applies changes to detail and reports each member entry it
// wrote through c.
type mutateFunc func(detail plan.OrderDetail, c *cycle) (plan.OrderDetail, error)

// mutate runs one locked read-modify-write cycle over days of planID and
// schedules verification after the lock is released.
func (m *Mutator) mutate(ctx context.Context, actorID, planID string, days []plan.DayKey, fn mutateFunc) (*cycle, error) {
	c, err := m.locked(ctx, actorID, planID, days, fn)
	if err != nil {
		return nil, err
	}
	m.schedule(ctx, actorID, c)
	return c, nil
}

func (m *Mutator) locked(ctx context.Context, actorID, planID string, days []plan.DayKey, fn mutateFunc) (*cycle, error) {
	c := &cycle{
		expected: verify.Expected{},
		started:  m.now().UTC(),
	}

	waitStart := time.Now()
	unlock, err := lock.LockAll(ctx, m.locker, m.scope.Keys(planID, days))
	m.metrics.ObserveLockWait(time.Since(waitStart), err == nil)
	if err != nil {
		return nil, plan.WithLocation(err, planID, "", "")
	}
	defer unlock()

	err = retry.Do(ctx, m.retries, func() error {
		p, err := m.store.GetPlan(ctx, planID)
		c.plan = p
		return err
	}, m.onRetry("read", planID))
	if err != nil {
		return nil, plan.WithLocation(err, planID, "", "")
	}

	next, err := fn(c.plan.OrderDetail, c)
	if err != nil {
		return nil, plan.WithLocation(err, planID, "", "")
	}

	err = retry.Do(ctx, m.retries, func() error {
		return m.store.ReplaceOrderDetail(ctx, planID, next)
	}, m.onRetry("write", planID))
	if err != nil {
		return nil, plan.WithLocation(err, planID, "", "")
	}
	c.written = next

	m.logger.Info("plan written",
		"plan_id", planID,
		"actor_id", actorID,
		"edits", len(c.actions),
		"days", len(c.expected),
	)
	return c, nil
}

func (m *Mutator) onRetry(op, planID string) func(int, error) {
	return func(attempt int, err error) {
		m.metrics.ObserveStoreRetry(op)
		m.logger.Warn("plan store unavailable, retrying",
			"op", op,
			"plan_id", planID,
			"attempt", attempt,
			"error", err,
		)
	}
}

// schedule hands the written entries to the verifier. Cycles that touched
// no member entry are not verified.
func (m *Mutator) schedule(ctx context.Context, actorID string, c *cycle) {
	if m.scheduler == nil || len(c.expected) == 0 {
		return
	}

	digest, err := plan.Digest(c.written)
	if err != nil {
		m.logger.Warn("failed to digest written plan", "plan_id", c.plan.ID, "error", err)
	}

	m.scheduler.Schedule(verify.Job{
		JobID:         m.jobIDs.Generate(),
		OrderID:       c.plan.OrderID,
		PlanID:        c.plan.ID,
		ActorID:       actorID,
		StartedAt:     c.started,
		Expected:      c.expected,
		Actions:       c.actions,
		WrittenDigest: digest,
		Location:      m.location(ctx, c.plan.OrderID),
	})
}

func (m *Mutator) location(ctx context.Context, orderID string) *time.Location {
	if m.orders == nil {
		return time.UTC
	}
	o, err := m.orders.GetOrder(ctx, orderID)
	if err != nil {
		return time.UTC
	}
	return o.GeneralInfo.Location()
}

// applyEdit applies one action to detail and records it on c.
func (m *Mutator) applyEdit(detail plan.OrderDetail, c *cycle, actorID string, a EditAction) (plan.OrderDetail, error) {
	day, ok := detail.Day(a.Day)
	if !ok {
		return nil, plan.NewUnknownDay(a.Day)
	}
	if a.MemberID == "" {
		return nil, plan.WithLocation(plan.NewInvalidEdit(a.Edit.Kind, "", "member id is required"), "", a.Day, "")
	}
	if a.Edit.Kind == plan.EditSetFood && !day.HasFood(a.Edit.FoodID) {
		return nil, plan.WithLocation(plan.NewUnknownFood(a.Day, a.Edit.FoodID), "", a.Day, a.MemberID)
	}

	next, err := plan.Transition(day.Entry(a.MemberID), a.Edit)
	if err != nil {
		return nil, plan.WithLocation(err, "", a.Day, a.MemberID)
	}

	detail, err = detail.WithDay(a.Day, day.WithMemberEntry(a.MemberID, next))
	if err != nil {
		return nil, err
	}

	c.expected.Set(a.Day, a.MemberID, next)
	c.actions = append(c.actions, verify.Action{
		Seq:         m.clock.Next(),
		At:          m.now().UTC(),
		ActorID:     actorID,
		Day:         a.Day,
		MemberID:    a.MemberID,
		Edit:        a.Edit.Kind,
		FoodID:      a.Edit.FoodID,
		Requirement: plan.NormalizeRequirement(a.Edit.Requirement),
	})
	return detail, nil
}

// checkEditable rejects member edits on orders past the picking phase and
// returns the order, or nil when no OrderReader is configured.
func (m *Mutator) checkEditable(ctx context.Context, planID string) (*plan.Order, error) {
	if m.orders == nil {
		return nil, nil
	}
	p, err := m.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, plan.WithLocation(err, planID, "", "")
	}
	o, err := m.orders.GetOrder(ctx, p.OrderID)
	if err != nil {
		return nil, fmt.Errorf("read order %s: %w", p.OrderID, err)
	}
	if !o.State.Editable() {
		return nil, &plan.Error{
			Code:    plan.ErrCodeInvalidEdit,
			Message: fmt.Sprintf("order %s is %s; member entries are closed", o.ID, o.State),
			PlanID:  planID,
			Details: map[string]string{"order_state": string(o.State)},
		}
	}
	return &o, nil
}

// checkParticipants rejects actions for members outside the order. Plans
// only hold entries for participants, so an edit for anyone else would add
// an entry that quotations and reminders then count.
func checkParticipants(o *plan.Order, planID string, actions []EditAction) error {
	if o == nil {
		return nil
	}
	for _, a := range actions {
		if a.MemberID != "" && !o.HasParticipant(a.MemberID) {
			return &plan.Error{
				Code:     plan.ErrCodeInvalidEdit,
				Message:  fmt.Sprintf("%s is not a participant of order %s", a.MemberID, o.ID),
				PlanID:   planID,
				Day:      a.Day,
				MemberID: a.MemberID,
				Details:  map[string]string{"edit": string(a.Edit.Kind)},
			}
		}
	}
	return nil
}
