package suborder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/mealplan/internal/ids"
	"github.com/roach88/mealplan/internal/metrics"
	"github.com/roach88/mealplan/internal/plan"
)

// SubOrder is one fulfillment transaction for a (day, restaurant) pair.
type SubOrder struct {
	ID             string      `json:"id"`
	PlanID         string      `json:"planId"`
	Day            plan.DayKey `json:"day"`
	RestaurantID   string      `json:"restaurantId"`
	LastTransition Transition  `json:"lastTransition"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// State recomputes the current state from LastTransition.
func (s SubOrder) State() (State, error) {
	return CurrentState(s.LastTransition)
}

// Record is one applied transition, kept as history.
type Record struct {
	SubOrderID string            `json:"subOrderId"`
	Transition Transition        `json:"transition"`
	From       State             `json:"from"`
	To         State             `json:"to"`
	Params     map[string]string `json:"params,omitempty"`
	At         time.Time         `json:"at"`
}

// Store persists sub-orders and their transition history.
type Store interface {
	// CreateSubOrder inserts a new sub-order together with its first record.
	CreateSubOrder(ctx context.Context, so SubOrder, rec Record) error

	// GetSubOrder returns SUB_ORDER_NOT_FOUND for unknown ids.
	GetSubOrder(ctx context.Context, id string) (SubOrder, error)

	// AppendTransition sets the last transition to rec.Transition only if it
	// is still expectedLast. Returns false when another writer got there first.
	AppendTransition(ctx context.Context, id string, expectedLast Transition, rec Record) (bool, error)

	// ListTransitions returns a sub-order's history oldest first.
	ListTransitions(ctx context.Context, id string) ([]Record, error)
}

// DayRecorder mirrors a sub-order onto its DayOrder in the plan document.
// Mirrors of successive transitions may arrive out of order; lastTransition
// is the label just written, and a recorder that can re-read the sub-order
// should write the stored label instead.
type DayRecorder interface {
	RecordTransaction(ctx context.Context, planID string, day plan.DayKey, transactionID, lastTransition string) error
}

// maxAppendAttempts bounds re-evaluation when a concurrent writer moves the
// sub-order between our read and our write.
const maxAppendAttempts = 3

// Service applies transitions to stored sub-orders.
type Service struct {
	store   Store
	days    DayRecorder
	ids     ids.Generator
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Collector
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the wall clock used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics records transition outcomes.
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a Service. days may be nil when no plan mirror is
// wanted.
func NewService(store Store, days DayRecorder, gen ids.Generator, opts ...Option) *Service {
	s := &Service{
		store:  store,
		days:   days,
		ids:    gen,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initiate creates the sub-order for (planID, day, restaurantID) and applies
// initiate-transaction.
func (s *Service) Initiate(ctx context.Context, planID string, day plan.DayKey, restaurantID string, params map[string]string) (SubOrder, error) {
	so, err := s.initiate(ctx, planID, day, restaurantID, params)
	s.observe(TransitionInitiate, err)
	return so, err
}

func (s *Service) initiate(ctx context.Context, planID string, day plan.DayKey, restaurantID string, params map[string]string) (SubOrder, error) {
	now := s.now().UTC()
	to, err := Next("", TransitionInitiate)
	if err != nil {
		return SubOrder{}, err
	}

	so := SubOrder{
		ID:             s.ids.Generate(),
		PlanID:         planID,
		Day:            day,
		RestaurantID:   restaurantID,
		LastTransition: TransitionInitiate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	rec := Record{
		SubOrderID: so.ID,
		Transition: TransitionInitiate,
		From:       StateInitial,
		To:         to,
		Params:     params,
		At:         now,
	}
	if err := s.store.CreateSubOrder(ctx, so, rec); err != nil {
		return SubOrder{}, fmt.Errorf("initiate sub-order: %w", err)
	}

	s.mirror(ctx, so)
	s.logger.Info("sub-order initiated",
		"sub_order_id", so.ID,
		"plan_id", planID,
		"day", string(day),
		"restaurant_id", restaurantID,
	)
	return so, nil
}

// ApplyTransition moves a sub-order along transition t and returns the new
// state. A transition not defined for the current state fails with
// INVALID_TRANSITION; the stored record is left untouched.
func (s *Service) ApplyTransition(ctx context.Context, subOrderID string, t Transition, params map[string]string) (State, error) {
	to, err := s.apply(ctx, subOrderID, t, params)
	s.observe(t, err)
	return to, err
}

func (s *Service) apply(ctx context.Context, subOrderID string, t Transition, params map[string]string) (State, error) {
	for attempt := 1; attempt <= maxAppendAttempts; attempt++ {
		so, err := s.store.GetSubOrder(ctx, subOrderID)
		if err != nil {
			return "", err
		}

		from, err := so.State()
		if err != nil {
			return "", fmt.Errorf("sub-order %s: %w", subOrderID, err)
		}
		to, err := Next(so.LastTransition, t)
		if err != nil {
			var pe *plan.Error
			if errors.As(err, &pe) {
				pe.Details["sub_order_id"] = subOrderID
			}
			return from, err
		}

		rec := Record{
			SubOrderID: subOrderID,
			Transition: t,
			From:       from,
			To:         to,
			Params:     params,
			At:         s.now().UTC(),
		}
		ok, err := s.store.AppendTransition(ctx, subOrderID, so.LastTransition, rec)
		if err != nil {
			return from, fmt.Errorf("apply %s to sub-order %s: %w", t, subOrderID, err)
		}
		if !ok {
			s.logger.Debug("sub-order moved concurrently, re-evaluating",
				"sub_order_id", subOrderID,
				"attempt", attempt,
			)
			continue
		}

		so.LastTransition = t
		s.mirror(ctx, so)
		s.logger.Info("sub-order transitioned",
			"sub_order_id", subOrderID,
			"transition", string(t),
			"from", string(from),
			"to", string(to),
		)
		return to, nil
	}

	return "", fmt.Errorf("apply %s to sub-order %s: lost %d races with concurrent writers", t, subOrderID, maxAppendAttempts)
}

func (s *Service) observe(t Transition, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(plan.CodeOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	s.metrics.ObserveTransition(string(t), outcome)
}

// History returns the transitions applied to a sub-order.
func (s *Service) History(ctx context.Context, subOrderID string) ([]Record, error) {
	return s.store.ListTransitions(ctx, subOrderID)
}

// mirror copies the transaction pointer onto the DayOrder. The sub-order
// record stays the source of truth, so a failed mirror is logged only.
func (s *Service) mirror(ctx context.Context, so SubOrder) {
	if s.days == nil {
		return
	}
	if err := s.days.RecordTransaction(ctx, so.PlanID, so.Day, so.ID, string(so.LastTransition)); err != nil {
		s.logger.Warn("failed to mirror sub-order onto plan",
			"sub_order_id", so.ID,
			"plan_id", so.PlanID,
			"day", string(so.Day),
			"error", err,
		)
	}
}
