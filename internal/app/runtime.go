// Package app owns the lifecycle of every long-lived component: the store,
// the advisory locker, the verification runner and the services built on
// them.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/mealplan/internal/config"
	"github.com/roach88/mealplan/internal/ids"
	"github.com/roach88/mealplan/internal/lock"
	"github.com/roach88/mealplan/internal/metrics"
	"github.com/roach88/mealplan/internal/mutator"
	"github.com/roach88/mealplan/internal/notify"
	"github.com/roach88/mealplan/internal/quotation"
	"github.com/roach88/mealplan/internal/retry"
	"github.com/roach88/mealplan/internal/store"
	"github.com/roach88/mealplan/internal/suborder"
	"github.com/roach88/mealplan/internal/verify"
)

// Runtime is an opened set of components sharing one database.
type Runtime struct {
	Config    config.Config
	Location  *time.Location
	Store     *store.Store
	Metrics   *metrics.Collector
	Locker    lock.Locker
	Verifier  *verify.Verifier
	Runner    *verify.Runner
	Mutator   *mutator.Mutator
	SubOrders *suborder.Service
	Quotes    *quotation.Service

	logger    *slog.Logger
	closeOnce sync.Once
	closeErr  error
}

// Option configures Open.
type Option func(*options)

type options struct {
	logger *slog.Logger
	sinks  []verify.Sink
	now    func() time.Time
}

// WithLogger sets the logger shared by all components.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSink adds a sink that receives every published report.
func WithSink(s verify.Sink) Option {
	return func(o *options) { o.sinks = append(o.sinks, s) }
}

// WithClock overrides wall-clock time for every component.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Open opens the store and wires the services. The verification runner is
// started with a context detached from ctx so that queued jobs outlive the
// caller's request; Close drains it.
func Open(ctx context.Context, cfg config.Config, opts ...Option) (*Runtime, error) {
	o := options{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Check(); err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	scope, err := lock.ParseScope(cfg.Lock.Scope)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	st, err := store.Open(cfg.Database, store.WithClock(o.now))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	rt := &Runtime{
		Config:   cfg,
		Location: loc,
		Store:    st,
		Metrics:  metrics.New(),
		logger:   o.logger,
	}

	switch cfg.Lock.Backend {
	case config.BackendMemory:
		rt.Locker = lock.NewMemoryLocker(cfg.Lock.Timeout)
	case config.BackendLease, "":
		rt.Locker = lock.NewLeaseLocker(st, ids.UUIDv7Generator{}, cfg.Lock.Timeout,
			lock.WithPollInterval(cfg.Lock.PollInterval),
			lock.WithTTL(cfg.Lock.TTL),
			lock.WithLogger(o.logger),
		)
	default:
		st.Close()
		return nil, fmt.Errorf("config: unknown lock backend %q", cfg.Lock.Backend)
	}

	outbox := notify.NewOutbox(st)
	sinks := notify.Fanout{outbox}
	if cfg.Alerts.Log {
		sinks = append(sinks, notify.NewLogSink(o.logger))
	}
	if cfg.Alerts.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhookSink(cfg.Alerts.WebhookURL))
	}
	sinks = append(sinks, o.sinks...)

	retries := retry.Policy{
		Attempts:   cfg.Store.RetryAttempts,
		Backoff:    cfg.Store.RetryBackoff,
		MaxBackoff: cfg.Store.RetryMaxBackoff,
	}

	rt.Verifier = verify.New(st, sinks,
		verify.WithFoodCatalog(st),
		verify.WithUserDirectory(st),
		verify.WithRecorder(outbox),
		verify.WithMetrics(rt.Metrics),
		verify.WithLogger(o.logger),
		verify.WithClock(o.now),
		verify.WithTimeout(cfg.Verify.Timeout),
		verify.WithPublishGrace(cfg.Verify.PublishGrace),
		verify.WithRetryPolicy(retries),
	)
	rt.Runner = verify.NewRunner(rt.Verifier,
		verify.WithWorkers(cfg.Verify.Workers),
		verify.WithRunnerMetrics(rt.Metrics),
		verify.WithRunnerLogger(o.logger),
	)
	rt.Runner.Start(context.WithoutCancel(ctx))

	rt.Mutator = mutator.New(st, rt.Locker,
		mutator.WithScope(scope),
		mutator.WithOrders(st),
		mutator.WithTransactions(st),
		mutator.WithScheduler(rt.Runner),
		mutator.WithRetryPolicy(retries),
		mutator.WithMetrics(rt.Metrics),
		mutator.WithLogger(o.logger),
		mutator.WithClock(o.now),
	)
	rt.SubOrders = suborder.NewService(st, rt.Mutator, ids.UUIDv7Generator{},
		suborder.WithClock(o.now),
		suborder.WithLogger(o.logger),
		suborder.WithMetrics(rt.Metrics),
	)
	rt.Quotes = quotation.NewService(st, cfg.Pricing)

	o.logger.Debug("runtime opened",
		"database", cfg.Database,
		"lock_scope", string(scope),
		"lock_backend", cfg.Lock.Backend,
		"verify_workers", cfg.Verify.Workers,
	)
	return rt, nil
}

// Close waits for queued verifications, then closes the store. It returns
// the verification failures joined with any close error. Safe to call more
// than once.
func (r *Runtime) Close() error {
	r.closeOnce.Do(func() {
		runErr := r.Runner.Close()
		storeErr := r.Store.Close()
		r.closeErr = errors.Join(runErr, storeErr)
	})
	return r.closeErr
}
