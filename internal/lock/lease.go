package lock

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/mealplan/internal/ids"
	"github.com/roach88/mealplan/internal/plan"
)

// LeaseStore persists advisory leases. Implemented by store.Store.
type LeaseStore interface {
	AcquireLease(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, key, owner string) error
}

// LeaseLocker is a Locker shared between processes through a LeaseStore.
// It polls until the lease is free. A lease outlives a crashed holder by at
// most its TTL.
type LeaseLocker struct {
	store   LeaseStore
	owners  ids.Generator
	timeout time.Duration
	poll    time.Duration
	ttl     time.Duration
	logger  *slog.Logger
}

// LeaseOption configures a LeaseLocker.
type LeaseOption func(*LeaseLocker)

// WithPollInterval sets how often a waiting Lock retries. Default 25ms.
func WithPollInterval(d time.Duration) LeaseOption {
	return func(l *LeaseLocker) { l.poll = d }
}

// WithTTL sets the lease lifetime. Default 30s.
func WithTTL(d time.Duration) LeaseOption {
	return func(l *LeaseLocker) { l.ttl = d }
}

// WithLogger sets the logger used for release failures.
func WithLogger(logger *slog.Logger) LeaseOption {
	return func(l *LeaseLocker) { l.logger = logger }
}

// NewLeaseLocker returns a LeaseLocker that gives up after timeout.
func NewLeaseLocker(store LeaseStore, owners ids.Generator, timeout time.Duration, opts ...LeaseOption) *LeaseLocker {
	l := &LeaseLocker{
		store:   store,
		owners:  owners,
		timeout: timeout,
		poll:    25 * time.Millisecond,
		ttl:     30 * time.Second,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lock implements Locker. A STORE_UNAVAILABLE acquisition is polled again
// until the timeout, which then reports LOCK_TIMEOUT wrapping the last
// store error. Other store errors, and any store error when there is no
// timeout, abort the wait and are returned as is.
func (l *LeaseLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	owner := l.owners.Generate()
	start := time.Now()

	var deadline <-chan time.Time
	if l.timeout > 0 {
		t := time.NewTimer(l.timeout)
		defer t.Stop()
		deadline = t.C
	}
	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	var lastErr error
	for {
		ok, err := l.store.AcquireLease(ctx, key, owner, l.ttl)
		switch {
		case err == nil:
			lastErr = nil
		case deadline != nil && plan.HasCode(err, plan.ErrCodeStoreUnavailable):
			l.logger.Debug("lease store unavailable, polling again",
				"key", key,
				"error", err,
			)
			lastErr = err
		default:
			return nil, err
		}
		if ok {
			return once(func() { l.release(ctx, key, owner) }), nil
		}

		select {
		case <-ticker.C:
		case <-deadline:
			te := plan.NewLockTimeout(key, time.Since(start))
			te.Err = lastErr
			return nil, te
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// release runs even when the caller's ctx is already canceled.
func (l *LeaseLocker) release(ctx context.Context, key, owner string) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := l.store.ReleaseLease(rctx, key, owner); err != nil {
		l.logger.Warn("failed to release plan lease; it expires on its own",
			"key", key,
			"owner", owner,
			"ttl", l.ttl,
			"error", err,
		)
	}
}
