// Package retry retries operations that failed with STORE_UNAVAILABLE.
package retry

import (
	"context"
	"time"

	"github.com/roach88/mealplan/internal/plan"
)

// Policy bounds retries of transient store failures.
type Policy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int

	// Backoff is the wait before the first retry; it doubles per retry up
	// to MaxBackoff.
	Backoff    time.Duration
	MaxBackoff time.Duration
}

// DefaultPolicy tries three times over roughly 150ms.
var DefaultPolicy = Policy{
	Attempts:   3,
	Backoff:    50 * time.Millisecond,
	MaxBackoff: time.Second,
}

// delay returns the wait before retry number n (1-based).
func (p Policy) delay(n int) time.Duration {
	d := p.Backoff
	for i := 1; i < n; i++ {
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	return d
}

// Do calls fn until it succeeds, fails with anything other than
// STORE_UNAVAILABLE, or the attempts are used up. onRetry, when not nil,
// is called before each retry.
func Do(ctx context.Context, p Policy, fn func() error, onRetry func(attempt int, err error)) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil || !plan.HasCode(err, plan.ErrCodeStoreUnavailable) || attempt == attempts {
			return err
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}

		timer := time.NewTimer(p.delay(attempt))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return err
		}
	}
	return err
}
