package lock

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mealplan/internal/ids"
	"github.com/roach88/mealplan/internal/plan"
	"github.com/roach88/mealplan/internal/store"
)

func TestScopeKeys(t *testing.T) {
	days := []plan.DayKey{"200", "100", "200"}

	assert.Equal(t, []string{"plan:p1"}, ScopePlan.Keys("p1", days))
	assert.Equal(t, []string{"plan:p1:day:100", "plan:p1:day:200"}, ScopeDay.Keys("p1", days))
	assert.Equal(t, []string{"plan:p1"}, ScopeDay.Keys("p1", nil))
}

func TestParseScope(t *testing.T) {
	s, err := ParseScope("")
	require.NoError(t, err)
	assert.Equal(t, ScopePlan, s)

	s, err = ParseScope("day")
	require.NoError(t, err)
	assert.Equal(t, ScopeDay, s)

	_, err = ParseScope("week")
	assert.Error(t, err)
}

func TestMemoryLocker_Exclusive(t *testing.T) {
	l := NewMemoryLocker(time.Second)
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "plan:p1")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, l.Held(), "slots are dropped once free")
}

func TestMemoryLocker_Timeout(t *testing.T) {
	l := NewMemoryLocker(20 * time.Millisecond)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "plan:p1")
	require.NoError(t, err)
	defer unlock()

	_, err = l.Lock(ctx, "plan:p1")
	require.Error(t, err)
	assert.True(t, plan.HasCode(err, plan.ErrCodeLockTimeout), "got %v", err)
	assert.True(t, plan.IsTransient(err))

	// A different key is not blocked.
	u2, err := l.Lock(ctx, "plan:p2")
	require.NoError(t, err)
	u2()
}

func TestMemoryLocker_ContextCanceled(t *testing.T) {
	l := NewMemoryLocker(0)
	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "k")
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestMemoryLocker_UnlockIdempotent(t *testing.T) {
	l := NewMemoryLocker(time.Second)
	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	unlock()
	unlock()

	u, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	u()
}

func TestLockAll_ReleasesOnFailure(t *testing.T) {
	l := NewMemoryLocker(20 * time.Millisecond)
	ctx := context.Background()

	blocker, err := l.Lock(ctx, "b")
	require.NoError(t, err)

	_, err = LockAll(ctx, l, []string{"a", "b"})
	assert.True(t, plan.HasCode(err, plan.ErrCodeLockTimeout), "got %v", err)

	// "a" was released after the failure.
	ua, err := l.Lock(ctx, "a")
	require.NoError(t, err)
	ua()
	blocker()

	unlock, err := LockAll(ctx, l, []string{"a", "b"})
	require.NoError(t, err)
	unlock()
	assert.Equal(t, 0, l.Held())
}

func TestLeaseLocker_SharedThroughStore(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "lock.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	a := NewLeaseLocker(s, ids.NewSequenceGenerator("a"), 50*time.Millisecond, WithPollInterval(5*time.Millisecond))
	b := NewLeaseLocker(s, ids.NewSequenceGenerator("b"), 50*time.Millisecond, WithPollInterval(5*time.Millisecond))
	ctx := context.Background()

	unlock, err := a.Lock(ctx, "plan:p1")
	require.NoError(t, err)

	_, err = b.Lock(ctx, "plan:p1")
	assert.True(t, plan.HasCode(err, plan.ErrCodeLockTimeout), "got %v", err)

	got := make(chan error, 1)
	go func() {
		u, err := b.Lock(ctx, "plan:p1")
		if err == nil {
			u()
		}
		got <- err
	}()
	time.Sleep(10 * time.Millisecond)
	unlock()
	assert.NoError(t, <-got)
}

// flakyLeases reports the store as unavailable for the first failures
// acquisitions, then grants the lease. With failures < 0 it never recovers.
type flakyLeases struct {
	failures int
	cause    error
	calls    atomic.Int32
}

func (f *flakyLeases) AcquireLease(context.Context, string, string, time.Duration) (bool, error) {
	n := int(f.calls.Add(1))
	if f.failures < 0 || n <= f.failures {
		return false, f.cause
	}
	return true, nil
}

func (f *flakyLeases) ReleaseLease(context.Context, string, string) error { return nil }

var errDiskGone = errors.New("disk gone")

func TestLeaseLocker_PollsThroughTransientStoreErrors(t *testing.T) {
	leases := &flakyLeases{failures: 3, cause: plan.NewStoreUnavailable("", errDiskGone)}
	l := NewLeaseLocker(leases, ids.NewSequenceGenerator("o"), time.Second, WithPollInterval(time.Millisecond))

	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	unlock()
	assert.Equal(t, int32(4), leases.calls.Load())
}

func TestLeaseLocker_UnavailableUntilTimeout(t *testing.T) {
	leases := &flakyLeases{failures: -1, cause: plan.NewStoreUnavailable("", errDiskGone)}
	l := NewLeaseLocker(leases, ids.NewSequenceGenerator("o"), 30*time.Millisecond, WithPollInterval(time.Millisecond))

	_, err := l.Lock(context.Background(), "k")
	assert.True(t, plan.HasCode(err, plan.ErrCodeLockTimeout), "got %v", err)
	assert.ErrorIs(t, err, errDiskGone)
	assert.Greater(t, leases.calls.Load(), int32(1))
}

func TestLeaseLocker_PermanentStoreErrorAborts(t *testing.T) {
	leases := &flakyLeases{failures: -1, cause: errDiskGone}
	l := NewLeaseLocker(leases, ids.NewSequenceGenerator("o"), time.Second)

	_, err := l.Lock(context.Background(), "k")
	assert.ErrorIs(t, err, errDiskGone)
	assert.Equal(t, int32(1), leases.calls.Load())
}

func TestLeaseLocker_NoTimeoutReturnsStoreError(t *testing.T) {
	leases := &flakyLeases{failures: -1, cause: plan.NewStoreUnavailable("", errDiskGone)}
	l := NewLeaseLocker(leases, ids.NewSequenceGenerator("o"), 0)

	_, err := l.Lock(context.Background(), "k")
	assert.True(t, plan.HasCode(err, plan.ErrCodeStoreUnavailable), "got %v", err)
	assert.Equal(t, int32(1), leases.calls.Load())
}
