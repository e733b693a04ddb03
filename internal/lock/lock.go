// Package lock provides the advisory lock that serializes one plan edit's
// read-modify-write cycle.
//
// The lock is advisory: the plan store does not check it. It narrows the
// window for lost updates but does not close it; the verifier detects what
// slips through.
package lock

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/roach88/mealplan/internal/plan"
)

// Unlock releases a held lock. It is safe to call more than once.
type Unlock func()

// Locker acquires advisory locks by key.
//
// Lock blocks until the key is free, the locker's wait bound elapses
// (LOCK_TIMEOUT), or ctx is done (ctx.Err()).
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

// Scope selects how much of a plan one lock covers.
type Scope string

const (
	// ScopePlan serializes every edit of a plan.
	ScopePlan Scope = "plan"

	// ScopeDay serializes edits of one (plan, day). Edits of different days
	// of the same plan run concurrently and may overwrite each other's
	// whole-document writes; the verifier reports those.
	ScopeDay Scope = "day"
)

// ParseScope parses a configured scope name.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopePlan, ScopeDay:
		return Scope(s), nil
	case "":
		return ScopePlan, nil
	}
	return "", fmt.Errorf("unknown lock scope %q", s)
}

// Keys returns the sorted, de-duplicated lock keys covering days of planID.
func (s Scope) Keys(planID string, days []plan.DayKey) []string {
	if s != ScopeDay || len(days) == 0 {
		return []string{"plan:" + planID}
	}
	seen := make(map[string]bool, len(days))
	keys := make([]string, 0, len(days))
	for _, d := range days {
		k := "plan:" + planID + ":day:" + string(d)
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// LockAll acquires keys in order and returns one Unlock releasing all of
// them in reverse. Callers pass sorted keys so that two holders never wait
// on each other. On failure every lock already taken is released.
func LockAll(ctx context.Context, l Locker, keys []string) (Unlock, error) {
	held := make([]Unlock, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i]()
		}
	}
	for _, k := range keys {
		u, err := l.Lock(ctx, k)
		if err != nil {
			release()
			return nil, err
		}
		held = append(held, u)
	}
	return once(release), nil
}

func once(f func()) Unlock {
	done := false
	return func() {
		if done {
			return
		}
		done = true
		f()
	}
}

// timeoutError builds the LOCK_TIMEOUT error for key.
func timeoutError(key string, waited time.Duration) error {
	return plan.NewLockTimeout(key, waited)
}
