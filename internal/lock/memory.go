package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker is an in-process Locker. Each key is a one-slot channel; a
// key's entry is dropped when nobody holds or waits for it.
type MemoryLocker struct {
	timeout time.Duration

	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewMemoryLocker returns a MemoryLocker that gives up after timeout.
// A timeout <= 0 waits until ctx is done.
func NewMemoryLocker(timeout time.Duration) *MemoryLocker {
	return &MemoryLocker{
		timeout: timeout,
		slots:   make(map[string]*slot),
	}
}

// Lock implements Locker.
func (m *MemoryLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	s := m.acquireSlot(key)
	start := time.Now()

	var timer <-chan time.Time
	if m.timeout > 0 {
		t := time.NewTimer(m.timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case s.ch <- struct{}{}:
		var mu sync.Mutex
		released := false
		return func() {
			mu.Lock()
			defer mu.Unlock()
			if released {
				return
			}
			released = true
			<-s.ch
			m.releaseSlot(key)
		}, nil
	case <-timer:
		m.releaseSlot(key)
		return nil, timeoutError(key, time.Since(start))
	case <-ctx.Done():
		m.releaseSlot(key)
		return nil, ctx.Err()
	}
}

// Held reports how many keys are currently held or waited on.
func (m *MemoryLocker) Held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}

func (m *MemoryLocker) acquireSlot(key string) *slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		m.slots[key] = s
	}
	s.refs++
	return s
}

func (m *MemoryLocker) releaseSlot(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.slots[key]
	s.refs--
	if s.refs == 0 {
		delete(m.slots, key)
	}
}
