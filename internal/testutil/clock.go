// Package testutil holds helpers shared by tests and the scenario harness.
package testutil

import (
	"sync"
	"time"
)

// StepClock is a thread-safe wall clock for tests that advances by a fixed
// step on every read.
//
// Every Now call returns a distinct, strictly increasing time, so records
// ordered by timestamp keep their write order. The clock can be reset for
// test reuse.
type StepClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	reads int64
}

// NewStepClock creates a clock whose first Now returns start. A step <= 0
// defaults to one millisecond.
func NewStepClock(start time.Time, step time.Duration) *StepClock {
	if step <= 0 {
		step = time.Millisecond
	}
	return &StepClock{start: start, step: step}
}

// Now returns the current time and advances the clock by one step.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.reads) * c.step)
	c.reads++
	return t
}

// Peek returns the time the next Now call will return, without advancing.
func (c *StepClock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start.Add(time.Duration(c.reads) * c.step)
}

// Reads returns how many times Now has been called.
func (c *StepClock) Reads() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

// Reset rewinds the clock to its start.
func (c *StepClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads = 0
}
