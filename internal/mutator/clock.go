package mutator

import "sync/atomic"

// Clock hands out the sequence numbers that order edit actions in reports.
// Several actions may share a wall-clock timestamp; their Seq never ties.
type Clock struct {
	seq atomic.Int64
}

// NewClock returns a Clock whose first Next is 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next is safe for concurrent use.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}
