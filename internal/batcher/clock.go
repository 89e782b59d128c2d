package batcher

import (
	"context"
	"fmt"
	"sync/atomic"
)

// SeqLog is the operation log a Clock resumes from.
type SeqLog interface {
	// LastSeq returns the highest sequence number logged, 0 if none.
	LastSeq(ctx context.Context) (int64, error)
}

// Clock hands out sequence numbers for operations and their transitions.
// The write-operation log is ordered by these numbers, never by wall time.
//
// Thread-safety: Clock is safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock for an empty log.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose first Next is start+1.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// ResumeClock continues numbering after the last entry in log, so a
// restarted process never reuses a sequence number.
func ResumeClock(ctx context.Context, log SeqLog) (*Clock, error) {
	last, err := log.LastSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("resume clock: %w", err)
	}
	return NewClockAt(last), nil
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
