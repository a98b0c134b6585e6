package clock

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/oshokin/obc-alarm/internal/logger"
)

// Clock reports the current time in Unix seconds.
type Clock interface {
	Now() uint32
}

// Setter is a clock that can be re-synchronised.
type Setter interface {
	Clock
	Set(unix uint32)
}

// tickPeriod is how often the Timekeeper advances its counter.
const tickPeriod = time.Second

// Timekeeper is the onboard software clock. Reads and writes are lock free so
// any task may call Now.
type Timekeeper struct {
	// unix is the current time in seconds since the epoch.
	unix atomic.Uint32
}

// NewTimekeeper creates a Timekeeper starting at start.
func NewTimekeeper(start uint32) *Timekeeper {
	t := new(Timekeeper)
	t.unix.Store(start)

	return t
}

// Now implements Clock.
func (t *Timekeeper) Now() uint32 {
	return t.unix.Load()
}

// Set re-synchronises the clock.
func (t *Timekeeper) Set(unix uint32) {
	t.unix.Store(unix)
}

// Run advances the clock once per second until ctx is canceled.
func (t *Timekeeper) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "timekeeper")

	ticker := time.NewTicker(tickPeriod)
	defer ticker.Stop()

	logger.DebugKV(ctx, "Timekeeper started", "unix_time", t.Now())

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.unix.Add(1)
		}
	}
}

// Manual is a clock that only moves when told to.
type Manual struct {
	unix atomic.Uint32
}

// NewManual creates a Manual clock set to start.
func NewManual(start uint32) *Manual {
	m := new(Manual)
	m.unix.Store(start)

	return m
}

// Now implements Clock.
func (m *Manual) Now() uint32 {
	return m.unix.Load()
}

// Set moves the clock to unix.
func (m *Manual) Set(unix uint32) {
	m.unix.Store(unix)
}

// Advance moves the clock forward by seconds.
func (m *Manual) Advance(seconds uint32) {
	m.unix.Add(seconds)
}

// FromTime converts a wall-clock time to Unix seconds, clamping to the
// uint32 range.
func FromTime(t time.Time) uint32 {
	s := t.Unix()

	switch {
	case s < 0:
		return 0
	case s > int64(^uint32(0)):
		return ^uint32(0)
	default:
		return uint32(s)
	}
}
