// Package countdown implements cancellable waits that advance in fixed ticks
// so callers can render a countdown and observe cancellation promptly.
package countdown

import (
	"context"
	"time"

	"meetexport/internal/services"
)

// Clock supplies tick channels. Tests substitute a fake to run waits instantly.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func(d time.Duration) <-chan time.Time

// After implements Clock.
func (f ClockFunc) After(d time.Duration) <-chan time.Time { return f(d) }

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// RealClock returns a Clock backed by the runtime timer.
func RealClock() Clock { return realClock{} }

// DefaultTick is the granularity used when none is configured.
const DefaultTick = time.Second

// Timer performs tick-decomposed waits.
type Timer struct {
	clock Clock
	tick  time.Duration
}

// New constructs a Timer. A nil clock selects the real clock and a
// non-positive tick selects DefaultTick.
func New(tick time.Duration, clock Clock) *Timer {
	if clock == nil {
		clock = RealClock()
	}
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Timer{clock: clock, tick: tick}
}

// Tick returns the configured granularity.
func (t *Timer) Tick() time.Duration {
	return t.tick
}

// Wait blocks for total, one tick at a time. Before each tick it checks ctx
// and reports the remaining time to notify, which may be nil. A final
// notification with zero remaining is sent once the wait completes.
// Cancellation returns an error matching services.ErrCancelled.
func (t *Timer) Wait(ctx context.Context, total time.Duration, notify func(remaining time.Duration)) error {
	if total <= 0 {
		return nil
	}
	if notify == nil {
		notify = func(time.Duration) {}
	}
	remaining := total
	for remaining > 0 {
		if ctx.Err() != nil {
			return services.Cancelled(ctx)
		}
		notify(remaining)
		step := min(t.tick, remaining)
		select {
		case <-ctx.Done():
			return services.Cancelled(ctx)
		case <-t.clock.After(step):
		}
		remaining -= step
	}
	notify(0)
	return nil
}
