package reservation

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Timer counts down to a reservation's expiry. It evaluates once on Start and
// then every interval, reports the remaining time to onTick and calls
// onExpired exactly once when the remaining time reaches zero.
type Timer struct {
	expiresAt time.Time
	onTick    func(remaining time.Duration)
	onExpired func()
	clock     func() time.Time
	interval  time.Duration

	fired   atomic.Bool
	stopped atomic.Bool
	stop    chan struct{}
	once    sync.Once
}

type Option func(*Timer)

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) Option {
	return func(t *Timer) { t.clock = clock }
}

func WithInterval(d time.Duration) Option {
	return func(t *Timer) {
		if d > 0 {
			t.interval = d
		}
	}
}

func New(expiresAt time.Time, onTick func(time.Duration), onExpired func(), opts ...Option) *Timer {
	t := &Timer{
		expiresAt: expiresAt,
		onTick:    onTick,
		onExpired: onExpired,
		clock:     time.Now,
		interval:  time.Second,
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Timer) ExpiresAt() time.Time {
	return t.expiresAt
}

// Evaluate computes the remaining time at now and runs the callbacks. It
// reports whether the reservation has expired.
func (t *Timer) Evaluate(now time.Time) (time.Duration, bool) {
	remaining := Remaining(t.expiresAt, now)
	if t.stopped.Load() {
		return remaining, remaining == 0
	}
	if t.onTick != nil {
		t.onTick(remaining)
	}
	if remaining > 0 {
		return remaining, false
	}
	if t.fired.CompareAndSwap(false, true) && !t.stopped.Load() && t.onExpired != nil {
		t.onExpired()
	}
	return 0, true
}

// Start runs the countdown until expiry, Stop or ctx cancellation. It
// returns immediately.
func (t *Timer) Start(ctx context.Context) {
	go t.run(ctx)
}

func (t *Timer) run(ctx context.Context) {
	if _, expired := t.Evaluate(t.clock()); expired {
		return
	}
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		case <-ticker.C:
			if _, expired := t.Evaluate(t.clock()); expired {
				return
			}
		}
	}
}

// Stop halts the countdown. No callback starts after Stop returns; it is
// safe to call from inside a callback and more than once.
func (t *Timer) Stop() {
	t.once.Do(func() {
		t.stopped.Store(true)
		close(t.stop)
	})
}

// Remaining is the time left until expiresAt, never negative.
func Remaining(expiresAt, now time.Time) time.Duration {
	d := expiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Format renders d as MM:SS, rounding partial seconds down.
func Format(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
