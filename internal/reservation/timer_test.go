package reservation

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{30 * time.Minute, "30:00"},
		{29*time.Minute + 59*time.Second + 900*time.Millisecond, "29:59"},
		{65 * time.Second, "01:05"},
		{0, "00:00"},
		{-time.Second, "00:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Format(tt.in))
	}
}

func TestEvaluateFiresOnceAtExpiry(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var ticks []time.Duration
	var fired int
	timer := New(created.Add(30*time.Minute), func(d time.Duration) { ticks = append(ticks, d) }, func() { fired++ })

	rem, expired := timer.Evaluate(created.Add(29*time.Minute + 59*time.Second))
	assert.False(t, expired)
	assert.Equal(t, time.Second, rem)
	assert.Zero(t, fired)

	_, expired = timer.Evaluate(created.Add(30 * time.Minute))
	assert.True(t, expired)
	_, expired = timer.Evaluate(created.Add(31 * time.Minute))
	assert.True(t, expired)

	assert.Equal(t, 1, fired)
	assert.Equal(t, []time.Duration{time.Second, 0, 0}, ticks)
}

func TestStartWithPastExpiryFiresImmediately(t *testing.T) {
	expired := make(chan struct{})
	timer := New(time.Now().Add(-time.Hour), nil, func() { close(expired) }, WithInterval(time.Hour))
	timer.Start(context.Background())
	defer timer.Stop()

	select {
	case <-expired:
	case <-time.After(time.Second):
		t.Fatal("expiry did not fire on the first evaluation")
	}
}

func TestStartCountsDownAndStops(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}

	var fired atomic.Int32
	var ticks atomic.Int32
	done := make(chan struct{})
	timer := New(now.Add(3*time.Second), func(time.Duration) { ticks.Add(1) }, func() {
		fired.Add(1)
		close(done)
	}, WithClock(clock), WithInterval(5*time.Millisecond))
	timer.Start(context.Background())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never expired")
	}
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
	assert.Equal(t, int32(3), ticks.Load())
}

func TestStopPreventsLaterCallbacks(t *testing.T) {
	var fired atomic.Int32
	timer := New(time.Now().Add(50*time.Millisecond), nil, func() { fired.Add(1) }, WithInterval(5*time.Millisecond))
	timer.Start(context.Background())
	timer.Stop()
	timer.Stop()

	time.Sleep(120 * time.Millisecond)
	assert.Zero(t, fired.Load())

	_, expired := timer.Evaluate(time.Now())
	require.True(t, expired)
	assert.Zero(t, fired.Load())
}

func TestContextCancelStopsTimer(t *testing.T) {
	var fired atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	timer := New(time.Now().Add(50*time.Millisecond), nil, func() { fired.Add(1) }, WithInterval(5*time.Millisecond))
	timer.Start(ctx)
	cancel()

	time.Sleep(120 * time.Millisecond)
	assert.Zero(t, fired.Load())
}
