package sched

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func TestNextAlignedHalfHour(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 34, 56, 0, time.UTC)
	next := NextAligned(now, 30*time.Minute, nil)
	assert.Equal(t, time.Date(2026, 8, 30, 13, 0, 0, 0, time.UTC), next)

	// Exactly on a boundary still waits a full interval.
	boundary := time.Date(2026, 8, 30, 13, 0, 0, 0, time.UTC)
	assert.Equal(t, boundary.Add(30*time.Minute), NextAligned(boundary, 30*time.Minute, nil))
}

func TestNextAlignedDailyInJST(t *testing.T) {
	jst := time.FixedZone("JST", 9*3600)
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, jst)

	next := NextAligned(now, 24*time.Hour, jst)
	want := time.Date(2026, 5, 2, 0, 0, 0, 0, jst)
	require.True(t, next.Equal(want), "got %s, want %s", next, want)
}

func TestNextAlignedAlwaysInFuture(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 30, 0, 0, time.UTC)
	for _, interval := range []time.Duration{time.Minute, 30 * time.Minute, time.Hour, 24 * time.Hour} {
		next := NextAligned(now, interval, nil)
		assert.True(t, next.After(now), "interval %s", interval)
		assert.LessOrEqual(t, next.Sub(now), interval, "interval %s", interval)
	}
}

func TestRunnerSurvivesJobErrors(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	r := NewRunner(slog.New(slog.NewTextHandler(discard{}, nil)), clock)

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx, Job{
			Name:     "flaky",
			Interval: 10 * time.Millisecond,
			Run: func(ctx context.Context, now time.Time) error {
				if calls.Add(1) >= 3 {
					cancel()
				}
				return errors.New("boom")
			},
		})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not keep ticking past job errors")
	}
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestRunnerStopsOnCancel(t *testing.T) {
	r := NewRunner(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx, Job{
			Name:     "idle",
			Interval: time.Hour,
			Run:      func(ctx context.Context, now time.Time) error { return nil },
		})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop on context cancel")
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
