// Package sched runs periodic jobs on wall-clock aligned boundaries. The
// clock is injectable so boundary math stays testable, and a failed tick is
// logged and swallowed: the schedule itself never stops on job errors.
package sched

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func SystemClock() Clock { return systemClock{} }

type Job struct {
	Name     string
	Interval time.Duration
	// Location shifts the alignment grid; a 24h job with a JST location
	// fires at JST midnight. Nil means UTC.
	Location *time.Location
	Run      func(ctx context.Context, now time.Time) error
}

type Runner struct {
	log   *slog.Logger
	clock Clock
}

func NewRunner(logger *slog.Logger, clock Clock) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &Runner{log: logger, clock: clock}
}

// NextAligned returns the first instant after now that lies on a whole
// multiple of interval, measured on loc's wall clock. Sleeping to the
// returned instant each cycle corrects drift from slow job runs.
func NextAligned(now time.Time, interval time.Duration, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	_, offset := now.In(loc).Zone()
	shift := time.Duration(offset) * time.Second
	next := now.Add(shift).Truncate(interval).Add(interval)
	return next.Add(-shift)
}

// Run blocks until ctx is cancelled, driving every job on its own boundary.
func (r *Runner) Run(ctx context.Context, jobs ...Job) {
	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(j Job) {
			defer wg.Done()
			r.runJob(ctx, j)
		}(job)
	}
	wg.Wait()
}

func (r *Runner) runJob(ctx context.Context, j Job) {
	r.log.Info("job scheduled", "job", j.Name, "interval", j.Interval.String())
	for {
		now := r.clock.Now()
		next := NextAligned(now, j.Interval, j.Location)
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			r.log.Info("job stopped", "job", j.Name)
			return
		case <-timer.C:
		}

		tick := r.clock.Now()
		if err := j.Run(ctx, tick); err != nil {
			r.log.Error("job tick failed", "job", j.Name, "err", err)
			continue
		}
		r.log.Info("job tick complete", "job", j.Name)
	}
}
