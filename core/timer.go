package core

import (
	"context"
	"time"
)

// DefaultResolution is the wall-clock dispatch period used by Run when none
// is given.
const DefaultResolution = 10 * time.Millisecond

// Run drives the scheduler from the wall clock until ctx is cancelled. Each
// period the clock advances by the real time elapsed since the last period.
func (s *Scheduler) Run(ctx context.Context, resolution time.Duration) error {
	if resolution <= 0 {
		resolution = DefaultResolution
	}

	ticker := time.NewTicker(resolution)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			s.Advance(now.Sub(last))
			last = now
		}
	}
}

// After schedules fn to run once, d after the current scheduler time. The
// returned timer can be passed to Cancel.
func (s *Scheduler) After(d time.Duration, fn func()) *Timer {
	t := &Timer{
		WakeTime: s.Now() + d,
		Handler: func(*Timer) uint8 {
			fn()
			return SF_DONE
		},
	}
	s.Schedule(t)
	return t
}

// Every schedules fn at the current time and then every interval for as long
// as it returns true.
func (s *Scheduler) Every(interval time.Duration, fn func() bool) *Timer {
	t := &Timer{WakeTime: s.Now()}
	t.Handler = func(t *Timer) uint8 {
		if !fn() {
			return SF_DONE
		}
		t.WakeTime += interval
		return SF_RESCHEDULE
	}
	s.Schedule(t)
	return t
}
