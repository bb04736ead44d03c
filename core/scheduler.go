// Package core provides the cooperative tick scheduler that every actuator
// and restore task runs on.
package core

import (
	"sync"
	"time"
)

// Handler return values
const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

// Timer represents a scheduled event. A handler that returns SF_RESCHEDULE
// must move WakeTime forward before returning.
type Timer struct {
	WakeTime time.Duration
	Handler  func(*Timer) uint8
	next     *Timer
	queued   bool
}

// Scheduler keeps timers sorted by wake time and dispatches them as its
// clock advances. Handlers run outside the scheduler lock and may schedule
// or cancel other timers.
type Scheduler struct {
	mu    sync.Mutex
	now   time.Duration
	list  *Timer
	count int
}

// NewScheduler creates a scheduler at time zero
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Now returns the current scheduler time
func (s *Scheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Pending returns the number of queued timers
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Schedule adds a timer to the schedule. Scheduling an already queued
// timer moves it to its new wake time.
func (s *Scheduler) Schedule(t *Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.queued {
		s.remove(t)
	}
	s.insert(t)
}

// Cancel removes a timer from the schedule. It reports whether the timer
// was queued.
func (s *Scheduler) Cancel(t *Timer) bool {
	if t == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !t.queued {
		return false
	}
	s.remove(t)
	return true
}

// insert places t in sorted order. Timers with equal wake times keep
// insertion order.
func (s *Scheduler) insert(t *Timer) {
	t.queued = true
	s.count++

	if s.list == nil || t.WakeTime < s.list.WakeTime {
		t.next = s.list
		s.list = t
		return
	}

	current := s.list
	for current.next != nil && current.next.WakeTime <= t.WakeTime {
		current = current.next
	}

	t.next = current.next
	current.next = t
}

func (s *Scheduler) remove(t *Timer) {
	if s.list == t {
		s.list = t.next
	} else {
		for current := s.list; current != nil; current = current.next {
			if current.next == t {
				current.next = t.next
				break
			}
		}
	}
	t.next = nil
	t.queued = false
	s.count--
}

// pop removes and returns the first timer due at or before deadline.
func (s *Scheduler) pop(deadline time.Duration) *Timer {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.list
	if t == nil || t.WakeTime > deadline {
		return nil
	}
	s.list = t.next
	t.next = nil
	t.queued = false
	s.count--

	if t.WakeTime > s.now {
		s.now = t.WakeTime
	}
	return t
}

// Advance moves the clock forward by d, dispatching every timer that comes
// due on the way in wake order. The clock reads each timer's wake time while
// its handler runs.
func (s *Scheduler) Advance(d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.mu.Lock()
	deadline := s.now + d
	s.mu.Unlock()

	for {
		t := s.pop(deadline)
		if t == nil {
			break
		}

		if t.Handler(t) == SF_RESCHEDULE {
			s.mu.Lock()
			if t.WakeTime <= s.now {
				t.WakeTime = s.now + time.Nanosecond
			}
			if !t.queued {
				s.insert(t)
			}
			s.mu.Unlock()
		}
	}

	s.mu.Lock()
	if deadline > s.now {
		s.now = deadline
	}
	s.mu.Unlock()
}

// RunFor advances the clock in steps of at most step until d has elapsed.
func (s *Scheduler) RunFor(d, step time.Duration) {
	if step <= 0 {
		step = d
	}
	for d > 0 {
		n := step
		if n > d {
			n = d
		}
		s.Advance(n)
		d -= n
	}
}
