// Package motion drives kinematic targets over time: continuous actuators
// for held controls and the restore controller that brings every tracked
// channel back to a saved pose.
package motion

import (
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"optable/core"
	"optable/kinematics"
)

var (
	ErrNoTarget        = errors.New("actuator target is nil")
	ErrInvalidInterval = errors.New("actuator tick interval must be positive")
	ErrZeroStep        = errors.New("actuator step must be non-zero")
)

// State of an actuator
type State uint8

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// StopReason records why the last run ended
type StopReason uint8

const (
	StopNone StopReason = iota
	StopRequested
	StopLimit
	StopReplaced
)

func (r StopReason) String() string {
	switch r {
	case StopRequested:
		return "stopped"
	case StopLimit:
		return "limit"
	case StopReplaced:
		return "replaced"
	default:
		return "none"
	}
}

// Actuator drives one joint axis or telescope at a constant step per tick
// while a control is held. Starting a new run cancels the previous one.
type Actuator struct {
	name   string
	sched  *core.Scheduler
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	gen      uint64
	timer    *core.Timer
	ticks    int
	lastStop StopReason
	onIdle   func(StopReason)
}

// NewActuator creates an idle actuator on sched
func NewActuator(name string, sched *core.Scheduler, logger *slog.Logger) *Actuator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Actuator{
		name:   name,
		sched:  sched,
		logger: logger,
	}
}

// Name returns the actuator name
func (a *Actuator) Name() string {
	return a.name
}

// OnIdle registers a callback invoked whenever a run ends
func (a *Actuator) OnIdle(fn func(StopReason)) {
	a.mu.Lock()
	a.onIdle = fn
	a.mu.Unlock()
}

// Start begins stepping target by step every interval. The first step is
// taken at the current scheduler time.
func (a *Actuator) Start(target kinematics.Drivable, step float64, interval time.Duration) error {
	if target == nil {
		return ErrNoTarget
	}
	if interval <= 0 {
		return ErrInvalidInterval
	}
	if step == 0 || math.IsNaN(step) {
		return ErrZeroStep
	}

	a.mu.Lock()
	replaced := a.state == Running
	a.cancelLocked()
	a.gen++
	gen := a.gen
	a.state = Running
	a.ticks = 0
	a.lastStop = StopNone

	timer := &core.Timer{WakeTime: a.sched.Now()}
	timer.Handler = func(t *core.Timer) uint8 {
		return a.tick(t, gen, target, step, interval)
	}
	a.timer = timer
	a.mu.Unlock()

	if replaced {
		a.logger.Debug("motion: actuator run replaced", "actuator", a.name)
		a.notify(StopReplaced)
	}
	a.sched.Schedule(timer)
	return nil
}

// tick applies one step for run gen
func (a *Actuator) tick(t *core.Timer, gen uint64, target kinematics.Drivable, step float64, interval time.Duration) uint8 {
	a.mu.Lock()
	if a.gen != gen || a.state != Running {
		a.mu.Unlock()
		return core.SF_DONE
	}
	a.mu.Unlock()

	more := target.Drive(step)

	a.mu.Lock()
	if a.gen != gen {
		// Stop or Start raced the step
		a.mu.Unlock()
		return core.SF_DONE
	}
	a.ticks++
	if !more {
		ticks := a.ticks
		a.finishLocked(StopLimit)
		a.mu.Unlock()
		a.logger.Debug("motion: actuator reached limit", "actuator", a.name, "ticks", ticks)
		a.notify(StopLimit)
		return core.SF_DONE
	}
	a.mu.Unlock()

	t.WakeTime += interval
	return core.SF_RESCHEDULE
}

// Stop ends the current run before its next tick
func (a *Actuator) Stop() {
	a.mu.Lock()
	if a.state != Running {
		a.mu.Unlock()
		return
	}
	a.cancelLocked()
	a.gen++
	a.finishLocked(StopRequested)
	a.mu.Unlock()

	a.notify(StopRequested)
}

// cancelLocked removes the pending timer of the current run
func (a *Actuator) cancelLocked() {
	if a.timer != nil {
		a.sched.Cancel(a.timer)
		a.timer = nil
	}
}

func (a *Actuator) finishLocked(reason StopReason) {
	a.state = Idle
	a.timer = nil
	a.lastStop = reason
}

func (a *Actuator) notify(reason StopReason) {
	a.mu.Lock()
	fn := a.onIdle
	a.mu.Unlock()
	if fn != nil {
		fn(reason)
	}
}

// IsActive reports whether a run is in progress
func (a *Actuator) IsActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state == Running
}

// State returns the current state
func (a *Actuator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Ticks returns the number of steps applied in the current or last run
func (a *Actuator) Ticks() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ticks
}

// LastStop returns why the last run ended
func (a *Actuator) LastStop() StopReason {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastStop
}
