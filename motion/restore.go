package motion

import (
	"errors"
	"log/slog"
	"maps"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"optable/core"
	"optable/kinematics"
	"optable/pose"
)

var ErrRestoreInFlight = errors.New("restore already in progress")

// RestoreConfig tunes the restore controller
type RestoreConfig struct {
	TickInterval    time.Duration
	Timeout         time.Duration
	SettleDelay     time.Duration
	AngleTolerance  float64
	LinearTolerance float64
	AngleRate       float64 // max degrees per tick
	LinearRate      float64 // max units per tick
	// Rates overrides the per-tick rate for individual channels
	Rates map[string]float64
}

// DefaultRestoreConfig returns the stock restore tuning
func DefaultRestoreConfig() RestoreConfig {
	return RestoreConfig{
		TickInterval:    20 * time.Millisecond,
		Timeout:         30 * time.Second,
		SettleDelay:     time.Second,
		AngleTolerance:  0.01,
		LinearTolerance: 0.001,
		AngleRate:       0.5,
		LinearRate:      0.002,
	}
}

func (c RestoreConfig) tolerance(k kinematics.Kind) float64 {
	if k == kinematics.Linear {
		return c.LinearTolerance
	}
	return c.AngleTolerance
}

func (c RestoreConfig) rate(ch kinematics.Channel) float64 {
	if r, ok := c.Rates[ch.Name()]; ok && r > 0 {
		return r
	}
	if ch.Kind() == kinematics.Linear {
		return c.LinearRate
	}
	return c.AngleRate
}

// Orientation is the table-wide reversed flag a restore may have to flip
// before moving any channel.
type Orientation interface {
	Reversed() bool
	SetReversed(bool)
}

// Report summarizes a finished restore
type Report struct {
	RunID       uuid.UUID
	Target      string
	Dispatched  int
	Converged   []string
	Limited     []string
	Outstanding []string
	Skipped     []string // channels in the target the table does not track
	TimedOut    bool
	Started     time.Duration
	Finished    time.Duration
}

// Complete reports whether every dispatched channel reached its target
func (r Report) Complete() bool {
	return !r.TimedOut && len(r.Limited) == 0 && len(r.Outstanding) == 0
}

// Elapsed returns the scheduler time the restore took
func (r Report) Elapsed() time.Duration {
	return r.Finished - r.Started
}

type restoreRun struct {
	report   Report
	target   pose.Snapshot
	pending  map[string]*core.Timer
	deadline *core.Timer
	signal   *core.Timer
	dispatch *core.Timer
	onDone   func(Report)
}

// Controller drives every tracked channel toward a target pose concurrently.
// Only one restore runs at a time and a running restore ends only by
// converging or timing out.
type Controller struct {
	sched  *core.Scheduler
	reg    *kinematics.Registry
	orient Orientation
	cfg    RestoreConfig
	logger *slog.Logger

	mu     sync.Mutex
	run    *restoreRun
	last   Report
	signal func()
}

// NewController creates a restore controller over the channels in reg.
// orient may be nil if the table has no reversible orientation.
func NewController(sched *core.Scheduler, reg *kinematics.Registry, orient Orientation, cfg RestoreConfig, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultRestoreConfig().TickInterval
	}
	return &Controller{
		sched:  sched,
		reg:    reg,
		orient: orient,
		cfg:    cfg,
		logger: logger,
	}
}

// OnSignal registers a hook called every tick while a restore runs
func (c *Controller) OnSignal(fn func()) {
	c.mu.Lock()
	c.signal = fn
	c.mu.Unlock()
}

// IsRestoring reports whether a restore is in flight
func (c *Controller) IsRestoring() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.run != nil
}

// LastReport returns the report of the most recent finished restore
func (c *Controller) LastReport() Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Restore starts driving the table toward target. onDone, if set, is called
// once with the report when the restore converges or times out.
func (c *Controller) Restore(target pose.Snapshot, onDone func(Report)) error {
	c.mu.Lock()
	if c.run != nil {
		c.mu.Unlock()
		c.logger.Warn("motion: restore rejected, another restore in progress", "target", target.Name)
		return ErrRestoreInFlight
	}

	now := c.sched.Now()
	run := &restoreRun{
		report: Report{
			RunID:   uuid.New(),
			Target:  target.Name,
			Started: now,
		},
		target:  target.Clone(),
		pending: make(map[string]*core.Timer),
		onDone:  onDone,
	}
	c.run = run

	run.deadline = &core.Timer{
		WakeTime: now + c.cfg.Timeout,
		Handler: func(*core.Timer) uint8 {
			c.timeout(run)
			return core.SF_DONE
		},
	}
	run.signal = &core.Timer{WakeTime: now}
	run.signal.Handler = func(t *core.Timer) uint8 {
		return c.signalTick(t, run)
	}

	flip := c.orient != nil && c.orient.Reversed() != target.Reversed
	c.mu.Unlock()

	c.logger.Info("motion: restore started",
		"run", run.report.RunID, "target", target.Name, "reverse", flip)

	if c.cfg.Timeout > 0 {
		c.sched.Schedule(run.deadline)
	}
	c.sched.Schedule(run.signal)

	if flip {
		c.orient.SetReversed(target.Reversed)
		c.mu.Lock()
		run.dispatch = c.sched.After(c.cfg.SettleDelay, func() { c.dispatch(run) })
		c.mu.Unlock()
		return nil
	}

	c.dispatch(run)
	return nil
}

// dispatch spawns one sub-restore per channel away from its target value
func (c *Controller) dispatch(run *restoreRun) {
	c.mu.Lock()
	if c.run != run {
		c.mu.Unlock()
		return
	}
	run.dispatch = nil

	now := c.sched.Now()
	var timers []*core.Timer
	for _, name := range run.target.Channels() {
		ch, ok := c.reg.Get(name)
		if !ok {
			run.report.Skipped = append(run.report.Skipped, name)
			continue
		}
		goal := run.target.Values[name]
		tol := c.cfg.tolerance(ch.Kind())
		if math.Abs(goal-ch.Value()) <= tol {
			continue
		}

		rate := c.cfg.rate(ch)
		t := &core.Timer{WakeTime: now}
		t.Handler = func(t *core.Timer) uint8 {
			return c.stepChannel(t, run, ch, goal, tol, rate)
		}
		run.pending[name] = t
		timers = append(timers, t)
	}
	run.report.Dispatched = len(timers)
	skipped := run.report.Skipped
	c.mu.Unlock()

	if len(skipped) > 0 {
		c.logger.Warn("motion: restore target has untracked channels", "run", run.report.RunID, "channels", skipped)
	}

	if len(timers) == 0 {
		c.finish(run, false)
		return
	}
	for _, t := range timers {
		c.sched.Schedule(t)
	}
}

// stepChannel moves one channel a bounded step toward goal
func (c *Controller) stepChannel(t *core.Timer, run *restoreRun, ch kinematics.Channel, goal, tol, rate float64) uint8 {
	if !c.owns(run, ch.Name()) {
		return core.SF_DONE
	}

	before := ch.Value()
	remaining := goal - before
	if math.Abs(remaining) <= tol {
		c.settle(run, ch.Name(), true)
		return core.SF_DONE
	}

	step := math.Max(-rate, math.Min(rate, remaining))
	applied := ch.ApplyDelta(step)
	after := ch.Value()

	switch {
	case math.Abs(goal-after) <= tol:
		c.settle(run, ch.Name(), true)
		return core.SF_DONE
	case !applied:
		c.logger.Warn("motion: restore hit limit before target",
			"run", run.report.RunID, "channel", ch.Name(), "value", after, "target", goal)
		c.settle(run, ch.Name(), false)
		return core.SF_DONE
	case after == before:
		c.logger.Warn("motion: restore stalled",
			"run", run.report.RunID, "channel", ch.Name(), "value", after, "target", goal)
		c.settle(run, ch.Name(), false)
		return core.SF_DONE
	}

	t.WakeTime += c.cfg.TickInterval
	return core.SF_RESCHEDULE
}

func (c *Controller) owns(run *restoreRun, name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := run.pending[name]
	return c.run == run && ok
}

// settle records a finished sub-restore and completes the run when it was
// the last one.
func (c *Controller) settle(run *restoreRun, name string, converged bool) {
	c.mu.Lock()
	if c.run != run {
		c.mu.Unlock()
		return
	}
	delete(run.pending, name)
	if converged {
		run.report.Converged = append(run.report.Converged, name)
	} else {
		run.report.Limited = append(run.report.Limited, name)
	}
	last := len(run.pending) == 0
	c.mu.Unlock()

	if last {
		c.finish(run, false)
	}
}

func (c *Controller) signalTick(t *core.Timer, run *restoreRun) uint8 {
	c.mu.Lock()
	active := c.run == run
	fn := c.signal
	c.mu.Unlock()

	if !active {
		return core.SF_DONE
	}
	if fn != nil {
		fn()
	}
	t.WakeTime += c.cfg.TickInterval
	return core.SF_RESCHEDULE
}

func (c *Controller) timeout(run *restoreRun) {
	c.mu.Lock()
	if c.run != run {
		c.mu.Unlock()
		return
	}
	outstanding := len(run.pending)
	c.mu.Unlock()

	c.logger.Warn("motion: restore timed out",
		"run", run.report.RunID, "target", run.report.Target, "outstanding", outstanding)
	c.finish(run, true)
}

// finish ends the run, cancelling every timer it still owns
func (c *Controller) finish(run *restoreRun, timedOut bool) {
	c.mu.Lock()
	if c.run != run {
		c.mu.Unlock()
		return
	}
	c.run = nil

	timers := []*core.Timer{run.deadline, run.signal, run.dispatch}
	for _, t := range run.pending {
		timers = append(timers, t)
	}
	run.report.Outstanding = slices.Sorted(maps.Keys(run.pending))
	run.report.TimedOut = timedOut
	run.report.Finished = c.sched.Now()
	slices.Sort(run.report.Converged)
	slices.Sort(run.report.Limited)
	report := run.report
	c.last = report
	c.mu.Unlock()

	for _, t := range timers {
		c.sched.Cancel(t)
	}

	c.logger.Info("motion: restore finished",
		"run", report.RunID,
		"target", report.Target,
		"converged", len(report.Converged),
		"limited", len(report.Limited),
		"outstanding", len(report.Outstanding),
		"elapsed", report.Elapsed())

	if run.onDone != nil {
		run.onDone(report)
	}
}
