package motion

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optable/core"
	"optable/kinematics"
	"optable/pose"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAxis(t *testing.T, id string, kind kinematics.Kind, min, max float64) *kinematics.Axis {
	t.Helper()
	a, err := kinematics.NewAxis(kinematics.AxisConfig{
		ID:     id,
		Kind:   kind,
		Limits: kinematics.Limits{Min: min, Max: max},
	})
	require.NoError(t, err)
	return a
}

type orientation struct {
	reversed bool
	flips    []time.Duration
	sched    *core.Scheduler
}

func (o *orientation) Reversed() bool { return o.reversed }

func (o *orientation) SetReversed(r bool) {
	o.reversed = r
	o.flips = append(o.flips, o.sched.Now())
}

func TestActuatorStopsAtLimit(t *testing.T) {
	sched := core.NewScheduler()
	axis := newAxis(t, "back.x", kinematics.Angular, -6, 6)

	act := NewActuator("back.x", sched, quietLogger())
	var reasons []StopReason
	act.OnIdle(func(r StopReason) { reasons = append(reasons, r) })

	require.NoError(t, act.Start(axis, 2, 100*time.Millisecond))
	assert.True(t, act.IsActive())

	sched.RunFor(time.Second, 50*time.Millisecond)

	assert.Equal(t, 6.0, axis.Current())
	assert.Equal(t, 3, act.Ticks())
	assert.False(t, act.IsActive())
	assert.Equal(t, StopLimit, act.LastStop())
	assert.Equal(t, []StopReason{StopLimit}, reasons)
	assert.Zero(t, sched.Pending())
}

func TestActuatorStop(t *testing.T) {
	sched := core.NewScheduler()
	axis := newAxis(t, "leg.x", kinematics.Angular, -90, 90)
	act := NewActuator("leg.x", sched, quietLogger())

	require.NoError(t, act.Start(axis, -1, 100*time.Millisecond))
	sched.Advance(250 * time.Millisecond) // ticks at 0, 100, 200
	act.Stop()
	sched.Advance(time.Second)

	assert.Equal(t, -3.0, axis.Current())
	assert.Equal(t, Idle, act.State())
	assert.Equal(t, StopRequested, act.LastStop())

	// stopping an idle actuator is a no-op
	act.Stop()
	assert.Equal(t, StopRequested, act.LastStop())
}

func TestActuatorReplace(t *testing.T) {
	sched := core.NewScheduler()
	axis := newAxis(t, "head.x", kinematics.Angular, -45, 45)
	act := NewActuator("head.x", sched, quietLogger())

	var reasons []StopReason
	act.OnIdle(func(r StopReason) { reasons = append(reasons, r) })

	require.NoError(t, act.Start(axis, 1, 100*time.Millisecond))
	sched.Advance(150 * time.Millisecond) // +2
	require.NoError(t, act.Start(axis, -0.5, 100*time.Millisecond))
	sched.Advance(150 * time.Millisecond) // -1
	act.Stop()

	assert.InDelta(t, 1.0, axis.Current(), 1e-9)
	assert.Equal(t, []StopReason{StopReplaced, StopRequested}, reasons)
	assert.Zero(t, sched.Pending())
}

func TestActuatorRejectsBadArgs(t *testing.T) {
	sched := core.NewScheduler()
	axis := newAxis(t, "a", kinematics.Angular, -1, 1)
	act := NewActuator("a", sched, nil)

	assert.ErrorIs(t, act.Start(nil, 1, time.Millisecond), ErrNoTarget)
	assert.ErrorIs(t, act.Start(axis, 1, 0), ErrInvalidInterval)
	assert.ErrorIs(t, act.Start(axis, 0, time.Millisecond), ErrZeroStep)
	assert.False(t, act.IsActive())
}

func TestActuatorDrivesTelescope(t *testing.T) {
	sched := core.NewScheduler()
	lower := newAxis(t, "height.0", kinematics.Linear, 0, 0.15)
	upper := newAxis(t, "height.1", kinematics.Linear, 0, 0.15)
	tel, err := kinematics.NewTelescope("height", kinematics.Z.Unit(), lower, upper)
	require.NoError(t, err)

	act := NewActuator("height", sched, quietLogger())
	require.NoError(t, act.Start(tel, 0.05, 10*time.Millisecond))
	sched.RunFor(time.Second, 10*time.Millisecond)

	assert.True(t, tel.IsFullyExtended())
	assert.InDelta(t, 0.3, tel.Value(), 1e-9)
	assert.Equal(t, 6, act.Ticks())
	assert.Equal(t, StopLimit, act.LastStop())
}

func restoreFixture(t *testing.T, names ...string) (*core.Scheduler, *kinematics.Registry, map[string]*kinematics.Axis) {
	t.Helper()
	sched := core.NewScheduler()
	reg := kinematics.NewRegistry()
	axes := make(map[string]*kinematics.Axis)
	for _, n := range names {
		a := newAxis(t, n, kinematics.Angular, -500, 500)
		require.NoError(t, reg.Register(a))
		axes[n] = a
	}
	return sched, reg, axes
}

func testRestoreConfig() RestoreConfig {
	cfg := DefaultRestoreConfig()
	cfg.TickInterval = 100 * time.Millisecond
	cfg.AngleRate = 1
	return cfg
}

func TestRestoreConvergesIndependently(t *testing.T) {
	sched, reg, axes := restoreFixture(t, "back.x", "leg.x", "head.x")
	axes["head.x"].Step(7)

	ctl := NewController(sched, reg, nil, testRestoreConfig(), quietLogger())

	target := pose.New("Flex", map[string]float64{"back.x": 20, "leg.x": -50, "head.x": 7}, false)
	var done []Report
	require.NoError(t, ctl.Restore(target, func(r Report) { done = append(done, r) }))
	assert.True(t, ctl.IsRestoring())

	sched.RunFor(2500*time.Millisecond, 100*time.Millisecond)
	assert.InDelta(t, 20, axes["back.x"].Current(), 0.01)
	assert.True(t, ctl.IsRestoring())

	sched.RunFor(5*time.Second, 100*time.Millisecond)
	require.Len(t, done, 1)
	assert.False(t, ctl.IsRestoring())

	r := done[0]
	assert.True(t, r.Complete())
	assert.Equal(t, 2, r.Dispatched)
	assert.Equal(t, []string{"back.x", "leg.x"}, r.Converged)
	assert.Empty(t, r.Outstanding)
	assert.InDelta(t, -50, axes["leg.x"].Current(), 0.01)
	assert.Equal(t, 7.0, axes["head.x"].Current())
	assert.Equal(t, r, ctl.LastReport())
	assert.Zero(t, sched.Pending())
}

func TestRestoreTimesOut(t *testing.T) {
	sched, reg, axes := restoreFixture(t, "a", "b", "c")
	ctl := NewController(sched, reg, nil, testRestoreConfig(), quietLogger())

	var signals int
	ctl.OnSignal(func() { signals++ })

	target := pose.New("Far", map[string]float64{"a": 20, "b": 50, "c": 400}, false)
	var done []Report
	require.NoError(t, ctl.Restore(target, func(r Report) { done = append(done, r) }))

	sched.RunFor(40*time.Second, 100*time.Millisecond)

	require.Len(t, done, 1)
	r := done[0]
	assert.True(t, r.TimedOut)
	assert.False(t, r.Complete())
	assert.Equal(t, []string{"a", "b"}, r.Converged)
	assert.Equal(t, []string{"c"}, r.Outstanding)
	assert.Equal(t, 30*time.Second, r.Elapsed())

	// c stopped where the deadline caught it and moved no further
	assert.InDelta(t, 300, axes["c"].Current(), 1)
	assert.Greater(t, signals, 250)
	assert.Zero(t, sched.Pending())
	assert.False(t, ctl.IsRestoring())
}

func TestRestoreStopsAtLimit(t *testing.T) {
	sched := core.NewScheduler()
	reg := kinematics.NewRegistry()
	base := newAxis(t, "base.x", kinematics.Angular, -30, 30)
	require.NoError(t, reg.Register(base))

	ctl := NewController(sched, reg, nil, testRestoreConfig(), quietLogger())
	require.NoError(t, ctl.Restore(pose.New("Tilt", map[string]float64{"base.x": 45}, false), nil))
	sched.RunFor(time.Minute, 100*time.Millisecond)

	r := ctl.LastReport()
	assert.Equal(t, []string{"base.x"}, r.Limited)
	assert.False(t, r.TimedOut)
	assert.False(t, r.Complete())
	assert.Equal(t, 30.0, base.Current())
}

func TestRestoreReversesThenSettles(t *testing.T) {
	sched, reg, axes := restoreFixture(t, "back.x")
	orient := &orientation{sched: sched}

	cfg := testRestoreConfig()
	ctl := NewController(sched, reg, orient, cfg, quietLogger())

	require.NoError(t, ctl.Restore(pose.New("Rev", map[string]float64{"back.x": 5}, true), nil))
	assert.True(t, orient.reversed)
	assert.Equal(t, []time.Duration{0}, orient.flips)

	// nothing moves during the settle delay
	sched.RunFor(900*time.Millisecond, 100*time.Millisecond)
	assert.Zero(t, axes["back.x"].Current())

	sched.RunFor(2*time.Second, 100*time.Millisecond)
	assert.InDelta(t, 5, axes["back.x"].Current(), 0.01)
	assert.True(t, ctl.LastReport().Complete())

	// matching orientation skips the flip and the delay
	require.NoError(t, ctl.Restore(pose.New("Rev2", map[string]float64{"back.x": 6}, true), nil))
	sched.Advance(0)
	assert.InDelta(t, 6, axes["back.x"].Current(), 0.01)
	assert.Len(t, orient.flips, 1)
}

func TestRestoreRejectsWhileInFlight(t *testing.T) {
	sched, reg, _ := restoreFixture(t, "back.x")
	ctl := NewController(sched, reg, nil, testRestoreConfig(), quietLogger())

	require.NoError(t, ctl.Restore(pose.New("A", map[string]float64{"back.x": 10}, false), nil))
	err := ctl.Restore(pose.New("B", map[string]float64{"back.x": -10}, false), nil)
	assert.ErrorIs(t, err, ErrRestoreInFlight)

	sched.RunFor(5*time.Second, 100*time.Millisecond)
	assert.Equal(t, "A", ctl.LastReport().Target)
	require.NoError(t, ctl.Restore(pose.New("B", map[string]float64{"back.x": -10}, false), nil))
}

func TestRestoreSkipsUnknownChannels(t *testing.T) {
	sched, reg, axes := restoreFixture(t, "back.x")
	ctl := NewController(sched, reg, nil, testRestoreConfig(), quietLogger())

	target := pose.New("Old", map[string]float64{"back.x": 0, "tail.x": 4}, false)
	var got Report
	require.NoError(t, ctl.Restore(target, func(r Report) { got = r }))

	// back.x is already there so the restore completes immediately
	assert.False(t, ctl.IsRestoring())
	assert.Equal(t, []string{"tail.x"}, got.Skipped)
	assert.Zero(t, got.Dispatched)
	assert.True(t, got.Complete())
	assert.Zero(t, axes["back.x"].Current())
	assert.Zero(t, sched.Pending())
}

func TestSaveLoadRestoreRoundTrip(t *testing.T) {
	sched, reg, axes := restoreFixture(t, "back.x", "leg.x")
	axes["back.x"].Step(15)
	axes["leg.x"].Step(-30)

	store, err := pose.NewStore(4, quietLogger())
	require.NoError(t, err)
	require.NoError(t, store.Save(1, pose.Capture("Mine", reg, false)))

	axes["back.x"].Step(-40)
	axes["leg.x"].Step(25)

	snap, err := store.Load(1)
	require.NoError(t, err)

	ctl := NewController(sched, reg, nil, testRestoreConfig(), quietLogger())
	require.NoError(t, ctl.Restore(snap, nil))
	sched.RunFor(time.Minute, 100*time.Millisecond)

	assert.InDelta(t, 15, axes["back.x"].Current(), 0.01)
	assert.InDelta(t, -30, axes["leg.x"].Current(), 0.01)
}
