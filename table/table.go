// Package table assembles the operating table model from its configuration
// and exposes the operations a hand control or on-screen panel drives.
package table

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"optable/config"
	"optable/core"
	"optable/kinematics"
	"optable/motion"
	"optable/pose"
)

var (
	ErrUnknownChannel = errors.New("unknown channel")
	ErrUnknownTarget  = errors.New("unknown joint or telescope")
	ErrUnknownPreset  = errors.New("unknown preset")
	ErrNoAxis         = errors.New("direction does not resolve to an axis")
	ErrRestoring      = errors.New("restore in progress")
)

// Seeder supplies live readings used as initial channel values
type Seeder interface {
	Seed(channel string) (float64, bool)
}

// Values is a Seeder backed by a fixed map
type Values map[string]float64

// Seed implements Seeder
func (v Values) Seed(channel string) (float64, bool) {
	x, ok := v[channel]
	return x, ok
}

// Table is one owned operating table instance. All state lives on the
// instance and every method is safe for concurrent use.
type Table struct {
	cfg    *config.TableConfig
	sched  *core.Scheduler
	logger *slog.Logger

	joints     map[string]*kinematics.Joint
	telescopes map[string]*kinematics.Telescope
	targets    []string // joints then telescopes, in config order
	reg        *kinematics.Registry
	actuators  map[string]*motion.Actuator

	store       *pose.Store
	presets     map[string]pose.Snapshot
	presetOrder []string
	restore     *motion.Controller

	mounts      map[string]*Mount
	mountOrder  []string
	accessories map[string]*Accessory
	accOrder    []string

	tick       time.Duration
	angleStep  float64
	linearStep float64

	mu          sync.Mutex
	reversed    bool
	deformation float64
}

// New builds a table from cfg on sched. seeder may be nil.
func New(cfg *config.TableConfig, sched *core.Scheduler, seeder Seeder, logger *slog.Logger) (*Table, error) {
	if logger == nil {
		logger = slog.Default()
	}

	t := &Table{
		cfg:         cfg,
		sched:       sched,
		logger:      logger,
		joints:      make(map[string]*kinematics.Joint),
		telescopes:  make(map[string]*kinematics.Telescope),
		reg:         kinematics.NewRegistry(),
		actuators:   make(map[string]*motion.Actuator),
		presets:     make(map[string]pose.Snapshot),
		mounts:      make(map[string]*Mount),
		accessories: make(map[string]*Accessory),
		tick:        cfg.Motion.GetTickInterval(),
		angleStep:   cfg.Motion.AngleStep,
		linearStep:  cfg.Motion.LinearStep,
	}

	if err := t.buildJoints(seeder); err != nil {
		return nil, err
	}
	if err := t.buildTelescopes(); err != nil {
		return nil, err
	}
	if err := t.buildMounts(); err != nil {
		return nil, err
	}

	store, err := pose.NewStore(cfg.MaxPositions, logger)
	if err != nil {
		return nil, err
	}
	t.store = store
	if err := t.buildPresets(); err != nil {
		return nil, err
	}

	t.restore = motion.NewController(sched, t.reg, orientation{t}, restoreConfig(cfg.Restore), logger)
	t.restore.OnSignal(t.updateDeformation)
	t.updateDeformation()

	logger.Info("table: ready", "config", cfg.String(), "channels", t.reg.Len())
	return t, nil
}

func (t *Table) buildJoints(seeder Seeder) error {
	for _, jc := range t.cfg.Joints {
		joint := kinematics.NewJoint(jc.Name)
		for _, ac := range jc.Axes {
			name := config.ChannelName(jc.Name, ac.Label)
			initial := ac.Initial
			if seeder != nil {
				if v, ok := seeder.Seed(name); ok {
					t.logger.Debug("table: seeded channel", "channel", name, "value", v)
					initial = v
				}
			}

			axis, err := kinematics.NewAxis(kinematics.AxisConfig{
				ID:          name,
				Kind:        parseKind(ac.Kind),
				Limits:      kinematics.Limits{Min: ac.Min, Max: ac.Max},
				StepEpsilon: ac.Epsilon,
				Disabled:    ac.Disabled,
				Initial:     initial,
			})
			if err != nil {
				return fmt.Errorf("axis %s: %w", name, err)
			}
			if err := joint.Bind(kinematics.ParseLabel(ac.Label), axis); err != nil {
				return err
			}
			if err := t.reg.Register(axis); err != nil {
				return err
			}
		}
		t.joints[jc.Name] = joint
		t.addTarget(jc.Name)
	}
	return nil
}

func (t *Table) buildTelescopes() error {
	for _, tc := range t.cfg.Telescopes {
		if _, ok := t.joints[tc.Name]; ok {
			return fmt.Errorf("telescope %s shares a joint name", tc.Name)
		}
		segments := make([]*kinematics.Axis, 0, len(tc.Segments))
		for i, sc := range tc.Segments {
			axis, err := kinematics.NewAxis(kinematics.AxisConfig{
				ID:          fmt.Sprintf("%s.%d", tc.Name, i),
				Kind:        kinematics.Linear,
				Limits:      kinematics.Limits{Min: sc.Min, Max: sc.Max},
				StepEpsilon: sc.Epsilon,
				Initial:     sc.Initial,
			})
			if err != nil {
				return fmt.Errorf("telescope %s segment %d: %w", tc.Name, i, err)
			}
			segments = append(segments, axis)
		}

		dir := r3.Vec{X: tc.Direction[0], Y: tc.Direction[1], Z: tc.Direction[2]}
		tel, err := kinematics.NewTelescope(tc.Name, dir, segments...)
		if err != nil {
			return err
		}
		if err := t.reg.Register(tel); err != nil {
			return err
		}
		t.telescopes[tc.Name] = tel
		t.addTarget(tc.Name)
	}
	return nil
}

func (t *Table) addTarget(name string) {
	t.targets = append(t.targets, name)
	act := motion.NewActuator(name, t.sched, t.logger)
	act.OnIdle(func(reason motion.StopReason) {
		t.logger.Debug("table: motion ended", "target", name, "reason", reason)
		t.updateDeformation()
	})
	t.actuators[name] = act
}

func (t *Table) buildPresets() error {
	for _, pc := range t.cfg.Presets {
		var snap pose.Snapshot
		if pc.LevelZero {
			snap = pose.LevelZero(pc.Name, t.reg)
		} else {
			snap = pose.New(pc.Name, pc.Values, pc.Reversed)
		}
		t.presets[pc.Name] = snap
		t.presetOrder = append(t.presetOrder, pc.Name)

		if pc.Slot != nil {
			if err := t.store.Preload(*pc.Slot, snap, pc.Locked); err != nil {
				return fmt.Errorf("preset %s: %w", pc.Name, err)
			}
		}
	}
	return nil
}

func parseKind(s string) kinematics.Kind {
	if s == "linear" {
		return kinematics.Linear
	}
	return kinematics.Angular
}

func restoreConfig(rc config.RestoreConfig) motion.RestoreConfig {
	return motion.RestoreConfig{
		TickInterval:    rc.GetTickInterval(),
		Timeout:         rc.GetTimeout(),
		SettleDelay:     rc.GetSettleDelay(),
		AngleTolerance:  rc.AngleTolerance,
		LinearTolerance: rc.LinearTolerance,
		AngleRate:       rc.AngleRate,
		LinearRate:      rc.LinearRate,
		Rates:           rc.Rates,
	}
}

// Scheduler returns the scheduler the table runs on
func (t *Table) Scheduler() *core.Scheduler {
	return t.sched
}

// Registry returns the tracked channels
func (t *Table) Registry() *kinematics.Registry {
	return t.reg
}

// Channels returns the tracked channel names in registration order
func (t *Table) Channels() []string {
	return t.reg.Names()
}

// Targets returns the joint and telescope names that can be driven
func (t *Table) Targets() []string {
	return slices.Clone(t.targets)
}

// Joint returns the named joint
func (t *Table) Joint(name string) (*kinematics.Joint, bool) {
	j, ok := t.joints[name]
	return j, ok
}

// Telescope returns the named telescope
func (t *Table) Telescope(name string) (*kinematics.Telescope, bool) {
	tel, ok := t.telescopes[name]
	return tel, ok
}

// orientation lets the restore controller flip the table without the
// restore-in-progress guard of SetReversed
type orientation struct {
	t *Table
}

func (o orientation) Reversed() bool {
	return o.t.Reversed()
}

func (o orientation) SetReversed(r bool) {
	o.t.setReversed(r)
}

// Reversed reports whether the table is in reversed orientation
func (t *Table) Reversed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reversed
}

// SetReversed flips the table orientation
func (t *Table) SetReversed(r bool) error {
	if t.restore.IsRestoring() {
		return ErrRestoring
	}
	t.setReversed(r)
	return nil
}

func (t *Table) setReversed(r bool) {
	t.mu.Lock()
	changed := t.reversed != r
	t.reversed = r
	t.mu.Unlock()

	if changed {
		t.logger.Info("table: orientation changed", "reversed", r)
	}
}

// Deformation returns the last computed deformation signal in [0, 100]
func (t *Table) Deformation() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deformation
}

// updateDeformation derives the deformation signal from the trend and tilt
// angles, each normalized to its own range. The larger of the two wins.
func (t *Table) updateDeformation() {
	var d float64
	for _, name := range []string{t.cfg.Deformation.Trend, t.cfg.Deformation.Tilt} {
		ch, ok := t.reg.Get(name)
		if !ok {
			continue
		}
		axis, ok := ch.(*kinematics.Axis)
		if !ok {
			continue
		}
		l := axis.Limits()
		span := math.Max(math.Abs(l.Min), math.Abs(l.Max))
		if span == 0 {
			continue
		}
		d = math.Max(d, 100*math.Abs(axis.Current())/span)
	}

	t.mu.Lock()
	t.deformation = math.Min(d, 100)
	t.mu.Unlock()
}

// Status is a point-in-time summary for displays and the hand control
type Status struct {
	Restoring   bool
	Reversed    bool
	Deformation float64
	Active      []string
	Values      map[string]float64
}

// Status returns the current table status
func (t *Table) Status() Status {
	var active []string
	for _, name := range t.targets {
		if t.actuators[name].IsActive() {
			active = append(active, name)
		}
	}
	return Status{
		Restoring:   t.restore.IsRestoring(),
		Reversed:    t.Reversed(),
		Deformation: t.Deformation(),
		Active:      active,
		Values:      t.reg.Values(),
	}
}
