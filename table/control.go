package table

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"optable/kinematics"
)

// GetCurrent returns the current value of a channel
func (t *Table) GetCurrent(channel string) (float64, error) {
	ch, ok := t.reg.Get(channel)
	if !ok {
		return 0, fmt.Errorf("%s: %w", channel, ErrUnknownChannel)
	}
	return ch.Value(), nil
}

// GetLimits returns the limits of a channel. A telescope reports the
// combined range of its segments.
func (t *Table) GetLimits(channel string) (kinematics.Limits, error) {
	ch, ok := t.reg.Get(channel)
	if !ok {
		return kinematics.Limits{}, fmt.Errorf("%s: %w", channel, ErrUnknownChannel)
	}
	switch c := ch.(type) {
	case *kinematics.Axis:
		return c.Limits(), nil
	case *kinematics.Telescope:
		return c.Limits(), nil
	}
	return kinematics.Limits{}, fmt.Errorf("%s: %w", channel, ErrUnknownChannel)
}

// IsEnabled reports whether a channel accepts moves
func (t *Table) IsEnabled(channel string) bool {
	ch, ok := t.reg.Get(channel)
	if !ok {
		return false
	}
	if a, ok := ch.(*kinematics.Axis); ok {
		return a.Enabled()
	}
	return true
}

// Nudge applies a single delta to a joint or telescope, the way a slider
// does. It reports whether the delta was applied in full.
func (t *Table) Nudge(target string, dir r3.Vec, delta float64) (bool, error) {
	if t.restore.IsRestoring() {
		return false, ErrRestoring
	}

	var ok bool
	if j, found := t.joints[target]; found {
		if _, _, resolved := j.Resolve(dir); !resolved {
			return false, fmt.Errorf("%s %v: %w", target, dir, ErrNoAxis)
		}
		ok = j.Apply(dir, delta)
	} else if tel, found := t.telescopes[target]; found {
		sgn := along(tel, dir)
		if sgn == 0 {
			return false, fmt.Errorf("%s %v: %w", target, dir, ErrNoAxis)
		}
		ok = tel.Extend(sgn * delta)
	} else {
		return false, fmt.Errorf("%s: %w", target, ErrUnknownTarget)
	}

	t.updateDeformation()
	return ok, nil
}

// along returns +1 if dir points along the telescope direction, -1 if it
// points against it and 0 otherwise
func along(tel *kinematics.Telescope, dir r3.Vec) float64 {
	dot := r3.Dot(dir, tel.Direction())
	switch {
	case dot > 0:
		return 1
	case dot < 0:
		return -1
	default:
		return 0
	}
}

// StartContinuous starts moving a joint axis or telescope in dir at the
// configured step per tick until Stop or a limit. A running motion on the
// same target is replaced.
func (t *Table) StartContinuous(target string, dir r3.Vec) error {
	if t.restore.IsRestoring() {
		return ErrRestoring
	}

	var (
		drive kinematics.Drivable
		step  float64
	)
	if j, found := t.joints[target]; found {
		axis, _, resolved := j.Resolve(dir)
		if !resolved {
			return fmt.Errorf("%s %v: %w", target, dir, ErrNoAxis)
		}
		drive, _ = j.Driver(dir)
		step = t.angleStep
		if axis.Kind() == kinematics.Linear {
			step = t.linearStep
		}
	} else if tel, found := t.telescopes[target]; found {
		sgn := along(tel, dir)
		if sgn == 0 {
			return fmt.Errorf("%s %v: %w", target, dir, ErrNoAxis)
		}
		drive = tel
		step = sgn * t.linearStep
	} else {
		return fmt.Errorf("%s: %w", target, ErrUnknownTarget)
	}

	tracked := kinematics.DriveFunc(func(step float64) bool {
		more := drive.Drive(step)
		t.updateDeformation()
		return more
	})
	return t.actuators[target].Start(tracked, step, t.tick)
}

// Stop ends continuous motion on a target
func (t *Table) Stop(target string) error {
	act, ok := t.actuators[target]
	if !ok {
		return fmt.Errorf("%s: %w", target, ErrUnknownTarget)
	}
	act.Stop()
	return nil
}

// StopAll ends continuous motion on every target
func (t *Table) StopAll() {
	for _, name := range t.targets {
		t.actuators[name].Stop()
	}
}

// IsActive reports whether a target is moving continuously
func (t *Table) IsActive(target string) bool {
	act, ok := t.actuators[target]
	return ok && act.IsActive()
}
