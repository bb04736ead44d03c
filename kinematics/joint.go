package kinematics

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrUnknownLabel = errors.New("unknown axis label")
	ErrSlotTaken    = errors.New("axis slot already bound")
)

// Joint groups up to three orthogonal axes under one pivot or movement node.
// It exclusively owns its axes.
type Joint struct {
	name string
	axes [3]*Axis
}

// NewJoint creates a joint with no axes bound
func NewJoint(name string) *Joint {
	return &Joint{name: name}
}

// Name returns the joint name
func (j *Joint) Name() string {
	return j.name
}

// Bind attaches an axis to a label slot
func (j *Joint) Bind(l Label, a *Axis) error {
	if l == Unknown || l > Z {
		return ErrUnknownLabel
	}
	if j.axes[l-1] != nil {
		return fmt.Errorf("joint %s slot %s: %w", j.name, l, ErrSlotTaken)
	}
	j.axes[l-1] = a
	return nil
}

// Axis returns the axis bound to l, or nil
func (j *Joint) Axis(l Label) *Axis {
	if l == Unknown || l > Z {
		return nil
	}
	return j.axes[l-1]
}

// Axes returns the bound axes in X, Y, Z order
func (j *Joint) Axes() []*Axis {
	out := make([]*Axis, 0, 3)
	for _, a := range j.axes {
		if a != nil {
			out = append(out, a)
		}
	}
	return out
}

// Labels returns the bound labels in X, Y, Z order
func (j *Joint) Labels() []Label {
	out := make([]Label, 0, 3)
	for i, a := range j.axes {
		if a != nil {
			out = append(out, Label(i+1))
		}
	}
	return out
}

// Resolve returns the axis dir selects and the sign of its dominant
// component. ok is false if no axis resolves.
func (j *Joint) Resolve(dir r3.Vec) (axis *Axis, sgn float64, ok bool) {
	label, sgn := resolve(dir)
	axis = j.Axis(label)
	if axis == nil {
		return nil, 0, false
	}
	return axis, sgn, true
}

// Apply forwards delta to the axis dir resolves to, scaled by the sign of the
// dominant component.
func (j *Joint) Apply(dir r3.Vec, delta float64) bool {
	axis, sgn, ok := j.Resolve(dir)
	if !ok {
		return false
	}
	return axis.ApplyDelta(sgn * delta)
}

// Rotate is Apply restricted to angular axes
func (j *Joint) Rotate(dir r3.Vec, delta float64) bool {
	return j.applyKind(Angular, dir, delta)
}

// Move is Apply restricted to linear axes
func (j *Joint) Move(dir r3.Vec, delta float64) bool {
	return j.applyKind(Linear, dir, delta)
}

func (j *Joint) applyKind(kind Kind, dir r3.Vec, delta float64) bool {
	axis, sgn, ok := j.Resolve(dir)
	if !ok || axis.Kind() != kind {
		return false
	}
	return axis.ApplyDelta(sgn * delta)
}

// GetCurrent returns the current value of the axis bound to l
func (j *Joint) GetCurrent(l Label) (float64, bool) {
	a := j.Axis(l)
	if a == nil {
		return 0, false
	}
	return a.Current(), true
}

// GetLimits returns the limits of the axis bound to l
func (j *Joint) GetLimits(l Label) (Limits, bool) {
	a := j.Axis(l)
	if a == nil {
		return Limits{}, false
	}
	return a.Limits(), true
}

// IsEnabled reports whether an axis is bound to l and enabled
func (j *Joint) IsEnabled(l Label) bool {
	a := j.Axis(l)
	return a != nil && a.Enabled()
}

// Driver returns a Drivable that steps the axis dir resolves to. Positive
// steps move in the direction of dir.
func (j *Joint) Driver(dir r3.Vec) (Drivable, bool) {
	axis, sgn, ok := j.Resolve(dir)
	if !ok {
		return nil, false
	}
	return DriveFunc(func(step float64) bool {
		return axis.Drive(sgn * step)
	}), true
}
