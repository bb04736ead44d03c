package kinematics

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

var ErrNoSegments = errors.New("telescope has no segments")

// Telescope is an ordered stack of axes that extend and retract one segment
// at a time along a shared direction.
//
// A single Extend call is absorbed entirely by the first segment that is not
// saturated in the direction of travel. If that segment saturates part way,
// the rest of the delta is dropped and the next call moves the next segment.
type Telescope struct {
	name      string
	direction r3.Vec
	segments  []*Axis
}

// NewTelescope builds a stack from segments in extension order
func NewTelescope(name string, direction r3.Vec, segments ...*Axis) (*Telescope, error) {
	if len(segments) == 0 {
		return nil, ErrNoSegments
	}
	return &Telescope{
		name:      name,
		direction: direction,
		segments:  segments,
	}, nil
}

// NewTelescopeFromJoints builds a stack from the axis each joint resolves
// for the shared direction.
func NewTelescopeFromJoints(name string, direction r3.Vec, joints ...*Joint) (*Telescope, error) {
	segments := make([]*Axis, 0, len(joints))
	for _, j := range joints {
		axis, _, ok := j.Resolve(direction)
		if !ok {
			return nil, fmt.Errorf("telescope %s: joint %s has no axis along %v: %w",
				name, j.Name(), direction, ErrUnknownLabel)
		}
		segments = append(segments, axis)
	}
	return NewTelescope(name, direction, segments...)
}

// Name implements Channel
func (t *Telescope) Name() string {
	return t.name
}

// Kind implements Channel
func (t *Telescope) Kind() Kind {
	return Linear
}

// Direction returns the shared movement direction
func (t *Telescope) Direction() r3.Vec {
	return t.direction
}

// Segments returns the segment axes in extension order
func (t *Telescope) Segments() []*Axis {
	return append([]*Axis(nil), t.segments...)
}

// Value returns the total extension across segments
func (t *Telescope) Value() float64 {
	var sum float64
	for _, s := range t.segments {
		sum += s.Current()
	}
	return sum
}

// Limits returns the combined range of the stack
func (t *Telescope) Limits() Limits {
	var l Limits
	for _, s := range t.segments {
		sl := s.Limits()
		l.Min += sl.Min
		l.Max += sl.Max
	}
	return l
}

// Extend moves the first segment that can still travel in the direction of
// delta. It reports whether any segment changed.
func (t *Telescope) Extend(delta float64) bool {
	dir := sign(delta)
	if dir == 0 {
		return false
	}

	for _, s := range t.segments {
		if !s.Enabled() || s.Saturated(dir) {
			continue
		}
		return s.Step(delta).Moved
	}
	return false
}

// ApplyDelta implements Channel
func (t *Telescope) ApplyDelta(delta float64) bool {
	return t.Extend(delta)
}

// Drive implements Drivable
func (t *Telescope) Drive(step float64) bool {
	if !t.Extend(step) {
		return false
	}
	if step > 0 {
		return !t.IsFullyExtended()
	}
	return !t.IsFullyRetracted()
}

// IsFullyExtended reports whether every segment is within epsilon of its max
func (t *Telescope) IsFullyExtended() bool {
	for _, s := range t.segments {
		if !s.Saturated(1) {
			return false
		}
	}
	return true
}

// IsFullyRetracted reports whether every segment is within epsilon of its min
func (t *Telescope) IsFullyRetracted() bool {
	for _, s := range t.segments {
		if !s.Saturated(-1) {
			return false
		}
	}
	return true
}
