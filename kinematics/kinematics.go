// Package kinematics models the table's degrees of freedom: clamped scalar
// axes, joints grouping up to three orthogonal axes, and telescopic stacks of
// axes that extend one segment at a time.
package kinematics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Kind distinguishes angular axes (degrees) from linear axes (table units)
type Kind uint8

const (
	Angular Kind = iota
	Linear
)

func (k Kind) String() string {
	switch k {
	case Angular:
		return "angular"
	case Linear:
		return "linear"
	default:
		return "unknown"
	}
}

// Label names one of the three orthogonal axis slots of a joint
type Label uint8

const (
	Unknown Label = iota
	X
	Y
	Z
)

func (l Label) String() string {
	switch l {
	case X:
		return "x"
	case Y:
		return "y"
	case Z:
		return "z"
	default:
		return "unknown"
	}
}

// ParseLabel converts "x", "y" or "z" (any case) to a Label
func ParseLabel(s string) Label {
	switch s {
	case "x", "X":
		return X
	case "y", "Y":
		return Y
	case "z", "Z":
		return Z
	default:
		return Unknown
	}
}

// Unit returns the unit vector for a label, or the zero vector for Unknown
func (l Label) Unit() r3.Vec {
	switch l {
	case X:
		return r3.Vec{X: 1}
	case Y:
		return r3.Vec{Y: 1}
	case Z:
		return r3.Vec{Z: 1}
	default:
		return r3.Vec{}
	}
}

// Resolve maps a direction vector to the axis whose component has the
// strictly largest magnitude. Ties and the zero vector resolve to Unknown.
func Resolve(dir r3.Vec) Label {
	label, _ := resolve(dir)
	return label
}

// resolve also returns the sign of the dominant component.
func resolve(dir r3.Vec) (Label, float64) {
	ax, ay, az := math.Abs(dir.X), math.Abs(dir.Y), math.Abs(dir.Z)

	switch {
	case ax > ay && ax > az:
		return X, sign(dir.X)
	case ay > ax && ay > az:
		return Y, sign(dir.Y)
	case az > ax && az > ay:
		return Z, sign(dir.Z)
	default:
		return Unknown, 0
	}
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// Limits represents position limits for an axis
type Limits struct {
	Min float64
	Max float64
}

// Clamp returns v limited to [Min, Max]
func (l Limits) Clamp(v float64) float64 {
	if v < l.Min {
		return l.Min
	}
	if v > l.Max {
		return l.Max
	}
	return v
}

// Channel is a scalar degree of freedom that can be recorded into a pose and
// driven back toward a recorded value.
type Channel interface {
	Name() string
	Kind() Kind
	Value() float64
	// ApplyDelta moves the channel and reports false when the move could not
	// be applied in full.
	ApplyDelta(delta float64) bool
}

// Drivable is something a continuous actuator can step. Drive applies one
// step and reports whether motion may continue in the same direction.
type Drivable interface {
	Drive(step float64) bool
}

// DriveFunc adapts a function to Drivable
type DriveFunc func(step float64) bool

// Drive calls f(step)
func (f DriveFunc) Drive(step float64) bool {
	return f(step)
}
