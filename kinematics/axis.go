package kinematics

import (
	"errors"
	"math"
	"sync"
)

var (
	ErrInvalidLimits   = errors.New("axis min exceeds max")
	ErrNegativeEpsilon = errors.New("axis step epsilon must not be negative")
)

// AxisConfig describes a single axis at construction
type AxisConfig struct {
	ID          string
	Kind        Kind
	Limits      Limits
	StepEpsilon float64
	Disabled    bool
	// Initial is the live value the axis starts from, clamped into Limits
	Initial float64
}

// StepResult reports what a single delta did to an axis
type StepResult struct {
	Applied  float64 // delta actually added to current
	Moved    bool    // current changed
	HitLimit bool    // requested delta was clipped at a bound
	Rejected bool    // axis disabled or delta not finite, nothing attempted
}

// Axis is one clamped scalar degree of freedom. The stored current value is
// authoritative: it is changed only through ApplyDelta/Step and SetLimits.
type Axis struct {
	mu      sync.Mutex
	id      string
	kind    Kind
	enabled bool
	limits  Limits
	current float64
	epsilon float64
}

// NewAxis creates an axis seeded from cfg.Initial
func NewAxis(cfg AxisConfig) (*Axis, error) {
	if cfg.Limits.Min > cfg.Limits.Max {
		return nil, ErrInvalidLimits
	}
	if cfg.StepEpsilon < 0 {
		return nil, ErrNegativeEpsilon
	}

	return &Axis{
		id:      cfg.ID,
		kind:    cfg.Kind,
		enabled: !cfg.Disabled,
		limits:  cfg.Limits,
		current: cfg.Limits.Clamp(cfg.Initial),
		epsilon: cfg.StepEpsilon,
	}, nil
}

// ID returns the axis identifier
func (a *Axis) ID() string {
	return a.id
}

// Name implements Channel
func (a *Axis) Name() string {
	return a.id
}

// Kind implements Channel
func (a *Axis) Kind() Kind {
	return a.kind
}

// Current returns the stored current value
func (a *Axis) Current() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Value implements Channel
func (a *Axis) Value() float64 {
	return a.Current()
}

// Limits returns the configured limits
func (a *Axis) Limits() Limits {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.limits
}

// StepEpsilon returns the threshold below which a move is ignored
func (a *Axis) StepEpsilon() float64 {
	return a.epsilon
}

// Enabled reports whether the axis accepts moves
func (a *Axis) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

// SetEnabled enables or disables the axis
func (a *Axis) SetEnabled(enabled bool) {
	a.mu.Lock()
	a.enabled = enabled
	a.mu.Unlock()
}

// SetLimits replaces the limits and clamps current into them
func (a *Axis) SetLimits(l Limits) error {
	if l.Min > l.Max {
		return ErrInvalidLimits
	}
	a.mu.Lock()
	a.limits = l
	a.current = l.Clamp(a.current)
	a.mu.Unlock()
	return nil
}

// Step applies delta, clamping at the limits. Deltas whose clamped magnitude
// is not above the step epsilon leave current untouched. NaN and infinite
// deltas are rejected.
func (a *Axis) Step(delta float64) StepResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.enabled || math.IsNaN(delta) || math.IsInf(delta, 0) {
		return StepResult{Rejected: true}
	}

	var res StepResult
	target := a.current + delta
	if target > a.limits.Max {
		delta = a.limits.Max - a.current
		target = a.limits.Max
		res.HitLimit = true
	} else if target < a.limits.Min {
		delta = a.limits.Min - a.current
		target = a.limits.Min
		res.HitLimit = true
	}

	if math.Abs(delta) > a.epsilon {
		a.current = target
		res.Applied = delta
		res.Moved = true
	}
	return res
}

// ApplyDelta applies delta and reports whether it was applied in full. False
// means the axis is disabled or the move saturated at a bound, which is also
// the signal for continuous motion to stop.
func (a *Axis) ApplyDelta(delta float64) bool {
	res := a.Step(delta)
	return !res.Rejected && !res.HitLimit
}

// Saturated reports whether the axis sits within epsilon of the bound in the
// direction of dir. A zero dir is never saturated.
func (a *Axis) Saturated(dir float64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case dir > 0:
		return a.limits.Max-a.current <= a.epsilon
	case dir < 0:
		return a.current-a.limits.Min <= a.epsilon
	default:
		return false
	}
}

// Drive implements Drivable
func (a *Axis) Drive(step float64) bool {
	return a.ApplyDelta(step) && !a.Saturated(step)
}
