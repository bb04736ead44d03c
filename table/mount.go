package table

import (
	"errors"
	"fmt"

	"optable/kinematics"
)

var (
	ErrUnknownMount     = errors.New("unknown mount point")
	ErrUnknownAccessory = errors.New("unknown accessory")
	ErrMountOccupied    = errors.New("mount point already holds an accessory")
	ErrNotAttached      = errors.New("accessory is not attached")
)

// Side of the table a mount point is on
type Side uint8

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Right {
		return "right"
	}
	return "left"
}

// Mount is an accessory rail. It holds at most one accessory.
type Mount struct {
	name      string
	side      Side
	rail      kinematics.Limits
	accessory *Accessory
}

// Accessory is a detachable part whose position along its rail is a linear
// axis. A detached accessory's axis is disabled.
type Accessory struct {
	name  string
	axis  *kinematics.Axis
	mount *Mount
}

// AccessoryInfo describes an accessory for listing
type AccessoryInfo struct {
	Name     string
	Mount    string
	Side     Side
	Position float64
}

func (t *Table) buildMounts() error {
	for _, mc := range t.cfg.Mounts {
		side := Left
		if mc.Side == "right" {
			side = Right
		}
		t.mounts[mc.Name] = &Mount{
			name: mc.Name,
			side: side,
			rail: kinematics.Limits{Min: mc.RailMin, Max: mc.RailMax},
		}
		t.mountOrder = append(t.mountOrder, mc.Name)
	}

	for _, ac := range t.cfg.Accessories {
		axis, err := kinematics.NewAxis(kinematics.AxisConfig{
			ID:       ac.Name,
			Kind:     kinematics.Linear,
			Disabled: true,
			Initial:  ac.Position,
		})
		if err != nil {
			return fmt.Errorf("accessory %s: %w", ac.Name, err)
		}
		t.accessories[ac.Name] = &Accessory{name: ac.Name, axis: axis}
		t.accOrder = append(t.accOrder, ac.Name)

		if ac.Mount != "" {
			if err := t.attach(ac.Name, ac.Mount, ac.Position); err != nil {
				return err
			}
		}
	}
	return nil
}

// Attach puts an accessory on a mount point. An accessory attached elsewhere
// is detached first. The mount's rail limits become the accessory's limits,
// clamping its position.
func (t *Table) Attach(accessory, mount string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attachLocked(accessory, mount)
}

func (t *Table) attach(accessory, mount string, position float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.attachLocked(accessory, mount); err != nil {
		return err
	}
	acc := t.accessories[accessory]
	acc.axis.Step(position - acc.axis.Current())
	return nil
}

func (t *Table) attachLocked(accessory, mount string) error {
	acc, ok := t.accessories[accessory]
	if !ok {
		return fmt.Errorf("%s: %w", accessory, ErrUnknownAccessory)
	}
	m, ok := t.mounts[mount]
	if !ok {
		return fmt.Errorf("%s: %w", mount, ErrUnknownMount)
	}
	if m.accessory == acc {
		return nil
	}
	if m.accessory != nil {
		return fmt.Errorf("%s holds %s: %w", mount, m.accessory.name, ErrMountOccupied)
	}
	if m.rail.Min > m.rail.Max {
		return fmt.Errorf("%s rail [%g, %g]: %w", mount, m.rail.Min, m.rail.Max, kinematics.ErrInvalidLimits)
	}

	if acc.mount != nil {
		t.logger.Debug("table: moving accessory", "accessory", accessory, "from", acc.mount.name, "to", mount)
		acc.mount.accessory = nil
		acc.mount = nil
	}

	if err := acc.axis.SetLimits(m.rail); err != nil {
		return err
	}
	acc.axis.SetEnabled(true)
	acc.mount = m
	m.accessory = acc

	t.logger.Info("table: accessory attached", "accessory", accessory, "mount", mount, "side", m.side)
	return nil
}

// Detach removes an accessory from its mount point
func (t *Table) Detach(accessory string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	acc, ok := t.accessories[accessory]
	if !ok {
		return fmt.Errorf("%s: %w", accessory, ErrUnknownAccessory)
	}
	if acc.mount == nil {
		return fmt.Errorf("%s: %w", accessory, ErrNotAttached)
	}

	acc.mount.accessory = nil
	acc.mount = nil
	acc.axis.SetEnabled(false)
	t.logger.Info("table: accessory detached", "accessory", accessory)
	return nil
}

// MoveAccessory slides an attached accessory along its rail. It reports
// whether the delta was applied in full.
func (t *Table) MoveAccessory(accessory string, delta float64) (bool, error) {
	t.mu.Lock()
	acc, ok := t.accessories[accessory]
	attached := ok && acc.mount != nil
	t.mu.Unlock()

	if !ok {
		return false, fmt.Errorf("%s: %w", accessory, ErrUnknownAccessory)
	}
	if !attached {
		return false, fmt.Errorf("%s: %w", accessory, ErrNotAttached)
	}
	return acc.axis.ApplyDelta(delta), nil
}

// Accessories lists every accessory in config order
func (t *Table) Accessories() []AccessoryInfo {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]AccessoryInfo, 0, len(t.accOrder))
	for _, name := range t.accOrder {
		acc := t.accessories[name]
		info := AccessoryInfo{Name: name, Position: acc.axis.Current()}
		if acc.mount != nil {
			info.Mount = acc.mount.name
			info.Side = acc.mount.side
		}
		out = append(out, info)
	}
	return out
}

// Mounts returns the mount point names in config order
func (t *Table) Mounts() []string {
	return append([]string(nil), t.mountOrder...)
}
