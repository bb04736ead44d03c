package table

import (
	"fmt"
	"slices"

	"optable/motion"
	"optable/pose"
)

// Capture records the current table pose without storing it
func (t *Table) Capture(name string) pose.Snapshot {
	return pose.Capture(name, t.reg, t.Reversed())
}

// Save captures the current pose into slot. An empty name is replaced with
// "Position N", N counting slots from one.
func (t *Table) Save(slot int, name string) error {
	if name == "" {
		name = fmt.Sprintf("Position %d", slot+1)
	}
	return t.store.Save(slot, t.Capture(name))
}

// Load restores the pose in slot. Continuous motion is stopped first.
// onDone may be nil.
func (t *Table) Load(slot int, onDone func(motion.Report)) error {
	snap, err := t.store.Load(slot)
	if err != nil {
		return err
	}
	return t.restoreTo(snap, onDone)
}

// LoadPreset restores a named preset
func (t *Table) LoadPreset(name string, onDone func(motion.Report)) error {
	snap, ok := t.presets[name]
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrUnknownPreset)
	}
	return t.restoreTo(snap, onDone)
}

func (t *Table) restoreTo(snap pose.Snapshot, onDone func(motion.Report)) error {
	if t.restore.IsRestoring() {
		return ErrRestoring
	}
	t.StopAll()
	return t.restore.Restore(snap, onDone)
}

// Clear empties an unlocked slot
func (t *Table) Clear(slot int) error {
	return t.store.Clear(slot)
}

// IsOccupied reports whether slot holds a pose
func (t *Table) IsOccupied(slot int) bool {
	return t.store.IsOccupied(slot)
}

// IsLocked reports whether slot is read-only
func (t *Table) IsLocked(slot int) bool {
	return t.store.IsLocked(slot)
}

// IsRestoring reports whether a restore is in flight
func (t *Table) IsRestoring() bool {
	return t.restore.IsRestoring()
}

// LastRestore returns the report of the most recent finished restore
func (t *Table) LastRestore() motion.Report {
	return t.restore.LastReport()
}

// Details returns the summary of the pose in slot
func (t *Table) Details(slot int) (string, error) {
	return t.store.Details(slot)
}

// Slots lists every position slot
func (t *Table) Slots() []pose.Slot {
	return t.store.List()
}

// Presets returns the preset names in config order
func (t *Table) Presets() []string {
	return slices.Clone(t.presetOrder)
}

// Preset returns a copy of the named preset
func (t *Table) Preset(name string) (pose.Snapshot, bool) {
	snap, ok := t.presets[name]
	if !ok {
		return pose.Snapshot{}, false
	}
	return snap.Clone(), true
}
