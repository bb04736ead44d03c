// Package pose records named table configurations and keeps them in a fixed
// set of position slots.
package pose

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"optable/kinematics"
)

// Snapshot is a named record of every tracked channel value. A snapshot with
// an empty name denotes an unoccupied slot.
type Snapshot struct {
	ID       uuid.UUID
	Name     string
	Values   map[string]float64
	Reversed bool
	SavedAt  time.Time
}

// IsEmpty reports whether the snapshot marks an unoccupied slot
func (s Snapshot) IsEmpty() bool {
	return s.Name == ""
}

// Clone returns a deep copy
func (s Snapshot) Clone() Snapshot {
	s.Values = maps.Clone(s.Values)
	return s
}

// Value returns the recorded value for a channel
func (s Snapshot) Value(channel string) (float64, bool) {
	v, ok := s.Values[channel]
	return v, ok
}

// Channels returns the recorded channel names, sorted
func (s Snapshot) Channels() []string {
	return slices.Sorted(maps.Keys(s.Values))
}

// Details returns a one-line summary: name, orientation and recorded values
func (s Snapshot) Details() string {
	if s.IsEmpty() {
		return "<empty>"
	}

	var b strings.Builder
	b.WriteString(s.Name)
	if s.Reversed {
		b.WriteString(" (reversed)")
	}
	for i, name := range s.Channels() {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%.3f", name, s.Values[name])
	}
	return b.String()
}

// New builds a snapshot from explicit values
func New(name string, values map[string]float64, reversed bool) Snapshot {
	return Snapshot{
		ID:       uuid.New(),
		Name:     name,
		Values:   maps.Clone(values),
		Reversed: reversed,
	}
}

// Capture records the current value of every channel in reg
func Capture(name string, reg *kinematics.Registry, reversed bool) Snapshot {
	snap := New(name, reg.Values(), reversed)
	snap.SavedAt = time.Now()
	return snap
}

// LevelZero returns a snapshot that puts every angular channel of reg at
// zero. Linear channels are left out so height and slide are untouched.
func LevelZero(name string, reg *kinematics.Registry) Snapshot {
	values := make(map[string]float64)
	reg.Each(func(c kinematics.Channel) {
		if c.Kind() == kinematics.Angular {
			values[c.Name()] = 0
		}
	})
	return New(name, values, false)
}
