package pose

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	ErrInvalidSlot = errors.New("position slot out of range")
	ErrLockedSlot  = errors.New("position slot is locked")
	ErrEmptySlot   = errors.New("position slot is empty")
	ErrEmptyName   = errors.New("position name must not be empty")
)

// Store is a fixed-size list of position slots. Locked slots hold predefined
// poses and reject Save and Clear.
type Store struct {
	mu     sync.RWMutex
	slots  []Snapshot
	locked []bool
	logger *slog.Logger
}

// NewStore creates a store with maxPositions empty slots
func NewStore(maxPositions int, logger *slog.Logger) (*Store, error) {
	if maxPositions < 1 {
		return nil, fmt.Errorf("max positions %d: %w", maxPositions, ErrInvalidSlot)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		slots:  make([]Snapshot, maxPositions),
		locked: make([]bool, maxPositions),
		logger: logger,
	}, nil
}

// Len returns the number of slots
func (s *Store) Len() int {
	return len(s.slots)
}

func (s *Store) inRange(slot int) bool {
	return slot >= 0 && slot < len(s.slots)
}

// Preload writes a predefined pose at startup, optionally locking the slot
func (s *Store) Preload(slot int, snap Snapshot, locked bool) error {
	if !s.inRange(slot) {
		return fmt.Errorf("preload slot %d: %w", slot, ErrInvalidSlot)
	}
	if snap.IsEmpty() {
		return fmt.Errorf("preload slot %d: %w", slot, ErrEmptyName)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[slot] = snap.Clone()
	s.locked[slot] = locked
	return nil
}

// Save stores snap in slot. Out of range and locked slots are rejected and
// logged without changing anything.
func (s *Store) Save(slot int, snap Snapshot) error {
	if !s.inRange(slot) {
		s.logger.Warn("pose: save rejected, slot out of range", "slot", slot, "max", len(s.slots))
		return fmt.Errorf("save slot %d: %w", slot, ErrInvalidSlot)
	}
	if snap.IsEmpty() {
		s.logger.Warn("pose: save rejected, empty name", "slot", slot)
		return fmt.Errorf("save slot %d: %w", slot, ErrEmptyName)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked[slot] {
		s.logger.Warn("pose: save rejected, slot locked", "slot", slot, "name", s.slots[slot].Name)
		return fmt.Errorf("save slot %d: %w", slot, ErrLockedSlot)
	}
	s.slots[slot] = snap.Clone()
	s.logger.Info("pose: position saved", "slot", slot, "name", snap.Name)
	return nil
}

// Load returns a copy of the snapshot in slot
func (s *Store) Load(slot int) (Snapshot, error) {
	if !s.inRange(slot) {
		return Snapshot{}, fmt.Errorf("load slot %d: %w", slot, ErrInvalidSlot)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.slots[slot].IsEmpty() {
		return Snapshot{}, fmt.Errorf("load slot %d: %w", slot, ErrEmptySlot)
	}
	return s.slots[slot].Clone(), nil
}

// Clear empties an unlocked slot
func (s *Store) Clear(slot int) error {
	if !s.inRange(slot) {
		return fmt.Errorf("clear slot %d: %w", slot, ErrInvalidSlot)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked[slot] {
		s.logger.Warn("pose: clear rejected, slot locked", "slot", slot)
		return fmt.Errorf("clear slot %d: %w", slot, ErrLockedSlot)
	}
	s.slots[slot] = Snapshot{}
	return nil
}

// IsOccupied reports whether slot holds a named snapshot
func (s *Store) IsOccupied(slot int) bool {
	if !s.inRange(slot) {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.slots[slot].IsEmpty()
}

// IsLocked reports whether slot is read-only
func (s *Store) IsLocked(slot int) bool {
	if !s.inRange(slot) {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.locked[slot]
}

// Details returns the summary of the snapshot in slot
func (s *Store) Details(slot int) (string, error) {
	if !s.inRange(slot) {
		return "", fmt.Errorf("details slot %d: %w", slot, ErrInvalidSlot)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slots[slot].Details(), nil
}

// Slot describes one slot for listing
type Slot struct {
	Index  int
	Name   string
	Locked bool
}

// List returns every slot in order
func (s *Store) List() []Slot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Slot, len(s.slots))
	for i, snap := range s.slots {
		out[i] = Slot{Index: i, Name: snap.Name, Locked: s.locked[i]}
	}
	return out
}
