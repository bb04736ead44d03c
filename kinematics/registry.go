package kinematics

import (
	"errors"
	"fmt"
	"sync"
)

var ErrDuplicateChannel = errors.New("channel already registered")

// Registry is the table-wide, ordered set of tracked channels keyed by name
type Registry struct {
	mu       sync.RWMutex
	order    []string
	channels map[string]Channel
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]Channel)}
}

// Register adds a channel under its own name
func (r *Registry) Register(c Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := c.Name()
	if _, ok := r.channels[name]; ok {
		return fmt.Errorf("%s: %w", name, ErrDuplicateChannel)
	}
	r.channels[name] = c
	r.order = append(r.order, name)
	return nil
}

// Get returns the named channel
func (r *Registry) Get(name string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.channels[name]
	return c, ok
}

// Names returns channel names in registration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of channels
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Each calls fn for every channel in registration order
func (r *Registry) Each(fn func(Channel)) {
	r.mu.RLock()
	chans := make([]Channel, 0, len(r.order))
	for _, name := range r.order {
		chans = append(chans, r.channels[name])
	}
	r.mu.RUnlock()

	for _, c := range chans {
		fn(c)
	}
}

// Values returns the current value of every channel
func (r *Registry) Values() map[string]float64 {
	out := make(map[string]float64, r.Len())
	r.Each(func(c Channel) {
		out[c.Name()] = c.Value()
	})
	return out
}
