package hook

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrDuplicate is returned when a handler name is registered twice for
// the same event.
var ErrDuplicate = errors.New("hook: duplicate handler")

// Registry holds handlers grouped by event and keyed by name.
// Handlers within an event are sorted by (priority, registration order).
// Thread-safe: registrations use a write lock, lookups use a read lock.
type Registry struct {
	mu     sync.RWMutex
	sorted map[Event][]Handler
	byName map[Event]map[string]Handler
	// order tracks registration sequence for stable sorting.
	order map[string]int
	seq   int
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sorted: make(map[Event][]Handler),
		byName: make(map[Event]map[string]Handler),
		order:  make(map[string]int),
	}
}

// Register adds a handler under event. Names must be non-empty and unique
// per event.
func (r *Registry) Register(event Event, h Handler) error {
	name := h.Name()
	if name == "" {
		return fmt.Errorf("hook: %s: handler name must not be empty", event)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	names, ok := r.byName[event]
	if !ok {
		names = make(map[string]Handler)
		r.byName[event] = names
	}
	if _, exists := names[name]; exists {
		return fmt.Errorf("%w: %s/%s", ErrDuplicate, event, name)
	}
	names[name] = h

	key := orderKey(event, name)
	r.order[key] = r.seq
	r.seq++

	r.sorted[event] = append(r.sorted[event], h)
	slices.SortStableFunc(r.sorted[event], func(a, b Handler) int {
		if c := cmp.Compare(a.Priority(), b.Priority()); c != 0 {
			return c
		}
		return cmp.Compare(r.order[orderKey(event, a.Name())], r.order[orderKey(event, b.Name())])
	})
	return nil
}

// MustRegister is like Register but panics on error. Intended for wiring
// at process start.
func (r *Registry) MustRegister(event Event, h Handler) {
	if err := r.Register(event, h); err != nil {
		panic(err)
	}
}

// ByName returns the handlers registered under event in order.
// The returned slice is a copy.
func (r *Registry) ByName(event Event) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.sorted[event])
}

// Lookup returns the handler called name under event.
func (r *Registry) Lookup(event Event, name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byName[event][name]
	return h, ok
}

// Names returns the handler names registered under event in order.
func (r *Registry) Names(event Event) []string {
	handlers := r.ByName(event)
	names := make([]string, len(handlers))
	for i, h := range handlers {
		names[i] = h.Name()
	}
	return names
}

func orderKey(event Event, name string) string {
	return string(event) + "\x00" + name
}
