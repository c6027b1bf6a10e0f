package protocol

import (
	"slices"
	"sync"
)

// Listeners maps event names to a single handler each.
// Registering a name twice replaces the previous handler; Off is idempotent.
type Listeners[L any] struct {
	mu sync.RWMutex
	m  map[string]L
}

// NewListeners creates an empty listener table.
func NewListeners[L any]() *Listeners[L] {
	return &Listeners[L]{m: make(map[string]L, 8)}
}

// On registers fn for name, replacing any previous handler.
func (l *Listeners[L]) On(name string, fn L) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.m[name] = fn
}

// Off removes the handler for name, if any.
func (l *Listeners[L]) Off(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.m, name)
}

// Lookup returns the handler for name.
func (l *Listeners[L]) Lookup(name string) (L, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	fn, ok := l.m[name]

	return fn, ok
}

// Names returns the registered event names in sorted order.
func (l *Listeners[L]) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, 0, len(l.m))
	for name := range l.m {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}
