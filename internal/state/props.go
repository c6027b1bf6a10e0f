package state

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	sterrors "github.com/wagiedev/siteos-go/internal/errors"
)

// ChangeFunc receives the full snapshot after a local mutation.
type ChangeFunc func(snapshot map[string]any)

// UpdateFunc receives the full snapshot after the peer replaced the props.
type UpdateFunc func(snapshot map[string]any)

// Props is a key/value mapping whose every local mutation is observed.
type Props struct {
	// emitMu serializes mutate-then-notify so snapshots leave in mutation order
	emitMu sync.Mutex

	mu       sync.RWMutex
	data     map[string]any
	onChange ChangeFunc
	onUpdate UpdateFunc
	schema   *jsonschema.Resolved
}

// Option configures Props.
type Option func(*Props) error

// WithSchema validates every snapshot produced by a local mutation against schema.
func WithSchema(schema *jsonschema.Schema) Option {
	return func(p *Props) error {
		if schema == nil {
			return nil
		}

		resolved, err := schema.Resolve(nil)
		if err != nil {
			return fmt.Errorf("resolve props schema: %w", err)
		}

		p.schema = resolved

		return nil
	}
}

// WithUpdateFunc sets the hook called after Replace.
func WithUpdateFunc(fn UpdateFunc) Option {
	return func(p *Props) error {
		p.onUpdate = fn

		return nil
	}
}

// New wraps a copy of initial. onChange may be nil.
// The initial mapping is validated against the schema when one is configured.
func New(initial map[string]any, onChange ChangeFunc, opts ...Option) (*Props, error) {
	p := &Props{
		data:     cloneMap(initial),
		onChange: onChange,
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	if err := p.validate("", p.data); err != nil {
		return nil, err
	}

	return p, nil
}

// Get returns the value stored under key.
func (p *Props) Get(key string) (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	v, ok := p.data[key]

	return v, ok
}

// Set stores value under key and notifies the change hook with the new snapshot.
// Returns *errors.PropsValidationError without applying the mutation when the
// resulting snapshot fails the schema.
func (p *Props) Set(key string, value any) error {
	return p.mutate(key, func(m map[string]any) { m[key] = value })
}

// Delete removes key and notifies the change hook with the new snapshot.
// Deleting a missing key still notifies.
func (p *Props) Delete(key string) error {
	return p.mutate(key, func(m map[string]any) { delete(m, key) })
}

// Snapshot returns a shallow copy of the current mapping.
func (p *Props) Snapshot() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return cloneMap(p.data)
}

// Keys returns the current keys in sorted order.
func (p *Props) Keys() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return slices.Sorted(maps.Keys(p.data))
}

// Len returns the number of keys.
func (p *Props) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.data)
}

// OnUpdate replaces the hook called after Replace.
func (p *Props) OnUpdate(fn UpdateFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.onUpdate = fn
}

// Replace overwrites the whole mapping with snapshot, as received from the peer.
// The change hook is not called; the update hook is.
func (p *Props) Replace(snapshot map[string]any) {
	p.mu.Lock()
	p.data = cloneMap(snapshot)
	onUpdate := p.onUpdate
	p.mu.Unlock()

	if onUpdate != nil {
		onUpdate(cloneMap(snapshot))
	}
}

func (p *Props) mutate(key string, apply func(map[string]any)) error {
	p.emitMu.Lock()
	defer p.emitMu.Unlock()

	p.mu.Lock()

	candidate := cloneMap(p.data)
	apply(candidate)

	if err := p.validate(key, candidate); err != nil {
		p.mu.Unlock()

		return err
	}

	p.data = candidate
	onChange := p.onChange
	snapshot := cloneMap(candidate)

	p.mu.Unlock()

	if onChange != nil {
		onChange(snapshot)
	}

	return nil
}

// validate checks m against the schema using its JSON form, which is what the peer
// will observe.
func (p *Props) validate(key string, m map[string]any) error {
	if p.schema == nil {
		return nil
	}

	data, err := json.Marshal(m)
	if err != nil {
		return &sterrors.PropsValidationError{Key: key, Err: err}
	}

	var instance map[string]any
	if err := json.Unmarshal(data, &instance); err != nil {
		return &sterrors.PropsValidationError{Key: key, Err: err}
	}

	if err := p.schema.Validate(instance); err != nil {
		return &sterrors.PropsValidationError{Key: key, Err: err}
	}

	return nil
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return make(map[string]any)
	}

	return maps.Clone(m)
}
