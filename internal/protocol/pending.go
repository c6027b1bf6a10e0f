package protocol

import (
	"sync"

	"github.com/oklog/ulid/v2"
)

// Pending tracks outgoing requests awaiting their resolution.
//
// Each entry is created by Register and consumed exactly once by the first matching
// Resolve. Unmatched and duplicate resolutions are no-ops.
type Pending struct {
	mu      sync.Mutex
	waiters map[string]chan []any
}

// NewPending creates an empty pending-request table.
func NewPending() *Pending {
	return &Pending{
		waiters: make(map[string]chan []any, 10),
	}
}

// NewID creates a unique correlation id using ULID.
func NewID() string {
	return ulid.Make().String()
}

// Register allocates a fresh correlation id and the channel its resolution arrives on.
// The channel receives exactly one value and is never closed.
func (p *Pending) Register() (string, <-chan []any) {
	id := NewID()
	ch := make(chan []any, 1)

	p.mu.Lock()
	p.waiters[id] = ch
	p.mu.Unlock()

	return id, ch
}

// Resolve delivers args to the waiter registered under id and removes it.
// It returns false when no waiter is registered (never issued or already resolved).
func (p *Pending) Resolve(id string, args []any) bool {
	// Find and claim the waiter atomically
	p.mu.Lock()

	ch, exists := p.waiters[id]
	if exists {
		delete(p.waiters, id)
	}

	p.mu.Unlock()

	if !exists {
		return false
	}

	// We own it now; the channel is buffered so this never blocks
	ch <- args

	return true
}

// Forget drops the waiter registered under id without resolving it.
// Used when the requester stops waiting.
func (p *Pending) Forget(id string) {
	p.mu.Lock()
	delete(p.waiters, id)
	p.mu.Unlock()
}

// Len returns the number of outstanding requests.
func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.waiters)
}
