package controller

import (
	"context"
	"fmt"

	"github.com/wagiedev/siteos-go/internal/protocol"
)

// Kind is the embedding strategy of an Instance.
type Kind int

const (
	// KindSurface is a guest embedded in the host page.
	KindSurface Kind = iota
	// KindSeparateWindow is a guest in its own top-level browsing context.
	KindSeparateWindow
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindSurface:
		return "surface"
	case KindSeparateWindow:
		return "window"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Event is an inbound event or request from a guest.
type Event struct {
	// Name is the event name.
	Name string

	// Args are the positional arguments as decoded from JSON. For requests the
	// trailing argument is the correlation id.
	Args []any

	// Instance is the guest the event came from.
	Instance *Instance
}

// PromiseID returns the correlation id carried by a request, if any.
func (e *Event) PromiseID() (string, bool) {
	id, _, ok := protocol.SplitPromiseID(e.Args)

	return id, ok
}

// RequestArgs returns Args without the trailing correlation id.
func (e *Event) RequestArgs() []any {
	_, rest, _ := protocol.SplitPromiseID(e.Args)

	return rest
}

// Reply resolves the request this event carried, on the instance it came from.
func (e *Event) Reply(ctx context.Context, args ...any) error {
	id, ok := e.PromiseID()
	if !ok {
		return fmt.Errorf("event %q carries no correlation id", e.Name)
	}

	return e.Instance.Resolve(ctx, id, args...)
}

// Listener handles an event. Listeners run on the Controller's read loop, one at a
// time, in arrival order; a listener that blocks delays every later message. A
// listener must not wait on Request, Launch or a migration itself, since their
// completion is delivered by the same loop; start a goroutine instead.
type Listener func(ctx context.Context, ev *Event)
