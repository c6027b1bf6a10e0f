package client

import (
	"context"
	"fmt"

	"github.com/wagiedev/siteos-go/internal/protocol"
)

// Event is an inbound event or request from the Controller.
type Event struct {
	// Name is the event name.
	Name string

	// Args are the positional arguments as decoded from JSON. For requests the
	// trailing argument is the correlation id.
	Args []any

	client *Client
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

// Reply resolves the request this event carried.
func (e *Event) Reply(ctx context.Context, args ...any) error {
	id, ok := e.PromiseID()
	if !ok {
		return fmt.Errorf("event %q carries no correlation id", e.Name)
	}

	return e.client.Resolve(ctx, id, args...)
}

// Listener handles an event. Listeners run on the Client's read loop one at a time;
// a listener must not wait on Request or WaitProps itself.
type Listener func(ctx context.Context, ev *Event)
