// Package config provides configuration and host-environment types for siteos.
package config

import "context"

// Window is a handle to a browsing context that can receive posted messages.
//
// Handles are compared with ==, so implementations must return the same comparable
// value for the same context as seen from the same caller. The Controller matches
// inbound MessageEvent.Source against the Window it launched.
type Window interface {
	// PostMessage delivers data to the context if its origin matches targetOrigin.
	// A targetOrigin of "*" matches any origin. Posting to a closed context or with
	// a mismatched origin is silently dropped, not an error.
	PostMessage(ctx context.Context, data []byte, targetOrigin string) error

	// Close releases the context. It's safe to call Close multiple times.
	Close() error

	// Closed reports whether the context has been released or navigated away.
	Closed() bool
}

// MessageEvent is one inbound message delivered by the host environment.
type MessageEvent struct {
	// Data is the serialized envelope.
	Data []byte

	// Origin is the sender's origin as reported by the environment, not by the sender.
	Origin string

	// Source is the receiver's handle to the sending context.
	Source Window
}

// MessageSource is the ambient message listener of a context.
type MessageSource interface {
	// ReadMessages returns channels for receiving messages and errors.
	// Both channels are closed when ctx is cancelled or the source shuts down.
	// Each call registers an independent listener.
	ReadMessages(ctx context.Context) (<-chan MessageEvent, <-chan error)
}

// Container is a place a Surface can be attached to.
type Container interface {
	ID() string
}

// Surface is an embedded guest context.
type Surface interface {
	// Window returns the handle used to post to and match messages from the guest.
	Window() Window

	// Loaded is closed when the guest finishes loading.
	Loaded() <-chan struct{}

	// Remove detaches the surface and releases its context.
	Remove() error
}

// Host is the environment a Controller runs in.
//
// CreateSurface and OpenWindow are called while the Controller holds its routing
// lock, so they must not wait for the guest to exchange messages.
type Host interface {
	MessageSource

	// Origin returns the host context's own origin.
	Origin() string

	// ResolveContainer looks up a container by id.
	// Returns an error wrapping errors.ErrContainerNotFound when id is unknown.
	ResolveContainer(id string) (Container, error)

	// HiddenContainer returns the container used when the caller names none.
	HiddenContainer() Container

	// CreateSurface embeds a new guest context at url inside container.
	CreateSurface(ctx context.Context, container Container, url string, attrs SurfaceAttributes) (Surface, error)

	// OpenWindow opens a separate top-level guest context at url.
	OpenWindow(ctx context.Context, url string) (Window, error)
}

// SessionStore is small session-scoped key/value storage.
type SessionStore interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// Guest is the environment a Client runs in.
type Guest interface {
	MessageSource

	// Opener returns the context that opened this one, or nil.
	Opener() Window

	// Parent returns the embedding context, or nil for a top-level context.
	Parent() Window

	// Referrer returns the URL of the document that led here, or "".
	Referrer() string

	// Location returns the current URL.
	Location() string

	// Loaded is closed when the guest document has fully loaded.
	Loaded() <-chan struct{}

	// Navigations yields the new URL after every session-history change
	// (push, replace, back/forward). The channel closes when ctx is done.
	Navigations(ctx context.Context) <-chan string

	// SessionStore returns the session-scoped storage of this context.
	SessionStore() SessionStore
}
