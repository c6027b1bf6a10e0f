package siteos

import "github.com/wagiedev/siteos-go/internal/config"

// Host is the environment a Controller runs in: it resolves containers, embeds
// surfaces, opens windows and delivers inbound messages.
//
// Implement it to run Controllers somewhere new. internal/memhost provides an
// in-memory host for tests and internal/wsbridge a websocket one.
type Host = config.Host

// Guest is the environment a Client runs in.
type Guest = config.Guest

// Window is a handle to a context that can receive posted messages.
// Handles are compared with ==, so implementations must hand out comparable values.
type Window = config.Window

// Surface is an embedded guest context.
type Surface = config.Surface

// Container is a place a Surface can be attached to.
type Container = config.Container

// MessageEvent is one inbound message with the origin the environment reported.
type MessageEvent = config.MessageEvent

// SessionStore is session-scoped key/value storage of a guest context.
type SessionStore = config.SessionStore
