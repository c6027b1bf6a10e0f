package siteos

import (
	"github.com/wagiedev/siteos-go/internal/client"
	"github.com/wagiedev/siteos-go/internal/config"
	"github.com/wagiedev/siteos-go/internal/controller"
	"github.com/wagiedev/siteos-go/internal/protocol"
	"github.com/wagiedev/siteos-go/internal/state"
)

// Re-export types from internal packages

// ===== Options =====

// Options configures Controllers and Clients. Build it with Option values.
type Options = config.Options

// SurfaceAttributes is the sandbox and permission attribute set of embedded surfaces.
type SurfaceAttributes = config.SurfaceAttributes

// ===== Controller side =====

// Controller is the host-side endpoint bound to one guest URL.
type Controller = controller.Controller

// Instance is one running guest, embedded or in a separate window.
type Instance = controller.Instance

// Event is an inbound event or request a Controller received from a guest.
type Event = controller.Event

// Listener handles Controller events.
type Listener = controller.Listener

// Kind is the embedding strategy of an Instance.
type Kind = controller.Kind

const (
	// KindSurface is a guest embedded in the host page.
	KindSurface = controller.KindSurface

	// KindSeparateWindow is a guest in its own top-level window.
	KindSeparateWindow = controller.KindSeparateWindow
)

// ===== Reserved events =====

// Protocol-reserved event names. Listeners may observe ClientLoaded and
// ClientLocationChanged; Emit and Request reject all of them.
const (
	EventClientLoaded          = protocol.EventClientLoaded
	EventClientLocationChanged = protocol.EventClientLocationChanged
	EventProps                 = protocol.EventProps
	EventPropsUpdated          = protocol.EventPropsUpdated
	EventControllerOrigin      = protocol.EventControllerOrigin
)

// ===== Client side =====

// Client is the guest-side endpoint.
type Client = client.Client

// ClientEvent is an inbound event or request a Client received from its Controller.
type ClientEvent = client.Event

// ClientListener handles Client events.
type ClientListener = client.Listener

// ===== Props =====

// Props is the shared key/value object synchronized between an Instance and its Client.
type Props = state.Props

// PropsUpdateFunc receives the full snapshot after the other side broadcasts props.
type PropsUpdateFunc = state.UpdateFunc
