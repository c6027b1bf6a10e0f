package config

import (
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"
)

// Options configures Controllers and Clients.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// AllowedOrigins extends the Controller's origin allowlist beyond the guest URL's
	// own origin. Entries may be full URLs; only their origin is kept.
	AllowedOrigins []string

	// PropsSchema validates every props snapshot before a local mutation is applied.
	// If nil, props are not validated.
	PropsSchema *jsonschema.Schema

	// TrackLocation makes a Client emit ClientLocationChanged on every navigation.
	TrackLocation bool

	// SurfaceAttributes is passed to the host when embedding surfaces.
	SurfaceAttributes SurfaceAttributes

	// OnPropsUpdated is called with the new snapshot whenever the peer broadcasts props.
	OnPropsUpdated func(snapshot map[string]any)
}
