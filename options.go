package siteos

import (
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"
)

// Option configures a Controller, Client or Registry.
type Option func(*Options)

// applyOptions applies functional options to a fresh Options struct.
func applyOptions(opts []Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithAllowedOrigins adds origins the Controller accepts messages from and posts to,
// on top of the guest URL's own origin. Full URLs are accepted; only the origin is kept.
func WithAllowedOrigins(origins ...string) Option {
	return func(o *Options) {
		o.AllowedOrigins = append(o.AllowedOrigins, origins...)
	}
}

// WithPropsSchema validates every local props mutation against schema.
// A rejected mutation returns a *PropsValidationError and is not broadcast.
func WithPropsSchema(schema *jsonschema.Schema) Option {
	return func(o *Options) {
		o.PropsSchema = schema
	}
}

// WithLocationTracking makes a Client report ClientLocationChanged on every navigation.
func WithLocationTracking() Option {
	return func(o *Options) {
		o.TrackLocation = true
	}
}

// WithSurfaceAttributes sets the sandbox and permission attributes of embedded surfaces.
// Sandbox tokens are normalized; an empty list means the default sandbox.
func WithSurfaceAttributes(attrs SurfaceAttributes) Option {
	return func(o *Options) {
		o.SurfaceAttributes = attrs
	}
}

// WithOnPropsUpdated registers fn to run with the new snapshot whenever the other side
// broadcasts props. On a Controller it applies to every Instance it launches.
func WithOnPropsUpdated(fn func(snapshot map[string]any)) Option {
	return func(o *Options) {
		o.OnPropsUpdated = fn
	}
}
