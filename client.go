package siteos

import (
	"github.com/wagiedev/siteos-go/internal/client"
	"github.com/wagiedev/siteos-go/internal/controller"
)

// NewController creates a Controller for guests served at url.
//
// The origin allowlist is url's origin plus WithAllowedOrigins and is fixed for the
// Controller's lifetime. Call Start before launching instances.
func NewController(host Host, url string, opts ...Option) (*Controller, error) {
	return controller.New(host, url, applyOptions(opts))
}

// NewClient creates a Client inside env. The counterpart is env's opener if present,
// else its parent; ErrNoCounterpart is returned when there is neither.
//
// Only WithLogger, WithPropsSchema, WithLocationTracking and WithOnPropsUpdated
// affect a Client.
func NewClient(env Guest, opts ...Option) (*Client, error) {
	return client.New(env, applyOptions(opts))
}
