package wsbridge

import (
	"context"
	"fmt"
	"net/url"

	"github.com/wagiedev/siteos-go/internal/config"
)

// Kinds of guest context a LaunchRequest asks for.
const (
	KindSurface = "surface"
	KindWindow  = "window"
)

// LaunchRequest asks a Launcher to start one guest context.
type LaunchRequest struct {
	// Token identifies the connection the guest must dial back with.
	Token string `json:"token"`

	// Endpoint is the websocket URL of the host, token included.
	Endpoint string `json:"endpoint"`

	// URL is the guest URL to load.
	URL string `json:"url"`

	// Kind is KindSurface or KindWindow.
	Kind string `json:"kind"`

	// ContainerID is the container a surface attaches to; "" is the hidden container.
	ContainerID string `json:"container_id,omitempty"`

	// Referrer is the URL of the host page.
	Referrer string `json:"referrer,omitempty"`

	// Attributes are the sandbox and permission attributes of a surface.
	Attributes config.SurfaceAttributes `json:"attributes"`
}

// Launcher starts a guest for req. It must not wait for the guest to exchange
// messages; the Controller is blocked until it returns.
type Launcher func(ctx context.Context, req LaunchRequest) error

// endpointFor returns the dial-back URL for token.
func endpointFor(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}

	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
