package client

import (
	"context"

	"github.com/wagiedev/siteos-go/internal/protocol"
)

// boot announces the guest once it has loaded and asks for the props.
func (c *Client) boot(ctx context.Context) error {
	select {
	case <-c.env.Loaded():
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := c.send(ctx, protocol.NewEvent(protocol.EventClientLoaded)); err != nil {
		c.log.Warn("Failed to announce load", "error", err)
	}

	id := protocol.NewID()

	c.propsMu.Lock()
	c.propsID = id
	c.propsMu.Unlock()

	if err := c.send(ctx, protocol.NewRequest(protocol.EventProps, id)); err != nil {
		c.log.Warn("Failed to request props", "error", err)
	}

	close(c.booted)

	return nil
}

// trackLocation reports the initial location once the boot messages are out, then
// every session-history change.
func (c *Client) trackLocation(ctx context.Context, navigations <-chan string) error {
	select {
	case <-c.booted:
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	c.reportLocation(ctx, c.env.Location(), false)

	for {
		select {
		case url, ok := <-navigations:
			if !ok {
				return nil
			}

			c.reportLocation(ctx, url, true)

		case <-c.done:
			return nil

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// reportLocation emits ClientLocationChanged and remembers url. Unless force is set,
// a url equal to the remembered one is not reported again.
func (c *Client) reportLocation(ctx context.Context, url string, force bool) {
	store := c.env.SessionStore()

	if last, ok := store.Get(locationKey); ok && last == url && !force {
		return
	}

	store.Set(locationKey, url)

	if err := c.send(ctx, protocol.NewEvent(protocol.EventClientLocationChanged, url)); err != nil {
		c.log.Warn("Failed to report location", "url", url, "error", err)
	}
}
