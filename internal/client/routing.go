package client

import (
	"context"

	"github.com/wagiedev/siteos-go/internal/config"
	"github.com/wagiedev/siteos-go/internal/protocol"
)

// readLoop reads messages from the guest environment and routes them.
func (c *Client) readLoop(ctx context.Context, messages <-chan config.MessageEvent, errs <-chan error) error {
	defer c.log.Debug("Client read loop stopped")

	for {
		select {
		case ev, ok := <-messages:
			if !ok {
				c.log.Debug("Message channel closed")

				return nil
			}

			c.onMessage(ctx, ev)

		case err, ok := <-errs:
			if !ok {
				errs = nil

				continue
			}

			if err != nil {
				c.log.Error("Guest message source failed", "error", err)
				c.setFatalError(err)

				return err
			}

		case <-c.done:
			return nil

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// onMessage accepts only messages whose source is the counterpart handle.
func (c *Client) onMessage(ctx context.Context, ev config.MessageEvent) {
	if !protocol.SameWindow(ev.Source, c.counterpart) {
		c.log.Debug("Dropping message from foreign source", "origin", ev.Origin)

		return
	}

	env, err := protocol.Parse(ev.Data)
	if err != nil {
		c.log.Debug("Dropping malformed envelope", "error", err)

		return
	}

	if env.IsResolution() {
		if c.isPropsAnswer(env.PromiseID) {
			c.initProps(env.Args)

			return
		}

		if !c.pending.Resolve(env.PromiseID, env.Args) {
			c.log.Debug("No pending request for resolution", "promise_id", env.PromiseID)
		}

		return
	}

	switch env.Name {
	case protocol.EventPropsUpdated:
		c.applyProps(env.Args)

		return

	case protocol.EventControllerOrigin:
		c.applyControllerOrigin(env.Args)
	}

	if l, ok := c.listeners.Lookup(env.Name); ok {
		l(ctx, &Event{Name: env.Name, Args: env.Args, client: c})
	}
}

// applyProps overwrites the local view with the Controller's snapshot. Updates that
// arrive before the Props answer are already reflected in it and are skipped.
func (c *Client) applyProps(args []any) {
	props := c.Props()
	if props == nil || len(args) == 0 {
		return
	}

	snapshot, ok := args[0].(map[string]any)
	if !ok {
		c.log.Debug("Ignoring props update with non-object snapshot")

		return
	}

	props.Replace(snapshot)
}

func (c *Client) applyControllerOrigin(args []any) {
	if len(args) == 0 {
		return
	}

	raw, ok := args[0].(string)
	if !ok {
		return
	}

	origin, err := protocol.OriginOf(raw)
	if err != nil {
		c.log.Debug("Ignoring invalid controller origin", "origin", raw, "error", err)

		return
	}

	c.setCounterpartOrigin(origin)
	c.log.Debug("Controller origin set", "origin", origin)
}
