package controller

import (
	"context"

	"github.com/wagiedev/siteos-go/internal/config"
	"github.com/wagiedev/siteos-go/internal/protocol"
)

// readLoop reads messages from the host and routes them.
func (c *Controller) readLoop(
	ctx context.Context,
	messages <-chan config.MessageEvent,
	errs <-chan error,
) {
	defer c.wg.Done()
	defer c.log.Debug("Controller read loop stopped")

	for {
		select {
		case ev, ok := <-messages:
			if !ok {
				c.log.Debug("Message channel closed")

				return
			}

			c.onMessage(ctx, ev)

		case err, ok := <-errs:
			if !ok {
				// Keep draining messages until they close too
				errs = nil

				continue
			}

			if err != nil {
				c.log.Error("Host message source failed", "error", err)
				c.setFatalError(err)

				return
			}

		case <-c.done:
			c.log.Debug("Controller stop signal received")

			return

		case <-ctx.Done():
			c.log.Debug("Context cancelled in controller read loop")

			return
		}
	}
}

// onMessage is the trust boundary. Every rejection is silent: transport-boundary
// violations are dropped and never reach listeners.
func (c *Controller) onMessage(ctx context.Context, ev config.MessageEvent) {
	inst := c.match(ev.Source)
	if inst == nil {
		c.log.Debug("Dropping message from untracked source", "origin", ev.Origin)

		return
	}

	if !c.allow.Has(ev.Origin) {
		c.log.Debug("Dropping message from disallowed origin",
			"origin", ev.Origin,
			"instance_id", inst.id,
		)

		return
	}

	env, err := protocol.Parse(ev.Data)
	if err != nil {
		c.log.Debug("Dropping malformed envelope", "instance_id", inst.id, "error", err)

		return
	}

	if env.IsResolution() {
		if !c.pending.Resolve(env.PromiseID, env.Args) {
			c.log.Debug("No pending request for resolution", "promise_id", env.PromiseID)
		}

		return
	}

	c.dispatch(ctx, inst, env)
}

// dispatch handles protocol-reserved events, then invokes the Controller-wide and
// Instance-local listeners independently.
func (c *Controller) dispatch(ctx context.Context, inst *Instance, env *protocol.Envelope) {
	switch env.Name {
	case protocol.EventProps:
		inst.answerProps(ctx, env.Args)

		return

	case protocol.EventPropsUpdated:
		inst.applyProps(env.Args)

		return

	case protocol.EventClientLoaded:
		inst.clientLoaded()

		if err := inst.emit(ctx, protocol.EventControllerOrigin, c.host.Origin()); err != nil {
			c.log.Warn("Failed to send controller origin", "instance_id", inst.id, "error", err)
		}
	}

	ev := &Event{Name: env.Name, Args: env.Args, Instance: inst}

	if l, ok := c.listeners.Lookup(env.Name); ok {
		l(ctx, ev)
	}

	if l, ok := inst.listeners.Lookup(env.Name); ok {
		l(ctx, ev)
	}
}
