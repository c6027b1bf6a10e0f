package siteos

import (
	"context"
	"fmt"
)

// WithController manages a Controller's lifecycle with automatic cleanup.
//
// It creates and starts a Controller for url on host, runs fn, and stops the
// Controller when fn returns. Stopping destroys nothing on its own; destroy the
// instances fn launched if they should not outlive it.
//
// Example usage:
//
//	err := siteos.WithController(ctx, host, "https://guest.example/", func(c *siteos.Controller) error {
//	    inst, err := c.Launch(ctx, "main", map[string]any{"user": "ada"})
//	    if err != nil {
//	        return err
//	    }
//	    defer inst.Destroy()
//
//	    return inst.Emit(ctx, "hello")
//	},
//	    siteos.WithLogger(log),
//	)
func WithController(
	ctx context.Context,
	host Host,
	url string,
	fn func(*Controller) error,
	opts ...Option,
) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	ctrl, err := NewController(host, url, opts...)
	if err != nil {
		return fmt.Errorf("failed to create controller: %w", err)
	}

	if err := ctrl.Start(ctx); err != nil {
		return fmt.Errorf("failed to start controller: %w", err)
	}

	defer ctrl.Stop()

	return fn(ctrl)
}

// WithClient runs fn with a started Client inside env and stops it afterwards.
// If the Client died of a fatal error while fn ran, that error is logged.
func WithClient(ctx context.Context, env Guest, fn func(*Client) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	options := applyOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	c, err := NewClient(env, opts...)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("failed to start client: %w", err)
	}

	defer func() {
		c.Stop()

		if fatal := c.FatalError(); fatal != nil {
			log.Warn("client stopped with error", "error", fatal)
		}
	}()

	return fn(c)
}
