package controller

import (
	"context"
	"errors"

	"github.com/wagiedev/siteos-go/internal/config"
	sterrors "github.com/wagiedev/siteos-go/internal/errors"
)

// Launch embeds a new guest surface and waits until it has loaded.
//
// containerID names the container to attach to; "" uses the host's hidden container.
// An unknown container fails with *errors.ContainerNotFoundError. If ctx ends before
// the surface loads, the half-launched instance is destroyed and ctx.Err() returned.
func (c *Controller) Launch(ctx context.Context, containerID string, props map[string]any) (*Instance, error) {
	if c.isStopped() {
		return nil, c.stoppedErr()
	}

	container, err := c.resolveContainer(containerID)
	if err != nil {
		return nil, err
	}

	inst, err := c.newInstance(props)
	if err != nil {
		return nil, err
	}

	// The guest may boot and post before CreateSurface returns; holding mu keeps
	// routing from matching its first messages until it is tracked.
	c.mu.Lock()

	surface, err := c.host.CreateSurface(ctx, container, c.url, c.options.SurfaceAttributes)
	if err != nil {
		c.mu.Unlock()

		return nil, &sterrors.LaunchError{URL: c.url, Kind: KindSurface.String(), Err: err}
	}

	inst.target = surface.Window()
	inst.surface = surface
	inst.kind = KindSurface
	c.instances = append(c.instances, inst)

	c.mu.Unlock()

	c.log.Info("Launching surface", "instance_id", inst.id, "container", containerID)

	if err := c.waitLoaded(ctx, inst, surface.Loaded()); err != nil {
		if !errors.Is(err, sterrors.ErrInstanceDestroyed) {
			_ = inst.Destroy()
		}

		return nil, err
	}

	c.log.Debug("Surface loaded", "instance_id", inst.id)

	return inst, nil
}

// LaunchTab opens the guest in a separate window and returns immediately.
// Load completion is not awaited: the guest announces itself with ClientLoaded.
func (c *Controller) LaunchTab(ctx context.Context, props map[string]any) (*Instance, error) {
	if c.isStopped() {
		return nil, c.stoppedErr()
	}

	inst, err := c.newInstance(props)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()

	win, err := c.host.OpenWindow(ctx, c.url)
	if err != nil {
		c.mu.Unlock()

		return nil, &sterrors.LaunchError{URL: c.url, Kind: KindSeparateWindow.String(), Err: err}
	}

	inst.target = win
	inst.kind = KindSeparateWindow
	c.instances = append(c.instances, inst)

	c.mu.Unlock()

	c.log.Info("Launched window", "instance_id", inst.id)

	return inst, nil
}

func (c *Controller) resolveContainer(id string) (config.Container, error) {
	if id == "" {
		return c.host.HiddenContainer(), nil
	}

	container, err := c.host.ResolveContainer(id)
	if err == nil {
		return container, nil
	}

	var notFound *sterrors.ContainerNotFoundError
	if errors.Is(err, sterrors.ErrContainerNotFound) && !errors.As(err, &notFound) {
		return nil, &sterrors.ContainerNotFoundError{ID: id}
	}

	return nil, err
}

// waitLoaded blocks until loaded closes, the instance is destroyed, the controller
// stops, or ctx ends.
func (c *Controller) waitLoaded(ctx context.Context, inst *Instance, loaded <-chan struct{}) error {
	select {
	case <-loaded:
		return nil
	case <-inst.gone:
		return sterrors.ErrInstanceDestroyed
	case <-c.done:
		return c.stoppedErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// beginMigration marks the instance as migrating. ok is false when it is already of
// kind want, in which case there is nothing to do.
func (i *Instance) beginMigration(want Kind) (ok bool, err error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	switch {
	case i.destroyed:
		return false, sterrors.ErrInstanceDestroyed
	case i.migrating:
		return false, sterrors.ErrMigrationInProgress
	case i.kind == want:
		return false, nil
	}

	i.migrating = true

	return true, nil
}

func (i *Instance) endMigration() {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.migrating = false
}

// ToTab moves the guest into a separate window and waits until the new window's
// client announces ClientLoaded.
//
// The window is opened before the surface is removed, so a blocked popup leaves the
// instance embedded and working. Listeners and props carry over unchanged.
func (i *Instance) ToTab(ctx context.Context) error {
	ok, err := i.beginMigration(KindSeparateWindow)
	if !ok {
		return err
	}
	defer i.endMigration()

	c := i.ctrl

	loaded := make(chan struct{})

	c.mu.Lock()

	win, err := c.host.OpenWindow(ctx, c.url)
	if err != nil {
		c.mu.Unlock()

		return &sterrors.LaunchError{URL: c.url, Kind: KindSeparateWindow.String(), Err: err}
	}

	i.mu.Lock()
	oldSurface := i.surface
	i.target = win
	i.surface = nil
	i.kind = KindSeparateWindow
	i.loadWait = loaded
	i.mu.Unlock()

	c.mu.Unlock()

	if oldSurface != nil {
		if err := oldSurface.Remove(); err != nil {
			c.log.Warn("Failed to remove surface", "instance_id", i.id, "error", err)
		}
	}

	c.log.Info("Migrating to window", "instance_id", i.id)

	return c.waitLoaded(ctx, i, loaded)
}

// ToFrame moves the guest into a fresh surface inside containerID ("" for the hidden
// container) and waits until it has loaded.
//
// An unknown container fails with *errors.ContainerNotFoundError and leaves the
// instance unchanged.
func (i *Instance) ToFrame(ctx context.Context, containerID string) error {
	ok, err := i.beginMigration(KindSurface)
	if !ok {
		return err
	}
	defer i.endMigration()

	c := i.ctrl

	container, err := c.resolveContainer(containerID)
	if err != nil {
		return err
	}

	c.mu.Lock()

	surface, err := c.host.CreateSurface(ctx, container, c.url, c.options.SurfaceAttributes)
	if err != nil {
		c.mu.Unlock()

		return &sterrors.LaunchError{URL: c.url, Kind: KindSurface.String(), Err: err}
	}

	i.mu.Lock()
	oldWindow := i.target
	i.target = surface.Window()
	i.surface = surface
	i.kind = KindSurface
	i.loadWait = nil
	i.mu.Unlock()

	c.mu.Unlock()

	if oldWindow != nil {
		if err := oldWindow.Close(); err != nil {
			c.log.Warn("Failed to close window", "instance_id", i.id, "error", err)
		}
	}

	c.log.Info("Migrating to surface", "instance_id", i.id, "container", containerID)

	return c.waitLoaded(ctx, i, surface.Loaded())
}

// Destroy releases the guest context and stops tracking the instance. Messages from
// the former target are no longer delivered, and later operations on the instance
// return ErrInstanceDestroyed. It's safe to call Destroy multiple times.
func (i *Instance) Destroy() error {
	i.mu.Lock()

	if i.destroyed {
		i.mu.Unlock()

		return nil
	}

	i.destroyed = true
	close(i.gone)

	surface, target := i.surface, i.target

	i.mu.Unlock()

	i.ctrl.untrack(i)
	i.ctrl.log.Info("Destroyed instance", "instance_id", i.id)

	if surface != nil {
		return surface.Remove()
	}

	if target != nil {
		return target.Close()
	}

	return nil
}
