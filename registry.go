package siteos

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"golang.org/x/sync/errgroup"
)

// Registry runs one Controller per named guest application on a shared Host.
//
// Each Controller's allowlist is seeded from its own URL, so an app only ever hears
// from guests on its origin plus whatever WithAllowedOrigins adds for all of them.
type Registry struct {
	log  *slog.Logger
	apps map[string]*Controller
}

// NewRegistry creates a Controller for every name → URL pair in apps.
// opts apply to every Controller.
func NewRegistry(host Host, apps map[string]string, opts ...Option) (*Registry, error) {
	options := applyOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	r := &Registry{
		log:  log.With("component", "registry"),
		apps: make(map[string]*Controller, len(apps)),
	}

	for _, name := range slices.Sorted(maps.Keys(apps)) {
		ctrl, err := NewController(host, apps[name], opts...)
		if err != nil {
			return nil, fmt.Errorf("app %q: %w", name, err)
		}

		r.apps[name] = ctrl
	}

	return r, nil
}

// Start starts every Controller. If any fails, the ones already started are stopped
// and the first error is returned.
func (r *Registry) Start(ctx context.Context) error {
	var eg errgroup.Group

	for name, ctrl := range r.apps {
		eg.Go(func() error {
			if err := ctrl.Start(ctx); err != nil {
				return fmt.Errorf("start app %q: %w", name, err)
			}

			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		r.Stop()

		return err
	}

	r.log.Info("Registry started", "apps", r.Names())

	return nil
}

// Stop stops every Controller concurrently and waits for all of them.
func (r *Registry) Stop() {
	var eg errgroup.Group

	for _, ctrl := range r.apps {
		eg.Go(func() error {
			ctrl.Stop()

			return nil
		})
	}

	_ = eg.Wait()

	r.log.Info("Registry stopped")
}

// App returns the Controller registered under name.
func (r *Registry) App(name string) (*Controller, error) {
	ctrl, ok := r.apps[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownApp, name)
	}

	return ctrl, nil
}

// Names returns the registered app names in sorted order.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.apps))
}

// Launch embeds a new instance of app in containerID.
func (r *Registry) Launch(ctx context.Context, app, containerID string, props map[string]any) (*Instance, error) {
	ctrl, err := r.App(app)
	if err != nil {
		return nil, err
	}

	return ctrl.Launch(ctx, containerID, props)
}

// Instances returns the live instances of every app, keyed by app name.
func (r *Registry) Instances() map[string][]*Instance {
	out := make(map[string][]*Instance, len(r.apps))

	for name, ctrl := range r.apps {
		out[name] = ctrl.Instances()
	}

	return out
}
