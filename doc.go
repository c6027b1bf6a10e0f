// Package siteos lets a host application embed or open guest applications from other
// origins and talk to them through named events, correlated requests and a shared
// props object.
//
// The host side is a Controller bound to one guest URL. Each Launch creates an
// Instance, either an embedded surface or a separate window, that can later migrate
// between the two while keeping its listeners and props. The guest side is a Client
// that finds its counterpart (opener first, then parent) and announces itself.
//
// Every inbound message is checked against an origin allowlist seeded from the guest
// URL before anything else happens. Messages from other origins are dropped silently.
//
// # Controller
//
//	ctrl, err := siteos.NewController(host, "https://guest.example/app",
//	    siteos.WithLogger(slog.Default()),
//	)
//	if err != nil {
//	    return err
//	}
//
//	if err := ctrl.Start(ctx); err != nil {
//	    return err
//	}
//	defer ctrl.Stop()
//
//	ctrl.On("saved", func(ctx context.Context, ev *siteos.Event) {
//	    fmt.Println("guest saved", ev.Args)
//	})
//
//	inst, err := ctrl.Launch(ctx, "sidebar", map[string]any{"theme": "dark"})
//	if err != nil {
//	    return err
//	}
//
//	answer, err := inst.Request(ctx, "status")
//
// Or let WithController manage the lifecycle:
//
//	err := siteos.WithController(ctx, host, url, func(ctrl *siteos.Controller) error {
//	    _, err := ctrl.Launch(ctx, "", nil)
//	    return err
//	})
//
// # Client
//
//	client, err := siteos.NewClient(guest, siteos.WithLocationTracking())
//	if err != nil {
//	    return err
//	}
//
//	client.On("status", func(ctx context.Context, ev *siteos.ClientEvent) {
//	    _ = ev.Reply(ctx, "ok")
//	})
//
//	if err := client.Start(ctx); err != nil {
//	    return err
//	}
//
//	props, err := client.WaitProps(ctx)
//
// # Props
//
// Both sides hold a Props object. A local Set or Delete broadcasts the full snapshot
// to the other side, which replaces its copy and calls the OnPropsUpdated hook. A
// PropsSchema, when configured, validates every local mutation.
//
// # Hosts
//
// A Controller runs on a Host and a Client on a Guest. The websocket bridge in
// internal/wsbridge provides both over the network; cmd/siteos-relay wraps it.
//
// # Multiple applications
//
// Registry runs one Controller per named guest URL on a shared Host:
//
//	reg, err := siteos.NewRegistry(host, map[string]string{
//	    "editor": "https://editor.example/",
//	    "viewer": "https://viewer.example/",
//	})
//
// # Error handling
//
// Typed errors and sentinels are re-exported from this package. Match them with
// errors.Is and errors.As:
//
//	var notFound *siteos.ContainerNotFoundError
//	if errors.As(err, &notFound) {
//	    fmt.Println("no container", notFound.ID)
//	}
package siteos
