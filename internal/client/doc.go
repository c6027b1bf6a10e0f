// Package client implements the guest side of the siteos protocol.
//
// A Client runs inside a guest context and talks to exactly one counterpart: the
// window that opened it, or else the page that embeds it. On load it announces itself
// with ClientLoaded, fetches the shared props once, and from then on keeps them in sync
// with the Controller's Instance.
//
//	c, err := client.New(env, &config.Options{TrackLocation: true})
//	if err != nil {
//		return err
//	}
//
//	c.On("ping", func(ctx context.Context, ev *client.Event) {
//		_ = ev.Reply(ctx, "pong")
//	})
//
//	if err := c.Start(ctx); err != nil {
//		return err
//	}
//	defer c.Stop()
//
// The Client manages its own goroutines for reading messages and tracking location.
package client
