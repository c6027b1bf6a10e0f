//go:build integration

package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/siteos-go"
	"github.com/wagiedev/siteos-go/internal/wsbridge"
)

func TestBridge_LaunchRequestOverTCP(t *testing.T) {
	ctx := testContext(t)

	r := newRelay(t, func(_ wsbridge.LaunchRequest, _ *wsbridge.Guest, c *siteos.Client) {
		c.On("echo", echo)
	})

	ctrl := r.controller(t, guestURL)

	inst, err := ctrl.Launch(ctx, "main", map[string]any{"user": "ada"})
	require.NoError(t, err)
	require.Equal(t, siteos.KindSurface, inst.Kind())

	req := <-r.reqs
	require.Equal(t, wsbridge.KindSurface, req.Kind)
	require.Equal(t, "main", req.ContainerID)
	require.Equal(t, hostURL, req.Referrer)
	require.Equal(t, "https://guest.example", inst.Origin())

	answer, err := inst.Request(ctx, "echo", "a", 1, true)
	require.NoError(t, err)
	require.Equal(t, []any{"a", float64(1), true}, answer)
}

func TestBridge_GuestRequestAnsweredByController(t *testing.T) {
	ctx := testContext(t)

	r := newRelay(t, nil)
	ctrl := r.controller(t, guestURL)

	ctrl.On("whoami", func(ctx context.Context, ev *siteos.Event) {
		_ = ev.Reply(ctx, ev.Instance.ID())
	})

	inst, err := ctrl.Launch(ctx, "", nil)
	require.NoError(t, err)

	c := r.nextGuest(t)

	answer, err := c.Request(ctx, "whoami")
	require.NoError(t, err)
	require.Equal(t, []any{inst.ID()}, answer)
}

func TestBridge_PropsSyncBothWays(t *testing.T) {
	ctx := testContext(t)

	r := newRelay(t, nil)

	var (
		mu      sync.Mutex
		updates []map[string]any
	)

	ctrl := r.controller(t, guestURL, siteos.WithOnPropsUpdated(func(snapshot map[string]any) {
		mu.Lock()
		defer mu.Unlock()

		updates = append(updates, snapshot)
	}))

	inst, err := ctrl.Launch(ctx, "main", map[string]any{"count": 1})
	require.NoError(t, err)

	c := r.nextGuest(t)

	props, err := c.WaitProps(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"count": float64(1)}, props.Snapshot())

	require.NoError(t, inst.Props().Set("count", 5))

	require.Eventually(t, func() bool {
		v, _ := props.Get("count")

		return v == float64(5)
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, props.Set("draft", "hello"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(updates) == 1
	}, 5*time.Second, 10*time.Millisecond)

	v, ok := inst.Props().Get("draft")
	require.True(t, ok)
	require.Equal(t, "hello", v)
}

// TestBridge_MigrationRoundTrip moves an instance to a window and back; each move
// starts a fresh guest connection that sees the same props.
func TestBridge_MigrationRoundTrip(t *testing.T) {
	ctx := testContext(t)

	r := newRelay(t, func(req wsbridge.LaunchRequest, _ *wsbridge.Guest, c *siteos.Client) {
		c.On("kind", func(ctx context.Context, ev *siteos.ClientEvent) {
			_ = ev.Reply(ctx, req.Kind, req.ContainerID)
		})
	})

	ctrl := r.controller(t, guestURL)

	inst, err := ctrl.Launch(ctx, "main", map[string]any{"doc": "a.md"})
	require.NoError(t, err)

	first := r.nextGuest(t)

	require.NoError(t, inst.ToTab(ctx))
	require.Equal(t, siteos.KindSeparateWindow, inst.Kind())

	second := r.nextGuest(t)
	require.NotSame(t, first, second)

	answer, err := inst.Request(ctx, "kind")
	require.NoError(t, err)
	require.Equal(t, []any{wsbridge.KindWindow, ""}, answer)

	props, err := second.WaitProps(ctx)
	require.NoError(t, err)

	doc, _ := props.Get("doc")
	require.Equal(t, "a.md", doc)

	require.NoError(t, inst.ToFrame(ctx, "side"))
	require.Equal(t, siteos.KindSurface, inst.Kind())

	r.nextGuest(t)

	answer, err = inst.Request(ctx, "kind")
	require.NoError(t, err)
	require.Equal(t, []any{wsbridge.KindSurface, "side"}, answer)
}

func TestBridge_LocationTracking(t *testing.T) {
	ctx := testContext(t)

	guests := make(chan *wsbridge.Guest, 1)

	r := newRelay(t, func(_ wsbridge.LaunchRequest, g *wsbridge.Guest, _ *siteos.Client) {
		guests <- g
	})

	ctrl := r.controller(t, guestURL)

	locations := make(chan string, 8)

	ctrl.On(siteos.EventClientLocationChanged, func(_ context.Context, ev *siteos.Event) {
		if len(ev.Args) > 0 {
			if url, ok := ev.Args[0].(string); ok {
				locations <- url
			}
		}
	})

	_, err := ctrl.Launch(ctx, "main", nil)
	require.NoError(t, err)

	g := <-guests

	waitLocation := func(want string) {
		t.Helper()

		for {
			select {
			case got := <-locations:
				if got == want {
					return
				}
			case <-ctx.Done():
				t.Fatalf("never saw location %s", want)
			}
		}
	}

	waitLocation(guestURL)

	g.Navigate("https://guest.example/app#settings")
	waitLocation("https://guest.example/app#settings")
}

// TestBridge_ForeignOriginIgnored launches a guest that dials back from an origin
// outside the allowlist. The connection is made but nothing it sends is routed.
func TestBridge_ForeignOriginIgnored(t *testing.T) {
	ctx := testContext(t)

	r := newRelay(t, func(_ wsbridge.LaunchRequest, _ *wsbridge.Guest, c *siteos.Client) {
		c.On("echo", echo)
	})

	r.dialURL = func(wsbridge.LaunchRequest) string { return "https://evil.example/" }

	ctrl := r.controller(t, guestURL)

	loaded := make(chan struct{}, 1)

	ctrl.On(siteos.EventClientLoaded, func(context.Context, *siteos.Event) {
		loaded <- struct{}{}
	})

	inst, err := ctrl.Launch(ctx, "main", nil)
	require.NoError(t, err)

	r.nextGuest(t)

	shortCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()

	_, err = inst.Request(shortCtx, "echo", 1)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-loaded:
		t.Fatal("ClientLoaded from a foreign origin reached a listener")
	default:
	}
}

func TestBridge_DestroyDisconnectsGuest(t *testing.T) {
	ctx := testContext(t)

	guests := make(chan *wsbridge.Guest, 1)

	r := newRelay(t, func(_ wsbridge.LaunchRequest, g *wsbridge.Guest, _ *siteos.Client) {
		guests <- g
	})

	ctrl := r.controller(t, guestURL)

	inst, err := ctrl.Launch(ctx, "main", nil)
	require.NoError(t, err)

	g := <-guests

	require.NoError(t, inst.Destroy())
	require.True(t, inst.Destroyed())
	require.Empty(t, ctrl.Instances())

	select {
	case <-g.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("guest connection still open after Destroy")
	}

	err = inst.Emit(ctx, "hello")
	require.ErrorIs(t, err, siteos.ErrInstanceDestroyed)
}

func TestBridge_RegistryRoutesByOrigin(t *testing.T) {
	ctx := testContext(t)

	r := newRelay(t, func(req wsbridge.LaunchRequest, _ *wsbridge.Guest, c *siteos.Client) {
		url := req.URL

		c.On("whoami", func(ctx context.Context, ev *siteos.ClientEvent) {
			_ = ev.Reply(ctx, url)
		})
	})

	reg, err := siteos.NewRegistry(r.host, map[string]string{
		"a": "https://a.example/",
		"b": "https://b.example/",
	}, siteos.WithLogger(testLogger()))
	require.NoError(t, err)
	require.NoError(t, reg.Start(ctx))
	t.Cleanup(reg.Stop)

	for _, name := range []string{"a", "b"} {
		inst, err := reg.Launch(ctx, name, "main", nil)
		require.NoError(t, err)

		answer, err := inst.Request(ctx, "whoami")
		require.NoError(t, err)
		require.Equal(t, []any{"https://" + name + ".example/"}, answer)
	}
}
