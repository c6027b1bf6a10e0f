package siteos_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/siteos-go"
	"github.com/wagiedev/siteos-go/internal/memhost"
)

const hostURL = "https://host.example/"

// serveGuest makes every page loaded on url's origin run a Client that answers
// "whoami" with name and "echo" with its own arguments.
func serveGuest(t *testing.T, browser *memhost.Browser, url, name string) {
	t.Helper()

	browser.Handle(url, func(page *memhost.Page) {
		c, err := siteos.NewClient(page)
		if err != nil {
			t.Errorf("new client: %v", err)

			return
		}

		c.On("whoami", func(ctx context.Context, ev *siteos.ClientEvent) {
			_ = ev.Reply(ctx, name)
		})

		c.On("echo", func(ctx context.Context, ev *siteos.ClientEvent) {
			_ = ev.Reply(ctx, ev.RequestArgs()...)
		})

		if err := c.Start(context.Background()); err != nil {
			t.Errorf("start client: %v", err)

			return
		}

		t.Cleanup(c.Stop)
	})
}

func newHost(t *testing.T) (*memhost.Browser, *memhost.Page) {
	t.Helper()

	browser := memhost.NewBrowser()
	host := browser.Open(hostURL)
	host.AddContainer("main")

	return browser, host
}

// TestWithController_CancelledContext tests the helper refuses a dead context.
func TestWithController_CancelledContext(t *testing.T) {
	_, host := newHost(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := siteos.WithController(ctx, host, "https://guest.example/", func(*siteos.Controller) error {
		called = true

		return nil
	})

	require.ErrorIs(t, err, context.Canceled)
	require.False(t, called)
}

func TestWithController_InvalidURL(t *testing.T) {
	_, host := newHost(t)

	err := siteos.WithController(context.Background(), host, "not a url", func(*siteos.Controller) error {
		return nil
	})

	require.ErrorIs(t, err, siteos.ErrInvalidURL)
}

func TestWithController_CallbackErrorAndStop(t *testing.T) {
	_, host := newHost(t)

	boom := errors.New("boom")

	var ctrl *siteos.Controller

	err := siteos.WithController(context.Background(), host, "https://guest.example/", func(c *siteos.Controller) error {
		ctrl = c

		return boom
	})

	require.ErrorIs(t, err, boom)

	select {
	case <-ctrl.Done():
	default:
		t.Fatal("controller still running after WithController returned")
	}
}

func TestWithController_LaunchAndRequest(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	browser, host := newHost(t)
	serveGuest(t, browser, "https://guest.example/", "guest")

	err := siteos.WithController(ctx, host, "https://guest.example/app", func(c *siteos.Controller) error {
		inst, err := c.Launch(ctx, "main", map[string]any{"user": "ada"})
		if err != nil {
			return err
		}

		defer func() { _ = inst.Destroy() }()

		answer, err := inst.Request(ctx, "echo", "hi", 2)
		if err != nil {
			return err
		}

		require.Equal(t, []any{"hi", float64(2)}, answer)

		return nil
	}, siteos.WithLogger(siteos.NopLogger()))

	require.NoError(t, err)
}

func TestWithController_SurfaceAttributesNormalized(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	browser, host := newHost(t)
	serveGuest(t, browser, "https://guest.example/", "guest")

	err := siteos.WithController(ctx, host, "https://guest.example/", func(c *siteos.Controller) error {
		_, err := c.Launch(ctx, "main", nil)

		return err
	}, siteos.WithSurfaceAttributes(siteos.SurfaceAttributes{Sandbox: []string{"Scripts", "allow-forms", "scripts"}}))
	require.NoError(t, err)

	surfaces := host.Surfaces()
	require.Len(t, surfaces, 1)
	require.Equal(t, []string{"allow-forms", "allow-scripts"}, surfaces[0].SurfaceAttributes().Sandbox)
}

func TestWithClient_NoCounterpart(t *testing.T) {
	browser, _ := newHost(t)
	top := browser.Open("https://guest.example/")

	err := siteos.WithClient(context.Background(), top, func(*siteos.Client) error {
		return nil
	})

	require.ErrorIs(t, err, siteos.ErrNoCounterpart)
}

func TestWithClient_StopsClient(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	browser, host := newHost(t)

	clients := make(chan *siteos.Client, 1)

	browser.Handle("https://guest.example/", func(page *memhost.Page) {
		go func() {
			_ = siteos.WithClient(ctx, page, func(c *siteos.Client) error {
				clients <- c

				return nil
			})
		}()
	})

	ctrl, err := siteos.NewController(host, "https://guest.example/")
	require.NoError(t, err)
	require.NoError(t, ctrl.Start(ctx))
	t.Cleanup(ctrl.Stop)

	_, err = ctrl.Launch(ctx, "main", nil)
	require.NoError(t, err)

	select {
	case c := <-clients:
		select {
		case <-c.Done():
		case <-time.After(2 * time.Second):
			t.Fatal("client not stopped")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client never started")
	}
}
