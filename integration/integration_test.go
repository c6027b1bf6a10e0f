//go:build integration

package integration

import (
	"context"
	"log/slog"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/siteos-go"
	"github.com/wagiedev/siteos-go/internal/wsbridge"
)

const (
	hostURL  = "https://host.example/"
	guestURL = "https://guest.example/app"

	testWait = 5 * time.Second
	testTick = 10 * time.Millisecond
)

// guestSetup registers listeners on a guest's Client before it starts.
type guestSetup func(req wsbridge.LaunchRequest, g *wsbridge.Guest, c *siteos.Client)

// relay is a websocket host listening on a real TCP port whose launcher dials back
// from a goroutine, standing in for a guest process.
type relay struct {
	host    *wsbridge.Host
	guests  chan *siteos.Client
	reqs    chan wsbridge.LaunchRequest
	dialURL func(req wsbridge.LaunchRequest) string
}

func testLogger() *slog.Logger {
	if os.Getenv("SITEOS_TEST_DEBUG") != "" {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	return siteos.NopLogger()
}

func newRelay(t *testing.T, setup guestSetup) *relay {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())

	r := &relay{
		guests: make(chan *siteos.Client, 8),
		reqs:   make(chan wsbridge.LaunchRequest, 8),
	}

	launch := func(_ context.Context, req wsbridge.LaunchRequest) error {
		r.reqs <- req

		if r.dialURL != nil {
			req.URL = r.dialURL(req)
		}

		go r.runGuest(t, ctx, req, setup)

		return nil
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	host, err := wsbridge.NewHost(hostURL, launch,
		wsbridge.WithLogger(testLogger()),
		wsbridge.WithContainers("main", "side"),
	)
	require.NoError(t, err)

	r.host = host

	served := make(chan error, 1)

	go func() {
		served <- host.Serve(ctx, ln)
	}()

	t.Cleanup(func() {
		cancel()

		select {
		case err := <-served:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("host did not shut down")
		}
	})

	// Serve sets the endpoint from the listener; wait for it so launches can start.
	require.Eventually(t, func() bool { return host.Endpoint() != "" }, 2*time.Second, 5*time.Millisecond)

	return r
}

func (r *relay) runGuest(t *testing.T, ctx context.Context, req wsbridge.LaunchRequest, setup guestSetup) {
	g, err := wsbridge.Dial(ctx, req, wsbridge.WithGuestLogger(testLogger()))
	if err != nil {
		if ctx.Err() == nil {
			t.Errorf("dial: %v", err)
		}

		return
	}

	defer func() { _ = g.Close() }()

	c, err := siteos.NewClient(g, siteos.WithLogger(testLogger()), siteos.WithLocationTracking())
	if err != nil {
		t.Errorf("new client: %v", err)

		return
	}

	if setup != nil {
		setup(req, g, c)
	}

	if err := c.Start(ctx); err != nil {
		t.Errorf("start client: %v", err)

		return
	}

	defer c.Stop()

	r.guests <- c

	select {
	case <-ctx.Done():
	case <-g.Done():
	}
}

func (r *relay) controller(t *testing.T, url string, opts ...siteos.Option) *siteos.Controller {
	t.Helper()

	opts = append([]siteos.Option{siteos.WithLogger(testLogger())}, opts...)

	ctrl, err := siteos.NewController(r.host, url, opts...)
	require.NoError(t, err)
	require.NoError(t, ctrl.Start(context.Background()))
	t.Cleanup(ctrl.Stop)

	return ctrl
}

func (r *relay) nextGuest(t *testing.T) *siteos.Client {
	t.Helper()

	select {
	case c := <-r.guests:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for guest")

		return nil
	}
}

func testContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	t.Cleanup(cancel)

	return ctx
}

// echo answers requests with their own arguments.
func echo(ctx context.Context, ev *siteos.ClientEvent) {
	_ = ev.Reply(ctx, ev.RequestArgs()...)
}
