package wsbridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/wagiedev/siteos-go/internal/config"
	"github.com/wagiedev/siteos-go/internal/protocol"
)

// Compile-time verification that Guest implements config.Guest.
var _ config.Guest = (*Guest)(nil)

// Guest is a config.Guest connected to a Host over a websocket.
type Guest struct {
	log        *slog.Logger
	ws         *websocket.Conn
	peer       *peer
	kind       string
	referrer   string
	hostOrigin string
	loaded     chan struct{}
	store      *sessionStore
	inbound    *fanout

	mu       sync.Mutex
	location string
	navSubs  map[chan string]struct{}

	writeMu   sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

// GuestOption configures a Guest.
type GuestOption func(*Guest)

// WithGuestLogger sets the logger used by the guest.
func WithGuestLogger(log *slog.Logger) GuestOption {
	return func(g *Guest) {
		g.log = log.With("component", "wsbridge_guest")
	}
}

// Dial connects to the host named by req. The handshake carries the origin of
// req.URL; the guest counts as loaded once the connection is up.
func Dial(ctx context.Context, req LaunchRequest, opts ...GuestOption) (*Guest, error) {
	origin, err := protocol.OriginOf(req.URL)
	if err != nil {
		return nil, err
	}

	hostOrigin := ""
	if req.Referrer != "" {
		if hostOrigin, err = protocol.OriginOf(req.Referrer); err != nil {
			return nil, err
		}
	}

	g := &Guest{
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		kind:       req.Kind,
		referrer:   req.Referrer,
		hostOrigin: hostOrigin,
		location:   req.URL,
		loaded:     make(chan struct{}),
		store:      newSessionStore(),
		inbound:    newFanout(true),
		navSubs:    make(map[chan string]struct{}, 1),
		done:       make(chan struct{}),
	}
	g.peer = &peer{guest: g}

	for _, opt := range opts {
		opt(g)
	}

	header := http.Header{}
	header.Set("Origin", origin)

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, req.Endpoint, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	if err != nil {
		return nil, fmt.Errorf("dial host: %w", err)
	}

	g.ws = ws

	go g.readLoop()

	close(g.loaded)

	g.log.Info("Connected to host", "kind", g.kind, "origin", origin)

	return g, nil
}

func (g *Guest) readLoop() {
	defer close(g.done)

	for {
		_, data, err := g.ws.ReadMessage()
		if err != nil {
			g.closed.Store(true)

			var reported error
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!errors.Is(err, net.ErrClosed) {
				reported = fmt.Errorf("read from host: %w", err)
			}

			g.log.Debug("Host connection ended", "error", err)
			g.inbound.shutdown(reported)

			return
		}

		g.inbound.publish(config.MessageEvent{Data: data, Origin: g.hostOrigin, Source: g.peer})
	}
}

// Done is closed once the connection to the host has ended.
func (g *Guest) Done() <-chan struct{} {
	return g.done
}

// Close disconnects from the host.
func (g *Guest) Close() error {
	var err error

	g.closeOnce.Do(func() {
		g.closed.Store(true)
		err = closeWebsocket(&g.writeMu, g.ws)
	})

	return err
}

// ReadMessages implements config.MessageSource.
func (g *Guest) ReadMessages(ctx context.Context) (<-chan config.MessageEvent, <-chan error) {
	return g.inbound.subscribe(ctx)
}

// Opener implements config.Guest.
func (g *Guest) Opener() config.Window {
	if g.kind != KindWindow {
		return nil
	}

	return g.peer
}

// Parent implements config.Guest.
func (g *Guest) Parent() config.Window {
	if g.kind == KindWindow {
		return nil
	}

	return g.peer
}

// Referrer implements config.Guest.
func (g *Guest) Referrer() string {
	return g.referrer
}

// Location implements config.Guest.
func (g *Guest) Location() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.location
}

// Loaded implements config.Guest.
func (g *Guest) Loaded() <-chan struct{} {
	return g.loaded
}

// SessionStore implements config.Guest.
func (g *Guest) SessionStore() config.SessionStore {
	return g.store
}

// Navigate records a session-history change to url.
func (g *Guest) Navigate(url string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.location = url

	for ch := range g.navSubs {
		select {
		case ch <- url:
		default:
			g.log.Warn("Dropping navigation for slow subscriber", "url", url)
		}
	}
}

// Navigations implements config.Guest.
func (g *Guest) Navigations(ctx context.Context) <-chan string {
	ch := make(chan string, 16)

	g.mu.Lock()
	g.navSubs[ch] = struct{}{}
	g.mu.Unlock()

	go func() {
		<-ctx.Done()

		g.mu.Lock()
		defer g.mu.Unlock()

		delete(g.navSubs, ch)
		close(ch)
	}()

	return ch
}

// peer is the guest's handle to the host page.
type peer struct {
	guest *Guest
}

// PostMessage implements config.Window.
func (p *peer) PostMessage(ctx context.Context, data []byte, targetOrigin string) error {
	g := p.guest

	if g.closed.Load() {
		return nil
	}

	if targetOrigin != protocol.AnyOrigin && g.hostOrigin != "" && targetOrigin != g.hostOrigin {
		g.log.Debug("Dropping message with mismatched target origin", "target_origin", targetOrigin)

		return nil
	}

	return writeText(ctx, &g.writeMu, g.ws, data)
}

// Close implements config.Window.
func (p *peer) Close() error {
	return p.guest.Close()
}

// Closed implements config.Window.
func (p *peer) Closed() bool {
	return p.guest.closed.Load()
}

type sessionStore struct {
	mu sync.Mutex
	m  map[string]string
}

func newSessionStore() *sessionStore {
	return &sessionStore{m: make(map[string]string, 2)}
}

func (s *sessionStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.m[key]

	return v, ok
}

func (s *sessionStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.m[key] = value
}
