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
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/siteos-go/internal/config"
	sterrors "github.com/wagiedev/siteos-go/internal/errors"
	"github.com/wagiedev/siteos-go/internal/protocol"
)

// shutdownTimeout bounds the graceful HTTP shutdown in Serve.
const shutdownTimeout = 5 * time.Second

// Compile-time verification that Host implements config.Host.
var _ config.Host = (*Host)(nil)

// Host is a config.Host whose guests connect over websockets.
type Host struct {
	log      *slog.Logger
	url      string
	origin   string
	launch   Launcher
	upgrader websocket.Upgrader
	inbound  *fanout

	mu         sync.Mutex
	endpoint   string
	conns      map[string]*conn
	containers map[string]container
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithLogger sets the logger used by the host.
func WithLogger(log *slog.Logger) HostOption {
	return func(h *Host) {
		h.log = log.With("component", "wsbridge")
	}
}

// WithEndpoint sets the websocket URL guests dial back to. Serve fills it in from the
// listener when unset.
func WithEndpoint(endpoint string) HostOption {
	return func(h *Host) {
		h.endpoint = endpoint
	}
}

// WithContainers registers container ids surfaces can be launched into.
func WithContainers(ids ...string) HostOption {
	return func(h *Host) {
		for _, id := range ids {
			h.containers[id] = container{id: id}
		}
	}
}

// NewHost creates a Host for the page at hostURL. launch starts guests.
func NewHost(hostURL string, launch Launcher, opts ...HostOption) (*Host, error) {
	origin, err := protocol.OriginOf(hostURL)
	if err != nil {
		return nil, err
	}

	h := &Host{
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		url:        hostURL,
		origin:     origin,
		launch:     launch,
		inbound:    newFanout(false),
		conns:      make(map[string]*conn, 4),
		containers: make(map[string]container, 2),
	}

	// The Controller's allowlist decides which origins are trusted; the handshake
	// only has to carry a parseable one.
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			_, err := protocol.OriginOf(r.Header.Get("Origin"))

			return err == nil
		},
	}

	for _, opt := range opts {
		opt(h)
	}

	return h, nil
}

// Endpoint returns the websocket URL guests dial back to.
func (h *Host) Endpoint() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.endpoint
}

// SetEndpoint changes the websocket URL handed to later launches.
func (h *Host) SetEndpoint(endpoint string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.endpoint = endpoint
}

// Origin implements config.Host.
func (h *Host) Origin() string {
	return h.origin
}

// AddContainer registers a container id.
func (h *Host) AddContainer(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.containers[id] = container{id: id}
}

// ResolveContainer implements config.Host.
func (h *Host) ResolveContainer(id string) (config.Container, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.containers[id]
	if !ok {
		return nil, &sterrors.ContainerNotFoundError{ID: id}
	}

	return c, nil
}

// HiddenContainer implements config.Host.
func (h *Host) HiddenContainer() config.Container {
	return container{}
}

// CreateSurface implements config.Host. The surface counts as loaded once the guest
// has dialed back.
func (h *Host) CreateSurface(
	ctx context.Context,
	c config.Container,
	url string,
	attrs config.SurfaceAttributes,
) (config.Surface, error) {
	gc, err := h.start(ctx, LaunchRequest{
		URL:         url,
		Kind:        KindSurface,
		ContainerID: c.ID(),
		Attributes:  attrs,
	})
	if err != nil {
		return nil, err
	}

	return &surface{conn: gc}, nil
}

// OpenWindow implements config.Host.
func (h *Host) OpenWindow(ctx context.Context, url string) (config.Window, error) {
	gc, err := h.start(ctx, LaunchRequest{URL: url, Kind: KindWindow})
	if err != nil {
		return nil, err
	}

	return gc, nil
}

func (h *Host) start(ctx context.Context, req LaunchRequest) (*conn, error) {
	if h.launch == nil {
		return nil, errors.New("no launcher configured")
	}

	endpoint := h.Endpoint()
	if endpoint == "" {
		return nil, errors.New("host endpoint not set")
	}

	gc := &conn{
		host:      h,
		token:     uuid.NewString(),
		kind:      req.Kind,
		connected: make(chan struct{}),
	}

	var err error

	req.Token = gc.token
	req.Referrer = h.url

	req.Endpoint, err = endpointFor(endpoint, gc.token)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.conns[gc.token] = gc
	h.mu.Unlock()

	h.log.Debug("Launching guest", "kind", req.Kind, "url", req.URL, "token", gc.token)

	if err := h.launch(ctx, req); err != nil {
		h.forget(gc.token)

		return nil, fmt.Errorf("launch guest: %w", err)
	}

	return gc, nil
}

func (h *Host) lookup(token string) *conn {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.conns[token]
}

func (h *Host) forget(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.conns, token)
}

// ReadMessages implements config.MessageSource.
func (h *Host) ReadMessages(ctx context.Context) (<-chan config.MessageEvent, <-chan error) {
	return h.inbound.subscribe(ctx)
}

// ServeHTTP accepts a guest dialing back with its launch token.
func (h *Host) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	gc := h.lookup(token)
	if gc == nil {
		http.Error(w, "unknown launch token", http.StatusNotFound)

		return
	}

	origin, err := protocol.OriginOf(r.Header.Get("Origin"))
	if err != nil {
		http.Error(w, "missing or invalid Origin header", http.StatusForbidden)

		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", "token", token, "error", err)

		return
	}

	if !gc.attach(ws, origin) {
		h.log.Debug("Rejecting reused or closed launch token", "token", token)
		_ = ws.Close()

		return
	}

	h.log.Info("Guest connected", "kind", gc.kind, "origin", origin, "token", token)

	h.readLoop(gc, ws, origin)
}

func (h *Host) readLoop(gc *conn, ws *websocket.Conn, origin string) {
	defer func() {
		gc.closed.Store(true)
		h.forget(gc.token)
		_ = ws.Close()
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if !gc.closed.Load() {
				h.log.Debug("Guest disconnected", "token", gc.token, "error", err)
			}

			return
		}

		h.inbound.publish(config.MessageEvent{Data: data, Origin: origin, Source: gc})
	}
}

// Serve accepts guest connections on ln until ctx is cancelled.
func (h *Host) Serve(ctx context.Context, ln net.Listener) error {
	if h.Endpoint() == "" {
		h.SetEndpoint("ws://" + ln.Addr().String() + "/")
	}

	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		h.log.Debug("Shutting down websocket host")

		h.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	h.log.Info("Websocket host listening", "endpoint", h.Endpoint())

	return g.Wait()
}

// Close disconnects every guest and ends every ReadMessages subscription.
func (h *Host) Close() {
	h.mu.Lock()
	conns := make([]*conn, 0, len(h.conns))

	for _, gc := range h.conns {
		conns = append(conns, gc)
	}
	h.mu.Unlock()

	for _, gc := range conns {
		_ = gc.Close()
	}

	h.inbound.shutdown(nil)
}
