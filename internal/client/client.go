package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/siteos-go/internal/config"
	sterrors "github.com/wagiedev/siteos-go/internal/errors"
	"github.com/wagiedev/siteos-go/internal/protocol"
	"github.com/wagiedev/siteos-go/internal/state"
)

const (
	// referrerKey is the session key the controller's URL is remembered under, so it
	// survives in-guest navigations that clear the referrer.
	referrerKey = "referrer"

	// locationKey is the session key of the last location reported to the controller.
	locationKey = "location"
)

// Client is the guest-side peer of a Controller Instance.
type Client struct {
	log         *slog.Logger
	env         config.Guest
	counterpart config.Window
	options     *config.Options
	pending     *protocol.Pending
	listeners   *protocol.Listeners[Listener]

	originMu     sync.RWMutex
	targetOrigin string

	// Props become ready when the boot-time Props request is answered
	propsMu  sync.RWMutex
	propsID  string
	props    *state.Props
	onUpdate state.UpdateFunc
	ready    chan struct{}

	// booted is closed once ClientLoaded and the Props request have been sent
	booted chan struct{}

	// Lifecycle management
	mu        sync.Mutex
	started   bool
	cancel    context.CancelFunc
	eg        *errgroup.Group
	closeOnce sync.Once
	done      chan struct{}

	errMu    sync.RWMutex
	fatalErr error
}

// New creates a Client for env. The counterpart is the opener if there is one, else
// the parent; a context with neither fails with ErrNoCounterpart. options may be nil.
func New(env config.Guest, options *config.Options) (*Client, error) {
	if options == nil {
		options = &config.Options{}
	}

	counterpart := env.Opener()
	if counterpart == nil {
		counterpart = env.Parent()
	}

	if counterpart == nil {
		return nil, sterrors.ErrNoCounterpart
	}

	log := options.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		log:          log.With("component", "client"),
		env:          env,
		counterpart:  counterpart,
		options:      options,
		pending:      protocol.NewPending(),
		listeners:    protocol.NewListeners[Listener](),
		targetOrigin: protocol.AnyOrigin,
		onUpdate:     options.OnPropsUpdated,
		ready:        make(chan struct{}),
		booted:       make(chan struct{}),
		done:         make(chan struct{}),
	}, nil
}

// Start subscribes to inbound messages and boots the protocol: ClientLoaded once the
// guest has loaded, then a single Props request. It returns without waiting for
// either; use WaitProps to wait for the props.
//
// The Client runs until ctx is cancelled or Stop is called.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isStopped() {
		return sterrors.ErrClientStopped
	}

	if c.started {
		return errors.New("client already started")
	}

	c.recordReferrer()

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	// Subscribe before anything is sent so no answer can be missed
	messages, errs := c.env.ReadMessages(loopCtx)

	var navigations <-chan string
	if c.options.TrackLocation {
		navigations = c.env.Navigations(loopCtx)
	}

	var egCtx context.Context

	c.eg, egCtx = errgroup.WithContext(loopCtx)

	c.eg.Go(func() error {
		return c.readLoop(egCtx, messages, errs)
	})

	c.eg.Go(func() error {
		return c.boot(egCtx)
	})

	if navigations != nil {
		c.eg.Go(func() error {
			return c.trackLocation(egCtx, navigations)
		})
	}

	c.started = true
	c.log.Info("Client started", "target_origin", c.CounterpartOrigin())

	return nil
}

// Stop shuts the Client down and fails outstanding waits with ErrClientStopped.
// It's safe to call Stop multiple times.
func (c *Client) Stop() {
	c.closeDone()

	c.mu.Lock()
	cancel, eg := c.cancel, c.eg
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if eg != nil {
		if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			c.log.Debug("Client goroutine exited with error", "error", err)
		}
	}

	c.log.Info("Client stopped")
}

// Done returns a channel that is closed when the client stops.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// FatalError returns the error that stopped the client, if any.
func (c *Client) FatalError() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()

	return c.fatalErr
}

func (c *Client) setFatalError(err error) {
	c.errMu.Lock()

	if c.fatalErr == nil {
		c.fatalErr = err
	}

	c.errMu.Unlock()

	c.closeDone()
}

func (c *Client) closeDone() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *Client) isStopped() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Client) stoppedErr() error {
	if err := c.FatalError(); err != nil {
		return fmt.Errorf("%w: %w", sterrors.ErrClientStopped, err)
	}

	return sterrors.ErrClientStopped
}

// Counterpart returns the handle of the context this Client talks to.
func (c *Client) Counterpart() config.Window {
	return c.counterpart
}

// CounterpartOrigin returns the target origin used for outbound messages: the
// Controller's announced origin, else the stored referrer's, else "*".
func (c *Client) CounterpartOrigin() string {
	c.originMu.RLock()
	defer c.originMu.RUnlock()

	return c.targetOrigin
}

func (c *Client) setCounterpartOrigin(origin string) {
	c.originMu.Lock()
	defer c.originMu.Unlock()

	c.targetOrigin = origin
}

// recordReferrer persists the referrer for later navigations and derives the target
// origin from whatever is stored.
func (c *Client) recordReferrer() {
	store := c.env.SessionStore()

	if referrer := c.env.Referrer(); referrer != "" {
		store.Set(referrerKey, referrer)
	}

	stored, ok := store.Get(referrerKey)
	if !ok {
		return
	}

	origin, err := protocol.OriginOf(stored)
	if err != nil {
		c.log.Debug("Ignoring unparseable referrer", "referrer", stored, "error", err)

		return
	}

	c.setCounterpartOrigin(origin)
}

// On registers a listener for name. Registering a name twice replaces the previous
// listener.
func (c *Client) On(name string, l Listener) {
	c.listeners.On(name, l)
}

// Off removes the listener for name. Removing a missing listener is a no-op.
func (c *Client) Off(name string) {
	c.listeners.Off(name)
}

// Emit sends an event to the Controller.
// Reserved protocol names are rejected with ErrReservedEvent.
func (c *Client) Emit(ctx context.Context, name string, args ...any) error {
	if protocol.IsReserved(name) {
		return fmt.Errorf("%w: %s", sterrors.ErrReservedEvent, name)
	}

	return c.send(ctx, protocol.NewEvent(name, args...))
}

// Request sends a request to the Controller and waits for its resolution.
// The wait ends on resolution, ctx cancellation, or Stop.
func (c *Client) Request(ctx context.Context, name string, args ...any) ([]any, error) {
	if protocol.IsReserved(name) {
		return nil, fmt.Errorf("%w: %s", sterrors.ErrReservedEvent, name)
	}

	id, wait := c.pending.Register()

	c.log.Debug("Sending request", "event", name, "promise_id", id)

	if err := c.send(ctx, protocol.NewRequest(name, id, args...)); err != nil {
		c.pending.Forget(id)

		return nil, err
	}

	select {
	case result := <-wait:
		return result, nil

	case <-c.done:
		c.pending.Forget(id)

		return nil, c.stoppedErr()

	case <-ctx.Done():
		c.pending.Forget(id)

		return nil, ctx.Err()
	}
}

// Resolve answers a request the Controller initiated.
func (c *Client) Resolve(ctx context.Context, promiseID string, args ...any) error {
	return c.send(ctx, protocol.NewResolution(promiseID, args...))
}

func (c *Client) send(ctx context.Context, env *protocol.Envelope) error {
	if c.isStopped() {
		return c.stoppedErr()
	}

	data, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	if c.counterpart.Closed() {
		c.log.Debug("Counterpart closed, message dropped", "name", env.Name)

		return nil
	}

	if err := c.counterpart.PostMessage(ctx, data, c.CounterpartOrigin()); err != nil {
		return fmt.Errorf("post message: %w", err)
	}

	return nil
}

// Props returns the shared state, or nil until the boot-time Props request has been
// answered.
func (c *Client) Props() *state.Props {
	c.propsMu.RLock()
	defer c.propsMu.RUnlock()

	return c.props
}

// WaitProps returns the shared state once it is ready.
func (c *Client) WaitProps(ctx context.Context) (*state.Props, error) {
	select {
	case <-c.ready:
		return c.Props(), nil
	case <-c.done:
		return nil, c.stoppedErr()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// OnPropsUpdated sets the hook called when the Controller broadcasts new props.
func (c *Client) OnPropsUpdated(fn state.UpdateFunc) {
	c.propsMu.Lock()
	defer c.propsMu.Unlock()

	c.onUpdate = fn
	if c.props != nil {
		c.props.OnUpdate(fn)
	}
}

// initProps builds the shared state from the answer to the boot-time Props request.
// It runs on the read loop, so every PropsUpdated routed after it sees ready props.
func (c *Client) initProps(args []any) {
	snapshot := map[string]any{}

	if len(args) > 0 {
		if m, ok := args[0].(map[string]any); ok {
			snapshot = m
		}
	}

	c.propsMu.Lock()
	defer c.propsMu.Unlock()

	if c.props != nil {
		return
	}

	props, err := state.New(snapshot, c.broadcastProps,
		state.WithSchema(c.options.PropsSchema),
		state.WithUpdateFunc(c.onUpdate),
	)
	if err != nil {
		c.log.Error("Rejected initial props", "error", err)
		c.setFatalError(fmt.Errorf("initial props: %w", err))

		return
	}

	c.props = props
	close(c.ready)

	c.log.Debug("Props ready", "keys", props.Keys())
}

// broadcastProps is the props change hook.
func (c *Client) broadcastProps(snapshot map[string]any) {
	if err := c.send(context.Background(), protocol.NewEvent(protocol.EventPropsUpdated, snapshot)); err != nil {
		c.log.Debug("Props update not delivered", "error", err)
	}
}

func (c *Client) isPropsAnswer(promiseID string) bool {
	c.propsMu.RLock()
	defer c.propsMu.RUnlock()

	return c.propsID != "" && c.propsID == promiseID
}
