package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/wagiedev/siteos-go/internal/config"
	sterrors "github.com/wagiedev/siteos-go/internal/errors"
	"github.com/wagiedev/siteos-go/internal/protocol"
)

// Controller owns the guest Instances of one guest URL and the channel to all of them.
//
// The Controller must be started with Start() before use and manages its own
// goroutine for reading and routing messages.
type Controller struct {
	log     *slog.Logger
	host    config.Host
	url     string
	origin  string
	allow   *protocol.Allowlist
	options *config.Options

	pending   *protocol.Pending
	listeners *protocol.Listeners[Listener]

	// Tracked instances, in launch order
	mu        sync.RWMutex
	instances []*Instance

	// Lifecycle management
	startMu   sync.Mutex
	started   bool
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup

	// Fatal error handling - stores error and broadcasts via done channel
	errMu    sync.RWMutex
	fatalErr error
}

// New creates a Controller for guests served at url.
//
// The origin allowlist is seeded from url's origin plus options.AllowedOrigins and
// cannot change afterwards. options may be nil.
func New(host config.Host, url string, options *config.Options) (*Controller, error) {
	if options == nil {
		options = &config.Options{}
	}

	normalized := *options
	normalized.SurfaceAttributes.Sandbox = config.NormalizeSandbox(options.SurfaceAttributes.Sandbox)
	options = &normalized

	origin, err := protocol.OriginOf(url)
	if err != nil {
		return nil, err
	}

	allow, err := protocol.NewAllowlist(url, options.AllowedOrigins...)
	if err != nil {
		return nil, err
	}

	log := options.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Controller{
		log:       log.With("component", "controller", "url", url),
		host:      host,
		url:       url,
		origin:    origin,
		allow:     allow,
		options:   options,
		pending:   protocol.NewPending(),
		listeners: protocol.NewListeners[Listener](),
		instances: make([]*Instance, 0, 4),
		done:      make(chan struct{}),
	}, nil
}

// URL returns the guest URL instances are launched at.
func (c *Controller) URL() string {
	return c.url
}

// AllowedOrigins returns the origin allowlist, guest origin first.
func (c *Controller) AllowedOrigins() []string {
	return c.allow.Origins()
}

// Start begins reading messages from the host and routing them.
//
// The read loop stops when ctx is cancelled, the host's message source closes, or
// Stop is called. Calling Start twice returns an error.
func (c *Controller) Start(ctx context.Context) error {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	if c.started {
		return errors.New("controller already started")
	}

	select {
	case <-c.done:
		return sterrors.ErrControllerStopped
	default:
	}

	c.log.Debug("Starting controller")

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.started = true

	messages, errs := c.host.ReadMessages(loopCtx)

	c.wg.Add(1)

	go c.readLoop(loopCtx, messages, errs)

	c.log.Info("Controller started", "allowed_origins", c.allow.Origins())

	return nil
}

// Stop shuts down the read loop and fails every outstanding wait with
// ErrControllerStopped. Guest contexts are left running; destroy instances first to
// release them. It's safe to call Stop multiple times.
func (c *Controller) Stop() {
	c.log.Debug("Stopping controller")

	c.closeDone()

	c.startMu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.startMu.Unlock()

	c.wg.Wait()
	c.log.Info("Controller stopped")
}

// Done returns a channel that is closed when the controller stops.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// FatalError returns the host error that stopped the controller, if any.
func (c *Controller) FatalError() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()

	return c.fatalErr
}

func (c *Controller) setFatalError(err error) {
	c.errMu.Lock()

	if c.fatalErr == nil {
		c.fatalErr = err
	}

	c.errMu.Unlock()

	c.closeDone()
}

// closeDone safely closes the done channel exactly once.
func (c *Controller) closeDone() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// stoppedErr returns the error outstanding waits fail with once done is closed.
func (c *Controller) stoppedErr() error {
	if err := c.FatalError(); err != nil {
		return fmt.Errorf("%w: %w", sterrors.ErrControllerStopped, err)
	}

	return sterrors.ErrControllerStopped
}

func (c *Controller) isStopped() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// On registers a Controller-wide listener invoked for name from any instance.
// Registering a name twice replaces the previous listener.
func (c *Controller) On(name string, l Listener) {
	c.log.Debug("Registering listener", "event", name)
	c.listeners.On(name, l)
}

// Off removes the Controller-wide listener for name. Removing a missing listener is a
// no-op.
func (c *Controller) Off(name string) {
	c.listeners.Off(name)
}

// Emit broadcasts an event to every tracked instance.
// Reserved protocol names are rejected with ErrReservedEvent.
func (c *Controller) Emit(ctx context.Context, name string, args ...any) error {
	if protocol.IsReserved(name) {
		return fmt.Errorf("%w: %s", sterrors.ErrReservedEvent, name)
	}

	return c.broadcast(ctx, protocol.NewEvent(name, args...))
}

// Request broadcasts a request to every tracked instance and waits for the first
// resolution carrying its correlation id. Later resolutions for the same id are
// ignored.
//
// There is no built-in timeout: the wait ends only on resolution, ctx cancellation,
// or Stop.
func (c *Controller) Request(ctx context.Context, name string, args ...any) ([]any, error) {
	if protocol.IsReserved(name) {
		return nil, fmt.Errorf("%w: %s", sterrors.ErrReservedEvent, name)
	}

	id, wait := c.pending.Register()

	c.log.Debug("Sending request", "event", name, "promise_id", id)

	if err := c.broadcast(ctx, protocol.NewRequest(name, id, args...)); err != nil {
		c.pending.Forget(id)

		return nil, err
	}

	return c.await(ctx, id, wait, nil)
}

// Resolve broadcasts the resolution of a guest-initiated request to every instance.
func (c *Controller) Resolve(ctx context.Context, promiseID string, args ...any) error {
	return c.broadcast(ctx, protocol.NewResolution(promiseID, args...))
}

// await blocks until the pending request id resolves. gone, when non-nil, aborts the
// wait with ErrInstanceDestroyed.
func (c *Controller) await(ctx context.Context, id string, wait <-chan []any, gone <-chan struct{}) ([]any, error) {
	select {
	case args := <-wait:
		c.log.Debug("Request resolved", "promise_id", id)

		return args, nil

	case <-gone:
		c.pending.Forget(id)

		return nil, sterrors.ErrInstanceDestroyed

	case <-c.done:
		c.pending.Forget(id)

		return nil, c.stoppedErr()

	case <-ctx.Done():
		c.pending.Forget(id)
		c.log.Debug("Request abandoned", "promise_id", id)

		return nil, ctx.Err()
	}
}

// broadcast posts env to every tracked instance. A failure on one instance does not
// stop delivery to the others.
func (c *Controller) broadcast(ctx context.Context, env *protocol.Envelope) error {
	data, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	var errs []error

	for _, inst := range c.Instances() {
		if err := inst.post(ctx, data); err != nil && !errors.Is(err, sterrors.ErrInstanceDestroyed) {
			c.log.Error("Failed to post to instance", "instance_id", inst.ID(), "error", err)
			errs = append(errs, fmt.Errorf("instance %s: %w", inst.ID(), err))
		}
	}

	return errors.Join(errs...)
}

// Instances returns the tracked instances in launch order.
func (c *Controller) Instances() []*Instance {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Instance, len(c.instances))
	copy(out, c.instances)

	return out
}

// Instance returns the tracked instance with the given id.
func (c *Controller) Instance(id string) (*Instance, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, inst := range c.instances {
		if inst.id == id {
			return inst, true
		}
	}

	return nil, false
}

func (c *Controller) untrack(inst *Instance) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, tracked := range c.instances {
		if tracked == inst {
			c.instances = append(c.instances[:i], c.instances[i+1:]...)

			return
		}
	}
}

// match returns the first tracked instance whose target is source.
// An instance is exactly one kind at a time, so a surface match and a window match
// are the same test against its current target.
func (c *Controller) match(source config.Window) *Instance {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, inst := range c.instances {
		if protocol.SameWindow(inst.Target(), source) {
			return inst
		}
	}

	return nil
}
