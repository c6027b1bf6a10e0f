package controller

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/wagiedev/siteos-go/internal/config"
	sterrors "github.com/wagiedev/siteos-go/internal/errors"
	"github.com/wagiedev/siteos-go/internal/protocol"
	"github.com/wagiedev/siteos-go/internal/state"
)

// Instance is the Controller's handle to one guest.
//
// Its id, listeners and props survive migration between a surface and a separate
// window; only the target and kind change.
type Instance struct {
	id        string
	ctrl      *Controller
	listeners *protocol.Listeners[Listener]
	props     *state.Props
	gone      chan struct{}

	mu        sync.RWMutex
	target    config.Window
	surface   config.Surface
	kind      Kind
	destroyed bool
	migrating bool

	// loadWait is closed by the next ClientLoaded from the current target
	loadWait chan struct{}
}

func (c *Controller) newInstance(initial map[string]any) (*Instance, error) {
	inst := &Instance{
		id:        uuid.NewString(),
		ctrl:      c,
		listeners: protocol.NewListeners[Listener](),
		gone:      make(chan struct{}),
	}

	props, err := state.New(initial, inst.broadcastProps,
		state.WithSchema(c.options.PropsSchema),
		state.WithUpdateFunc(c.options.OnPropsUpdated),
	)
	if err != nil {
		return nil, err
	}

	inst.props = props

	return inst, nil
}

// ID returns the instance's stable identifier.
func (i *Instance) ID() string {
	return i.id
}

// Kind returns the current embedding strategy.
func (i *Instance) Kind() Kind {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return i.kind
}

// Target returns the current guest handle, or nil after Destroy.
func (i *Instance) Target() config.Window {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.destroyed {
		return nil
	}

	return i.target
}

// Origin returns the origin the guest is served from.
func (i *Instance) Origin() string {
	return i.ctrl.origin
}

// Props returns the shared state synchronized with this guest.
func (i *Instance) Props() *state.Props {
	return i.props
}

// OnPropsUpdated sets the hook called when the guest broadcasts new props.
func (i *Instance) OnPropsUpdated(fn state.UpdateFunc) {
	i.props.OnUpdate(fn)
}

// Destroyed reports whether Destroy has been called.
func (i *Instance) Destroyed() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return i.destroyed
}

// On registers an instance-local listener for name.
func (i *Instance) On(name string, l Listener) {
	i.listeners.On(name, l)
}

// Off removes the instance-local listener for name. Removing a missing listener is a
// no-op.
func (i *Instance) Off(name string) {
	i.listeners.Off(name)
}

// Emit sends an event to this guest only.
func (i *Instance) Emit(ctx context.Context, name string, args ...any) error {
	if protocol.IsReserved(name) {
		return fmt.Errorf("%w: %s", sterrors.ErrReservedEvent, name)
	}

	return i.emit(ctx, name, args...)
}

// Request sends a request to this guest only and waits for its resolution.
// The wait ends on resolution, ctx cancellation, Destroy, or Controller Stop.
func (i *Instance) Request(ctx context.Context, name string, args ...any) ([]any, error) {
	if protocol.IsReserved(name) {
		return nil, fmt.Errorf("%w: %s", sterrors.ErrReservedEvent, name)
	}

	id, wait := i.ctrl.pending.Register()

	if err := i.send(ctx, protocol.NewRequest(name, id, args...)); err != nil {
		i.ctrl.pending.Forget(id)

		return nil, err
	}

	return i.ctrl.await(ctx, id, wait, i.gone)
}

// Resolve answers a request this guest initiated.
func (i *Instance) Resolve(ctx context.Context, promiseID string, args ...any) error {
	return i.send(ctx, protocol.NewResolution(promiseID, args...))
}

func (i *Instance) emit(ctx context.Context, name string, args ...any) error {
	return i.send(ctx, protocol.NewEvent(name, args...))
}

func (i *Instance) send(ctx context.Context, env *protocol.Envelope) error {
	data, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	return i.post(ctx, data)
}

// post delivers data to the current target once per allowed origin; the channel
// drops every copy whose origin does not match the guest's current origin.
func (i *Instance) post(ctx context.Context, data []byte) error {
	i.mu.RLock()
	destroyed, target := i.destroyed, i.target
	i.mu.RUnlock()

	if destroyed {
		return sterrors.ErrInstanceDestroyed
	}

	// A closed context receives nothing, same as a mismatched origin.
	if target.Closed() {
		i.ctrl.log.Debug("Target closed, message dropped", "instance_id", i.id)

		return nil
	}

	for _, origin := range i.ctrl.allow.Origins() {
		if err := target.PostMessage(ctx, data, origin); err != nil {
			return fmt.Errorf("post message: %w", err)
		}
	}

	return nil
}

// broadcastProps is the props change hook.
func (i *Instance) broadcastProps(snapshot map[string]any) {
	err := i.emit(context.Background(), protocol.EventPropsUpdated, snapshot)
	if err != nil {
		i.ctrl.log.Debug("Props update not delivered", "instance_id", i.id, "error", err)
	}
}

// answerProps resolves a guest's Props request with the current snapshot.
func (i *Instance) answerProps(ctx context.Context, args []any) {
	id, _, ok := protocol.SplitPromiseID(args)
	if !ok {
		i.ctrl.log.Debug("Props request without correlation id", "instance_id", i.id)

		return
	}

	if err := i.Resolve(ctx, id, i.props.Snapshot()); err != nil {
		i.ctrl.log.Warn("Failed to answer props request", "instance_id", i.id, "error", err)
	}
}

// applyProps overwrites the local view with the snapshot the guest broadcast.
func (i *Instance) applyProps(args []any) {
	if len(args) == 0 {
		return
	}

	snapshot, ok := args[0].(map[string]any)
	if !ok {
		i.ctrl.log.Debug("Ignoring props update with non-object snapshot", "instance_id", i.id)

		return
	}

	i.props.Replace(snapshot)
}

// clientLoaded releases a pending ToTab wait.
func (i *Instance) clientLoaded() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.loadWait != nil {
		close(i.loadWait)
		i.loadWait = nil
	}
}
