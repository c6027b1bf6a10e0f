package wsbridge

import (
	"context"
	"sync"

	"github.com/wagiedev/siteos-go/internal/config"
)

// fanout delivers inbound messages to every ReadMessages subscriber. A holding fanout
// keeps messages published before the first subscription and hands them to it.
type fanout struct {
	mu      sync.RWMutex
	subs    map[*subscriber]struct{}
	closed  bool
	holding bool
	backlog []config.MessageEvent
}

type subscriber struct {
	ctx  context.Context
	out  chan config.MessageEvent
	errs chan error
}

func newFanout(holding bool) *fanout {
	return &fanout{subs: make(map[*subscriber]struct{}, 2), holding: holding}
}

func (f *fanout) subscribe(ctx context.Context) (<-chan config.MessageEvent, <-chan error) {
	f.mu.Lock()

	sub := &subscriber{
		ctx:  ctx,
		out:  make(chan config.MessageEvent, 64+len(f.backlog)),
		errs: make(chan error, 1),
	}

	for _, ev := range f.backlog {
		sub.out <- ev
	}

	f.backlog = nil
	f.holding = false

	if f.closed {
		f.mu.Unlock()
		close(sub.out)
		close(sub.errs)

		return sub.out, sub.errs
	}

	f.subs[sub] = struct{}{}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.remove(sub)
	}()

	return sub.out, sub.errs
}

func (f *fanout) remove(sub *subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.subs[sub]; !ok {
		return
	}

	delete(f.subs, sub)
	close(sub.out)
	close(sub.errs)
}

// publish blocks until every live subscriber has taken ev, preserving order.
func (f *fanout) publish(ev config.MessageEvent) {
	f.mu.Lock()

	if f.holding {
		f.backlog = append(f.backlog, ev)
		f.mu.Unlock()

		return
	}

	f.mu.Unlock()

	f.mu.RLock()
	defer f.mu.RUnlock()

	for sub := range f.subs {
		select {
		case sub.out <- ev:
		case <-sub.ctx.Done():
		}
	}
}

// shutdown closes every subscription, reporting err first when non-nil.
func (f *fanout) shutdown(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}

	f.closed = true

	for sub := range f.subs {
		if err != nil {
			sub.errs <- err
		}

		close(sub.out)
		close(sub.errs)
		delete(f.subs, sub)
	}
}
