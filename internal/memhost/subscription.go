package memhost

import (
	"context"
	"sync"

	"github.com/wagiedev/siteos-go/internal/config"
)

// subscription is one message listener. Its queue is unbounded so a slow consumer
// never blocks the sender, and events leave in arrival order.
type subscription struct {
	mu     sync.Mutex
	queue  []config.MessageEvent
	notify chan struct{}
	out    chan config.MessageEvent
	errs   chan error
}

func newSubscription() *subscription {
	return &subscription{
		notify: make(chan struct{}, 1),
		out:    make(chan config.MessageEvent),
		errs:   make(chan error),
	}
}

func (s *subscription) push(ev config.MessageEvent) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscription) run(ctx context.Context) {
	defer close(s.errs)
	defer close(s.out)

	for {
		s.mu.Lock()

		if len(s.queue) == 0 {
			s.mu.Unlock()

			select {
			case <-s.notify:
				continue
			case <-ctx.Done():
				return
			}
		}

		ev := s.queue[0]
		s.queue = s.queue[1:]

		s.mu.Unlock()

		select {
		case s.out <- ev:
		case <-ctx.Done():
			return
		}
	}
}

type navSubscription struct {
	ctx    context.Context
	mu     sync.Mutex
	closed bool
	out    chan string
}

func (n *navSubscription) send(url string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}

	select {
	case n.out <- url:
	case <-n.ctx.Done():
	}
}

func (n *navSubscription) close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.closed = true
	close(n.out)
}

type sessionStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// Compile-time verification that sessionStore implements config.SessionStore.
var _ config.SessionStore = (*sessionStore)(nil)

func newSessionStore() *sessionStore {
	return &sessionStore{data: make(map[string]string, 4)}
}

func (s *sessionStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]

	return v, ok
}

func (s *sessionStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
}
