package memhost

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/wagiedev/siteos-go/internal/config"
	sterrors "github.com/wagiedev/siteos-go/internal/errors"
)

// Compile-time verification that Page implements both environments.
var (
	_ config.Host  = (*Page)(nil)
	_ config.Guest = (*Page)(nil)
)

// Page is one browsing context.
type Page struct {
	browser  *Browser
	origin   string
	parent   *Page
	opener   *Page
	referrer string
	store    *sessionStore
	loaded   chan struct{}
	hidden   *container
	closed   atomic.Bool

	// containerID and attrs are set on embedded pages
	containerID string
	attrs       config.SurfaceAttributes

	mu         sync.Mutex
	url        string
	history    []string
	containers map[string]*container
	surfaces   []*surface
	subs       []*subscription
	navSubs    []*navSubscription
}

// Origin implements config.Host.
func (p *Page) Origin() string {
	return p.origin
}

// Location implements config.Guest.
func (p *Page) Location() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.url
}

// Referrer implements config.Guest.
func (p *Page) Referrer() string {
	return p.referrer
}

// Loaded implements config.Guest.
func (p *Page) Loaded() <-chan struct{} {
	return p.loaded
}

// SessionStore implements config.Guest.
func (p *Page) SessionStore() config.SessionStore {
	return p.store
}

// Opener implements config.Guest.
func (p *Page) Opener() config.Window {
	if p.opener == nil {
		return nil
	}

	return windowRef{target: p.opener, from: p}
}

// Parent implements config.Guest.
func (p *Page) Parent() config.Window {
	if p.parent == nil {
		return nil
	}

	return windowRef{target: p.parent, from: p}
}

// ContainerID returns the id of the container an embedded page was attached to.
// The hidden container has the empty id.
func (p *Page) ContainerID() string {
	return p.containerID
}

// SurfaceAttributes returns the attributes an embedded page was created with.
func (p *Page) SurfaceAttributes() config.SurfaceAttributes {
	return p.attrs
}

// Closed reports whether the page has been closed.
func (p *Page) Closed() bool {
	return p.closed.Load()
}

// Close releases the page. Messages posted to it afterwards are dropped.
func (p *Page) Close() {
	p.closed.Store(true)
}

// AddContainer creates a named container surfaces can be attached to.
func (p *Page) AddContainer(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.containers[id] = &container{id: id}
}

// ResolveContainer implements config.Host.
func (p *Page) ResolveContainer(id string) (config.Container, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.containers[id]
	if !ok {
		return nil, &sterrors.ContainerNotFoundError{ID: id}
	}

	return c, nil
}

// HiddenContainer implements config.Host.
func (p *Page) HiddenContainer() config.Container {
	return p.hidden
}

// CreateSurface implements config.Host. The guest loads asynchronously; the surface's
// Loaded channel closes once its site handler has run.
func (p *Page) CreateSurface(
	_ context.Context,
	c config.Container,
	url string,
	attrs config.SurfaceAttributes,
) (config.Surface, error) {
	child := p.browser.newPage(url, p, nil, p.Location())

	child.containerID = c.ID()
	child.attrs = attrs

	s := &surface{page: child, parent: p}

	p.mu.Lock()
	p.surfaces = append(p.surfaces, s)
	p.mu.Unlock()

	go p.browser.load(child)

	return s, nil
}

// Surfaces returns the guest pages embedded in this page that are still open.
func (p *Page) Surfaces() []*Page {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*Page, 0, len(p.surfaces))
	for _, s := range p.surfaces {
		if !s.page.Closed() {
			out = append(out, s.page)
		}
	}

	return out
}

// OpenWindow implements config.Host.
func (p *Page) OpenWindow(_ context.Context, url string) (config.Window, error) {
	page, err := p.browser.openWindow(p, url)
	if err != nil {
		return nil, err
	}

	return windowRef{target: page, from: p}, nil
}

// ReadMessages implements config.MessageSource.
func (p *Page) ReadMessages(ctx context.Context) (<-chan config.MessageEvent, <-chan error) {
	sub := newSubscription()

	p.mu.Lock()
	p.subs = append(p.subs, sub)
	p.mu.Unlock()

	go func() {
		sub.run(ctx)

		p.mu.Lock()
		defer p.mu.Unlock()

		for i, s := range p.subs {
			if s == sub {
				p.subs = append(p.subs[:i], p.subs[i+1:]...)

				break
			}
		}
	}()

	return sub.out, sub.errs
}

// Post sends data from this page to w, the way page script calls w.postMessage.
func (p *Page) Post(ctx context.Context, w config.Window, data []byte, targetOrigin string) error {
	target := PageOf(w)
	if target == nil {
		return w.PostMessage(ctx, data, targetOrigin)
	}

	return p.browser.deliver(ctx, p, target, data, targetOrigin)
}

func (p *Page) dispatch(ev config.MessageEvent) {
	p.mu.Lock()
	subs := make([]*subscription, len(p.subs))
	copy(subs, p.subs)
	p.mu.Unlock()

	for _, sub := range subs {
		sub.push(ev)
	}
}

// PushState changes the URL the way history.pushState does.
func (p *Page) PushState(url string) {
	p.mu.Lock()
	p.history = append(p.history, p.url)
	p.url = url
	p.mu.Unlock()

	p.notifyNavigation(url)
}

// ReplaceState changes the URL without adding a history entry.
func (p *Page) ReplaceState(url string) {
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()

	p.notifyNavigation(url)
}

// Back pops the last history entry, firing a navigation like popstate does.
// It is a no-op at the start of history.
func (p *Page) Back() {
	p.mu.Lock()

	if len(p.history) == 0 {
		p.mu.Unlock()

		return
	}

	url := p.history[len(p.history)-1]
	p.history = p.history[:len(p.history)-1]
	p.url = url

	p.mu.Unlock()

	p.notifyNavigation(url)
}

// Navigations implements config.Guest.
func (p *Page) Navigations(ctx context.Context) <-chan string {
	sub := &navSubscription{ctx: ctx, out: make(chan string, 16)}

	p.mu.Lock()
	p.navSubs = append(p.navSubs, sub)
	p.mu.Unlock()

	go func() {
		<-ctx.Done()

		p.mu.Lock()
		defer p.mu.Unlock()

		for i, s := range p.navSubs {
			if s == sub {
				p.navSubs = append(p.navSubs[:i], p.navSubs[i+1:]...)

				break
			}
		}

		sub.close()
	}()

	return sub.out
}

func (p *Page) notifyNavigation(url string) {
	p.mu.Lock()
	subs := make([]*navSubscription, len(p.navSubs))
	copy(subs, p.navSubs)
	p.mu.Unlock()

	for _, sub := range subs {
		sub.send(url)
	}
}
