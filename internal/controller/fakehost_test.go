package controller_test

import (
	"context"
	"sync"

	"github.com/wagiedev/siteos-go/internal/config"
	sterrors "github.com/wagiedev/siteos-go/internal/errors"
)

// fakeWindow records every post and lets the test inject the guest's replies.
type fakeWindow struct {
	mu     sync.Mutex
	posts  []fakePost
	closed bool
	posted chan fakePost
}

type fakePost struct {
	data   []byte
	origin string
}

func newFakeWindow() *fakeWindow {
	return &fakeWindow{posted: make(chan fakePost, 64)}
}

func (w *fakeWindow) PostMessage(_ context.Context, data []byte, targetOrigin string) error {
	p := fakePost{data: append([]byte(nil), data...), origin: targetOrigin}

	w.mu.Lock()
	w.posts = append(w.posts, p)
	w.mu.Unlock()

	w.posted <- p

	return nil
}

func (w *fakeWindow) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closed = true

	return nil
}

func (w *fakeWindow) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.closed
}

func (w *fakeWindow) Posts() []fakePost {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]fakePost, len(w.posts))
	copy(out, w.posts)

	return out
}

type fakeSurface struct {
	win     *fakeWindow
	loaded  chan struct{}
	removed bool
}

func (s *fakeSurface) Window() config.Window   { return s.win }
func (s *fakeSurface) Loaded() <-chan struct{} { return s.loaded }

func (s *fakeSurface) Remove() error {
	s.removed = true

	return s.win.Close()
}

type fakeContainer string

func (c fakeContainer) ID() string { return string(c) }

// fakeHost is a scripted Host: surfaces load immediately unless holdLoad is set,
// and inbound messages are whatever the test sends on messages.
type fakeHost struct {
	messages chan config.MessageEvent
	holdLoad bool

	mu       sync.Mutex
	surfaces []*fakeSurface
	windows  []*fakeWindow
}

func newFakeHost() *fakeHost {
	return &fakeHost{messages: make(chan config.MessageEvent, 64)}
}

func (h *fakeHost) ReadMessages(context.Context) (<-chan config.MessageEvent, <-chan error) {
	return h.messages, make(chan error)
}

func (h *fakeHost) Origin() string { return "https://host.example" }

func (h *fakeHost) ResolveContainer(id string) (config.Container, error) {
	if id != "main" {
		return nil, &sterrors.ContainerNotFoundError{ID: id}
	}

	return fakeContainer(id), nil
}

func (h *fakeHost) HiddenContainer() config.Container { return fakeContainer("") }

func (h *fakeHost) CreateSurface(
	context.Context,
	config.Container,
	string,
	config.SurfaceAttributes,
) (config.Surface, error) {
	s := &fakeSurface{win: newFakeWindow(), loaded: make(chan struct{})}
	if !h.holdLoad {
		close(s.loaded)
	}

	h.mu.Lock()
	h.surfaces = append(h.surfaces, s)
	h.mu.Unlock()

	return s, nil
}

func (h *fakeHost) OpenWindow(context.Context, string) (config.Window, error) {
	w := newFakeWindow()

	h.mu.Lock()
	h.windows = append(h.windows, w)
	h.mu.Unlock()

	return w, nil
}

// inject delivers data as if posted by source from origin.
func (h *fakeHost) inject(source config.Window, origin, data string) {
	h.messages <- config.MessageEvent{Data: []byte(data), Origin: origin, Source: source}
}
