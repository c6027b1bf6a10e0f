package memhost

import (
	"context"

	"github.com/wagiedev/siteos-go/internal/config"
)

// Compile-time verification that windowRef implements config.Window.
var _ config.Window = windowRef{}

// windowRef is the handle page from holds to page target. It is a comparable value, so
// two handles to the same context seen from the same page are ==.
type windowRef struct {
	target *Page
	from   *Page
}

// PostMessage implements config.Window.
func (w windowRef) PostMessage(ctx context.Context, data []byte, targetOrigin string) error {
	return w.target.browser.deliver(ctx, w.from, w.target, data, targetOrigin)
}

// Close implements config.Window.
func (w windowRef) Close() error {
	w.target.Close()

	return nil
}

// Closed implements config.Window.
func (w windowRef) Closed() bool {
	return w.target.Closed()
}

// Page returns the context this handle points at.
func (w windowRef) Page() *Page {
	return w.target
}

// PageOf returns the page behind a Window created by this package, or nil.
func PageOf(w config.Window) *Page {
	if ref, ok := w.(windowRef); ok {
		return ref.target
	}

	return nil
}

type container struct {
	id     string
	hidden bool
}

// ID implements config.Container.
func (c *container) ID() string {
	return c.id
}

type surface struct {
	page   *Page
	parent *Page
}

// Compile-time verification that surface implements config.Surface.
var _ config.Surface = (*surface)(nil)

func (s *surface) Window() config.Window {
	return windowRef{target: s.page, from: s.parent}
}

func (s *surface) Loaded() <-chan struct{} {
	return s.page.loaded
}

func (s *surface) Remove() error {
	s.page.Close()

	return nil
}
