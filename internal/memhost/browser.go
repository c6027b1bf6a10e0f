package memhost

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/wagiedev/siteos-go/internal/config"
	"github.com/wagiedev/siteos-go/internal/protocol"
)

// ErrPopupBlocked is returned by OpenWindow while popups are blocked.
var ErrPopupBlocked = errors.New("popup blocked")

// SiteFunc boots the guest side of a page that loaded a URL on a handled origin.
type SiteFunc func(page *Page)

// Browser owns a set of pages and routes messages between them.
type Browser struct {
	log *slog.Logger

	mu            sync.Mutex
	sites         map[string]SiteFunc
	pages         []*Page
	popupsBlocked bool
}

// NewBrowser creates an empty browser.
func NewBrowser() *Browser {
	return &Browser{
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		sites: make(map[string]SiteFunc, 4),
	}
}

// WithLogger sets the logger used for delivery diagnostics.
func (b *Browser) WithLogger(log *slog.Logger) *Browser {
	b.log = log.With("component", "memhost")

	return b
}

// Handle registers fn to run whenever a page loads a URL on origin.
// origin may be a full URL; only its origin is used.
func (b *Browser) Handle(origin string, fn SiteFunc) {
	normalized, err := protocol.OriginOf(origin)
	if err != nil {
		panic(fmt.Sprintf("memhost: Handle(%q): %v", origin, err))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.sites[normalized] = fn
}

// BlockPopups makes OpenWindow fail until called again with false.
func (b *Browser) BlockPopups(blocked bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.popupsBlocked = blocked
}

// Open creates a loaded top-level page at url, typically the host page.
func (b *Browser) Open(url string) *Page {
	page := b.newPage(url, nil, nil, "")
	b.load(page)

	return page
}

// Pages returns every page created so far, including closed ones.
func (b *Browser) Pages() []*Page {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]*Page, len(b.pages))
	copy(out, b.pages)

	return out
}

func (b *Browser) newPage(url string, parent, opener *Page, referrer string) *Page {
	origin, err := protocol.OriginOf(url)
	if err != nil {
		// Unparseable URLs still load, with an opaque origin like a browser would give them.
		origin = "null"
	}

	page := &Page{
		browser:    b,
		url:        url,
		origin:     origin,
		parent:     parent,
		opener:     opener,
		referrer:   referrer,
		store:      newSessionStore(),
		containers: make(map[string]*container, 2),
		loaded:     make(chan struct{}),
	}
	page.hidden = &container{id: "", hidden: true}

	b.mu.Lock()
	b.pages = append(b.pages, page)
	b.mu.Unlock()

	return page
}

// load runs the site handler for the page's origin, then fires the load signal.
func (b *Browser) load(page *Page) {
	b.mu.Lock()
	site := b.sites[page.origin]
	b.mu.Unlock()

	if site != nil {
		site(page)
	}

	close(page.loaded)
}

func (b *Browser) openWindow(opener *Page, url string) (*Page, error) {
	b.mu.Lock()
	blocked := b.popupsBlocked
	b.mu.Unlock()

	if blocked {
		return nil, ErrPopupBlocked
	}

	page := b.newPage(url, nil, opener, opener.Location())

	go b.load(page)

	return page, nil
}

// deliver posts data from sender to target with browser semantics.
func (b *Browser) deliver(ctx context.Context, sender, target *Page, data []byte, targetOrigin string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if target.Closed() {
		b.log.Debug("Dropping message to closed page", "target", target.Location())

		return nil
	}

	if targetOrigin != protocol.AnyOrigin && targetOrigin != target.origin {
		b.log.Debug("Dropping message with mismatched target origin",
			"target_origin", targetOrigin,
			"actual_origin", target.origin,
		)

		return nil
	}

	ev := config.MessageEvent{
		Data:   append([]byte(nil), data...),
		Origin: sender.origin,
		Source: windowRef{target: sender, from: target},
	}

	target.dispatch(ev)

	return nil
}
