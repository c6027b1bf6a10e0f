package protocol

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	sterrors "github.com/wagiedev/siteos-go/internal/errors"
)

// AnyOrigin is the wildcard targetOrigin.
const AnyOrigin = "*"

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
	"ws":    "80",
	"wss":   "443",
}

// OriginOf returns the serialized origin (scheme://host[:port]) of rawURL.
// Scheme and host are lower-cased and default ports are dropped.
func OriginOf(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", sterrors.ErrInvalidURL, rawURL, err)
	}

	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q has no origin", sterrors.ErrInvalidURL, rawURL)
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()

	if port == "" || defaultPorts[scheme] == port {
		if strings.Contains(host, ":") {
			return scheme + "://[" + host + "]", nil
		}

		return scheme + "://" + host, nil
	}

	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}

	return scheme + "://" + host + ":" + port, nil
}

// Allowlist is the set of origins a Controller accepts messages from.
// It is immutable after construction and safe for concurrent reads.
type Allowlist struct {
	set     map[string]struct{}
	ordered []string
}

// NewAllowlist seeds the allowlist with the origin of primary plus any extra origins.
// Extra entries may be origins or full URLs.
func NewAllowlist(primary string, extra ...string) (*Allowlist, error) {
	a := &Allowlist{set: make(map[string]struct{}, 1+len(extra))}

	for _, raw := range append([]string{primary}, extra...) {
		origin, err := OriginOf(raw)
		if err != nil {
			return nil, err
		}

		if _, dup := a.set[origin]; dup {
			continue
		}

		a.set[origin] = struct{}{}
		a.ordered = append(a.ordered, origin)
	}

	return a, nil
}

// Has reports whether origin is allowed. The comparison is exact: the environment
// reports origins already serialized.
func (a *Allowlist) Has(origin string) bool {
	_, ok := a.set[origin]

	return ok
}

// Origins returns the allowed origins in insertion order, primary first.
func (a *Allowlist) Origins() []string {
	return slices.Clone(a.ordered)
}
