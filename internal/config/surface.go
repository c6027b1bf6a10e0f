package config

import (
	"slices"
	"strings"
)

// SurfaceAttributes is the permission and sandbox attribute set of an embedded surface.
type SurfaceAttributes struct {
	// Sandbox lists sandbox tokens ("allow-scripts", "allow-same-origin", ...).
	Sandbox []string `json:"sandbox,omitempty"`

	// Allow lists permission-policy features ("clipboard-write", "fullscreen", ...).
	Allow []string `json:"allow,omitempty"`

	// Hidden keeps the surface out of layout.
	Hidden bool `json:"hidden,omitempty"`
}

// DefaultSandbox is applied when no sandbox tokens are configured.
var DefaultSandbox = []string{
	"allow-scripts",
	"allow-same-origin",
	"allow-forms",
	"allow-popups",
}

// NormalizeSandbox lower-cases, de-duplicates and sorts sandbox tokens.
// Tokens missing the "allow-" prefix get it added.
// An empty input yields DefaultSandbox.
func NormalizeSandbox(tokens []string) []string {
	if len(tokens) == 0 {
		return slices.Clone(DefaultSandbox)
	}

	out := make([]string, 0, len(tokens))

	for _, tok := range tokens {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok == "" {
			continue
		}

		if !strings.HasPrefix(tok, "allow-") {
			tok = "allow-" + tok
		}

		out = append(out, tok)
	}

	slices.Sort(out)

	return slices.Compact(out)
}
