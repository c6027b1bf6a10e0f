package siteos

import (
	"io"
	"log/slog"
)

// NopLogger returns a logger that discards all output.
// Controllers and Clients use it when no logger is configured.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
