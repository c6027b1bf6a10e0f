// Package commands implements the siteos-relay command tree.
package commands

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the siteos-relay command tree.
func NewRootCmd(version string) *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:   "siteos-relay",
		Short: "Run siteos controllers and guests over websockets",
		Long: `siteos-relay carries the siteos messaging protocol over websockets.

"serve" runs a host with a Controller for one guest URL and launches guests
through a launch command or by printing launch requests. "guest" dials a host
with such a request and runs a Client that answers ping requests.`,
		Version: version,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	logger := func(cmd *cobra.Command) (*slog.Logger, error) {
		return newLogger(cmd.ErrOrStderr(), logLevel)
	}

	root.AddCommand(newServeCmd(version, logger))
	root.AddCommand(newGuestCmd(logger))

	return root
}

type loggerFunc func(cmd *cobra.Command) (*slog.Logger, error)

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}
