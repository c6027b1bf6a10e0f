package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wagiedev/siteos-go"
	"github.com/wagiedev/siteos-go/internal/wsbridge"
)

type guestOptions struct {
	request       string
	trackLocation bool
}

func newGuestCmd(logger loggerFunc) *cobra.Command {
	opts := &guestOptions{}

	cmd := &cobra.Command{
		Use:   "guest",
		Short: "Dial a relay host and run a Client",
		Long: `Dial a relay host with a launch request and run a Client.

The request is read from --request, or from $SITEOS_LAUNCH when the guest was
started by "serve --launch-cmd". The Client answers "ping" requests with "pong"
followed by the request's arguments and logs every props update.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := logger(cmd)
			if err != nil {
				return err
			}

			raw := opts.request
			if raw == "" {
				raw = os.Getenv(launchEnv)
			}

			req, err := decodeLaunchRequest(raw)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runGuest(ctx, req, log, opts.trackLocation)
		},
	}

	cmd.Flags().StringVar(&opts.request, "request", "", "JSON launch request (default $SITEOS_LAUNCH)")
	cmd.Flags().BoolVar(&opts.trackLocation, "track-location", false, "Report navigations to the Controller")

	return cmd
}

func decodeLaunchRequest(raw string) (wsbridge.LaunchRequest, error) {
	var req wsbridge.LaunchRequest

	if raw == "" {
		return req, errors.New("no launch request: pass --request or set " + launchEnv)
	}

	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return req, fmt.Errorf("decode launch request: %w", err)
	}

	if req.Endpoint == "" || req.URL == "" {
		return req, errors.New("launch request needs endpoint and url")
	}

	return req, nil
}

// runGuest dials the host and serves the Client until ctx ends, the host hangs up,
// or the Client fails.
func runGuest(ctx context.Context, req wsbridge.LaunchRequest, log *slog.Logger, trackLocation bool) error {
	guest, err := wsbridge.Dial(ctx, req, wsbridge.WithGuestLogger(log))
	if err != nil {
		return err
	}

	defer func() { _ = guest.Close() }()

	opts := []siteos.Option{
		siteos.WithLogger(log),
		siteos.WithOnPropsUpdated(func(snapshot map[string]any) {
			log.Info("Props updated", "props", snapshot)
		}),
	}

	if trackLocation {
		opts = append(opts, siteos.WithLocationTracking())
	}

	c, err := siteos.NewClient(guest, opts...)
	if err != nil {
		return err
	}

	// Listeners go in before Start; the host may have queued requests already.
	c.On("ping", func(ctx context.Context, ev *siteos.ClientEvent) {
		answer := append([]any{"pong"}, ev.RequestArgs()...)

		if _, ok := ev.PromiseID(); !ok {
			log.Info("Ping event", "args", ev.Args)

			return
		}

		if err := ev.Reply(ctx, answer...); err != nil {
			log.Warn("Failed to answer ping", "error", err)
		}
	})

	if err := c.Start(ctx); err != nil {
		return err
	}

	defer c.Stop()

	// Stop waiting for props if the host hangs up first.
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-guest.Done():
			cancel()
		case <-waitCtx.Done():
		}
	}()

	props, err := c.WaitProps(waitCtx)
	if err != nil && waitCtx.Err() == nil {
		return err
	}

	if props != nil {
		log.Info("Props received", "props", props.Snapshot())
	}

	select {
	case <-ctx.Done():
		return nil
	case <-guest.Done():
		log.Info("Host closed the connection")

		return nil
	case <-c.Done():
		if ctx.Err() != nil {
			return nil
		}

		return c.FatalError()
	}
}
