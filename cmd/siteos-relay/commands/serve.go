package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/siteos-go"
	"github.com/wagiedev/siteos-go/internal/subprocess"
	"github.com/wagiedev/siteos-go/internal/wsbridge"
)

// launchEnv carries the JSON launch request to a launch command.
const launchEnv = subprocess.LaunchEnv

type serveOptions struct {
	listen        string
	endpoint      string
	hostURL       string
	guestURL      string
	containers    []string
	allowed       []string
	events        []string
	props         []string
	container     string
	launches      int
	launchTimeout time.Duration
	launchCmd     string
	mcp           bool
}

func newServeCmd(version string, logger loggerFunc) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a websocket host with a Controller for one guest URL",
		Long: `Run a websocket host with a Controller for one guest URL.

Every launch produces a JSON launch request. With --launch-cmd the command is
started with the request in $SITEOS_LAUNCH; otherwise the request is printed as
one line on stdout (stderr when --mcp owns stdout).

Examples:
  # Launch two embedded guests, each in its own relay guest process
  siteos-relay serve --guest-url https://guest.local/app --launch 2 \
      --launch-cmd "siteos-relay guest"

  # Expose the Controller to an MCP client over stdio
  siteos-relay serve --guest-url https://guest.local/app --mcp`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := logger(cmd)
			if err != nil {
				return err
			}

			props, err := parseProps(opts.props)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.mcp {
				out = cmd.ErrOrStderr()
			}

			launch := printLauncher(out)

			if opts.launchCmd != "" {
				sup, err := execLauncher(opts.launchCmd, cmd.ErrOrStderr(), log)
				if err != nil {
					return err
				}

				defer func() {
					if err := sup.Close(); err != nil {
						log.Warn("Failed to stop guest processes", "error", err)
					}
				}()

				launch = sup.Launch
			}

			ln, err := net.Listen("tcp", opts.listen)
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, opts, props, ln, launch, log, version)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.listen, "listen", "127.0.0.1:8750", "Address to accept guest connections on")
	flags.StringVar(&opts.endpoint, "endpoint", "", "Websocket URL guests dial (default ws://<listen address>/)")
	flags.StringVar(&opts.hostURL, "host-url", "https://relay.local/", "URL of the host page, sent to guests as referrer")
	flags.StringVar(&opts.guestURL, "guest-url", "", "Guest URL the Controller launches (required)")
	flags.StringSliceVar(&opts.containers, "containers", []string{"main"}, "Container ids surfaces can attach to")
	flags.StringSliceVar(&opts.allowed, "allow-origin", nil, "Additional origins to accept messages from")
	flags.StringSliceVar(&opts.events, "on", []string{"hello", "log"}, "Guest events to log; requests among them are echoed back")
	flags.StringArrayVar(&opts.props, "prop", nil, "Initial prop as key=value (value parsed as JSON when possible)")
	flags.StringVar(&opts.container, "container", "main", "Container launched instances attach to (\"\" for hidden)")
	flags.IntVar(&opts.launches, "launch", 0, "Number of instances to launch at startup")
	flags.DurationVar(&opts.launchTimeout, "launch-timeout", 30*time.Second, "How long a launched guest has to connect")
	flags.StringVar(&opts.launchCmd, "launch-cmd", "", "Command started for every launch request")
	flags.BoolVar(&opts.mcp, "mcp", false, "Serve the Controller's MCP tools on stdio")

	_ = cmd.MarkFlagRequired("guest-url")

	return cmd
}

// serve runs the host, the Controller, the startup launches and the optional MCP
// server until ctx ends or one of them fails.
func serve(
	ctx context.Context,
	opts *serveOptions,
	props map[string]any,
	ln net.Listener,
	launch wsbridge.Launcher,
	log *slog.Logger,
	version string,
) error {
	endpoint := opts.endpoint
	if endpoint == "" {
		endpoint = "ws://" + ln.Addr().String() + "/"
	}

	host, err := wsbridge.NewHost(opts.hostURL, launch,
		wsbridge.WithLogger(log),
		wsbridge.WithEndpoint(endpoint),
		wsbridge.WithContainers(opts.containers...),
	)
	if err != nil {
		return err
	}

	ctrl, err := siteos.NewController(host, opts.guestURL,
		siteos.WithLogger(log),
		siteos.WithAllowedOrigins(opts.allowed...),
		siteos.WithOnPropsUpdated(func(snapshot map[string]any) {
			log.Info("Guest props updated", "props", snapshot)
		}),
	)
	if err != nil {
		return err
	}

	for _, name := range opts.events {
		ctrl.On(name, logEvent(log))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return host.Serve(gctx, ln)
	})

	if err := ctrl.Start(gctx); err != nil {
		cancel()
		_ = g.Wait()

		return err
	}

	defer ctrl.Stop()

	g.Go(func() error {
		return launchInstances(gctx, ctrl, opts, props, log)
	})

	if opts.mcp {
		g.Go(func() error {
			// The MCP client hanging up ends the relay.
			defer cancel()

			return siteos.NewToolServer(ctrl, version).Run(gctx, &mcp.StdioTransport{})
		})
	}

	return g.Wait()
}

func launchInstances(
	ctx context.Context,
	ctrl *siteos.Controller,
	opts *serveOptions,
	props map[string]any,
	log *slog.Logger,
) error {
	for i := range opts.launches {
		launchCtx, cancel := context.WithTimeout(ctx, opts.launchTimeout)
		inst, err := ctrl.Launch(launchCtx, opts.container, props)

		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("launch instance %d: %w", i+1, err)
		}

		log.Info("Instance launched", "instance", inst.ID(), "container", opts.container)
	}

	return nil
}

// logEvent logs every event and echoes the arguments of requests back.
func logEvent(log *slog.Logger) siteos.Listener {
	return func(ctx context.Context, ev *siteos.Event) {
		id, isRequest := ev.PromiseID()

		log.Info("Guest event",
			"name", ev.Name,
			"instance", ev.Instance.ID(),
			"args", ev.RequestArgs(),
			"request", isRequest,
		)

		if !isRequest {
			return
		}

		if err := ev.Instance.Resolve(ctx, id, ev.RequestArgs()...); err != nil {
			log.Warn("Failed to answer guest request", "name", ev.Name, "error", err)
		}
	}
}

// parseProps turns key=value pairs into initial props. Values that parse as JSON keep
// their JSON type; anything else is a string.
func parseProps(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	props := make(map[string]any, len(pairs))

	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid prop %q: want key=value", pair)
		}

		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}

		props[key] = value
	}

	return props, nil
}

// printLauncher writes each launch request as one JSON line to w.
func printLauncher(w io.Writer) wsbridge.Launcher {
	var mu sync.Mutex

	return func(_ context.Context, req wsbridge.LaunchRequest) error {
		data, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("encode launch request: %w", err)
		}

		mu.Lock()
		defer mu.Unlock()

		_, err = fmt.Fprintln(w, string(data))

		return err
	}
}

// execLauncher returns a Supervisor that starts command once per launch request.
// Guest output is copied to w prefixed with the launch token.
func execLauncher(command string, w io.Writer, log *slog.Logger) (*subprocess.Supervisor, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, errors.New("empty launch command")
	}

	var mu sync.Mutex

	return subprocess.New(fields[0], fields[1:],
		subprocess.WithLogger(log),
		subprocess.WithOutput(func(token, _, line string) {
			mu.Lock()
			defer mu.Unlock()

			_, _ = fmt.Fprintf(w, "[%s] %s\n", token, line)
		}),
		subprocess.WithOnExit(func(token string, err error) {
			if err != nil {
				log.Warn("Guest process failed", "token", token, "error", err)
			}
		}),
	)
}
