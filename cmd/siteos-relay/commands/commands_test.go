package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/siteos-go"
	"github.com/wagiedev/siteos-go/internal/wsbridge"
)

// syncBuffer is a bytes.Buffer safe for the concurrent writes of a shared logger.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func TestRootCmd_ShowsHelpWhenNoSubcommand(t *testing.T) {
	root := NewRootCmd("test")

	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(nil)

	require.NoError(t, root.Execute())
	require.Contains(t, buf.String(), "Usage:")
	require.Contains(t, buf.String(), "serve")
	require.Contains(t, buf.String(), "guest")
}

func TestRootCmd_RejectsUnknownFlags(t *testing.T) {
	root := NewRootCmd("test")

	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"--unknown-flag", "value"})

	err := root.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown flag")
}

func TestServeCmd_RequiresGuestURL(t *testing.T) {
	root := NewRootCmd("test")

	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"serve"})

	err := root.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "guest-url")
}

func TestGuestCmd_NoRequest(t *testing.T) {
	t.Setenv(launchEnv, "")

	root := NewRootCmd("test")
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"guest"})

	err := root.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "no launch request")
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := newLogger(new(bytes.Buffer), "loud")
	require.Error(t, err)

	log, err := newLogger(new(bytes.Buffer), "debug")
	require.NoError(t, err)
	require.True(t, log.Enabled(context.Background(), slog.LevelDebug))
}

func TestParseProps(t *testing.T) {
	props, err := parseProps([]string{"count=3", "name=ada", `tags=["a","b"]`, "empty="})
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"count": float64(3),
		"name":  "ada",
		"tags":  []any{"a", "b"},
		"empty": "",
	}, props)

	props, err = parseProps(nil)
	require.NoError(t, err)
	require.Nil(t, props)

	_, err = parseProps([]string{"novalue"})
	require.Error(t, err)

	_, err = parseProps([]string{"=1"})
	require.Error(t, err)
}

func TestDecodeLaunchRequest(t *testing.T) {
	req, err := decodeLaunchRequest(`{"token":"t","endpoint":"ws://127.0.0.1:1/?token=t","url":"https://guest.example/","kind":"surface"}`)
	require.NoError(t, err)
	require.Equal(t, "t", req.Token)
	require.Equal(t, wsbridge.KindSurface, req.Kind)

	_, err = decodeLaunchRequest(`{"url":"https://guest.example/"}`)
	require.Error(t, err)

	_, err = decodeLaunchRequest(`{`)
	require.ErrorContains(t, err, "decode launch request")
}

func TestPrintLauncher_WritesJSONLine(t *testing.T) {
	buf := new(bytes.Buffer)

	launch := printLauncher(buf)
	require.NoError(t, launch(context.Background(), wsbridge.LaunchRequest{
		Token:    "abc",
		Endpoint: "ws://127.0.0.1:1/?token=abc",
		URL:      "https://guest.example/",
		Kind:     wsbridge.KindWindow,
	}))

	line := strings.TrimSpace(buf.String())
	require.NotContains(t, line, "\n")

	var decoded wsbridge.LaunchRequest
	require.NoError(t, json.Unmarshal([]byte(line), &decoded))
	require.Equal(t, "abc", decoded.Token)
	require.Equal(t, wsbridge.KindWindow, decoded.Kind)
}

func TestExecLauncher_EmptyCommand(t *testing.T) {
	_, err := execLauncher("   ", io.Discard, slog.Default())
	require.Error(t, err)
}

func TestExecLauncher_UnknownCommand(t *testing.T) {
	_, err := execLauncher("siteos-no-such-guest --flag", io.Discard, slog.Default())

	var notFound *siteos.CommandNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "siteos-no-such-guest", notFound.Name)
}

// TestServe_LaunchesInProcessGuest runs serve with a launcher that starts the guest
// side in-process and checks the launch completes and props reach the guest.
func TestServe_LaunchesInProcessGuest(t *testing.T) {
	logs := &syncBuffer{}
	log := slog.New(slog.NewTextHandler(logs, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var guests sync.WaitGroup

	launch := func(_ context.Context, req wsbridge.LaunchRequest) error {
		guests.Add(1)

		go func() {
			defer guests.Done()

			if err := runGuest(ctx, req, log, false); err != nil {
				t.Errorf("guest: %v", err)
			}
		}()

		return nil
	}

	opts := &serveOptions{
		hostURL:       "https://relay.local/",
		guestURL:      "https://guest.example/app",
		containers:    []string{"main"},
		container:     "main",
		launches:      1,
		launchTimeout: 5 * time.Second,
	}

	done := make(chan error, 1)

	go func() {
		done <- serve(ctx, opts, map[string]any{"theme": "dark"}, ln, launch, log, "test")
	}()

	require.Eventually(t, func() bool {
		out := logs.String()

		return strings.Contains(out, "Instance launched") && strings.Contains(out, "Props received")
	}, 5*time.Second, 20*time.Millisecond, logs.String())

	require.Contains(t, logs.String(), "theme:dark")

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}

	guests.Wait()
}
