package controller_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/siteos-go/internal/config"
	"github.com/wagiedev/siteos-go/internal/controller"
	sterrors "github.com/wagiedev/siteos-go/internal/errors"
	"github.com/wagiedev/siteos-go/internal/protocol"
)

func startController(t *testing.T, host config.Host, url string, opts *config.Options) *controller.Controller {
	t.Helper()

	ctrl, err := controller.New(host, url, opts)
	require.NoError(t, err)
	require.NoError(t, ctrl.Start(context.Background()))
	t.Cleanup(ctrl.Stop)

	return ctrl
}

func nextPost(t *testing.T, w *fakeWindow) *protocol.Envelope {
	t.Helper()

	select {
	case p := <-w.posted:
		env, err := protocol.Parse(p.data)
		require.NoError(t, err)

		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for post")

		return nil
	}
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := controller.New(newFakeHost(), "not a url", nil)
	require.ErrorIs(t, err, sterrors.ErrInvalidURL)
}

func TestNew_AllowlistSeededFromURL(t *testing.T) {
	ctrl, err := controller.New(newFakeHost(), "https://guest.example/app", &config.Options{
		AllowedOrigins: []string{"https://cdn.guest.example"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"https://guest.example", "https://cdn.guest.example"}, ctrl.AllowedOrigins())
	require.Equal(t, "https://guest.example/app", ctrl.URL())
}

func TestStart_Twice(t *testing.T) {
	ctrl := startController(t, newFakeHost(), "https://a.com/", nil)

	require.Error(t, ctrl.Start(context.Background()))
}

func TestOnMessage_DisallowedOriginInvokesNothing(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	host := newFakeHost()
	ctrl := startController(t, host, "https://a.com/app", nil)

	inst, err := ctrl.Launch(ctx, "main", map[string]any{"secret": 1})
	require.NoError(t, err)

	win := inst.Target().(*fakeWindow)

	var (
		mu    sync.Mutex
		calls []string
	)

	record := func(scope string) controller.Listener {
		return func(_ context.Context, ev *controller.Event) {
			mu.Lock()
			defer mu.Unlock()

			calls = append(calls, scope+":"+ev.Name)
		}
	}

	ctrl.On("evil", record("global"))
	inst.On("evil", record("instance"))
	ctrl.On("ok", record("global"))

	host.inject(win, "https://b.com", `{"name":"evil","args":[1]}`)
	host.inject(win, "https://b.com", fmt.Sprintf(`{"name":"Props","args":[%q]}`, protocol.NewID()))
	host.inject(win, "https://b.com", `{"name":"PropsUpdated","args":[{"secret":2}]}`)
	host.inject(win, "https://b.com", `{"name":"ClientLoaded"}`)
	host.inject(win, "https://a.com", `{"name":"ok"}`)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(calls) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.Equal(t, []string{"global:ok"}, calls)
	require.Empty(t, win.Posts(), "rejected messages must not cause replies")

	v, _ := inst.Props().Get("secret")
	require.Equal(t, 1, v)
}

func TestOnMessage_UntrackedSourceDropped(t *testing.T) {
	host := newFakeHost()
	ctrl := startController(t, host, "https://a.com/app", nil)

	called := make(chan struct{}, 1)
	ctrl.On("hello", func(context.Context, *controller.Event) { called <- struct{}{} })

	host.inject(newFakeWindow(), "https://a.com", `{"name":"hello"}`)

	select {
	case <-called:
		t.Fatal("listener invoked for untracked source")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRequest_FirstResolutionWins(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	host := newFakeHost()
	ctrl := startController(t, host, "https://a.com/app", nil)

	inst, err := ctrl.Launch(ctx, "", nil)
	require.NoError(t, err)

	win := inst.Target().(*fakeWindow)

	type result struct {
		args []any
		err  error
	}

	done := make(chan result, 1)

	go func() {
		args, err := ctrl.Request(ctx, "getValue", "x")
		done <- result{args, err}
	}()

	req := nextPost(t, win)
	require.Equal(t, "getValue", req.Name)

	id, rest, ok := protocol.SplitPromiseID(req.Args)
	require.True(t, ok)
	require.Equal(t, []any{"x"}, rest)

	first, err := json.Marshal(protocol.NewResolution(id, "first"))
	require.NoError(t, err)

	second, err := json.Marshal(protocol.NewResolution(id, "second"))
	require.NoError(t, err)

	host.inject(win, "https://a.com", string(first))
	host.inject(win, "https://a.com", string(second))

	res := <-done
	require.NoError(t, res.err)
	require.Equal(t, []any{"first"}, res.args)
}

func TestRequest_ContextCancelled(t *testing.T) {
	host := newFakeHost()
	ctrl := startController(t, host, "https://a.com/app", nil)

	_, err := ctrl.Launch(context.Background(), "", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = ctrl.Request(ctx, "never")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRequest_StopFailsWait(t *testing.T) {
	host := newFakeHost()

	ctrl, err := controller.New(host, "https://a.com/app", nil)
	require.NoError(t, err)
	require.NoError(t, ctrl.Start(context.Background()))

	errCh := make(chan error, 1)

	go func() {
		_, err := ctrl.Request(context.Background(), "never")
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	ctrl.Stop()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, sterrors.ErrControllerStopped)
	case <-time.After(2 * time.Second):
		t.Fatal("request not released by Stop")
	}

	_, err = ctrl.Launch(context.Background(), "", nil)
	require.ErrorIs(t, err, sterrors.ErrControllerStopped)
}

func TestEmit_ReservedNameRejected(t *testing.T) {
	ctrl := startController(t, newFakeHost(), "https://a.com/app", nil)

	err := ctrl.Emit(context.Background(), protocol.EventPropsUpdated, map[string]any{})
	require.ErrorIs(t, err, sterrors.ErrReservedEvent)

	_, err = ctrl.Request(context.Background(), protocol.EventProps)
	require.ErrorIs(t, err, sterrors.ErrReservedEvent)
}

func TestEmit_OnePostPerAllowedOrigin(t *testing.T) {
	ctx := context.Background()

	host := newFakeHost()
	ctrl := startController(t, host, "https://a.com/app", &config.Options{
		AllowedOrigins: []string{"https://b.com"},
	})

	inst, err := ctrl.Launch(ctx, "", nil)
	require.NoError(t, err)

	require.NoError(t, ctrl.Emit(ctx, "ping", 42))

	posts := inst.Target().(*fakeWindow).Posts()
	require.Len(t, posts, 2)
	require.Equal(t, "https://a.com", posts[0].origin)
	require.Equal(t, "https://b.com", posts[1].origin)
	require.JSONEq(t, `{"name":"ping","args":[42]}`, string(posts[0].data))
}

func TestEmit_ClosedTargetSkipped(t *testing.T) {
	ctx := context.Background()

	host := newFakeHost()
	ctrl := startController(t, host, "https://a.com/app", nil)

	inst, err := ctrl.Launch(ctx, "", nil)
	require.NoError(t, err)

	win := inst.Target().(*fakeWindow)
	before := len(win.Posts())

	require.NoError(t, win.Close())

	require.NoError(t, inst.Emit(ctx, "ping", 1))
	require.NoError(t, ctrl.Emit(ctx, "ping", 2))
	require.Len(t, win.Posts(), before)
	require.False(t, inst.Destroyed())
}

func TestLaunch_ContainerNotFound(t *testing.T) {
	ctrl := startController(t, newFakeHost(), "https://a.com/app", nil)

	_, err := ctrl.Launch(context.Background(), "missing", nil)

	var notFound *sterrors.ContainerNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "missing", notFound.ID)
	require.ErrorIs(t, err, sterrors.ErrContainerNotFound)
	require.Empty(t, ctrl.Instances())
}

func TestLaunch_ContextEndsBeforeLoad(t *testing.T) {
	host := newFakeHost()
	host.holdLoad = true

	ctrl := startController(t, host, "https://a.com/app", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := ctrl.Launch(ctx, "main", nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Empty(t, ctrl.Instances())
	require.True(t, host.surfaces[0].removed)
}

func TestLaunch_InvalidInitialProps(t *testing.T) {
	ctrl := startController(t, newFakeHost(), "https://a.com/app", &config.Options{
		PropsSchema: countSchema(),
	})

	_, err := ctrl.Launch(context.Background(), "", map[string]any{"count": "many"})

	var invalid *sterrors.PropsValidationError
	require.ErrorAs(t, err, &invalid)
	require.Empty(t, ctrl.Instances())
}

func TestDestroy_StaleTarget(t *testing.T) {
	ctx := context.Background()

	host := newFakeHost()
	ctrl := startController(t, host, "https://a.com/app", nil)

	inst, err := ctrl.Launch(ctx, "main", nil)
	require.NoError(t, err)

	win := inst.Target().(*fakeWindow)

	called := make(chan struct{}, 1)
	ctrl.On("late", func(context.Context, *controller.Event) { called <- struct{}{} })

	require.NoError(t, inst.Destroy())
	require.NoError(t, inst.Destroy())

	require.True(t, inst.Destroyed())
	require.Nil(t, inst.Target())
	require.True(t, win.Closed())
	require.Empty(t, ctrl.Instances())

	_, ok := ctrl.Instance(inst.ID())
	require.False(t, ok)

	require.ErrorIs(t, inst.Emit(ctx, "ping"), sterrors.ErrInstanceDestroyed)

	_, err = inst.Request(ctx, "ping")
	require.ErrorIs(t, err, sterrors.ErrInstanceDestroyed)

	require.ErrorIs(t, inst.ToTab(ctx), sterrors.ErrInstanceDestroyed)

	host.inject(win, "https://a.com", `{"name":"late"}`)

	select {
	case <-called:
		t.Fatal("message from destroyed target reached a listener")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDestroy_ReleasesInstanceRequest(t *testing.T) {
	ctrl := startController(t, newFakeHost(), "https://a.com/app", nil)

	inst, err := ctrl.Launch(context.Background(), "", nil)
	require.NoError(t, err)

	errCh := make(chan error, 1)

	go func() {
		_, err := inst.Request(context.Background(), "never")
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, inst.Destroy())

	select {
	case err := <-errCh:
		require.True(t, errors.Is(err, sterrors.ErrInstanceDestroyed))
	case <-time.After(2 * time.Second):
		t.Fatal("request not released by Destroy")
	}
}

func TestOff_Idempotent(t *testing.T) {
	host := newFakeHost()
	ctrl := startController(t, host, "https://a.com/app", nil)

	inst, err := ctrl.Launch(context.Background(), "", nil)
	require.NoError(t, err)

	got := make(chan string, 4)

	ctrl.Off("nothing")
	inst.Off("nothing")

	ctrl.On("a", func(_ context.Context, ev *controller.Event) { got <- ev.Name })
	ctrl.On("b", func(_ context.Context, ev *controller.Event) { got <- ev.Name })
	ctrl.Off("b")
	ctrl.Off("b")

	win := inst.Target().(*fakeWindow)
	host.inject(win, "https://a.com", `{"name":"b"}`)
	host.inject(win, "https://a.com", `{"name":"a"}`)

	select {
	case name := <-got:
		require.Equal(t, "a", name)
	case <-time.After(2 * time.Second):
		t.Fatal("listener for a not invoked")
	}
}

func TestKind_String(t *testing.T) {
	require.Equal(t, "surface", controller.KindSurface.String())
	require.Equal(t, "window", controller.KindSeparateWindow.String())
	require.Equal(t, "Kind(7)", controller.Kind(7).String())
}
