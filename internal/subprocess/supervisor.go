package subprocess

import (
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"

	"github.com/wagiedev/siteos-go/internal/errors"
	"github.com/wagiedev/siteos-go/internal/wsbridge"
)

const (
	// LaunchEnv carries the JSON launch request to a started process.
	LaunchEnv = "SITEOS_LAUNCH"

	// maxLineSize bounds a single output line.
	maxLineSize = 1024 * 1024
	// maxStderrBufferSize caps the stderr kept for ProcessError. Output past the
	// cap is still forwarded, just not kept.
	maxStderrBufferSize = 64 * 1024
)

// Supervisor starts and tracks guest processes.
type Supervisor struct {
	log    *slog.Logger
	path   string
	args   []string
	env    []string
	dir    string
	output func(token, stream, line string)
	onExit func(token string, err error)

	mu      sync.Mutex
	procs   map[string]*process
	closing bool
	wg      sync.WaitGroup
}

type process struct {
	cmd  *exec.Cmd
	done chan struct{}
}

// New resolves name and returns a Supervisor that runs it with args for every
// launch request.
func New(name string, args []string, opts ...Option) (*Supervisor, error) {
	if strings.TrimSpace(name) == "" {
		return nil, stderrors.New("empty launch command")
	}

	s := &Supervisor{
		log:   slog.New(slog.DiscardHandler),
		args:  slices.Clone(args),
		env:   defaultEnv(),
		procs: make(map[string]*process),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.log = s.log.With("component", "subprocess")

	path, err := resolve(name)
	if err != nil {
		return nil, err
	}

	s.path = path
	s.log.Debug("Resolved launch command", "path", path, "args", s.args)

	return s, nil
}

// Path returns the resolved command path.
func (s *Supervisor) Path() string {
	return s.path
}

// Launch starts one process for req and returns once it is running. It has the
// signature of a wsbridge.Launcher.
func (s *Supervisor) Launch(_ context.Context, req wsbridge.LaunchRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode launch request: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing {
		return stderrors.New("supervisor closed")
	}

	if _, ok := s.procs[req.Token]; ok {
		return fmt.Errorf("process for token %s already running", req.Token)
	}

	//nolint:gosec // G204: the command is chosen by the operator.
	cmd := exec.Command(s.path, s.args...)
	cmd.Dir = s.dir
	cmd.Env = append(slices.Clone(s.env), LaunchEnv+"="+string(data))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start launch command: %w", err)
	}

	p := &process{cmd: cmd, done: make(chan struct{})}
	s.procs[req.Token] = p

	s.log.Info("Guest process started", "token", req.Token, "pid", cmd.Process.Pid, "kind", req.Kind)

	s.wg.Go(func() {
		s.wait(req.Token, p, stdout, stderr)
	})

	return nil
}

// wait drains the output of p, waits for it to exit and reports the exit.
func (s *Supervisor) wait(token string, p *process, stdout, stderr io.Reader) {
	defer close(p.done)

	var (
		readers   sync.WaitGroup
		stderrBuf strings.Builder
	)

	// Output must be fully read before Wait closes the pipes.
	readers.Go(func() {
		s.forward(token, "stdout", stdout, nil)
	})
	readers.Go(func() {
		s.forward(token, "stderr", stderr, &stderrBuf)
	})
	readers.Wait()

	err := p.cmd.Wait()

	s.mu.Lock()
	delete(s.procs, token)
	closing := s.closing
	s.mu.Unlock()

	pid := p.cmd.Process.Pid

	switch {
	case err == nil:
		s.log.Info("Guest process exited", "token", token, "pid", pid)
	case closing:
		s.log.Debug("Guest process terminated during shutdown", "token", token, "pid", pid)

		err = nil
	default:
		exitCode := -1
		if exitErr, ok := stderrors.AsType[*exec.ExitError](err); ok {
			exitCode = exitErr.ExitCode()
		}

		err = &errors.ProcessError{
			PID:      pid,
			ExitCode: exitCode,
			Stderr:   strings.TrimSpace(stderrBuf.String()),
			Err:      err,
		}

		s.log.Error("Guest process exited with error", "token", token, "pid", pid, "exit_code", exitCode)
	}

	if s.onExit != nil {
		s.onExit(token, err)
	}
}

// forward relays r line by line. When buf is set the first lines are kept in it.
func (s *Supervisor) forward(token, stream string, r io.Reader, buf *strings.Builder) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Text()

		if buf != nil && buf.Len() < maxStderrBufferSize {
			if buf.Len() > 0 {
				buf.WriteByte('\n')
			}

			buf.WriteString(line)
		}

		s.log.Debug("Guest output", "token", token, "stream", stream, "line", line)

		if s.output != nil {
			s.output(token, stream, line)
		}
	}

	if err := scanner.Err(); err != nil {
		s.log.Debug("Guest output scanner error", "token", token, "stream", stream, "error", err)
	}
}

// Running returns the tokens of processes that have not exited, sorted.
func (s *Supervisor) Running() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens := make([]string, 0, len(s.procs))
	for token := range s.procs {
		tokens = append(tokens, token)
	}

	slices.Sort(tokens)

	return tokens
}

// Close kills every running process and waits for their exits to be reported.
// It is safe to call more than once.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	s.closing = true

	var errs []error

	for token, p := range s.procs {
		s.log.Debug("Killing guest process", "token", token, "pid", p.cmd.Process.Pid)

		if err := p.cmd.Process.Kill(); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
			errs = append(errs, fmt.Errorf("kill guest process (pid %d): %w", p.cmd.Process.Pid, err))
		}
	}
	s.mu.Unlock()

	s.wg.Wait()

	return stderrors.Join(errs...)
}
