package subprocess

import (
	"log/slog"
	"os"
)

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the logger. Process output is logged at debug level.
func WithLogger(log *slog.Logger) Option {
	return func(s *Supervisor) {
		s.log = log
	}
}

// WithEnv adds environment variables, as "KEY=value", to every process on top of
// the supervisor's own environment.
func WithEnv(env ...string) Option {
	return func(s *Supervisor) {
		s.env = append(s.env, env...)
	}
}

// WithDir sets the working directory of started processes.
func WithDir(dir string) Option {
	return func(s *Supervisor) {
		s.dir = dir
	}
}

// WithOutput receives every output line of every process, tagged with the launch
// token and the stream name ("stdout" or "stderr").
func WithOutput(fn func(token, stream, line string)) Option {
	return func(s *Supervisor) {
		s.output = fn
	}
}

// WithOnExit is called once per process after it exits. err is nil for a clean
// exit or one caused by Close, and a *errors.ProcessError otherwise.
func WithOnExit(fn func(token string, err error)) Option {
	return func(s *Supervisor) {
		s.onExit = fn
	}
}

func defaultEnv() []string {
	return os.Environ()
}
