package errors

import (
	"errors"
	"fmt"
)

// SiteOSError is the base interface for all siteos errors.
type SiteOSError interface {
	error
	IsSiteOSError() bool
}

// Compile-time verification that all error types implement SiteOSError.
var (
	_ SiteOSError = (*ContainerNotFoundError)(nil)
	_ SiteOSError = (*EnvelopeDecodeError)(nil)
	_ SiteOSError = (*PropsValidationError)(nil)
	_ SiteOSError = (*LaunchError)(nil)
	_ SiteOSError = (*CommandNotFoundError)(nil)
	_ SiteOSError = (*ProcessError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrContainerNotFound indicates a launch target container could not be resolved.
	ErrContainerNotFound = errors.New("container not found")

	// ErrInstanceDestroyed indicates an operation on an instance after Destroy.
	ErrInstanceDestroyed = errors.New("instance destroyed")

	// ErrControllerStopped indicates the controller has stopped.
	ErrControllerStopped = errors.New("controller stopped")

	// ErrClientStopped indicates the client has stopped.
	ErrClientStopped = errors.New("client stopped")

	// ErrNoCounterpart indicates a guest context has neither an opener nor a parent.
	ErrNoCounterpart = errors.New("no counterpart context: guest has neither opener nor parent")

	// ErrInvalidURL indicates a URL without a usable origin.
	ErrInvalidURL = errors.New("invalid url")

	// ErrMigrationInProgress indicates an instance is already migrating between kinds.
	ErrMigrationInProgress = errors.New("instance migration in progress")

	// ErrReservedEvent indicates application code tried to emit a protocol-reserved event.
	ErrReservedEvent = errors.New("reserved event name")

	// ErrUnknownApp indicates a registry lookup for an app that was never registered.
	ErrUnknownApp = errors.New("unknown app")
)

// ContainerNotFoundError indicates Launch or ToFrame was given an unknown container.
type ContainerNotFoundError struct {
	ID string
}

func (e *ContainerNotFoundError) Error() string {
	return fmt.Sprintf("container %q not found", e.ID)
}

// Unwrap returns ErrContainerNotFound so callers can match with errors.Is.
func (e *ContainerNotFoundError) Unwrap() error {
	return ErrContainerNotFound
}

// IsSiteOSError implements SiteOSError.
func (e *ContainerNotFoundError) IsSiteOSError() bool { return true }

// EnvelopeDecodeError indicates an inbound message was not a valid envelope.
// This error preserves the raw data that failed to decode.
type EnvelopeDecodeError struct {
	RawData string
	Err     error
}

func (e *EnvelopeDecodeError) Error() string {
	return fmt.Sprintf("failed to decode envelope: %v", e.Err)
}

func (e *EnvelopeDecodeError) Unwrap() error {
	return e.Err
}

// IsSiteOSError implements SiteOSError.
func (e *EnvelopeDecodeError) IsSiteOSError() bool { return true }

// PropsValidationError indicates a props mutation was rejected by the props schema.
type PropsValidationError struct {
	Key string
	Err error
}

func (e *PropsValidationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("props rejected by schema: %v", e.Err)
	}

	return fmt.Sprintf("props key %q rejected by schema: %v", e.Key, e.Err)
}

func (e *PropsValidationError) Unwrap() error {
	return e.Err
}

// IsSiteOSError implements SiteOSError.
func (e *PropsValidationError) IsSiteOSError() bool { return true }

// LaunchError indicates the host failed to create a guest context.
type LaunchError struct {
	URL  string
	Kind string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s at %s: %v", e.Kind, e.URL, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// IsSiteOSError implements SiteOSError.
func (e *LaunchError) IsSiteOSError() bool { return true }

// CommandNotFoundError indicates a guest launch command could not be located.
type CommandNotFoundError struct {
	Name          string
	SearchedPaths []string
}

func (e *CommandNotFoundError) Error() string {
	if len(e.SearchedPaths) == 0 {
		return fmt.Sprintf("command %q not found", e.Name)
	}

	return fmt.Sprintf("command %q not found (searched: %v)", e.Name, e.SearchedPaths)
}

// IsSiteOSError implements SiteOSError.
func (e *CommandNotFoundError) IsSiteOSError() bool { return true }

// ProcessError indicates a guest process exited unexpectedly.
type ProcessError struct {
	PID      int
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("guest process %d exited with code %d: %v", e.PID, e.ExitCode, e.Err)
	}

	return fmt.Sprintf("guest process %d exited with code %d: %v\n%s", e.PID, e.ExitCode, e.Err, e.Stderr)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// IsSiteOSError implements SiteOSError.
func (e *ProcessError) IsSiteOSError() bool { return true }
