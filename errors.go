package siteos

import "github.com/wagiedev/siteos-go/internal/errors"

// Re-export error types from internal package

// ContainerNotFoundError indicates Launch or ToFrame was given an unknown container.
type ContainerNotFoundError = errors.ContainerNotFoundError

// EnvelopeDecodeError indicates an inbound message was not a valid envelope.
type EnvelopeDecodeError = errors.EnvelopeDecodeError

// PropsValidationError indicates a props mutation was rejected by the schema.
type PropsValidationError = errors.PropsValidationError

// LaunchError indicates the host failed to create a guest context.
type LaunchError = errors.LaunchError

// CommandNotFoundError indicates a guest launch command could not be located.
type CommandNotFoundError = errors.CommandNotFoundError

// ProcessError indicates a guest process exited unexpectedly.
type ProcessError = errors.ProcessError

// SiteOSError is the base interface for all siteos errors.
type SiteOSError = errors.SiteOSError

// Re-export sentinel errors from internal package.
var (
	// ErrContainerNotFound indicates a launch target container could not be resolved.
	ErrContainerNotFound = errors.ErrContainerNotFound

	// ErrInstanceDestroyed indicates an operation on an instance after Destroy.
	ErrInstanceDestroyed = errors.ErrInstanceDestroyed

	// ErrControllerStopped indicates the controller has stopped.
	ErrControllerStopped = errors.ErrControllerStopped

	// ErrClientStopped indicates the client has stopped.
	ErrClientStopped = errors.ErrClientStopped

	// ErrNoCounterpart indicates a guest has neither an opener nor a parent.
	ErrNoCounterpart = errors.ErrNoCounterpart

	// ErrInvalidURL indicates a URL without a usable origin.
	ErrInvalidURL = errors.ErrInvalidURL

	// ErrMigrationInProgress indicates an instance is already migrating.
	ErrMigrationInProgress = errors.ErrMigrationInProgress

	// ErrReservedEvent indicates an attempt to emit a protocol-reserved event name.
	ErrReservedEvent = errors.ErrReservedEvent

	// ErrUnknownApp indicates a Registry lookup for an app that was never registered.
	ErrUnknownApp = errors.ErrUnknownApp
)
