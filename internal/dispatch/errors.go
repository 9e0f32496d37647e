package dispatch

import "errors"

// Domain errors for the dispatch package.
var (
	// ErrUnsupportedCommand is reported in the failed ack of a command that
	// falls in the security namespace but has no handler.
	ErrUnsupportedCommand = errors.New("dispatch: unsupported command")

	// ErrInvalidData is reported when a command's data cannot be decoded.
	ErrInvalidData = errors.New("dispatch: invalid command data")

	// ErrMaintenanceUnavailable is reported for maintenance commands when
	// no maintenance service is configured.
	ErrMaintenanceUnavailable = errors.New("dispatch: maintenance unavailable")

	// ErrCommandPanic is reported when a handler panics.
	ErrCommandPanic = errors.New("dispatch: command handler panicked")

	// ErrAlreadyRegistered is returned when a command type is registered twice.
	ErrAlreadyRegistered = errors.New("dispatch: command type already registered")

	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("dispatch: dispatcher closed")
)
