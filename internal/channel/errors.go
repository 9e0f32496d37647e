package channel

import "errors"

// Domain errors for the channel package.
var (
	// ErrNotConnected is returned when an operation needs a live connection.
	ErrNotConnected = errors.New("channel: not connected")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("channel: closed")

	// ErrNoToken is returned when no bearer token is stored.
	ErrNoToken = errors.New("channel: no auth token")

	// ErrTokenExpired is returned when the stored JWT has expired.
	ErrTokenExpired = errors.New("channel: auth token expired")

	// ErrNoDeviceID is returned when no device id is stored and no
	// bootstrapper is configured.
	ErrNoDeviceID = errors.New("channel: no device id")

	// ErrBootstrapFailed is returned when the device id lookup fails.
	ErrBootstrapFailed = errors.New("channel: device id bootstrap failed")
)
