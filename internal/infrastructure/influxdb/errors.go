package influxdb

import "errors"

// Telemetry errors. Match with errors.Is.
var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed wraps a failed initial ping.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned by HealthCheck after Close or on a
	// client that never connected.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrWriteFailed wraps asynchronous batch failures passed to the
	// SetOnError hook.
	ErrWriteFailed = errors.New("influxdb: write failed")
)
