package maintenance

import "errors"

// Domain errors for the maintenance package.
var (
	// ErrNoCacheDir is returned by ClearCache when no cache directory is configured.
	ErrNoCacheDir = errors.New("maintenance: no cache directory configured")

	// ErrBoostDisabled is returned by Optimize when performanceBoostEnabled is off.
	ErrBoostDisabled = errors.New("maintenance: performance boost disabled")

	// ErrBusy is returned when an optimisation is already running.
	ErrBusy = errors.New("maintenance: optimisation already running")
)
