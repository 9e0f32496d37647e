package platform

import "errors"

// Domain errors for the platform package.
var (
	// ErrNotStarted is returned before Start or after Stop.
	ErrNotStarted = errors.New("platform: bridge not started")

	// ErrMediaTimeout is returned when the platform does not answer a
	// media request in time.
	ErrMediaTimeout = errors.New("platform: media request timed out")

	// ErrMediaFailed is returned when the platform reports a media failure.
	ErrMediaFailed = errors.New("platform: media request failed")

	// ErrNoLocation is returned when no location has been published yet.
	ErrNoLocation = errors.New("platform: no location available")

	// ErrStaleLocation is returned when the last location is older than
	// the configured maximum age.
	ErrStaleLocation = errors.New("platform: location is stale")
)
