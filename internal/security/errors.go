package security

import "errors"

// Domain errors for the security package.
var (
	// ErrRemoteUnlockDisabled is returned by RemoteUnlock when
	// remoteResetEnabled is off.
	ErrRemoteUnlockDisabled = errors.New("security: remote unlock disabled")

	// ErrSOSDisabled is returned by TriggerSOSAlert when sosEnabled is off.
	ErrSOSDisabled = errors.New("security: SOS disabled")

	// ErrUnknownFeature is returned for a feature name with no matching setting.
	ErrUnknownFeature = errors.New("security: unknown feature")

	// ErrInvalidSettings is returned when a settings payload is not a JSON object.
	ErrInvalidSettings = errors.New("security: settings payload must be an object")

	// ErrInvalidSetting marks a single rejected field. It is reported
	// through the rejected field list of UpdateSettings, never returned.
	ErrInvalidSetting = errors.New("security: invalid setting")

	// ErrPermissionDenied is returned by collaborators when authentication
	// or capture is unavailable. The engine turns it into a false result.
	ErrPermissionDenied = errors.New("security: permission denied")

	// ErrEngineClosed is returned by Initialize after Shutdown.
	ErrEngineClosed = errors.New("security: engine shut down")
)
