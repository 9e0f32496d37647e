package security

import (
	"time"
)

// LockState is the lock posture of the device.
type LockState string

// Lock states.
const (
	Unlocked LockState = "unlocked"
	Locked   LockState = "locked"
)

// Lock reasons. The recorded event type is the reason plus "_triggered".
const (
	ReasonAutoLock      = "auto_lock"
	ReasonMovementLock  = "movement_lock"
	ReasonDontTouchLock = "dont_touch_lock"
	ReasonRemoteLock    = "remote_lock"
	ReasonUSBLock       = "usb_lock"
	ReasonAppLock       = "app_lock"
	ReasonScreenLock    = "screen_lock"
)

// Event types recorded outside the lock entry.
const (
	EventFailedAttempt   = "failed_attempt"
	EventDeviceUnlocked  = "device_unlocked"
	EventUnlockDenied    = "unlock_denied"
	EventSettingsUpdated = "settings_updated"
	EventDontTouchDisarm = "dont_touch_disarmed"
	EventSOSTriggered    = "sos_triggered"
	EventSOSStopped      = "sos_stopped"
	EventAlarmStopped    = "alarm_stopped"
	EventLogCleared      = "event_log_cleared"
)

// Channel event names sent and received by the engine.
const (
	ChannelSecurityAlert   = "security-alert"
	ChannelSecurityEvent   = "security-event"
	ChannelSecurityStatus  = "security-status"
	ChannelSettingsChanged = "settings-changed"
	ChannelSOSLocation     = "sos-location"

	ChannelRemoteLock           = "remote-lock"
	ChannelRemoteUnlock         = "remote-unlock"
	ChannelRemoteSettingsUpdate = "remote-settings-update"
)

// Hardware trigger kinds.
const (
	HardwareUSB    = "usb"
	HardwareApp    = "app"
	HardwareScreen = "screen"
)

// Event is one entry of the security event log.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// MotionSample is one accelerometer reading.
type MotionSample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Location is a geographic fix.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Status is the snapshot published as security-status.
type Status struct {
	State          LockState `json:"state"`
	Locked         bool      `json:"locked"`
	FailedAttempts int       `json:"failedAttempts"`
	Settings       Settings  `json:"settings"`
	SOSActive      bool      `json:"sosActive"`
	AlarmActive    bool      `json:"alarmActive"`
	Timestamp      int64     `json:"timestamp"`
}

// unixMillis is the wire timestamp format.
func unixMillis(t time.Time) int64 {
	return t.UnixMilli()
}
