package security

import (
	"context"
	"encoding/json"
	"time"
)

// Logger defines the logging interface used by the Engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MediaActuator captures evidence and drives the audible alarm.
type MediaActuator interface {
	// CapturePhoto takes a photo and returns a reference to it.
	CapturePhoto(ctx context.Context) (string, error)

	// CaptureVideo records for d and returns a reference to the clip.
	CaptureVideo(ctx context.Context, d time.Duration) (string, error)

	// StartAlarm sounds the alarm for d.
	StartAlarm(ctx context.Context, d time.Duration) error

	// StopAlarm silences the alarm.
	StopAlarm(ctx context.Context) error
}

// Subscription is an active sensor subscription.
type Subscription interface {
	Close() error
}

// SensorFeed delivers sensor signals to the engine.
type SensorFeed interface {
	SubscribeMotion(handler func(MotionSample)) (Subscription, error)
	SubscribeTouch(handler func()) (Subscription, error)
	SubscribeHardware(handler func(kind string)) (Subscription, error)
}

// LocationProvider returns the last known device location.
type LocationProvider interface {
	CurrentLocation(ctx context.Context) (Location, error)
}

// AuthenticationPrompt asks the device owner to authenticate.
// It returns true only on a successful authentication.
type AuthenticationPrompt interface {
	Authenticate(ctx context.Context, reason string) bool
}

// CommandChannel is the subset of the dashboard channel the engine uses.
type CommandChannel interface {
	// Send delivers an event best-effort. It returns false when the
	// channel is disconnected.
	Send(ctx context.Context, event string, payload any) bool

	// Subscribe registers a handler for an inbound event and returns an
	// id for Unsubscribe.
	Subscribe(event string, handler func(ctx context.Context, data json.RawMessage)) uint64

	// Unsubscribe removes a handler.
	Unsubscribe(id uint64)

	// OnConnect registers a hook run after every (re)connect.
	OnConnect(hook func(ctx context.Context))
}

// StatusMirror republishes the engine status to the local platform, which
// enforces the lock screen from it.
type StatusMirror interface {
	PublishSecurityState(ctx context.Context, status Status) error
}

// EventSink receives every recorded security event, for long-term
// history or telemetry.
type EventSink interface {
	RecordEvent(ctx context.Context, event Event) error
}

// MotionRecorder receives motion magnitudes as they are evaluated.
type MotionRecorder interface {
	RecordMotion(magnitude, threshold float64)
}

// unavailableMedia is used when no MediaActuator is configured.
type unavailableMedia struct{}

func (unavailableMedia) CapturePhoto(context.Context) (string, error) {
	return "", ErrPermissionDenied
}

func (unavailableMedia) CaptureVideo(context.Context, time.Duration) (string, error) {
	return "", ErrPermissionDenied
}

func (unavailableMedia) StartAlarm(context.Context, time.Duration) error { return ErrPermissionDenied }
func (unavailableMedia) StopAlarm(context.Context) error                 { return nil }

// denyPrompt is used when no AuthenticationPrompt is configured.
type denyPrompt struct{}

func (denyPrompt) Authenticate(context.Context, string) bool { return false }

// offlineChannel is used when no CommandChannel is configured.
type offlineChannel struct{}

func (offlineChannel) Send(context.Context, string, any) bool { return false }
func (offlineChannel) Subscribe(string, func(context.Context, json.RawMessage)) uint64 {
	return 0
}
func (offlineChannel) Unsubscribe(uint64)                  {}
func (offlineChannel) OnConnect(func(ctx context.Context)) {}
