package platform

import "time"

// Media actions understood by the platform bridge.
const (
	ActionCapturePhoto = "capture_photo"
	ActionCaptureVideo = "capture_video"
	ActionStartAlarm   = "start_alarm"
	ActionStopAlarm    = "stop_alarm"
)

// errPermissionDenied is the platform's error code for a refused
// permission (camera, microphone).
const errPermissionDenied = "permission_denied"

// MediaRequest is published to media/request/{requestId}.
type MediaRequest struct {
	RequestID  string `json:"request_id"`
	Action     string `json:"action"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// MediaResponse is published by the platform to media/response/{requestId}.
type MediaResponse struct {
	RequestID string `json:"request_id"`
	Success   bool   `json:"success"`
	// Ref identifies the captured file, for capture actions.
	Ref   string `json:"ref,omitempty"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// MotionMessage is one accelerometer sample on sensor/motion.
type MotionMessage struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HardwareMessage is one hardware trigger on sensor/hardware.
type HardwareMessage struct {
	Kind string `json:"kind"`
}

// LocationMessage is the retained payload on the location topic.
type LocationMessage struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
}

func newMediaRequest(id, action string, d time.Duration, now time.Time) MediaRequest {
	return MediaRequest{
		RequestID:  id,
		Action:     action,
		DurationMs: d.Milliseconds(),
		Timestamp:  now.UTC().Format(time.RFC3339),
	}
}
