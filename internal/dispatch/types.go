package dispatch

import (
	"encoding/json"
	"strings"
)

// Channel event names.
const (
	EventCommand = "device-command"
	EventAck     = "command-ack"
)

// Status is an acknowledgment status.
type Status string

// Acknowledgment statuses. Completed and Failed are terminal.
const (
	StatusReceived  Status = "received"
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether s ends a command.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Owners of command types.
const (
	OwnerSecurity = "security"
	OwnerMedia    = "media"
	OwnerLocation = "location"
)

// Command is an inbound command envelope.
type Command struct {
	CommandID string          `json:"commandId"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Ack is an outbound acknowledgment.
type Ack struct {
	CommandID string `json:"commandId"`
	Status    Status `json:"status"`
	Response  any    `json:"response,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// securityPrefixes mark command types that belong to the security
// namespace even when no handler is registered for them.
var securityPrefixes = []string{"remote-", "enable_", "disable_"}

func inSecurityNamespace(commandType string) bool {
	for _, prefix := range securityPrefixes {
		if strings.HasPrefix(commandType, prefix) {
			return true
		}
	}
	return false
}

// externalTypes are command types answered by other collaborators.
var externalTypes = map[string]string{
	"capture_photo":   OwnerMedia,
	"capture_video":   OwnerMedia,
	"start_recording": OwnerMedia,
	"stop_recording":  OwnerMedia,
	"take_screenshot": OwnerMedia,
	"play_sound":      OwnerMedia,
	"get_location":    OwnerLocation,
	"location_update": OwnerLocation,
}
