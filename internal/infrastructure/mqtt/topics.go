package mqtt

import "strings"

// DefaultTopicPrefix is used when the configuration leaves topic_prefix empty.
const DefaultTopicPrefix = "sentinel"

// Topics builds the platform bridge topic hierarchy under a prefix.
//
//	topics := mqtt.NewTopics("sentinel")
//	topics.SensorMotion()        // "sentinel/sensor/motion"
//	topics.MediaRequest("r-1")   // "sentinel/media/request/r-1"
type Topics struct {
	prefix string
}

// NewTopics returns builders for prefix. Leading and trailing slashes are
// trimmed; an empty prefix selects DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the topic prefix.
func (t Topics) Prefix() string {
	if t.prefix == "" {
		return DefaultTopicPrefix
	}
	return t.prefix
}

func (t Topics) join(parts ...string) string {
	return t.Prefix() + "/" + strings.Join(parts, "/")
}

// =============================================================================
// Sensor Topics (platform → sentinel)
// =============================================================================

// SensorMotion carries accelerometer samples: {"x":..,"y":..,"z":..}.
func (t Topics) SensorMotion() string { return t.join("sensor", "motion") }

// SensorTouch carries touch events. The payload is ignored.
func (t Topics) SensorTouch() string { return t.join("sensor", "touch") }

// SensorHardware carries hardware triggers: {"kind":"usb"|"app"|"screen"}.
func (t Topics) SensorHardware() string { return t.join("sensor", "hardware") }

// =============================================================================
// Media Topics (request/response)
// =============================================================================

// MediaRequest is where a capture or alarm request with the given id is published.
func (t Topics) MediaRequest(requestID string) string {
	return t.join("media", "request", requestID)
}

// MediaResponse is where the platform answers request id.
func (t Topics) MediaResponse(requestID string) string {
	return t.join("media", "response", requestID)
}

// AllMediaResponses matches every media response.
func (t Topics) AllMediaResponses() string { return t.join("media", "response", "+") }

// =============================================================================
// Security Mirror Topics (sentinel → platform)
// =============================================================================

// SecurityState is the retained engine status, so the bridge can show or
// enforce the lock screen without asking.
func (t Topics) SecurityState() string { return t.join("security", "state") }

// SecurityEvents carries every recorded security event, not retained.
func (t Topics) SecurityEvents() string { return t.join("security", "events") }

// =============================================================================
// Location and System Topics
// =============================================================================

// Location is the retained last-known position: {"latitude":..,"longitude":..}.
func (t Topics) Location() string { return t.join("location") }

// SystemStatus is the retained online/offline status of the daemon (LWT).
func (t Topics) SystemStatus() string { return t.join("system", "status") }

// AllTopics matches everything under the prefix.
func (t Topics) AllTopics() string { return t.join("#") }

// RequestID extracts the trailing segment of a media response topic.
// It returns "" if topic is not a media response.
func (t Topics) RequestID(topic string) string {
	base := t.join("media", "response") + "/"
	if !strings.HasPrefix(topic, base) {
		return ""
	}
	id := strings.TrimPrefix(topic, base)
	if id == "" || strings.Contains(id, "/") {
		return ""
	}
	return id
}
