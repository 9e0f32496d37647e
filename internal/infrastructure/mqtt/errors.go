package mqtt

import "errors"

// Bridge link errors. Match with errors.Is.
var (
	// ErrNotConnected means the broker link is down. The platform bridge
	// cannot be reached until paho reconnects.
	ErrNotConnected = errors.New("mqtt: bridge link down")

	// ErrConnectionFailed wraps a failed initial connect.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed wraps a publish the broker did not acknowledge.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed wraps a rejected or timed-out subscription.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrUnsubscribeFailed wraps a rejected or timed-out unsubscribe.
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS is returned for a QoS above 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic is returned for an empty topic.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")

	// ErrPayloadTooLarge is returned for payloads above maxPayloadSize.
	ErrPayloadTooLarge = errors.New("mqtt: payload too large")
)
