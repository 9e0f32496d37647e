package mqtt

import (
	"encoding/json"
	"fmt"
)

// maxPayloadSize caps a single message at 1MB, the usual broker limit.
const maxPayloadSize = 1 << 20

// validate checks the arguments shared by Publish and Subscribe.
func validate(topic string, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	return nil
}

// Publish sends payload to topic and waits for the broker to acknowledge
// it at the requested QoS.
//
// Media requests go out non-retained at QoS 1. Retained publishes are
// for state the bridge must see on (re)subscribe, such as the security
// state mirror.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := validate(topic, qos); err != nil {
		return err
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrPayloadTooLarge, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return await(c.paho.Publish(topic, qos, retained, payload), defaultPublishTimeout, ErrPublishFailed)
}

// PublishJSON encodes v and publishes it at the configured default QoS.
func (c *Client) PublishJSON(topic string, v any, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encoding payload: %w", ErrPublishFailed, err)
	}
	return c.Publish(topic, payload, c.QoS(), retained)
}
