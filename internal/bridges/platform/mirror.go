package platform

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-sentinel/internal/security"
)

// PublishSecurityState publishes status retained on the security state
// topic, so the platform sees the current lock state as soon as it
// subscribes. It implements security.StatusMirror.
func (b *Bridge) PublishSecurityState(_ context.Context, status security.Status) error {
	if err := b.mqtt.PublishJSON(b.topics.SecurityState(), status, true); err != nil {
		return fmt.Errorf("publishing security state: %w", err)
	}
	return nil
}

// RecordEvent forwards ev to the security events topic. It implements
// security.EventSink.
func (b *Bridge) RecordEvent(_ context.Context, ev security.Event) error {
	if err := b.mqtt.PublishJSON(b.topics.SecurityEvents(), ev, false); err != nil {
		return fmt.Errorf("publishing security event: %w", err)
	}
	return nil
}
