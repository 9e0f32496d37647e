package security

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
)

// Sensor feeds managed by reconcileFeatures.
const (
	feedMotion   = "motion"
	feedTouch    = "touch"
	feedHardware = "hardware"
)

var errNoSensorFeed = errors.New("security: no sensor feed configured")

// UpdateSettings merges a partial settings object field by field.
//
// Each field is validated on its own: a rejected field keeps its prior
// value and is listed in the returned names, the others still apply.
// Enabling a feature starts its sensor subscription, disabling it tears
// the subscription and its cooldown down. The merged settings are
// persisted and a status snapshot is republished.
//
// The only error is ErrInvalidSettings, for a payload that is not a
// JSON object.
func (e *Engine) UpdateSettings(ctx context.Context, payload json.RawMessage) (Settings, []string, error) {
	var partial map[string]json.RawMessage
	if err := json.Unmarshal(payload, &partial); err != nil || partial == nil {
		return e.Settings(), nil, ErrInvalidSettings
	}
	return e.applySettings(ctx, partial)
}

// SetFeatureEnabled toggles one lock feature by name (movement_lock,
// dont_touch, usb_lock, app_lock, screen_lock).
func (e *Engine) SetFeatureEnabled(ctx context.Context, feature string, enabled bool) (Settings, error) {
	field, ok := featureFields[feature]
	if !ok {
		return e.Settings(), ErrUnknownFeature
	}
	raw, err := json.Marshal(enabled)
	if err != nil {
		return e.Settings(), err
	}
	s, _, err := e.applySettings(ctx, map[string]json.RawMessage{field: raw})
	return s, err
}

func (e *Engine) applySettings(ctx context.Context, partial map[string]json.RawMessage) (Settings, []string, error) {
	e.mu.Lock()
	prev := e.settings
	merged, rejected := prev.Merge(partial)
	e.settings = merged

	if !prev.DontTouchLockEnabled && merged.DontTouchLockEnabled {
		e.touchArmedAt = e.clock.Now()
	}
	if prev.MovementLockEnabled && !merged.MovementLockEnabled {
		e.hasMotion = false
		e.cancelCooldownLocked(ReasonMovementLock)
	}
	if !merged.DontTouchLockEnabled {
		e.cancelCooldownLocked(ReasonDontTouchLock)
	}
	if !merged.USBLockEnabled {
		e.cancelCooldownLocked(ReasonUSBLock)
	}
	if !merged.AppLockEnabled {
		e.cancelCooldownLocked(ReasonAppLock)
	}
	if !merged.ScreenLockEnabled {
		e.cancelCooldownLocked(ReasonScreenLock)
	}
	stopSOS := !merged.SOSEnabled && e.sos.active

	applied := make([]string, 0, len(partial))
	for name := range partial {
		if !slices.Contains(rejected, name) {
			applied = append(applied, name)
		}
	}
	slices.Sort(applied)

	payload := map[string]any{"fields": applied}
	if len(rejected) > 0 {
		payload["rejected"] = rejected
	}
	ev := e.recordEventLocked(EventSettingsUpdated, payload)
	e.mu.Unlock()

	if len(rejected) > 0 {
		e.logger.Warn("settings fields rejected", "fields", rejected)
	}
	e.logger.Info("settings updated", "fields", applied)

	e.reconcileFeatures()
	if stopSOS {
		e.stopSOS(ctx, 0, "disabled")
	}

	e.emit(ctx, ev)
	e.persist(ctx)
	e.channel.Send(ctx, ChannelSettingsChanged, merged)
	e.PublishStatus(ctx)

	return merged, rejected, nil
}

// reconcileFeatures starts or stops sensor subscriptions so that they
// match the current settings. A subscription failure degrades only its
// own feature.
func (e *Engine) reconcileFeatures() {
	e.featureMu.Lock()
	defer e.featureMu.Unlock()

	e.mu.Lock()
	s, closed := e.settings, e.closed
	e.mu.Unlock()

	want := map[string]bool{
		feedMotion:   !closed && s.MovementLockEnabled,
		feedTouch:    !closed && s.DontTouchLockEnabled,
		feedHardware: !closed && (s.USBLockEnabled || s.AppLockEnabled || s.ScreenLockEnabled),
	}

	for _, feed := range []string{feedMotion, feedTouch, feedHardware} {
		sub, have := e.subs[feed]
		switch {
		case want[feed] && !have:
			newSub, err := e.subscribe(feed)
			if err != nil {
				e.logger.Warn("sensor subscription failed, feature degraded", "feed", feed, "error", err)
				continue
			}
			e.subs[feed] = newSub
			e.logger.Debug("sensor subscription started", "feed", feed)
		case !want[feed] && have:
			if err := sub.Close(); err != nil {
				e.logger.Debug("closing sensor subscription", "feed", feed, "error", err)
			}
			delete(e.subs, feed)
			e.logger.Debug("sensor subscription stopped", "feed", feed)
		}
	}
}

func (e *Engine) subscribe(feed string) (Subscription, error) {
	if e.sensors == nil {
		return nil, errNoSensorFeed
	}
	switch feed {
	case feedMotion:
		return e.sensors.SubscribeMotion(func(s MotionSample) {
			e.HandleMovementDetected(e.runCtx, s)
		})
	case feedTouch:
		return e.sensors.SubscribeTouch(func() {
			e.HandleTouchDetected(e.runCtx)
		})
	default:
		return e.sensors.SubscribeHardware(func(kind string) {
			e.HandleHardwareTrigger(e.runCtx, kind)
		})
	}
}
