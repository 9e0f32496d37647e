package security

import (
	"context"
	"math"
	"time"
)

// RecordFailedAttempt counts a failed authentication of the given kind.
//
// When autoLockEnabled and the counter reaches maxFailedAttempts the
// device is locked and the counter is reset to 0 in the same step, so a
// stuck counter cannot re-trigger. Attempts made while already locked
// are recorded but not counted.
func (e *Engine) RecordFailedAttempt(ctx context.Context, kind string) {
	e.mu.Lock()
	locked := e.state == Locked
	if !locked {
		e.failedAttempts++
	}
	count := e.failedAttempts
	ev := e.recordEventLocked(EventFailedAttempt, map[string]any{
		"kind":   kind,
		"count":  count,
		"locked": locked,
	})
	trigger := !locked && e.settings.AutoLockEnabled && count >= e.settings.MaxFailedAttempts
	if trigger {
		e.failedAttempts = 0
	}
	e.mu.Unlock()

	e.logger.Info("failed attempt recorded", "kind", kind, "count", count)
	e.emit(ctx, ev)
	e.channel.Send(ctx, ChannelSecurityEvent, eventPayload(ev))

	if trigger && e.enterLockState(ctx, ReasonAutoLock, map[string]any{"attempts": count, "kind": kind}) {
		return
	}
	e.persist(ctx)
}

// HandleMovementDetected evaluates one motion sample. The first sample
// after arming only seeds the baseline; afterwards the magnitude is the
// Euclidean distance to the previous sample. Exceeding the threshold
// outside a cooldown locks the device and arms the cooldown.
func (e *Engine) HandleMovementDetected(ctx context.Context, sample MotionSample) {
	e.mu.Lock()
	if e.closed || !e.settings.MovementLockEnabled {
		e.mu.Unlock()
		return
	}
	prev, hadBaseline := e.lastMotion, e.hasMotion
	e.lastMotion, e.hasMotion = sample, true
	if !hadBaseline {
		e.mu.Unlock()
		return
	}

	magnitude := math.Sqrt(
		(sample.X-prev.X)*(sample.X-prev.X) +
			(sample.Y-prev.Y)*(sample.Y-prev.Y) +
			(sample.Z-prev.Z)*(sample.Z-prev.Z),
	)
	threshold := e.settings.MovementThreshold
	fire := magnitude > threshold && !e.coolingLocked(ReasonMovementLock)
	if fire {
		e.armCooldownLocked(ReasonMovementLock)
	}
	e.mu.Unlock()

	if e.motion != nil {
		e.motion.RecordMotion(magnitude, threshold)
	}
	if !fire {
		return
	}

	e.logger.Info("movement threshold exceeded", "magnitude", magnitude, "threshold", threshold)
	e.enterLockState(ctx, ReasonMovementLock, map[string]any{
		"magnitude": magnitude,
		"threshold": threshold,
	})
}

// HandleTouchDetected evaluates a touch event. A touch counts once
// touchSensitivityMs have passed since the feature was armed, leaving
// the owner a grace period.
func (e *Engine) HandleTouchDetected(ctx context.Context) {
	e.mu.Lock()
	if e.closed || !e.settings.DontTouchLockEnabled {
		e.mu.Unlock()
		return
	}
	elapsed := e.clock.Now().Sub(e.touchArmedAt)
	sensitivity := time.Duration(e.settings.TouchSensitivityMs) * time.Millisecond
	fire := elapsed >= sensitivity && !e.coolingLocked(ReasonDontTouchLock)
	if fire {
		e.armCooldownLocked(ReasonDontTouchLock)
	}
	e.mu.Unlock()

	if !fire {
		return
	}
	e.TriggerDontTouchLock(ctx)
}

// TriggerDontTouchLock locks the device and disarms the don't-touch
// feature. dontTouchLockEnabled is always false afterwards, and the
// change is announced over the channel.
func (e *Engine) TriggerDontTouchLock(ctx context.Context) {
	e.mu.Lock()
	wasEnabled := e.settings.DontTouchLockEnabled
	e.settings.DontTouchLockEnabled = false
	disarm := e.recordEventLocked(EventDontTouchDisarm, map[string]any{"wasEnabled": wasEnabled})
	e.mu.Unlock()

	e.emit(ctx, disarm)
	e.reconcileFeatures()

	if !e.enterLockState(ctx, ReasonDontTouchLock, nil) {
		e.persist(ctx)
		e.PublishStatus(ctx)
	}

	e.channel.Send(ctx, ChannelSettingsChanged, map[string]any{
		"dontTouchLockEnabled": false,
		"reason":               "auto_disarm",
		"settings":             e.Settings(),
	})
}

// HandleHardwareTrigger locks the device for a usb, app or screen event
// when the matching feature is enabled. It reports whether the device
// transitioned to locked.
func (e *Engine) HandleHardwareTrigger(ctx context.Context, kind string) bool {
	e.mu.Lock()
	var reason string
	var enabled bool
	switch kind {
	case HardwareUSB:
		reason, enabled = ReasonUSBLock, e.settings.USBLockEnabled
	case HardwareApp:
		reason, enabled = ReasonAppLock, e.settings.AppLockEnabled
	case HardwareScreen:
		reason, enabled = ReasonScreenLock, e.settings.ScreenLockEnabled
	default:
		e.mu.Unlock()
		e.logger.Warn("unknown hardware trigger", "kind", kind)
		return false
	}
	fire := enabled && !e.closed && !e.coolingLocked(reason)
	if fire {
		e.armCooldownLocked(reason)
	}
	e.mu.Unlock()

	if !fire {
		return false
	}
	return e.enterLockState(ctx, reason, map[string]any{"kind": kind})
}

// coolingLocked reports whether kind is inside its cooldown window.
// Caller holds e.mu.
func (e *Engine) coolingLocked(kind string) bool {
	_, ok := e.cooldowns[kind]
	return ok
}

// armCooldownLocked opens a cooldown window for kind. Caller holds e.mu.
func (e *Engine) armCooldownLocked(kind string) {
	if old, ok := e.cooldowns[kind]; ok {
		old.timer.Stop()
	}
	e.cooldownGen++
	gen := e.cooldownGen
	c := &cooldown{gen: gen}
	e.cooldowns[kind] = c
	c.timer = e.clock.AfterFunc(e.cfg.Cooldown, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if cur, ok := e.cooldowns[kind]; ok && cur.gen == gen {
			delete(e.cooldowns, kind)
		}
	})
}

// cancelCooldownLocked closes the cooldown window for kind. Caller holds e.mu.
func (e *Engine) cancelCooldownLocked(kind string) {
	if c, ok := e.cooldowns[kind]; ok {
		c.timer.Stop()
		delete(e.cooldowns, kind)
	}
}
