package security

import (
	"context"
	"encoding/json"
	"time"
)

// enterLockState is the single Locked-entry routine. It is a no-op when
// already locked, so the side-effect bundle (alarm, photo, alert, event)
// runs once per transition whatever the trigger source. It reports
// whether a transition happened.
//
// State, counter and event are updated under the mutex before any I/O.
// Side-effect failures are logged and never undo the lock. An unlock
// that lands while the bundle is running cancels the remaining steps.
func (e *Engine) enterLockState(ctx context.Context, reason string, details map[string]any) bool {
	e.mu.Lock()
	if e.closed || e.state == Locked {
		e.mu.Unlock()
		e.logger.Debug("lock trigger ignored, already locked", "reason", reason)
		return false
	}
	e.state = Locked
	e.failedAttempts = 0
	e.lockGen++
	gen := e.lockGen
	ev := e.recordEventLocked(reason+"_triggered", details)
	e.mu.Unlock()

	e.logger.Warn("device locked", "reason", reason)

	e.emit(ctx, ev)
	e.persist(ctx)

	stillLocked := func() bool { return !e.closed && e.state == Locked && e.lockGen == gen }
	if !e.lockedAt(stillLocked) {
		e.logger.Info("lock side effects cancelled, device unlocked", "reason", reason)
		return true
	}
	e.startAlarm(ctx, e.cfg.AlarmDuration, stillLocked)
	if !e.lockedAt(stillLocked) {
		e.logger.Info("lock side effects cancelled, device unlocked", "reason", reason)
		return true
	}

	alert := eventPayload(ev)
	alert["reason"] = reason
	if photo := e.capturePhoto(ctx); photo != "" {
		alert["photo"] = photo
	}
	if loc, ok := e.currentLocation(ctx); ok {
		alert["location"] = loc
	}
	if !e.lockedAt(stillLocked) {
		e.logger.Info("security alert dropped, device unlocked", "reason", reason)
		return true
	}
	if !e.channel.Send(ctx, ChannelSecurityAlert, alert) {
		e.logger.Debug("security alert not delivered, status republished on reconnect", "reason", reason)
	}
	e.PublishStatus(ctx)
	return true
}

// lockedAt evaluates cond under the mutex.
func (e *Engine) lockedAt(cond func() bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cond()
}

// TriggerAutoLock locks the device as if the failed-attempt threshold
// had been reached.
func (e *Engine) TriggerAutoLock(ctx context.Context) bool {
	return e.enterLockState(ctx, ReasonAutoLock, nil)
}

// RemoteLock locks the device on behalf of the dashboard. details are
// attached to the recorded event.
func (e *Engine) RemoteLock(ctx context.Context, details map[string]any) bool {
	if details == nil {
		details = map[string]any{}
	}
	details["source"] = "remote"
	return e.enterLockState(ctx, ReasonRemoteLock, details)
}

// UnlockDevice asks the configured AuthenticationPrompt and unlocks on
// success. On failure the lock state and the failed-attempt counter are
// unchanged.
func (e *Engine) UnlockDevice(ctx context.Context, method string) bool {
	return e.UnlockWithPrompt(ctx, method, e.auth)
}

// UnlockWithPrompt is UnlockDevice with an explicit prompt, for callers
// that collect credentials themselves.
func (e *Engine) UnlockWithPrompt(ctx context.Context, method string, prompt AuthenticationPrompt) bool {
	if prompt == nil {
		prompt = denyPrompt{}
	}

	if !prompt.Authenticate(ctx, "Unlock device") {
		e.mu.Lock()
		ev := e.recordEventLocked(EventUnlockDenied, map[string]any{"method": method})
		e.mu.Unlock()

		e.logger.Warn("unlock denied", "method", method)
		e.emit(ctx, ev)
		e.persist(ctx)
		return false
	}

	e.unlock(ctx, method)
	return true
}

// RemoteUnlock unlocks the device on behalf of the dashboard. It
// requires remoteResetEnabled.
func (e *Engine) RemoteUnlock(ctx context.Context) error {
	e.mu.Lock()
	allowed := e.settings.RemoteResetEnabled
	e.mu.Unlock()

	if !allowed {
		e.logger.Warn("remote unlock refused, remote reset disabled")
		return ErrRemoteUnlockDisabled
	}

	e.unlock(ctx, "remote")
	return nil
}

// unlock performs the Unlocked transition for an authorized caller.
func (e *Engine) unlock(ctx context.Context, method string) {
	e.mu.Lock()
	wasLocked := e.state == Locked
	e.state = Unlocked
	e.lockGen++
	e.failedAttempts = 0
	e.hasMotion = false
	e.touchArmedAt = e.clock.Now()
	ev := e.recordEventLocked(EventDeviceUnlocked, map[string]any{
		"method":    method,
		"wasLocked": wasLocked,
	})
	e.mu.Unlock()

	e.logger.Info("device unlocked", "method", method, "was_locked", wasLocked)

	e.stopAlarm(ctx)
	e.emit(ctx, ev)
	e.persist(ctx)
	e.channel.Send(ctx, ChannelSecurityEvent, eventPayload(ev))
	e.PublishStatus(ctx)
}

// StopAlarm silences the active alarm. It reports whether one was active.
func (e *Engine) StopAlarm(ctx context.Context) bool {
	if !e.stopAlarm(ctx) {
		return false
	}

	e.mu.Lock()
	ev := e.recordEventLocked(EventAlarmStopped, nil)
	e.mu.Unlock()

	e.emit(ctx, ev)
	e.persist(ctx)
	e.PublishStatus(ctx)
	return true
}

// startAlarm sounds the alarm for d, stopping any active alarm first.
// When valid is non-nil it is checked under the mutex and the alarm is
// not started if it reports false.
func (e *Engine) startAlarm(ctx context.Context, d time.Duration, valid func() bool) {
	e.alarmMu.Lock()
	defer e.alarmMu.Unlock()

	e.mu.Lock()
	if valid != nil && !valid() {
		e.mu.Unlock()
		return
	}
	wasActive := e.alarm.active
	e.alarm.gen++
	gen := e.alarm.gen
	e.alarm.timer.Stop()
	e.alarm.timer = nil
	e.alarm.active = true
	e.mu.Unlock()

	if wasActive {
		if err := e.media.StopAlarm(ctx); err != nil {
			e.logger.Warn("stopping previous alarm failed", "error", err)
		}
	}

	if err := e.media.StartAlarm(ctx, d); err != nil {
		e.logger.Warn("starting alarm failed", "error", err)
		e.mu.Lock()
		if e.alarm.gen == gen {
			e.alarm.active = false
		}
		e.mu.Unlock()
		return
	}

	timer := e.clock.AfterFunc(d, func() { e.expireAlarm(gen) })

	e.mu.Lock()
	if e.alarm.gen == gen {
		e.alarm.timer = timer
	} else {
		timer.Stop()
	}
	e.mu.Unlock()
}

// expireAlarm marks the alarm finished if gen is still current.
func (e *Engine) expireAlarm(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.alarm.gen != gen {
		return
	}
	e.alarm.active = false
	e.alarm.timer = nil
}

// stopAlarm silences the alarm. It reports whether one was active.
func (e *Engine) stopAlarm(ctx context.Context) bool {
	e.alarmMu.Lock()
	defer e.alarmMu.Unlock()

	e.mu.Lock()
	wasActive := e.alarm.active
	e.alarm.gen++
	e.alarm.timer.Stop()
	e.alarm.timer = nil
	e.alarm.active = false
	e.mu.Unlock()

	if !wasActive {
		return false
	}
	if err := e.media.StopAlarm(ctx); err != nil {
		e.logger.Warn("stopping alarm failed", "error", err)
	}
	return true
}

// capturePhoto takes a best-effort photo. It returns "" on failure.
func (e *Engine) capturePhoto(ctx context.Context) string {
	ref, err := e.media.CapturePhoto(ctx)
	if err != nil {
		e.logger.Warn("photo capture failed", "error", err)
		return ""
	}
	return ref
}

// currentLocation returns the last known location, if any.
func (e *Engine) currentLocation(ctx context.Context) (Location, bool) {
	if e.location == nil {
		return Location{}, false
	}
	loc, err := e.location.CurrentLocation(ctx)
	if err != nil {
		e.logger.Debug("location unavailable", "error", err)
		return Location{}, false
	}
	return loc, true
}

// Channel handlers for direct (non-envelope) remote events.

func (e *Engine) onRemoteLock(ctx context.Context, data json.RawMessage) {
	var details map[string]any
	if len(data) > 0 {
		if err := json.Unmarshal(data, &details); err != nil {
			e.logger.Debug("remote-lock payload ignored", "error", err)
			details = nil
		}
	}
	e.RemoteLock(ctx, details)
}

func (e *Engine) onRemoteUnlock(ctx context.Context, _ json.RawMessage) {
	if err := e.RemoteUnlock(ctx); err != nil {
		e.logger.Warn("remote unlock failed", "error", err)
	}
}

func (e *Engine) onRemoteSettingsUpdate(ctx context.Context, data json.RawMessage) {
	if _, _, err := e.UpdateSettings(ctx, data); err != nil {
		e.logger.Warn("remote settings update failed", "error", err)
	}
}
