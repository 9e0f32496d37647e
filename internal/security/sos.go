package security

import (
	"context"
)

// TriggerSOSAlert raises an SOS independent of the lock state: a long
// alarm, a photo followed shortly by a video, a high-priority alert, and
// a periodic location broadcast that stops on its own after the
// configured ceiling. Triggering while active restarts the window.
func (e *Engine) TriggerSOSAlert(ctx context.Context, method string) error {
	e.mu.Lock()
	if e.closed || !e.settings.SOSEnabled {
		e.mu.Unlock()
		return ErrSOSDisabled
	}
	restarted := e.sos.active
	e.sos.timer.Stop()
	e.sos.video.Stop()
	e.sos.timer, e.sos.video = nil, nil
	e.sos.gen++
	gen := e.sos.gen
	e.sos.active = true
	e.sos.started = e.clock.Now()
	ev := e.recordEventLocked(EventSOSTriggered, map[string]any{
		"method":    method,
		"restarted": restarted,
	})
	e.mu.Unlock()

	e.logger.Warn("SOS triggered", "method", method, "restarted", restarted)

	e.emit(ctx, ev)
	e.persist(ctx)
	e.startAlarm(ctx, e.cfg.SOSAlarmDuration, nil)

	alert := eventPayload(ev)
	alert["priority"] = "high"
	if photo := e.capturePhoto(ctx); photo != "" {
		alert["photo"] = photo
	}
	if loc, ok := e.currentLocation(ctx); ok {
		alert["location"] = loc
	}
	e.channel.Send(ctx, ChannelSecurityAlert, alert)

	e.scheduleSOSVideo(gen)
	e.scheduleSOSBroadcast(gen)
	e.PublishStatus(ctx)
	return nil
}

// StopSOS ends an active SOS. It reports whether one was active.
func (e *Engine) StopSOS(ctx context.Context) bool {
	return e.stopSOS(ctx, 0, "stopped")
}

// stopSOS ends the SOS if active and, when gen is non-zero, still the
// current generation.
func (e *Engine) stopSOS(ctx context.Context, gen uint64, reason string) bool {
	e.mu.Lock()
	if !e.sos.active || (gen != 0 && gen != e.sos.gen) {
		e.mu.Unlock()
		return false
	}
	e.sos.active = false
	e.sos.gen++
	e.sos.timer.Stop()
	e.sos.video.Stop()
	e.sos.timer, e.sos.video = nil, nil
	elapsed := e.clock.Now().Sub(e.sos.started)
	ev := e.recordEventLocked(EventSOSStopped, map[string]any{
		"reason":          reason,
		"durationSeconds": int(elapsed.Seconds()),
	})
	e.mu.Unlock()

	e.logger.Info("SOS stopped", "reason", reason, "elapsed", elapsed)

	e.stopAlarm(ctx)
	e.emit(ctx, ev)
	e.persist(ctx)
	e.channel.Send(ctx, ChannelSecurityEvent, eventPayload(ev))
	e.PublishStatus(ctx)
	return true
}

// sosCurrent reports whether gen is the active SOS generation.
func (e *Engine) sosCurrent(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sos.active && e.sos.gen == gen
}

func (e *Engine) scheduleSOSVideo(gen uint64) {
	timer := e.clock.AfterFunc(e.cfg.SOSVideoDelay, func() {
		if !e.sosCurrent(gen) {
			return
		}
		ref, err := e.media.CaptureVideo(e.runCtx, e.cfg.SOSVideoDuration)
		if err != nil {
			e.logger.Warn("SOS video capture failed", "error", err)
			return
		}
		e.channel.Send(e.runCtx, ChannelSecurityEvent, map[string]any{
			"type":      "sos_video_captured",
			"video":     ref,
			"timestamp": unixMillis(e.clock.Now()),
		})
	})

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sos.gen == gen {
		e.sos.video = timer
	} else {
		timer.Stop()
	}
}

func (e *Engine) scheduleSOSBroadcast(gen uint64) {
	timer := e.clock.AfterFunc(e.cfg.SOSInterval, func() { e.sosTick(gen) })

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sos.gen == gen {
		e.sos.timer = timer
	} else {
		timer.Stop()
	}
}

// sosTick broadcasts the location and reschedules itself until the
// ceiling is reached.
func (e *Engine) sosTick(gen uint64) {
	e.mu.Lock()
	if !e.sos.active || e.sos.gen != gen {
		e.mu.Unlock()
		return
	}
	expired := e.clock.Now().Sub(e.sos.started) >= e.cfg.SOSMaxDuration
	e.mu.Unlock()

	if expired {
		e.stopSOS(e.runCtx, gen, "max_duration")
		return
	}

	if loc, ok := e.currentLocation(e.runCtx); ok {
		e.channel.Send(e.runCtx, ChannelSOSLocation, map[string]any{
			"latitude":  loc.Latitude,
			"longitude": loc.Longitude,
			"timestamp": unixMillis(e.clock.Now()),
		})
	}
	e.scheduleSOSBroadcast(gen)
}
