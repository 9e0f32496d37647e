package security

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-sentinel/internal/store"
)

func TestRecordFailedAttempt_AutoLock(t *testing.T) {
	h := newHarness(t, func(s *Settings) { s.MaxFailedAttempts = 3 })
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		h.engine.RecordFailedAttempt(ctx, "auth")
	}

	if !h.engine.IsLocked() {
		t.Fatal("IsLocked() = false after reaching maxFailedAttempts")
	}
	if got := h.engine.FailedAttempts(); got != 0 {
		t.Errorf("FailedAttempts() = %d, want 0", got)
	}
	if got := countEvents(h.engine.Events(), "auto_lock_triggered"); got != 1 {
		t.Errorf("auto_lock_triggered events = %d, want 1", got)
	}

	photos, alarms, _ := h.media.snapshot()
	if photos != 1 || alarms != 1 {
		t.Errorf("photos=%d alarms=%d, want 1 and 1", photos, alarms)
	}
	if got := h.channel.count(ChannelSecurityAlert); got != 1 {
		t.Errorf("security alerts = %d, want 1", got)
	}
	if got := countEvents(h.sink.events, "auto_lock_triggered"); got != 1 {
		t.Errorf("sink auto_lock_triggered = %d, want 1", got)
	}
}

func TestRecordFailedAttempt_BeyondThreshold(t *testing.T) {
	for _, n := range []int{3, 4, 7, 12} {
		h := newHarness(t, func(s *Settings) { s.MaxFailedAttempts = 3 })
		for i := 0; i < n; i++ {
			h.engine.RecordFailedAttempt(context.Background(), "auth")
		}

		if !h.engine.IsLocked() {
			t.Errorf("n=%d: IsLocked() = false", n)
		}
		if got := h.engine.FailedAttempts(); got != 0 {
			t.Errorf("n=%d: FailedAttempts() = %d, want 0", n, got)
		}
		if got := countEvents(h.engine.Events(), "auto_lock_triggered"); got != 1 {
			t.Errorf("n=%d: auto_lock_triggered events = %d, want 1", n, got)
		}
		if got := countEvents(h.engine.Events(), EventFailedAttempt); got != n {
			t.Errorf("n=%d: failed_attempt events = %d, want %d", n, got, n)
		}
	}
}

func TestRecordFailedAttempt_AutoLockDisabled(t *testing.T) {
	h := newHarness(t, func(s *Settings) {
		s.MaxFailedAttempts = 2
		s.AutoLockEnabled = false
	})

	for i := 0; i < 5; i++ {
		h.engine.RecordFailedAttempt(context.Background(), "pin")
	}

	if h.engine.IsLocked() {
		t.Error("IsLocked() = true with autoLockEnabled=false")
	}
	if got := h.engine.FailedAttempts(); got != 5 {
		t.Errorf("FailedAttempts() = %d, want 5", got)
	}
}

func TestEnterLockState_Idempotent(t *testing.T) {
	h := newHarness(t, func(s *Settings) {
		s.USBLockEnabled = true
		s.AppLockEnabled = true
	})
	ctx := context.Background()

	if !h.engine.TriggerAutoLock(ctx) {
		t.Fatal("first TriggerAutoLock() = false, want transition")
	}
	if h.engine.TriggerAutoLock(ctx) {
		t.Error("second TriggerAutoLock() = true, want no-op")
	}
	if h.engine.RemoteLock(ctx, nil) {
		t.Error("RemoteLock() while locked = true, want no-op")
	}
	if h.engine.HandleHardwareTrigger(ctx, HardwareUSB) {
		t.Error("HandleHardwareTrigger() while locked = true, want no-op")
	}

	photos, alarms, _ := h.media.snapshot()
	if photos != 1 || alarms != 1 {
		t.Errorf("photos=%d alarms=%d, want exactly one side-effect bundle", photos, alarms)
	}
	if got := h.channel.count(ChannelSecurityAlert); got != 1 {
		t.Errorf("security alerts = %d, want 1", got)
	}
}

func TestEnterLockState_ConcurrentTriggers(t *testing.T) {
	h := newHarness(t, func(s *Settings) {
		s.USBLockEnabled = true
		s.AppLockEnabled = true
		s.ScreenLockEnabled = true
	})
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	transitions := 0
	triggers := []func() bool{
		func() bool { return h.engine.TriggerAutoLock(ctx) },
		func() bool { return h.engine.RemoteLock(ctx, nil) },
		func() bool { return h.engine.HandleHardwareTrigger(ctx, HardwareUSB) },
		func() bool { return h.engine.HandleHardwareTrigger(ctx, HardwareApp) },
		func() bool { return h.engine.HandleHardwareTrigger(ctx, HardwareScreen) },
	}
	for i := 0; i < 20; i++ {
		for _, trigger := range triggers {
			wg.Add(1)
			go func(fire func() bool) {
				defer wg.Done()
				if fire() {
					mu.Lock()
					transitions++
					mu.Unlock()
				}
			}(trigger)
		}
	}
	wg.Wait()

	if transitions != 1 {
		t.Errorf("transitions = %d, want 1", transitions)
	}
	photos, alarms, _ := h.media.snapshot()
	if photos != 1 || alarms != 1 {
		t.Errorf("photos=%d alarms=%d, want 1 and 1", photos, alarms)
	}
}

func TestEnterLockState_SideEffectFailuresDoNotBlock(t *testing.T) {
	h := newHarness(t, nil)
	h.media.photoErr = errors.New("camera busy")
	h.media.alarmErr = ErrPermissionDenied
	h.channel.connected = false

	if !h.engine.TriggerAutoLock(context.Background()) {
		t.Fatal("TriggerAutoLock() = false")
	}
	if !h.engine.IsLocked() {
		t.Error("IsLocked() = false after failing side effects")
	}
	if h.engine.AlarmActive() {
		t.Error("AlarmActive() = true although the alarm failed to start")
	}
}

func TestMovement_CooldownSuppressesRepeats(t *testing.T) {
	h := newHarness(t, func(s *Settings) {
		s.MovementLockEnabled = true
		s.MovementThreshold = 5.0
	})

	if !h.sensors.pushMotion(MotionSample{}) {
		t.Fatal("motion subscription not started")
	}
	if h.engine.IsLocked() {
		t.Fatal("first sample must only seed the baseline")
	}

	// 10 Hz shaking for just under the cooldown window.
	for i := 0; i < 49; i++ {
		x := 10.0
		if i%2 == 1 {
			x = 0
		}
		h.sensors.pushMotion(MotionSample{X: x})
		h.clock.Advance(100 * time.Millisecond)
	}

	if !h.engine.IsLocked() {
		t.Fatal("IsLocked() = false after movement above threshold")
	}
	photos, alarms, _ := h.media.snapshot()
	if photos != 1 || alarms != 1 {
		t.Errorf("photos=%d alarms=%d, want 1 and 1", photos, alarms)
	}
	if got := countEvents(h.engine.Events(), "movement_lock_triggered"); got != 1 {
		t.Errorf("movement_lock_triggered = %d, want 1", got)
	}

	// Unlocked within the window: still suppressed.
	h.engine.UnlockDevice(context.Background(), "biometric")
	h.sensors.pushMotion(MotionSample{})
	h.sensors.pushMotion(MotionSample{X: 20})
	if h.engine.IsLocked() {
		t.Fatal("movement inside cooldown relocked the device")
	}

	// After the window the next large movement locks again.
	h.clock.Advance(DefaultCooldown)
	h.sensors.pushMotion(MotionSample{X: 0})
	if !h.engine.IsLocked() {
		t.Error("movement after cooldown did not lock")
	}
}

func TestMovement_BelowThreshold(t *testing.T) {
	h := newHarness(t, func(s *Settings) {
		s.MovementLockEnabled = true
		s.MovementThreshold = 5.0
	})

	h.sensors.pushMotion(MotionSample{X: 1, Y: 1, Z: 10})
	h.sensors.pushMotion(MotionSample{X: 3, Y: 3, Z: 10}) // |d| = 2.83
	h.sensors.pushMotion(MotionSample{X: 3, Y: 3, Z: 15}) // |d| = 5.0, not above

	if h.engine.IsLocked() {
		t.Error("IsLocked() = true for movement at or below threshold")
	}
}

func TestUnlockDevice(t *testing.T) {
	tests := []struct {
		name       string
		allow      bool
		wantLocked bool
	}{
		{"authenticated", true, false},
		{"denied", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(s *Settings) {
				s.MaxFailedAttempts = 5
				s.USBLockEnabled = true
			})
			ctx := context.Background()
			h.engine.HandleHardwareTrigger(ctx, HardwareUSB)
			h.engine.RecordFailedAttempt(ctx, "pin") // recorded, not counted while locked
			h.prompt.allow = tt.allow

			before := h.engine.FailedAttempts()
			got := h.engine.UnlockDevice(ctx, "biometric")

			if got != tt.allow {
				t.Errorf("UnlockDevice() = %v, want %v", got, tt.allow)
			}
			if h.engine.IsLocked() != tt.wantLocked {
				t.Errorf("IsLocked() = %v, want %v", h.engine.IsLocked(), tt.wantLocked)
			}
			if !tt.allow && h.engine.FailedAttempts() != before {
				t.Errorf("FailedAttempts() changed on denied unlock: %d -> %d", before, h.engine.FailedAttempts())
			}
			if tt.allow && h.engine.AlarmActive() {
				t.Error("alarm still active after unlock")
			}
		})
	}
}

func TestUnlockDevice_ResetsCounter(t *testing.T) {
	h := newHarness(t, func(s *Settings) { s.MaxFailedAttempts = 5 })
	ctx := context.Background()

	h.engine.RecordFailedAttempt(ctx, "pin")
	h.engine.RecordFailedAttempt(ctx, "pin")
	if !h.engine.UnlockDevice(ctx, "pin") {
		t.Fatal("UnlockDevice() = false")
	}
	if got := h.engine.FailedAttempts(); got != 0 {
		t.Errorf("FailedAttempts() = %d, want 0", got)
	}
}

func TestRemoteUnlock(t *testing.T) {
	h := newHarness(t, func(s *Settings) { s.RemoteResetEnabled = false })
	ctx := context.Background()
	h.engine.TriggerAutoLock(ctx)

	if err := h.engine.RemoteUnlock(ctx); !errors.Is(err, ErrRemoteUnlockDisabled) {
		t.Fatalf("RemoteUnlock() error = %v, want ErrRemoteUnlockDisabled", err)
	}
	if !h.engine.IsLocked() {
		t.Fatal("refused remote unlock changed the state")
	}

	if _, _, err := h.engine.UpdateSettings(ctx, json.RawMessage(`{"remoteResetEnabled": true}`)); err != nil {
		t.Fatalf("UpdateSettings() error = %v", err)
	}
	if err := h.engine.RemoteUnlock(ctx); err != nil {
		t.Fatalf("RemoteUnlock() error = %v", err)
	}
	if h.engine.IsLocked() {
		t.Error("IsLocked() = true after remote unlock")
	}
}

func TestUnlockDuringLockSideEffects(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	gate := newGatedSink("remote_lock_triggered")
	h.engine.sinks = append(h.engine.sinks, gate)

	done := make(chan bool, 1)
	go func() { done <- h.engine.RemoteLock(ctx, nil) }()

	<-gate.entered
	if err := h.engine.RemoteUnlock(ctx); err != nil {
		t.Fatalf("RemoteUnlock() error = %v", err)
	}
	close(gate.release)

	if !<-done {
		t.Fatal("RemoteLock() = false, want true")
	}

	st := h.engine.Status()
	if st.Locked {
		t.Error("Status().Locked = true after unlock")
	}
	if st.AlarmActive {
		t.Error("Status().AlarmActive = true after unlock")
	}
	photos, starts, _ := h.media.snapshot()
	if starts != 0 {
		t.Errorf("alarm starts = %d, want 0", starts)
	}
	if photos != 0 {
		t.Errorf("photos = %d, want 0", photos)
	}
	if n := h.channel.count(ChannelSecurityAlert); n != 0 {
		t.Errorf("security alerts sent = %d, want 0", n)
	}
}

func TestTriggerDontTouchLock_AlwaysDisarms(t *testing.T) {
	for _, prior := range []bool{true, false} {
		h := newHarness(t, func(s *Settings) { s.DontTouchLockEnabled = prior })

		h.engine.TriggerDontTouchLock(context.Background())

		if h.engine.Settings().DontTouchLockEnabled {
			t.Errorf("prior=%v: dontTouchLockEnabled = true after trigger", prior)
		}
		if !h.engine.IsLocked() {
			t.Errorf("prior=%v: IsLocked() = false", prior)
		}
		if _, touch, _ := h.sensors.subscribed(); touch {
			t.Errorf("prior=%v: touch subscription still active", prior)
		}
		payload, ok := h.channel.last(ChannelSettingsChanged)
		if !ok {
			t.Fatalf("prior=%v: no settings-changed notification", prior)
		}
		if m, _ := payload.(map[string]any); m["dontTouchLockEnabled"] != false {
			t.Errorf("prior=%v: settings-changed payload = %v", prior, payload)
		}
	}
}

func TestTouch_GracePeriod(t *testing.T) {
	h := newHarness(t, func(s *Settings) {
		s.DontTouchLockEnabled = true
		s.TouchSensitivityMs = 1500
	})

	h.clock.Advance(time.Second)
	if !h.sensors.pushTouch() {
		t.Fatal("touch subscription not started")
	}
	if h.engine.IsLocked() {
		t.Fatal("touch inside the grace period locked the device")
	}

	h.clock.Advance(time.Second)
	h.sensors.pushTouch()
	if !h.engine.IsLocked() {
		t.Fatal("touch after the grace period did not lock")
	}
	if h.engine.Settings().DontTouchLockEnabled {
		t.Error("dont-touch feature not disarmed after firing")
	}
	if h.sensors.pushTouch() {
		t.Error("touch subscription still active after auto-disarm")
	}
}

func TestHardwareTrigger_Gated(t *testing.T) {
	h := newHarness(t, func(s *Settings) { s.ScreenLockEnabled = true })
	ctx := context.Background()

	if h.engine.HandleHardwareTrigger(ctx, HardwareUSB) {
		t.Error("usb trigger locked with usbLockEnabled=false")
	}
	if h.engine.HandleHardwareTrigger(ctx, "bluetooth") {
		t.Error("unknown trigger kind locked the device")
	}
	if !h.engine.HandleHardwareTrigger(ctx, HardwareScreen) {
		t.Error("screen trigger did not lock")
	}
	if got := countEvents(h.engine.Events(), "screen_lock_triggered"); got != 1 {
		t.Errorf("screen_lock_triggered = %d, want 1", got)
	}
}

func TestAlarm_Singleton(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	h.engine.TriggerAutoLock(ctx)
	if !h.engine.AlarmActive() {
		t.Fatal("lock alarm not active")
	}
	if err := h.engine.TriggerSOSAlert(ctx, "button"); err != nil {
		t.Fatalf("TriggerSOSAlert() error = %v", err)
	}

	h.media.mu.Lock()
	calls := append([]string(nil), h.media.calls...)
	starts := append([]time.Duration(nil), h.media.alarmStarts...)
	h.media.mu.Unlock()

	// start(lock) photo stop start(sos) ...
	wantPrefix := []string{"start_alarm", "photo", "stop_alarm", "start_alarm"}
	for i, want := range wantPrefix {
		if i >= len(calls) || calls[i] != want {
			t.Fatalf("actuator calls = %v, want prefix %v", calls, wantPrefix)
		}
	}
	if len(starts) != 2 || starts[0] != DefaultAlarmDuration || starts[1] != DefaultSOSAlarmDuration {
		t.Errorf("alarm durations = %v", starts)
	}

	// The first alarm's expiry timer is stale and must not clear the SOS alarm.
	h.clock.Advance(DefaultAlarmDuration)
	if !h.engine.AlarmActive() {
		t.Error("stale lock alarm expiry cleared the SOS alarm")
	}
	h.clock.Advance(DefaultSOSAlarmDuration - DefaultAlarmDuration)
	if h.engine.AlarmActive() {
		t.Error("SOS alarm still active after its duration")
	}
}

func TestStopAlarm(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	if h.engine.StopAlarm(ctx) {
		t.Error("StopAlarm() with no alarm = true")
	}
	h.engine.TriggerAutoLock(ctx)
	if !h.engine.StopAlarm(ctx) {
		t.Error("StopAlarm() = false with active alarm")
	}
	if !h.engine.IsLocked() {
		t.Error("StopAlarm() changed the lock state")
	}
	if _, _, stops := h.media.snapshot(); stops != 1 {
		t.Errorf("actuator stops = %d, want 1", stops)
	}
}

func TestEventRing_Capacity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EventCapacity = 5
	cfg.Defaults.AutoLockEnabled = false
	h := newHarnessWithConfig(t, cfg, store.NewMemoryStore())

	for i := 0; i < 8; i++ {
		h.engine.RecordFailedAttempt(context.Background(), "pin")
	}

	events := h.engine.Events()
	if len(events) != 5 {
		t.Fatalf("len(Events()) = %d, want 5", len(events))
	}
	if got := events[0].Payload["count"]; got != 4 {
		t.Errorf("oldest retained count = %v, want 4", got)
	}

	if n := h.engine.ClearEventLog(context.Background()); n != 5 {
		t.Errorf("ClearEventLog() = %d, want 5", n)
	}
	events = h.engine.Events()
	if len(events) != 1 || events[0].Type != EventLogCleared {
		t.Fatalf("Events() after clear = %+v, want one %s event", events, EventLogCleared)
	}
	if got := events[0].Payload["removed"]; got != 5 {
		t.Errorf("removed = %v, want 5", got)
	}
	if countEvents(h.sink.events, EventLogCleared) != 1 {
		t.Error("sink did not receive event_log_cleared")
	}
}

func TestPersistence_RoundTrip(t *testing.T) {
	st := store.NewMemoryStore()
	cfg := DefaultConfig()
	h := newHarnessWithConfig(t, cfg, st)
	ctx := context.Background()

	if _, err := h.engine.SetFeatureEnabled(ctx, "movement_lock", true); err != nil {
		t.Fatalf("SetFeatureEnabled() error = %v", err)
	}
	h.engine.RecordFailedAttempt(ctx, "pin")
	h.engine.RemoteLock(ctx, map[string]any{"operator": "alice"})
	h.engine.Shutdown(ctx)

	restored := newHarnessWithConfig(t, cfg, st)
	if !restored.engine.IsLocked() {
		t.Error("lock state not restored")
	}
	if !restored.engine.Settings().MovementLockEnabled {
		t.Error("settings not restored")
	}
	if got := countEvents(restored.engine.Events(), "remote_lock_triggered"); got != 1 {
		t.Errorf("restored remote_lock_triggered = %d, want 1", got)
	}
	if m, _, _ := restored.sensors.subscribed(); !m {
		t.Error("motion subscription not started for restored setting")
	}
}

func TestPersistence_CorruptBlob(t *testing.T) {
	st := store.NewMemoryStore()
	if err := st.Set(context.Background(), store.KeySecurityState, []byte("{not json")); err != nil {
		t.Fatal(err)
	}

	h := newHarnessWithConfig(t, DefaultConfig(), st)
	if h.engine.IsLocked() {
		t.Error("corrupt state produced a locked engine")
	}
	if h.engine.Settings() != DefaultSettings() {
		t.Errorf("Settings() = %+v, want defaults", h.engine.Settings())
	}
}

func TestPersistence_StoreFailureDegrades(t *testing.T) {
	engine := NewEngine(DefaultConfig(), Deps{Store: failingStore{}})
	ctx := context.Background()
	if err := engine.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer engine.Shutdown(ctx)

	if !engine.TriggerAutoLock(ctx) {
		t.Error("TriggerAutoLock() = false with failing store")
	}
	if !engine.IsLocked() {
		t.Error("IsLocked() = false with failing store")
	}
}

func TestInitialize_SubscriptionFailureDegradesFeature(t *testing.T) {
	st := store.NewMemoryStore()
	cfg := DefaultConfig()
	cfg.Defaults.MovementLockEnabled = true
	cfg.Defaults.DontTouchLockEnabled = true

	sensors := &fakeSensors{motionErr: errors.New("no accelerometer")}
	engine := NewEngine(cfg, Deps{Store: st, Sensors: sensors})
	if err := engine.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer engine.Shutdown(context.Background())

	motion, touch, _ := sensors.subscribed()
	if motion {
		t.Error("motion subscription should have failed")
	}
	if !touch {
		t.Error("touch subscription not started after motion failure")
	}
}

func TestChannelHandlers(t *testing.T) {
	h := newHarness(t, nil)

	if n := h.channel.deliver(ChannelRemoteLock, `{"operator":"dashboard"}`); n != 1 {
		t.Fatalf("remote-lock handlers = %d, want 1", n)
	}
	if !h.engine.IsLocked() {
		t.Fatal("remote-lock event did not lock")
	}

	h.channel.deliver(ChannelRemoteSettingsUpdate, `{"sosEnabled": false}`)
	if h.engine.Settings().SOSEnabled {
		t.Error("remote-settings-update not applied")
	}

	h.channel.deliver(ChannelRemoteUnlock, ``)
	if h.engine.IsLocked() {
		t.Error("remote-unlock event did not unlock")
	}
}

func TestOnConnect_RepublishesStatus(t *testing.T) {
	h := newHarness(t, nil)
	h.channel.connected = false
	h.engine.TriggerAutoLock(context.Background())

	before := h.channel.count(ChannelSecurityStatus)
	h.channel.reconnect()

	if got := h.channel.count(ChannelSecurityStatus); got != before+1 {
		t.Fatalf("status snapshots after reconnect = %d, want %d", got, before+1)
	}
	payload, _ := h.channel.last(ChannelSecurityStatus)
	status, ok := payload.(Status)
	if !ok || !status.Locked {
		t.Errorf("republished status = %+v, want locked", payload)
	}
}

func TestPublishStatus_Mirrors(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	mirror := &fakeMirror{}
	h.engine.mirror = mirror

	h.engine.TriggerAutoLock(ctx)
	st, n := mirror.last()
	if n == 0 || !st.Locked {
		t.Fatalf("mirrored status = %+v (%d publishes), want locked", st, n)
	}

	h.engine.UnlockDevice(ctx, "pin")
	if st, _ := mirror.last(); st.Locked {
		t.Error("mirrored status still locked after unlock")
	}

	// A failing mirror does not stop the channel publish.
	mirror.err = errors.New("bridge link down")
	before := h.channel.count(ChannelSecurityStatus)
	if !h.engine.PublishStatus(ctx) {
		t.Error("PublishStatus() = false with a connected channel")
	}
	if got := h.channel.count(ChannelSecurityStatus); got != before+1 {
		t.Errorf("status sends = %d, want %d", got, before+1)
	}
}

func TestShutdown_InvalidatesTimersAndSubscriptions(t *testing.T) {
	h := newHarness(t, func(s *Settings) {
		s.MovementLockEnabled = true
		s.DontTouchLockEnabled = true
		s.USBLockEnabled = true
	})
	ctx := context.Background()

	if err := h.engine.TriggerSOSAlert(ctx, "button"); err != nil {
		t.Fatalf("TriggerSOSAlert() error = %v", err)
	}
	h.engine.Shutdown(ctx)

	motion, touch, hardware := h.sensors.subscribed()
	if motion || touch || hardware {
		t.Error("subscriptions still active after Shutdown()")
	}

	sentBefore := h.channel.count(ChannelSOSLocation)
	h.clock.Advance(time.Hour)
	if got := h.channel.count(ChannelSOSLocation); got != sentBefore {
		t.Errorf("stale SOS timer broadcast %d times after Shutdown()", got-sentBefore)
	}
	if h.engine.TriggerAutoLock(ctx) {
		t.Error("lock entry ran after Shutdown()")
	}
	if err := h.engine.Initialize(ctx); !errors.Is(err, ErrEngineClosed) {
		t.Errorf("Initialize() after Shutdown() error = %v, want ErrEngineClosed", err)
	}
}
