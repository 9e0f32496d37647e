package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/nerrad567/gray-logic-sentinel/internal/channel"
	"github.com/nerrad567/gray-logic-sentinel/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-sentinel/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-sentinel/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-sentinel/internal/security"
	"github.com/nerrad567/gray-logic-sentinel/internal/store"
)

// seedCredentials writes configured credentials into the settings store.
// A configured token always wins so operators can rotate it; a configured
// device id only seeds an empty store, since the bootstrapped id is
// authoritative once known.
func seedCredentials(ctx context.Context, st store.Store, cfg *config.Config) error {
	if cfg.Channel.Token != "" {
		if err := st.Set(ctx, store.KeyAuthToken, []byte(cfg.Channel.Token)); err != nil {
			return fmt.Errorf("storing auth token: %w", err)
		}
	}
	if cfg.Device.ID != "" {
		if _, err := store.SetIfAbsent(ctx, st, store.KeyDeviceID, []byte(cfg.Device.ID)); err != nil {
			return fmt.Errorf("storing device id: %w", err)
		}
	}
	return nil
}

// channelConfig maps the channel section onto the channel package config.
func channelConfig(cfg *config.Config) channel.Config {
	return channel.Config{
		URL:               cfg.Channel.URL,
		BaseDelay:         cfg.ReconnectBaseDelay(),
		MaxDelay:          cfg.ReconnectMaxDelay(),
		MaxAttempts:       cfg.Channel.Reconnect.MaxAttempts,
		HeartbeatInterval: cfg.HeartbeatInterval(),
		WriteTimeout:      time.Duration(cfg.Channel.WriteTimeout) * time.Second,
	}
}

// newBootstrapper returns nil when no bootstrap URL is configured, so the
// channel reports ErrNoDeviceID instead of querying an empty URL.
func newBootstrapper(url string) channel.Bootstrapper {
	if url == "" {
		return nil
	}
	return channel.NewHTTPBootstrapper(url)
}

// securityConfig maps the security section onto the engine config.
// Zero values keep the engine defaults.
func securityConfig(sc config.SecurityConfig) security.Config {
	cfg := security.DefaultConfig()

	seconds := func(v int, dst *time.Duration) {
		if v > 0 {
			*dst = time.Duration(v) * time.Second
		}
	}
	seconds(sc.AlarmDuration, &cfg.AlarmDuration)
	seconds(sc.SOSAlarmDuration, &cfg.SOSAlarmDuration)
	seconds(sc.CooldownSeconds, &cfg.Cooldown)
	seconds(sc.SOSInterval, &cfg.SOSInterval)
	seconds(sc.SOSVideoDuration, &cfg.SOSVideoDuration)
	if sc.SOSMaxDuration > 0 {
		cfg.SOSMaxDuration = time.Duration(sc.SOSMaxDuration) * time.Minute
	}

	d := sc.Defaults
	cfg.Defaults = security.Settings{
		MaxFailedAttempts:       d.MaxFailedAttempts,
		AutoLockEnabled:         d.AutoLockEnabled,
		MovementLockEnabled:     d.MovementLockEnabled,
		MovementThreshold:       d.MovementThreshold,
		DontTouchLockEnabled:    d.DontTouchLockEnabled,
		TouchSensitivityMs:      d.TouchSensitivityMs,
		USBLockEnabled:          d.USBLockEnabled,
		AppLockEnabled:          d.AppLockEnabled,
		ScreenLockEnabled:       d.ScreenLockEnabled,
		PreventUninstall:        d.PreventUninstall,
		RemoteResetEnabled:      d.RemoteResetEnabled,
		SOSEnabled:              d.SOSEnabled,
		PerformanceBoostEnabled: d.PerformanceBoostEnabled,
	}
	return cfg
}

// influxEventSink forwards security events to InfluxDB.
type influxEventSink struct {
	client *influxdb.Client
}

// RecordEvent writes the event as a point. Writes are asynchronous, so
// failures surface through the client's error callback instead.
func (s influxEventSink) RecordEvent(_ context.Context, ev security.Event) error {
	s.client.WriteSecurityEvent(ev.Type, ev.Payload, ev.Timestamp)
	return nil
}

// initSentry enables error reporting when a DSN is configured. It reports
// whether Sentry is active.
func initSentry(cfg config.SentryConfig, log *logging.Logger) bool {
	if cfg.DSN == "" {
		return false
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          version,
		AttachStacktrace: true,
	})
	if err != nil {
		log.Warn("sentry initialization failed", "error", err)
		return false
	}
	log.Info("sentry initialized", "environment", cfg.Environment, "release", version)
	return true
}

// lifecycleTarget is the part of the channel driven by lifecycle signals.
type lifecycleTarget interface {
	SetBackground(ctx context.Context, background bool)
}

// watchLifecycleSignals maps SIGUSR1 to background and SIGUSR2 to
// foreground, for supervisors that track the device's app lifecycle.
func watchLifecycleSignals(ctx context.Context, target lifecycleTarget, log *logging.Logger) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(signals)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-signals:
			background := sig == syscall.SIGUSR1
			log.Info("lifecycle signal received", "signal", sig.String(), "background", background)
			target.SetBackground(ctx, background)
		}
	}
}
