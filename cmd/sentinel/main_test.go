package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-sentinel/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-sentinel/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-sentinel/internal/security"
	"github.com/nerrad567/gray-logic-sentinel/internal/store"
)

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("SENTINEL_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("run() error = %v, want loading config error", err)
	}
}

// TestRun_MissingChannelURL verifies validation runs before any connection.
func TestRun_MissingChannelURL(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "test-config.yaml")
	configContent := `
database:
  path: "` + filepath.Join(t.TempDir(), "sentinel.db") + `"
channel:
  url: ""
logging:
  level: error
  format: text
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("SENTINEL_CONFIG", configPath)
	t.Setenv("SENTINEL_CHANNEL_URL", "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail without a channel url")
	}
	if !strings.Contains(err.Error(), "channel.url") {
		t.Errorf("run() error = %v, want channel.url validation error", err)
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("SENTINEL_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("SENTINEL_CONFIG", "/etc/sentinel.yaml")
	if got := getConfigPath(); got != "/etc/sentinel.yaml" {
		t.Errorf("getConfigPath() = %q, want /etc/sentinel.yaml", got)
	}
}

func TestSeedCredentials(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	st.Set(ctx, store.KeyAuthToken, []byte("old-token"))
	st.Set(ctx, store.KeyDeviceID, []byte("bootstrapped-id"))

	cfg := &config.Config{}
	cfg.Channel.Token = "new-token"
	cfg.Device.ID = "configured-id"

	if err := seedCredentials(ctx, st, cfg); err != nil {
		t.Fatalf("seedCredentials() error = %v", err)
	}

	token, _ := store.GetString(ctx, st, store.KeyAuthToken)
	if token != "new-token" {
		t.Errorf("token = %q, want new-token", token)
	}
	deviceID, _ := store.GetString(ctx, st, store.KeyDeviceID)
	if deviceID != "bootstrapped-id" {
		t.Errorf("device id = %q, want bootstrapped-id to be kept", deviceID)
	}

	// Nothing configured leaves the store alone.
	empty := store.NewMemoryStore()
	if err := seedCredentials(ctx, empty, &config.Config{}); err != nil {
		t.Fatalf("seedCredentials() error = %v", err)
	}
	if _, err := empty.Get(ctx, store.KeyAuthToken); err == nil {
		t.Error("token stored without configuration")
	}
}

func TestSecurityConfig(t *testing.T) {
	sc := config.SecurityConfig{
		AlarmDuration:  45,
		SOSMaxDuration: 10,
		Defaults: config.SecurityDefaults{
			MaxFailedAttempts:       5,
			AutoLockEnabled:         true,
			MovementLockEnabled:     true,
			MovementThreshold:       9.5,
			SOSEnabled:              true,
			PerformanceBoostEnabled: true,
		},
	}

	cfg := securityConfig(sc)
	if cfg.AlarmDuration != 45*time.Second {
		t.Errorf("AlarmDuration = %v, want 45s", cfg.AlarmDuration)
	}
	if cfg.SOSMaxDuration != 10*time.Minute {
		t.Errorf("SOSMaxDuration = %v, want 10m", cfg.SOSMaxDuration)
	}
	if cfg.Cooldown != security.DefaultCooldown {
		t.Errorf("Cooldown = %v, want default %v", cfg.Cooldown, security.DefaultCooldown)
	}
	if cfg.Defaults.MaxFailedAttempts != 5 || !cfg.Defaults.MovementLockEnabled || cfg.Defaults.MovementThreshold != 9.5 {
		t.Errorf("Defaults = %+v, want mapped values", cfg.Defaults)
	}
	if !cfg.Defaults.PerformanceBoostEnabled {
		t.Error("PerformanceBoostEnabled not mapped")
	}
}

func TestChannelConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Channel.URL = "wss://dashboard.example.com/ws"
	cfg.Channel.Reconnect = config.ChannelReconnectConfig{BaseDelay: 2, MaxDelay: 20, MaxAttempts: 4}
	cfg.Channel.HeartbeatInterval = 15
	cfg.Channel.WriteTimeout = 5

	got := channelConfig(cfg)
	if got.URL != cfg.Channel.URL {
		t.Errorf("URL = %q", got.URL)
	}
	if got.BaseDelay != 2*time.Second || got.MaxDelay != 20*time.Second || got.MaxAttempts != 4 {
		t.Errorf("backoff = %v/%v/%d, want 2s/20s/4", got.BaseDelay, got.MaxDelay, got.MaxAttempts)
	}
	if got.HeartbeatInterval != 15*time.Second || got.WriteTimeout != 5*time.Second {
		t.Errorf("timings = %v/%v, want 15s/5s", got.HeartbeatInterval, got.WriteTimeout)
	}
}

func TestNewBootstrapper(t *testing.T) {
	if b := newBootstrapper(""); b != nil {
		t.Errorf("newBootstrapper(\"\") = %v, want nil", b)
	}
	if b := newBootstrapper("https://dashboard.example.com/api/device"); b == nil {
		t.Error("newBootstrapper(url) = nil")
	}
}

func TestInitSentry_Disabled(t *testing.T) {
	if initSentry(config.SentryConfig{}, logging.Discard()) {
		t.Error("initSentry() without DSN = true, want false")
	}
}

type recordingTarget struct {
	calls chan bool
}

func (r recordingTarget) SetBackground(_ context.Context, background bool) {
	r.calls <- background
}

func TestWatchLifecycleSignals_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		watchLifecycleSignals(ctx, recordingTarget{calls: make(chan bool, 1)}, logging.Discard())
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watchLifecycleSignals did not return after cancel")
	}
}
