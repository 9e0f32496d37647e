package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Gray Logic Sentinel.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device      DeviceConfig      `yaml:"device"`
	Database    DatabaseConfig    `yaml:"database"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Channel     ChannelConfig     `yaml:"channel"`
	Security    SecurityConfig    `yaml:"security"`
	API         APIConfig         `yaml:"api"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	Logging     LoggingConfig     `yaml:"logging"`
	Sentry      SentryConfig      `yaml:"sentry"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
}

// DeviceConfig identifies the tracked endpoint.
type DeviceConfig struct {
	// ID is optional. When empty the channel resolves the identifier from
	// the settings store, bootstrapping it from the dashboard if needed.
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings for the platform bridge.
type MQTTConfig struct {
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
	TopicPrefix string              `yaml:"topic_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// ChannelConfig contains the dashboard command channel settings.
type ChannelConfig struct {
	// URL is the websocket endpoint of the remote dashboard (ws:// or wss://).
	URL string `yaml:"url"`

	// BootstrapURL is queried once, with the bearer token, when no device
	// identifier is stored locally.
	BootstrapURL string `yaml:"bootstrap_url"`

	// Token seeds the settings store on first start. Prefer the
	// SENTINEL_CHANNEL_TOKEN environment variable.
	Token string `yaml:"token"`

	Reconnect ChannelReconnectConfig `yaml:"reconnect"`

	// HeartbeatInterval is the keep-alive period while backgrounded (seconds).
	HeartbeatInterval int `yaml:"heartbeat_interval"`

	// WriteTimeout bounds a single frame write (seconds).
	WriteTimeout int `yaml:"write_timeout"`

	// StartBackgrounded starts the daemon in background mode (heartbeat on).
	StartBackgrounded bool `yaml:"start_backgrounded"`
}

// ChannelReconnectConfig contains the reconnect backoff policy.
type ChannelReconnectConfig struct {
	BaseDelay   int `yaml:"base_delay"`
	MaxDelay    int `yaml:"max_delay"`
	MaxAttempts int `yaml:"max_attempts"`
}

// SecurityConfig contains lock engine settings.
type SecurityConfig struct {
	// PINHash is an Argon2id PHC string used by the local PIN prompt.
	PINHash string `yaml:"pin_hash"`

	AlarmDuration    int `yaml:"alarm_duration"`     // seconds
	SOSAlarmDuration int `yaml:"sos_alarm_duration"` // seconds
	CooldownSeconds  int `yaml:"cooldown"`
	SOSInterval      int `yaml:"sos_interval"`      // seconds between location broadcasts
	SOSMaxDuration   int `yaml:"sos_max_duration"`  // minutes
	SOSVideoDuration int `yaml:"sos_video_duration"` // seconds

	// Defaults seeds the settings when nothing is persisted yet.
	Defaults SecurityDefaults `yaml:"defaults"`
}

// SecurityDefaults mirrors the user-adjustable security settings.
type SecurityDefaults struct {
	MaxFailedAttempts       int     `yaml:"max_failed_attempts"`
	AutoLockEnabled         bool    `yaml:"auto_lock_enabled"`
	MovementLockEnabled     bool    `yaml:"movement_lock_enabled"`
	MovementThreshold       float64 `yaml:"movement_threshold"`
	DontTouchLockEnabled    bool    `yaml:"dont_touch_lock_enabled"`
	TouchSensitivityMs      int     `yaml:"touch_sensitivity_ms"`
	USBLockEnabled          bool    `yaml:"usb_lock_enabled"`
	AppLockEnabled          bool    `yaml:"app_lock_enabled"`
	ScreenLockEnabled       bool    `yaml:"screen_lock_enabled"`
	PreventUninstall        bool    `yaml:"prevent_uninstall"`
	RemoteResetEnabled      bool    `yaml:"remote_reset_enabled"`
	SOSEnabled              bool    `yaml:"sos_enabled"`
	PerformanceBoostEnabled bool    `yaml:"performance_boost_enabled"`
}

// APIConfig contains local diagnostics HTTP server settings.
type APIConfig struct {
	Enabled   bool             `yaml:"enabled"`
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	Timeouts  APITimeoutConfig `yaml:"timeouts"`
	RateLimit RateLimitConfig  `yaml:"rate_limit"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// RateLimitConfig contains rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SentryConfig contains optional error reporting settings.
type SentryConfig struct {
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
}

// MaintenanceConfig contains settings for remote maintenance commands.
type MaintenanceConfig struct {
	CacheDir string `yaml:"cache_dir"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SENTINEL_SECTION_KEY
// For example: SENTINEL_DATABASE_PATH, SENTINEL_CHANNEL_URL
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Name: "Sentinel",
		},
		Database: DatabaseConfig{
			Path:        "./data/sentinel.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-sentinel",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			TopicPrefix: "sentinel",
		},
		Channel: ChannelConfig{
			Reconnect: ChannelReconnectConfig{
				BaseDelay:   1,
				MaxDelay:    30,
				MaxAttempts: 5,
			},
			HeartbeatInterval: 30,
			WriteTimeout:      10,
		},
		Security: SecurityConfig{
			AlarmDuration:    30,
			SOSAlarmDuration: 60,
			CooldownSeconds:  5,
			SOSInterval:      10,
			SOSMaxDuration:   30,
			SOSVideoDuration: 15,
			Defaults: SecurityDefaults{
				MaxFailedAttempts:  3,
				AutoLockEnabled:    true,
				MovementThreshold:  15.0,
				TouchSensitivityMs: 1500,
				RemoteResetEnabled: true,
				SOSEnabled:         true,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 30,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Sentry: SentryConfig{
			Environment: "production",
		},
		Maintenance: MaintenanceConfig{
			CacheDir: "./data/cache",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SENTINEL_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SENTINEL_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}

	if v := os.Getenv("SENTINEL_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("SENTINEL_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SENTINEL_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SENTINEL_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("SENTINEL_CHANNEL_URL"); v != "" {
		cfg.Channel.URL = v
	}
	if v := os.Getenv("SENTINEL_CHANNEL_TOKEN"); v != "" {
		cfg.Channel.Token = v
	}

	if v := os.Getenv("SENTINEL_PIN_HASH"); v != "" {
		cfg.Security.PINHash = v
	}

	if v := os.Getenv("SENTINEL_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("SENTRY_DSN"); v != "" {
		cfg.Sentry.DSN = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Channel.URL == "" {
		errs = append(errs, "channel.url is required (set SENTINEL_CHANNEL_URL)")
	} else if !strings.HasPrefix(c.Channel.URL, "ws://") && !strings.HasPrefix(c.Channel.URL, "wss://") {
		errs = append(errs, "channel.url must use ws:// or wss://")
	}
	if c.Channel.Reconnect.BaseDelay < 1 {
		errs = append(errs, "channel.reconnect.base_delay must be at least 1 second")
	}
	if c.Channel.Reconnect.MaxDelay < c.Channel.Reconnect.BaseDelay {
		errs = append(errs, "channel.reconnect.max_delay must not be below base_delay")
	}
	if c.Channel.Reconnect.MaxAttempts < 1 {
		errs = append(errs, "channel.reconnect.max_attempts must be at least 1")
	}
	if c.Channel.HeartbeatInterval < 1 {
		errs = append(errs, "channel.heartbeat_interval must be at least 1 second")
	}

	if c.Security.Defaults.MaxFailedAttempts < 1 {
		errs = append(errs, "security.defaults.max_failed_attempts must be at least 1")
	}
	if c.Security.Defaults.MovementThreshold <= 0 {
		errs = append(errs, "security.defaults.movement_threshold must be positive")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ReconnectBaseDelay returns the channel backoff base as a Duration.
func (c *Config) ReconnectBaseDelay() time.Duration {
	return time.Duration(c.Channel.Reconnect.BaseDelay) * time.Second
}

// ReconnectMaxDelay returns the channel backoff cap as a Duration.
func (c *Config) ReconnectMaxDelay() time.Duration {
	return time.Duration(c.Channel.Reconnect.MaxDelay) * time.Second
}

// HeartbeatInterval returns the channel keep-alive period as a Duration.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Channel.HeartbeatInterval) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
