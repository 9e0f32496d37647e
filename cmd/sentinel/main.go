// Gray Logic Sentinel - Device Security Daemon
//
// This is the main entry point for the Gray Logic Sentinel daemon. Sentinel
// guards a tracked device:
//   - Lock state machine driven by sensors, failed attempts and remote commands
//   - Persistent command channel to the remote dashboard with acknowledgements
//   - Alarm, evidence capture and SOS location broadcasting via the platform bridge
//   - Offline-first: local triggers keep working without the dashboard
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"

	_ "github.com/nerrad567/gray-logic-sentinel/migrations"

	"github.com/nerrad567/gray-logic-sentinel/internal/api"
	"github.com/nerrad567/gray-logic-sentinel/internal/audit"
	"github.com/nerrad567/gray-logic-sentinel/internal/bridges/platform"
	"github.com/nerrad567/gray-logic-sentinel/internal/channel"
	"github.com/nerrad567/gray-logic-sentinel/internal/dispatch"
	"github.com/nerrad567/gray-logic-sentinel/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-sentinel/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-sentinel/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-sentinel/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-sentinel/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-sentinel/internal/maintenance"
	"github.com/nerrad567/gray-logic-sentinel/internal/security"
	"github.com/nerrad567/gray-logic-sentinel/internal/store"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

const (
	// defaultConfigPath is used when SENTINEL_CONFIG is unset.
	defaultConfigPath = "configs/config.yaml"

	// sentryFlushTimeout bounds the final Sentry flush on shutdown.
	sentryFlushTimeout = 2 * time.Second
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == hashPINCommand {
		if err := hashPIN(os.Args[2:], os.Stdin, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// A missing .env file is normal outside development.
	_ = godotenv.Load() //nolint:errcheck // optional file

	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic Sentinel",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	if initSentry(cfg.Sentry, log) {
		defer sentry.Flush(sentryFlushTimeout)
	}

	// Open database
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	schemaVersion, err := db.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	log.Info("database migrations complete", "schema_version", schemaVersion)

	settingsStore := store.NewSQLiteStore(db.DB)
	if seedErr := seedCredentials(ctx, settingsStore, cfg); seedErr != nil {
		return fmt.Errorf("seeding credentials: %w", seedErr)
	}
	eventHistory := audit.NewSQLiteRepository(db.DB)

	// Connect to MQTT broker (platform bridge)
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"prefix", mqttClient.Topics().Prefix(),
	)

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB, cfg.Device.ID)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Platform bridge: sensors, media and location over MQTT
	bridge := platform.New(platform.Options{
		MQTT:   mqttClient,
		Topics: mqttClient.Topics(),
		QoS:    mqttClient.QoS(),
		Logger: log.Component("platform"),
	})
	if startErr := bridge.Start(ctx); startErr != nil {
		return fmt.Errorf("starting platform bridge: %w", startErr)
	}
	defer bridge.Stop()

	// Dashboard command channel
	commandChannel := channel.New(channelConfig(cfg), channel.Deps{
		Transport:    channel.NewWebSocketTransport(),
		Store:        settingsStore,
		Bootstrapper: newBootstrapper(cfg.Channel.BootstrapURL),
		Logger:       log.Component("channel"),
	})
	defer func() {
		log.Info("closing command channel")
		if closeErr := commandChannel.Close(); closeErr != nil {
			log.Error("error closing command channel", "error", closeErr)
		}
	}()

	// Security engine
	engineDeps := security.Deps{
		Store:    settingsStore,
		Media:    bridge,
		Sensors:  bridge,
		Location: bridge,
		Channel:  commandChannel,
		Sinks:    []security.EventSink{eventHistory, bridge},
		Mirror:   bridge,
		Logger:   log.Component("security"),
	}
	if influxClient != nil {
		engineDeps.Sinks = append(engineDeps.Sinks, influxEventSink{client: influxClient})
		engineDeps.Motion = influxClient
	}
	engine := security.NewEngine(securityConfig(cfg.Security), engineDeps)
	if initErr := engine.Initialize(ctx); initErr != nil {
		return fmt.Errorf("initialising security engine: %w", initErr)
	}
	defer func() {
		log.Info("shutting down security engine")
		engine.Shutdown(context.Background())
	}()
	log.Info("security engine initialised", "locked", engine.IsLocked())

	// A restarted broker may have lost the retained state.
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
		engine.PublishStatus(ctx)
	})

	// Command dispatcher
	maint := maintenance.New(cfg.Maintenance.CacheDir, db, func() bool {
		return engine.Settings().PerformanceBoostEnabled
	}, log.Component("maintenance"))

	dispatchDeps := dispatch.Deps{
		Engine:      engine,
		Maintenance: maint,
		Channel:     commandChannel,
		Logger:      log.Component("dispatch"),
	}
	if influxClient != nil {
		dispatchDeps.Telemetry = influxClient
	}
	dispatcher := dispatch.New(dispatch.Config{}, dispatchDeps)
	if startErr := dispatcher.Start(); startErr != nil {
		return fmt.Errorf("starting command dispatcher: %w", startErr)
	}
	defer func() {
		log.Info("stopping command dispatcher")
		dispatcher.Close()
	}()

	// Handlers are registered, connect now so the first subscribe frame
	// carries every event name.
	if connErr := commandChannel.Connect(ctx); connErr != nil {
		log.Warn("command channel not connected, continuing offline", "error", connErr)
	}
	if cfg.Channel.StartBackgrounded {
		commandChannel.SetBackground(ctx, true)
	}
	go watchLifecycleSignals(ctx, commandChannel, log)

	// Local diagnostics API
	if cfg.API.Enabled {
		apiServer, apiErr := api.New(api.Deps{
			Config:  cfg.API,
			PINHash: cfg.Security.PINHash,
			Logger:  log,
			Engine:  engine,
			Events:  eventHistory,
			Channel: commandChannel,
			Version: version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: API, dispatcher, engine,
	// channel, bridge, InfluxDB, MQTT, database, Sentry flush.
	log.Info("Gray Logic Sentinel stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SENTINEL_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SENTINEL_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	// The command channel is not checked: the engine runs offline and
	// the channel reconnects on its own.
	return nil
}
