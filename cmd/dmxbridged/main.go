// DMX Bridge Daemon
//
// This is the main entry point for the DMX/RDM bridge. The daemon owns
// one physical DMX512 output (an RS485 serial adapter or an Enttec DMX
// USB Pro widget) and exposes it over MQTT: universe level commands in,
// device registry, RDM results and health out.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/strandlab/dmx-rdm-core/internal/bridge"
	"github.com/strandlab/dmx-rdm-core/internal/dmx"
	"github.com/strandlab/dmx-rdm-core/internal/drivers/enttec"
	"github.com/strandlab/dmx-rdm-core/internal/drivers/serialdmx"
	"github.com/strandlab/dmx-rdm-core/internal/infrastructure/config"
	"github.com/strandlab/dmx-rdm-core/internal/infrastructure/database"
	"github.com/strandlab/dmx-rdm-core/internal/infrastructure/logging"
	"github.com/strandlab/dmx-rdm-core/internal/infrastructure/mqtt"
	"github.com/strandlab/dmx-rdm-core/internal/infrastructure/telemetry"
	"github.com/strandlab/dmx-rdm-core/internal/rdm"
	"github.com/strandlab/dmx-rdm-core/internal/registry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
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
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting DMX bridge",
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

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
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

	// Initialise device registry
	repo := registry.NewSQLiteRepository(db)
	if err := repo.Init(ctx); err != nil {
		return fmt.Errorf("initialising registry: %w", err)
	}
	log.Info("device registry initialised")

	// Open the DMX transport and resolve the controller's source UID
	transport, sourceUID, err := openTransport(cfg, log)
	if err != nil {
		return fmt.Errorf("opening transport: %w", err)
	}
	controller := dmx.NewController(transport, dmx.Config{
		SourceUID:       sourceUID,
		ResponseTimeout: cfg.GetResponseTimeout(),
		InterFrameGap:   cfg.GetInterFrameGap(),
		Discovery: rdm.Config{
			CollisionRetries: cfg.Discovery.CollisionRetries,
			ProbeBudget:      cfg.Discovery.ProbeBudget,
		},
	})
	controller.SetLogger(log)
	defer func() {
		log.Info("closing DMX transport")
		if closeErr := controller.Close(); closeErr != nil {
			log.Error("error closing transport", "error", closeErr)
		}
	}()
	log.Info("DMX transport ready",
		"type", cfg.Transport.Type,
		"device", cfg.Transport.Device,
		"source_uid", sourceUID.String(),
	)

	// Connect to MQTT broker
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
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Connect to InfluxDB telemetry (optional)
	telemetryClient, err := telemetry.Connect(cfg.Telemetry)
	switch {
	case errors.Is(err, telemetry.ErrDisabled):
		log.Info("telemetry disabled")
		telemetryClient = nil
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := telemetryClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		telemetryClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.Telemetry.URL,
			"bucket", cfg.Telemetry.Bucket,
		)
	}

	// Start the bridge
	opts := bridge.BridgeOptions{
		Config:   cfg,
		MQTT:     mqttClient,
		Bus:      controller,
		Registry: repo,
		Version:  version,
	}
	if telemetryClient != nil {
		opts.Telemetry = telemetryClient
	}
	b, err := bridge.NewBridge(opts)
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	b.SetLogger(log)
	if err := b.Start(); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		b.Stop()
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, telemetryClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal",
		"universe", cfg.Bridge.Universe)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. Bridge
	// 2. InfluxDB (if enabled)
	// 3. MQTT
	// 4. DMX transport
	// 5. Database

	log.Info("DMX bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses DMXBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("DMXBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// openTransport opens the configured DMX transport and resolves the
// controller's source UID.
//
// RS485 serial adapters have no identity of their own, so serial
// transports require transport.source_uid in the configuration. Enttec
// widgets carry a burned-in serial number which becomes the UID; a
// configured source_uid is ignored for them.
func openTransport(cfg *config.Config, log *logging.Logger) (dmx.Transport, rdm.UID, error) {
	switch cfg.Transport.Type {
	case "serial":
		if cfg.Transport.SourceUID == "" {
			return nil, 0, fmt.Errorf("transport.source_uid is required for serial transports")
		}
		sourceUID, err := rdm.ParseUID(cfg.Transport.SourceUID)
		if err != nil {
			return nil, 0, fmt.Errorf("parsing transport.source_uid: %w", err)
		}
		driver, err := serialdmx.Open(serialdmx.Config{
			Device:         cfg.Transport.Device,
			Break:          cfg.GetBreak(),
			MarkAfterBreak: cfg.GetMarkAfterBreak(),
		})
		if err != nil {
			return nil, 0, err
		}
		return driver, sourceUID, nil

	case "enttec":
		driver, err := enttec.Open(cfg.Transport.Device)
		if err != nil {
			return nil, 0, err
		}
		sourceUID, err := driver.WidgetUID()
		if err != nil {
			_ = driver.Close()
			return nil, 0, fmt.Errorf("reading widget serial: %w", err)
		}
		if cfg.Transport.SourceUID != "" {
			log.Warn("transport.source_uid ignored, widget UID takes precedence",
				"widget_uid", sourceUID.String())
		}
		return driver, sourceUID, nil

	default:
		// Config validation rejects unknown types before this point.
		return nil, 0, fmt.Errorf("unknown transport type %q", cfg.Transport.Type)
	}
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - telemetryClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, telemetryClient *telemetry.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if telemetryClient != nil {
		if err := telemetryClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
