package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the DMX bridge daemon.
// All configuration is loaded from YAML and can be overridden by
// environment variables.
type Config struct {
	Bridge    BridgeConfig    `yaml:"bridge"`
	Transport TransportConfig `yaml:"transport"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// BridgeConfig identifies this bridge instance.
type BridgeConfig struct {
	// ID appears in MQTT topics and health messages.
	ID string `yaml:"id"`

	// Name is a human-readable label.
	Name string `yaml:"name"`

	// Universe is the universe number this bridge serves in MQTT
	// topics. One bridge drives one physical DMX output.
	Universe int `yaml:"universe"`
}

// TransportConfig selects and tunes the physical DMX transport.
type TransportConfig struct {
	// Type is the driver family: "serial" (RS485 USB-serial adapters)
	// or "enttec" (Enttec DMX USB Pro widgets).
	Type string `yaml:"type"`

	// Device is the serial device path (e.g. "/dev/ttyUSB0").
	Device string `yaml:"device"`

	// SourceUID is the controller's own RDM UID in "mmmm:dddddddd" form.
	// The enttec driver ignores it and uses the widget's burned-in UID.
	SourceUID string `yaml:"source_uid"`

	// ResponseTimeoutMs overrides the RDM response timeout in
	// milliseconds. 0 keeps the controller default. Line-level UART
	// deployments can set this near the protocol window; USB transports
	// need headroom for buffering latency.
	ResponseTimeoutMs int `yaml:"response_timeout_ms"`

	// InterFrameGapUs overrides the minimum spacing between frame
	// transmissions in microseconds. Values below the protocol minimum
	// are raised to it.
	InterFrameGapUs int `yaml:"inter_frame_gap_us"`

	// BreakUs and MarkAfterBreakUs tune start-of-frame signalling for
	// drivers that time the break themselves. Values below the protocol
	// minimums are raised to them.
	BreakUs          int `yaml:"break_us"`
	MarkAfterBreakUs int `yaml:"mark_after_break_us"`
}

// DiscoveryConfig bounds the RDM discovery engine. The protocol leaves
// these budgets to policy; the engine documents its defaults.
type DiscoveryConfig struct {
	// CollisionRetries bounds re-probes of a persistently colliding
	// single-UID range. 0 keeps the engine default.
	CollisionRetries int `yaml:"collision_retries"`

	// ProbeBudget caps total probes per discovery run. 0 keeps the
	// engine default.
	ProbeBudget int `yaml:"probe_budget"`

	// IntervalSeconds enables periodic background discovery when > 0.
	IntervalSeconds int `yaml:"interval_seconds"`
}

// DatabaseConfig contains SQLite settings for the device registry.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
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

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// TelemetryConfig contains InfluxDB settings for bus statistics.
type TelemetryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains structured logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is "json" or "text".
	Format string `yaml:"format"`

	// Output is "stdout" or "stderr".
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment
// variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: DMXBRIDGE_SECTION_KEY,
// e.g. DMXBRIDGE_TRANSPORT_DEVICE, DMXBRIDGE_MQTT_PASSWORD.
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
		Bridge: BridgeConfig{
			ID:       "dmx-bridge-01",
			Name:     "DMX Bridge",
			Universe: 1,
		},
		Transport: TransportConfig{
			Type:   "serial",
			Device: "/dev/ttyUSB0",
		},
		Database: DatabaseConfig{
			Path:        "./data/dmxbridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "dmx-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Telemetry: TelemetryConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides. Only settings
// that change between deployments or carry secrets get one.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DMXBRIDGE_TRANSPORT_TYPE"); v != "" {
		cfg.Transport.Type = v
	}
	if v := os.Getenv("DMXBRIDGE_TRANSPORT_DEVICE"); v != "" {
		cfg.Transport.Device = v
	}
	if v := os.Getenv("DMXBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("DMXBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("DMXBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("DMXBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("DMXBRIDGE_TELEMETRY_TOKEN"); v != "" {
		cfg.Telemetry.Token = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}
	if c.Bridge.Universe < 1 {
		errs = append(errs, "bridge.universe must be at least 1")
	}

	switch c.Transport.Type {
	case "serial", "enttec":
	default:
		errs = append(errs, fmt.Sprintf("transport.type %q is not supported (serial, enttec)", c.Transport.Type))
	}
	if c.Transport.Device == "" {
		errs = append(errs, "transport.device is required")
	}
	if c.Transport.SourceUID != "" && !validUID(c.Transport.SourceUID) {
		errs = append(errs, "transport.source_uid must be in mmmm:dddddddd hex form")
	}

	if c.Discovery.CollisionRetries < 0 {
		errs = append(errs, "discovery.collision_retries must not be negative")
	}
	if c.Discovery.ProbeBudget < 0 {
		errs = append(errs, "discovery.probe_budget must not be negative")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.URL == "" {
			errs = append(errs, "telemetry.url is required when telemetry is enabled")
		}
		if c.Telemetry.Token == "" {
			errs = append(errs, "telemetry.token is required when telemetry is enabled (set DMXBRIDGE_TELEMETRY_TOKEN)")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// validUID shape-checks a UID string without importing the rdm package;
// the daemon parses the value properly at startup.
func validUID(s string) bool {
	mfr, dev, ok := strings.Cut(s, ":")
	if !ok || len(mfr) != 4 || len(dev) != 8 {
		return false
	}
	for _, r := range mfr + dev {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}

// GetResponseTimeout returns the configured RDM response timeout, or 0 to
// keep the controller default.
func (c *Config) GetResponseTimeout() time.Duration {
	return time.Duration(c.Transport.ResponseTimeoutMs) * time.Millisecond
}

// GetInterFrameGap returns the configured inter-frame gap, or 0 to keep
// the controller default.
func (c *Config) GetInterFrameGap() time.Duration {
	return time.Duration(c.Transport.InterFrameGapUs) * time.Microsecond
}

// GetBreak returns the configured break duration, or 0 to keep the driver
// default.
func (c *Config) GetBreak() time.Duration {
	return time.Duration(c.Transport.BreakUs) * time.Microsecond
}

// GetMarkAfterBreak returns the configured mark-after-break duration, or
// 0 to keep the driver default.
func (c *Config) GetMarkAfterBreak() time.Duration {
	return time.Duration(c.Transport.MarkAfterBreakUs) * time.Microsecond
}

// GetDiscoveryInterval returns the background discovery period, or 0 when
// periodic discovery is disabled.
func (c *Config) GetDiscoveryInterval() time.Duration {
	return time.Duration(c.Discovery.IntervalSeconds) * time.Second
}
