package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/strandlab/dmx-rdm-core/internal/dmx"
	"github.com/strandlab/dmx-rdm-core/internal/infrastructure/config"
	"github.com/strandlab/dmx-rdm-core/internal/infrastructure/mqtt"
	"github.com/strandlab/dmx-rdm-core/internal/rdm"
	"github.com/strandlab/dmx-rdm-core/internal/registry"
)

const (
	// commandTimeout bounds a single universe or RDM command.
	commandTimeout = 5 * time.Second

	// discoveryTimeout bounds one full discovery run. A full 512-fixture
	// universe sweeps in well under a minute; anything longer means a
	// wedged transport.
	discoveryTimeout = 2 * time.Minute
)

// Logger matches the logging methods the bridge uses.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MQTTClient is the slice of the MQTT client the bridge drives.
// Implemented by *mqtt.Client; faked in tests.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// BusController is the slice of the DMX controller the bridge drives.
// Implemented by *dmx.Controller; faked in tests.
type BusController interface {
	SendUniverse(ctx context.Context, frame dmx.Frame) error
	SendRDMRequest(ctx context.Context, req rdm.Packet) (rdm.Packet, error)
	Discover(ctx context.Context) (dmx.DiscoveryReport, error)
}

// TelemetryWriter records bus statistics. Writes must not block.
// Implemented by *telemetry.Client.
type TelemetryWriter interface {
	WriteFrameStats(universe int, framesSent int64, writeErrors int64)
	WriteDiscoveryRun(runID string, devices int, probes int, duration time.Duration)
	WriteRDMRequest(uid string, outcome string, latency time.Duration)
}

// Bridge connects an MQTT broker to one DMX/RDM bus. It owns the current
// universe frame, runs discovery against the registry, and answers ad-hoc
// RDM requests.
//
// Thread Safety: all MQTT handlers may run concurrently. The frame buffer
// has its own mutex; bus access is serialised by the controller itself.
type Bridge struct {
	cfg       *config.Config
	mqtt      MQTTClient
	bus       BusController
	registry  registry.Repository
	telemetry TelemetryWriter
	health    *HealthReporter
	version   string
	universe  int

	// Current universe levels, always transmitted as a full frame so a
	// sparse channel update never shortens what fixtures receive.
	slots   [dmx.MaxSlots]byte
	slotsMu sync.Mutex

	framesSent    atomic.Int64
	frameErrors   atomic.Int64
	rdmRequests   atomic.Int64
	discoveryRuns atomic.Int64
	errorCount    atomic.Int64

	// discovering rejects overlapping discovery runs; the bus cannot
	// serve two sweeps at once.
	discovering atomic.Bool

	ctx       context.Context
	ctxCancel context.CancelFunc
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// BridgeOptions holds dependencies for NewBridge.
type BridgeOptions struct {
	// Config is the loaded bridge configuration. Required.
	Config *config.Config

	// MQTT is the broker client. Required.
	MQTT MQTTClient

	// Bus is the DMX/RDM controller. Required.
	Bus BusController

	// Registry persists discovered responders. Required.
	Registry registry.Repository

	// Telemetry records bus statistics. Optional.
	Telemetry TelemetryWriter

	// Version is the bridge software version for health messages.
	Version string
}

// NewBridge creates a bridge from its dependencies.
//
// Returns:
//   - *Bridge: Ready to start (call Start to subscribe and begin reporting)
//   - error: If a required dependency is missing
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.MQTT == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Bus == nil {
		return nil, fmt.Errorf("bus controller is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}

	ctx, cancel := context.WithCancel(context.Background())

	b := &Bridge{
		cfg:       opts.Config,
		mqtt:      opts.MQTT,
		bus:       opts.Bus,
		registry:  opts.Registry,
		telemetry: opts.Telemetry,
		version:   opts.Version,
		universe:  opts.Config.Bridge.Universe,
		ctx:       ctx,
		ctxCancel: cancel,
		done:      make(chan struct{}),
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  opts.Config.Bridge.ID,
		Version:   opts.Version,
		Universe:  b.universe,
		Publisher: opts.MQTT,
		Stats:     b,
	})

	return b, nil
}

// SetLogger sets the logger for the bridge and its health reporter.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
	b.health.SetLogger(logger)
}

// Start subscribes to command topics, publishes the retained registry
// snapshot and begins health reporting. If periodic discovery is
// configured it starts the background sweep loop.
func (b *Bridge) Start() error {
	qos := b.qos()
	topics := mqtt.Topics{}

	subs := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{topics.AllUniverseSets(), b.handleUniverseSet},
		{topics.AllUniverseBlackouts(), b.handleBlackout},
		{topics.DiscoveryRun(), b.handleDiscoveryRun},
		{topics.RDMRequest(), b.handleRDMRequest},
	}
	for _, s := range subs {
		if err := b.mqtt.Subscribe(s.topic, qos, s.handler); err != nil {
			return fmt.Errorf("subscribing to %s: %w", s.topic, err)
		}
	}

	if err := b.health.PublishStarting(); err != nil {
		b.logWarn("failed to publish starting status", "error", err)
	}
	b.health.Start(b.ctx)

	// Retained snapshot so subscribers see the registry after a bridge
	// restart, before any discovery has run.
	if err := b.publishDeviceList(b.ctx); err != nil {
		b.logWarn("failed to publish device snapshot", "error", err)
	}
	b.refreshDeviceCount(b.ctx)

	if interval := b.cfg.GetDiscoveryInterval(); interval > 0 {
		b.wg.Add(1)
		go b.discoveryLoop(interval)
	}

	b.logInfo("bridge started",
		"bridge_id", b.cfg.Bridge.ID,
		"universe", b.universe)
	return nil
}

// Stop shuts the bridge down: background work is cancelled, the health
// reporter publishes a final stopping status. Safe to call multiple times.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.ctxCancel()
		b.wg.Wait()
		b.health.Stop()
		b.logInfo("bridge stopped")
	})
}

// Stats returns cumulative bus counters since bridge start.
func (b *Bridge) Stats() BusStatistics {
	return BusStatistics{
		FramesSent:    uint64(b.framesSent.Load()),
		RDMRequests:   uint64(b.rdmRequests.Load()),
		DiscoveryRuns: uint64(b.discoveryRuns.Load()),
		Errors:        uint64(b.errorCount.Load()),
	}
}

func (b *Bridge) qos() byte {
	return byte(b.cfg.MQTT.QoS)
}

// refreshDeviceCount pushes the online responder count into the health
// reporter.
func (b *Bridge) refreshDeviceCount(ctx context.Context) {
	online, err := b.registry.ListOnline(ctx)
	if err != nil {
		b.logWarn("failed to count online devices", "error", err)
		return
	}
	b.health.SetDeviceCount(len(online))
}

// publishDeviceList publishes the retained registry snapshot.
func (b *Bridge) publishDeviceList(ctx context.Context) error {
	devices, err := b.registry.List(ctx)
	if err != nil {
		return fmt.Errorf("listing devices: %w", err)
	}

	msg := DeviceListMessage{
		Bridge:    b.cfg.Bridge.ID,
		Timestamp: time.Now().UTC(),
		Devices:   make([]DeviceEntry, 0, len(devices)),
	}
	for _, d := range devices {
		msg.Devices = append(msg.Devices, DeviceEntry{
			UID:               d.UID.String(),
			ManufacturerID:    d.ManufacturerID,
			DeviceLabel:       d.DeviceLabel,
			ManufacturerLabel: d.ManufacturerLabel,
			Online:            d.Online,
			FirstSeen:         d.FirstSeen,
			LastSeen:          d.LastSeen,
		})
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.mqtt.Publish(mqtt.Topics{}.Devices(), payload, b.qos(), true)
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

func (b *Bridge) logDebug(msg string, args ...any) {
	if l := b.getLogger(); l != nil {
		l.Debug(msg, args...)
	}
}

func (b *Bridge) logInfo(msg string, args ...any) {
	if l := b.getLogger(); l != nil {
		l.Info(msg, args...)
	}
}

func (b *Bridge) logWarn(msg string, args ...any) {
	if l := b.getLogger(); l != nil {
		l.Warn(msg, args...)
	}
}

func (b *Bridge) logError(msg string, args ...any) {
	if l := b.getLogger(); l != nil {
		l.Error(msg, args...)
	}
}
