package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/strandlab/dmx-rdm-core/internal/infrastructure/mqtt"
	"github.com/strandlab/dmx-rdm-core/internal/rdm"
	"github.com/strandlab/dmx-rdm-core/internal/registry"
)

// handleDiscoveryRun starts a discovery sweep in the background. The
// handler returns immediately so level changes queued behind it are not
// starved while the sweep holds the bus.
func (b *Bridge) handleDiscoveryRun(_ string, _ []byte) error {
	if !b.discovering.CompareAndSwap(false, true) {
		b.logWarn("discovery requested while a run is in progress")
		return ErrDiscoveryBusy
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer b.discovering.Store(false)
		b.runDiscovery()
	}()
	return nil
}

// discoveryLoop runs periodic background discovery.
func (b *Bridge) discoveryLoop(interval time.Duration) {
	defer b.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			if !b.discovering.CompareAndSwap(false, true) {
				continue
			}
			b.runDiscovery()
			b.discovering.Store(false)
		}
	}
}

// runDiscovery performs one discovery sweep: registry run bookkeeping,
// the bus sweep itself, label queries for new responders, and the result
// and snapshot publishes. Partial sweeps record what they found but never
// mark absent devices offline.
func (b *Bridge) runDiscovery() {
	ctx, cancel := context.WithTimeout(b.ctx, discoveryTimeout)
	defer cancel()

	run, err := b.registry.BeginRun(ctx)
	if err != nil {
		b.errorCount.Add(1)
		b.logError("failed to begin discovery run", "error", err)
		return
	}
	b.logInfo("discovery run started", "run_id", run.ID)

	report, sweepErr := b.bus.Discover(ctx)
	b.discoveryRuns.Add(1)
	if sweepErr != nil {
		b.errorCount.Add(1)
		b.logWarn("discovery sweep incomplete",
			"run_id", run.ID,
			"found", len(report.UIDs),
			"error", sweepErr)
	}

	for _, uid := range report.UIDs {
		if err := b.registry.RecordSighting(ctx, run.ID, uid); err != nil {
			b.errorCount.Add(1)
			b.logError("failed to record sighting", "uid", uid.String(), "error", err)
		}
	}

	b.fetchLabels(ctx, report.UIDs)

	runErr := ""
	if sweepErr != nil {
		runErr = sweepErr.Error()
	}
	if err := b.registry.CompleteRun(ctx, run.ID, report.Probes, runErr); err != nil {
		b.errorCount.Add(1)
		b.logError("failed to complete discovery run", "run_id", run.ID, "error", err)
	}

	if b.telemetry != nil {
		b.telemetry.WriteDiscoveryRun(run.ID, len(report.UIDs), report.Probes, report.Duration)
	}

	b.publishDiscoveryResult(run.ID, report.UIDs, report.Probes, report.Duration, sweepErr)
	if err := b.publishDeviceList(ctx); err != nil {
		b.logWarn("failed to publish device snapshot", "error", err)
	}
	b.refreshDeviceCount(ctx)

	b.logInfo("discovery run finished",
		"run_id", run.ID,
		"found", len(report.UIDs),
		"probes", report.Probes,
		"duration", report.Duration)
}

// fetchLabels queries DEVICE_LABEL and MANUFACTURER_LABEL for sighted
// responders the registry has no labels for yet. Best-effort: responders
// are not required to implement either parameter.
func (b *Bridge) fetchLabels(ctx context.Context, uids []rdm.UID) {
	for _, uid := range uids {
		device, err := b.registry.Get(ctx, uid)
		if err != nil {
			if !errors.Is(err, registry.ErrDeviceNotFound) {
				b.logWarn("label lookup failed", "uid", uid.String(), "error", err)
			}
			continue
		}
		if device.DeviceLabel != "" || device.ManufacturerLabel != "" {
			continue
		}

		deviceLabel := b.queryLabel(ctx, uid, rdm.ParamDeviceLabel)
		manufacturerLabel := b.queryLabel(ctx, uid, rdm.ParamManufacturerLabel)
		if deviceLabel == "" && manufacturerLabel == "" {
			continue
		}
		if err := b.registry.SetLabels(ctx, uid, deviceLabel, manufacturerLabel); err != nil {
			b.logWarn("failed to store labels", "uid", uid.String(), "error", err)
		}
	}
}

// queryLabel fetches one text parameter from a responder. Returns "" on
// any failure; labels are decoration, not data the bridge depends on.
func (b *Bridge) queryLabel(ctx context.Context, uid rdm.UID, pid rdm.ParameterID) string {
	resp, err := b.bus.SendRDMRequest(ctx, rdm.Packet{
		Destination:  uid,
		CommandClass: rdm.GetCommand,
		ParameterID:  pid,
	})
	if err != nil {
		b.logDebug("label query failed", "uid", uid.String(), "pid", uint16(pid), "error", err)
		return ""
	}
	if resp.CommandClass != rdm.GetCommandResponse || resp.PortID != rdm.ResponseAck {
		return ""
	}
	return strings.TrimRight(string(resp.ParameterData), "\x00 ")
}

// publishDiscoveryResult publishes the run summary.
func (b *Bridge) publishDiscoveryResult(runID string, uids []rdm.UID, probes int, duration time.Duration, sweepErr error) {
	msg := DiscoveryResultMessage{
		RunID:        runID,
		Timestamp:    time.Now().UTC(),
		Complete:     sweepErr == nil,
		DevicesFound: len(uids),
		Probes:       probes,
		DurationMs:   duration.Milliseconds(),
	}
	if sweepErr != nil {
		msg.Error = sweepErr.Error()
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("failed to marshal discovery result", "error", err)
		return
	}
	if err := b.mqtt.Publish(mqtt.Topics{}.DiscoveryResult(), payload, b.qos(), false); err != nil {
		b.logWarn("failed to publish discovery result", "error", err)
	}
}
