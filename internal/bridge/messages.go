package bridge

import (
	"time"
)

// MQTT payload types exchanged between the bridge and its clients. All
// payloads are JSON; timestamps are UTC RFC3339.

// SetMessage carries channel levels for one universe.
// Topic: dmx/universe/{n}/set
//
// Exactly one of Levels and Channels should be set. Levels replaces the
// whole frame; Channels merges sparse updates into the current frame.
type SetMessage struct {
	// Levels is a full-frame replacement: slot 1 first, up to 512
	// entries, each 0-255. Shorter frames clear the omitted tail.
	Levels []int `json:"levels,omitempty"`

	// Channels maps 1-based channel numbers to levels 0-255. Channels
	// not named keep their current level.
	Channels map[string]int `json:"channels,omitempty"`
}

// StateMessage reports the levels currently on the wire for a universe.
// Topic: dmx/universe/{n}/state
// QoS: 1, Retained: Yes
type StateMessage struct {
	// Universe is the universe number.
	Universe int `json:"universe"`

	// Timestamp is when the state was last changed.
	Timestamp time.Time `json:"timestamp"`

	// Levels holds every slot currently transmitted, slot 1 first.
	Levels []int `json:"levels"`
}

// DiscoveryResultMessage summarises a finished discovery run.
// Topic: dmx/rdm/discovery/result
type DiscoveryResultMessage struct {
	// RunID is the registry's identifier for the run.
	RunID string `json:"run_id"`

	// Timestamp is when the run finished.
	Timestamp time.Time `json:"timestamp"`

	// Complete is true when the run swept the whole UID space. A
	// partial run (budget exhausted, transport failure, cancellation)
	// still reports the responders it found.
	Complete bool `json:"complete"`

	// DevicesFound is the number of responders located.
	DevicesFound int `json:"devices_found"`

	// Probes is the number of branch and mute probes issued.
	Probes int `json:"probes"`

	// DurationMs is the wall-clock run time in milliseconds.
	DurationMs int64 `json:"duration_ms"`

	// Error describes why the run was partial, if it was.
	Error string `json:"error,omitempty"`
}

// DeviceListMessage is the retained registry snapshot.
// Topic: dmx/rdm/devices
// QoS: 1, Retained: Yes
type DeviceListMessage struct {
	// Bridge is the bridge identifier.
	Bridge string `json:"bridge"`

	// Timestamp is when the snapshot was taken.
	Timestamp time.Time `json:"timestamp"`

	// Devices lists every responder ever discovered, online first.
	Devices []DeviceEntry `json:"devices"`
}

// DeviceEntry is one responder in a DeviceListMessage.
type DeviceEntry struct {
	// UID is the responder UID in "mmmm:dddddddd" form.
	UID string `json:"uid"`

	// ManufacturerID is the ESTA manufacturer ID.
	ManufacturerID uint16 `json:"manufacturer_id"`

	// DeviceLabel is the responder's user-visible label, if known.
	DeviceLabel string `json:"device_label,omitempty"`

	// ManufacturerLabel is the manufacturer name, if known.
	ManufacturerLabel string `json:"manufacturer_label,omitempty"`

	// Online is true when the responder answered the most recent
	// clean discovery run.
	Online bool `json:"online"`

	// FirstSeen and LastSeen bound the responder's sighting history.
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// Request carries an ad-hoc RDM get or set.
// Topic: dmx/rdm/request
type Request struct {
	// RequestID correlates the response; generated if empty.
	RequestID string `json:"request_id"`

	// UID is the target responder in "mmmm:dddddddd" form.
	UID string `json:"uid"`

	// CommandClass is "get" or "set".
	CommandClass string `json:"command_class"`

	// ParameterID is the RDM parameter, e.g. 0x0082 for DEVICE_LABEL.
	ParameterID uint16 `json:"parameter_id"`

	// SubDevice addresses a sub-device; 0 is the root device.
	SubDevice uint16 `json:"sub_device,omitempty"`

	// Data is the hex-encoded parameter data, if any.
	Data string `json:"data,omitempty"`
}

// Response answers a Request.
// Topic: dmx/rdm/response/{request_id}
type Response struct {
	// RequestID is the ID from the original request.
	RequestID string `json:"request_id"`

	// Timestamp is when the response was generated.
	Timestamp time.Time `json:"timestamp"`

	// Success is true when the responder acknowledged the request.
	Success bool `json:"success"`

	// ResponseType is "ack", "ack_timer", "nack" or "ack_overflow";
	// empty when the request never reached the wire.
	ResponseType string `json:"response_type,omitempty"`

	// UID is the responding UID.
	UID string `json:"uid,omitempty"`

	// Data is the hex-encoded response parameter data.
	Data string `json:"data,omitempty"`

	// Error describes the failure when Success is false.
	Error string `json:"error,omitempty"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates the bridge is operating normally.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the bridge is running with issues.
	HealthDegraded HealthStatus = "degraded"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports bridge liveness and bus statistics.
// Topic: dmx/bridge/health
// QoS: 1, Retained: Yes
type HealthMessage struct {
	// Bridge is the bridge identifier.
	Bridge string `json:"bridge"`

	// Timestamp is when the health status was generated.
	Timestamp time.Time `json:"timestamp"`

	// Status is the current operational status.
	Status HealthStatus `json:"status"`

	// Version is the bridge software version.
	Version string `json:"version"`

	// UptimeSeconds is how long the bridge has been running.
	UptimeSeconds int64 `json:"uptime_seconds"`

	// Universe is the universe number this bridge serves.
	Universe int `json:"universe"`

	// DevicesOnline is the number of responders online in the registry.
	DevicesOnline int `json:"devices_online"`

	// Statistics holds cumulative bus counters.
	Statistics *BusStatistics `json:"statistics,omitempty"`

	// Reason explains a degraded or stopping status.
	Reason string `json:"reason,omitempty"`
}

// BusStatistics holds cumulative counters since bridge start.
type BusStatistics struct {
	// FramesSent is the number of DMX frames transmitted.
	FramesSent uint64 `json:"frames_sent"`

	// RDMRequests is the number of ad-hoc RDM requests handled.
	RDMRequests uint64 `json:"rdm_requests"`

	// DiscoveryRuns is the number of discovery runs performed.
	DiscoveryRuns uint64 `json:"discovery_runs"`

	// Errors is the number of failed commands and requests.
	Errors uint64 `json:"errors"`
}
