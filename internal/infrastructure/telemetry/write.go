package telemetry

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteFrameStats records universe output statistics.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - universe: Universe number the frames were sent on
//   - framesSent: Frames written since the last report
//   - writeErrors: Write failures since the last report
//
// Example:
//
//	client.WriteFrameStats(1, 44, 0)
func (c *Client) WriteFrameStats(universe int, framesSent int64, writeErrors int64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"dmx_frames",
		map[string]string{
			"universe": strconv.Itoa(universe),
		},
		map[string]interface{}{
			"sent":   framesSent,
			"errors": writeErrors,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteDiscoveryRun records the outcome of an RDM discovery run.
//
// Parameters:
//   - runID: Discovery run identifier (registry run uuid)
//   - devices: Number of responders found
//   - probes: Total branch and mute probes issued
//   - duration: Wall-clock duration of the run
func (c *Client) WriteDiscoveryRun(runID string, devices int, probes int, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"rdm_discovery",
		map[string]string{
			"run_id": runID,
		},
		map[string]interface{}{
			"devices":     devices,
			"probes":      probes,
			"duration_ms": duration.Milliseconds(),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteRDMRequest records the outcome and latency of a single RDM request.
//
// Parameters:
//   - uid: Destination UID string ("mmmm:dddddddd")
//   - outcome: "ack", "nack", "timeout" or "decode_error"
//   - latency: Round-trip time from request to decoded response
func (c *Client) WriteRDMRequest(uid string, outcome string, latency time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"rdm_requests",
		map[string]string{
			"uid":     uid,
			"outcome": outcome,
		},
		map[string]interface{}{
			"latency_us": latency.Microseconds(),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
