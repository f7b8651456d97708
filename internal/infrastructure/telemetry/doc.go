// Package telemetry records bus statistics to InfluxDB.
//
// The bridge reports three measurements:
//
//   - dmx_frames: frames sent and write errors per universe
//   - rdm_discovery: devices found, probes issued and duration per run
//   - rdm_requests: outcome and round-trip latency per RDM request
//
// Writes are non-blocking: points are batched by the InfluxDB client and
// flushed on an interval, so recording a point never delays the bus.
// Write failures surface through the SetOnError callback.
//
// Telemetry is optional. When disabled in config, Connect returns
// ErrDisabled and the caller runs without statistics; all write helpers
// on a disconnected client are no-ops.
//
// # Configuration
//
//	telemetry:
//	  enabled: true
//	  url: "http://localhost:8086"
//	  token: "..."
//	  org: "strandlab"
//	  bucket: "dmx"
//	  batch_size: 100
//	  flush_interval: 10
package telemetry
