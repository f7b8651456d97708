// Package bridge connects an MQTT broker to one DMX/RDM bus.
//
// The bridge is the daemon's application layer: it subscribes to universe
// and RDM command topics, drives the bus through the controller, keeps the
// device registry in step with discovery runs, and reports health.
//
// # Responsibilities
//
//   - Apply universe set and blackout commands to a full-frame level
//     buffer and retransmit it
//   - Publish the retained universe state after every change
//   - Run RDM discovery on request or on a configured interval, record
//     sightings in the registry and publish the retained device list
//   - Execute ad-hoc RDM get/set requests and answer on per-request
//     response topics
//   - Publish periodic health messages with cumulative bus counters
//
// # Command flow
//
//	MQTT command ─► handler ─► Controller ─► transport ─► bus
//	                   │
//	                   └─► registry / telemetry / retained state
//
// One bridge serves one universe; commands addressed to other universe
// numbers on a shared broker are ignored.
//
// # Thread Safety
//
// All exported types are safe for concurrent use. MQTT handlers may run
// concurrently; bus access is serialised by the controller, the frame
// buffer by its own mutex, and only one discovery run is admitted at a
// time.
package bridge
