// Package dmx implements the DMX512 (ANSI E1.11) link layer: frames,
// protocol timing, the transport contract every physical driver satisfies,
// and the controller facade applications talk to.
//
// # Architecture
//
// The controller composes three transport-independent pieces over one
// pluggable driver:
//
//	application ──► Controller ──► Transport (driver) ──► physical bus
//	                    │
//	                    ├── Frame / rdm.Packet codecs
//	                    ├── timing constants + break sequencing
//	                    └── rdm.Discoverer (for Discover)
//
// Drivers implement only Transport; everything protocol-mandated (slot
// timing, RDM framing, discovery) stays in this package and in rdm.
//
// # Bus Ownership
//
// A DMX/RDM line is half duplex with exactly one talker at a time. The
// controller owns the transport exclusively and serializes every operation
// through one mutex, so concurrent SendUniverse and Discover calls from
// different goroutines are safe but strictly sequential. Discovery holds
// the bus for its entire run; cancellation is honoured between probes.
//
// # Timeouts
//
// Every wait is finite. An absent RDM response is not a failure: it is the
// ErrNoResponse outcome, distinct from transport errors and from decode
// errors on a present-but-garbled reply.
package dmx
