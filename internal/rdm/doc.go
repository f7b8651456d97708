// Package rdm implements the RDM (Remote Device Management, ANSI E1.20)
// packet codec and the binary-search discovery engine.
//
// RDM is the bidirectional extension to DMX512. Controllers and responders
// share one half-duplex bus, so every message carries a 48-bit UID and a
// modulo-65536 checksum, and discovery resolves collisions by recursively
// halving the UID address space.
//
// # Key Responsibilities
//
//   - Encode and decode RDM packets (fixed field order, big-endian,
//     checksum and length validated before any field is interpreted)
//   - Encode and decode the special DISC_UNIQUE_BRANCH response (EUID
//     preamble format, where a garbled reply is the collision signal)
//   - Enumerate responder UIDs via the worklist-based discovery engine
//
// # Discovery
//
// The engine depends only on the Prober interface, so it never touches a
// transport directly. The dmx.Controller satisfies Prober over a real bus;
// tests satisfy it with a simulated one.
//
//	disc := rdm.NewDiscoverer(prober, rdm.Config{})
//	uids, err := disc.Discover(ctx)
//
// A collision-heavy or noisy bus cannot stall the engine: retries per range
// and total probes are both bounded, and budget exhaustion surfaces
// ErrProbeBudgetExhausted together with the UIDs found so far.
//
// # Thread Safety
//
// Packet and UID values are plain data and safe to copy. A Discoverer runs
// one discovery at a time; the caller serializes access to the bus.
//
// # References
//
//   - ANSI E1.20-2010 (RDM)
//   - ANSI E1.11-2008 (DMX512-A)
package rdm
