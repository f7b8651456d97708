package registry

import (
	"time"

	"github.com/strandlab/dmx-rdm-core/internal/rdm"
)

// Device is a responder the bridge has seen on the wire.
//
// Identity is the 48-bit RDM UID; label fields are filled in lazily from
// DEVICE_INFO / DEVICE_LABEL responses after discovery and may be empty.
type Device struct {
	// UID is the responder's unique identifier.
	UID rdm.UID

	// ManufacturerID is the ESTA manufacturer ID (high 16 bits of the UID).
	ManufacturerID uint16

	// DeviceLabel is the user-visible label reported by the responder.
	DeviceLabel string

	// ManufacturerLabel is the manufacturer name reported by the responder.
	ManufacturerLabel string

	// FirstSeen is when the responder was first discovered.
	FirstSeen time.Time

	// LastSeen is when the responder last answered a discovery run.
	LastSeen time.Time

	// Online reports whether the responder answered the most recent run.
	Online bool

	// LastRunID is the discovery run that last saw this responder.
	LastRunID string
}

// DiscoveryRun records one pass of the binary-search discovery algorithm.
type DiscoveryRun struct {
	// ID is a uuid assigned when the run starts.
	ID string

	// StartedAt is when the run began.
	StartedAt time.Time

	// CompletedAt is when the run finished; zero while in progress.
	CompletedAt time.Time

	// DevicesFound is the number of responders the run located.
	DevicesFound int

	// Probes is the number of discovery and mute probes the run issued.
	Probes int

	// Error holds the run's failure description, empty on success.
	// Partial-result runs (probe budget exhausted) carry both devices
	// and a non-empty Error.
	Error string
}

// Completed reports whether the run has finished.
func (r DiscoveryRun) Completed() bool {
	return !r.CompletedAt.IsZero()
}
