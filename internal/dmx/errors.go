package dmx

import "errors"

// Domain errors for the dmx package.
var (
	// ErrTooManySlots is returned when a frame would exceed 512 slots.
	// Oversized input is rejected outright, never truncated.
	ErrTooManySlots = errors.New("dmx: more than 512 slots")

	// ErrWriteFailed is returned when a transport fails to put bytes on
	// the wire.
	ErrWriteFailed = errors.New("dmx: transport write failed")

	// ErrTimeout is returned by Transport.Receive when zero bytes arrive
	// before the timeout. Distinct from a successful short read.
	ErrTimeout = errors.New("dmx: receive timeout")

	// ErrModeNotSupported is returned when a transport cannot switch bus
	// direction (e.g. a transmit-only chipset asked to receive).
	ErrModeNotSupported = errors.New("dmx: direction switch not supported")

	// ErrNoResponse is the "no device answered" outcome of an RDM
	// request. It is a valid result on an addressed request with no
	// responder present, not a transport failure.
	ErrNoResponse = errors.New("dmx: no RDM response")

	// ErrClosed is returned for operations on a closed transport or
	// controller.
	ErrClosed = errors.New("dmx: transport closed")
)
