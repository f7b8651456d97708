package dmx

import "time"

// Mode is the bus direction of a half-duplex transport.
type Mode int

const (
	// Transmit drives the line.
	Transmit Mode = iota

	// Receive listens on the line.
	Receive
)

// String returns the mode name for logs.
func (m Mode) String() string {
	switch m {
	case Transmit:
		return "transmit"
	case Receive:
		return "receive"
	default:
		return "unknown"
	}
}

// Transport is the capability contract every physical DMX/RDM driver
// implements: a UART-class link at 250 kbaud 8N2 with break signalling and
// half-duplex direction control.
//
// Every operation touches the physical bus; none is pure. Implementations
// need not be safe for concurrent use: the Controller serializes all
// access.
type Transport interface {
	// SetMode switches bus direction. It completes before the first byte
	// of the new direction is sent or expected. Transports whose hardware
	// cannot switch return ErrModeNotSupported.
	SetMode(mode Mode) error

	// SendFrame emits a break of at least MinBreak, a mark-after-break of
	// at least MinMarkAfterBreak, then data at DMX line settings. It
	// returns once all bytes are queued or flushed to the physical layer,
	// wrapping I/O failures in ErrWriteFailed.
	SendFrame(data []byte) error

	// Receive blocks until at least one byte is available or timeout
	// elapses, returning the bytes received so far. Zero bytes before the
	// timeout is ErrTimeout; a successful short read is not an error.
	Receive(timeout time.Duration) ([]byte, error)

	// Flush returns once all queued output has been physically
	// transmitted. Called before direction switches so frames are never
	// truncated on the wire.
	Flush() error

	// Close releases the underlying device.
	Close() error
}
