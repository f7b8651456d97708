package serialdmx

import (
	"fmt"
	"time"

	"go.bug.st/serial"

	"github.com/strandlab/dmx-rdm-core/internal/dmx"
)

// readBufferSize holds one full frame plus framing slack.
const readBufferSize = 1024

// Port is the subset of serial.Port the driver uses.
// Narrowed for testability with a fake port.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Break(d time.Duration) error
	Drain() error
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
	Close() error
}

// Config contains the serial driver settings.
type Config struct {
	// Device is the serial device path (e.g. /dev/ttyUSB0).
	Device string

	// Break is the break duration per frame. Raised to dmx.MinBreak
	// if shorter. Zero means dmx.TypicalBreak.
	Break time.Duration

	// MarkAfterBreak is the mark between break and first byte. Raised
	// to dmx.MinMarkAfterBreak if shorter. Zero means
	// dmx.TypicalMarkAfterBreak.
	MarkAfterBreak time.Duration
}

// Driver implements dmx.Transport over a USB RS485 serial adapter.
//
// Works with FTDI-class cables wired to auto-direction RS485
// transceivers: the transceiver flips between drive and listen by
// itself, so SetMode only manages input-buffer hygiene. Not suitable
// for Enttec Pro widgets, which speak a framed protocol (see the
// enttec package).
//
// Not safe for concurrent use; the controller serializes all access.
type Driver struct {
	port           Port
	breakTime      time.Duration
	markAfterBreak time.Duration
	mode           dmx.Mode
	closed         bool

	// stripBreak is set after each send: a responder's break arrives
	// through the UART as a spurious 0x00 byte ahead of the packet.
	stripBreak bool

	readBuf [readBufferSize]byte
	sleep   func(time.Duration)
}

// Open opens the serial device at DMX line settings (250kbaud 8N2).
//
// Parameters:
//   - cfg: Device path and timing overrides
//
// Returns:
//   - *Driver: Ready transport
//   - error: If the device cannot be opened or configured
func Open(cfg Config) (*Driver, error) {
	mode := &serial.Mode{
		BaudRate: dmx.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.TwoStopBits,
	}
	port, err := serial.Open(cfg.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("serialdmx: opening %s: %w", cfg.Device, err)
	}
	return newDriver(port, cfg), nil
}

// newDriver wires a Driver around an open port. Split from Open so
// tests can inject a fake port.
func newDriver(port Port, cfg Config) *Driver {
	breakTime := cfg.Break
	if breakTime == 0 {
		breakTime = dmx.TypicalBreak
	}
	if breakTime < dmx.MinBreak {
		breakTime = dmx.MinBreak
	}
	mab := cfg.MarkAfterBreak
	if mab == 0 {
		mab = dmx.TypicalMarkAfterBreak
	}
	if mab < dmx.MinMarkAfterBreak {
		mab = dmx.MinMarkAfterBreak
	}
	return &Driver{
		port:           port,
		breakTime:      breakTime,
		markAfterBreak: mab,
		mode:           dmx.Transmit,
		sleep:          time.Sleep,
	}
}

// SetMode switches bus direction.
//
// The RS485 transceiver auto-switches electrically, so this only
// discards stale input when turning around to listen.
func (d *Driver) SetMode(mode dmx.Mode) error {
	if d.closed {
		return dmx.ErrClosed
	}
	if mode == dmx.Receive && d.mode != dmx.Receive {
		if err := d.port.ResetInputBuffer(); err != nil {
			return fmt.Errorf("serialdmx: clearing input buffer: %w", err)
		}
	}
	d.mode = mode
	return nil
}

// SendFrame emits break, mark-after-break, then the frame bytes, and
// waits until the UART has drained them onto the wire.
func (d *Driver) SendFrame(data []byte) error {
	if d.closed {
		return dmx.ErrClosed
	}

	if err := d.port.Break(d.breakTime); err != nil {
		return fmt.Errorf("%w: break: %w", dmx.ErrWriteFailed, err)
	}
	d.sleep(d.markAfterBreak)

	n, err := d.port.Write(data)
	if err != nil {
		return fmt.Errorf("%w: %w", dmx.ErrWriteFailed, err)
	}
	if n != len(data) {
		return fmt.Errorf("%w: short write (%d of %d bytes)", dmx.ErrWriteFailed, n, len(data))
	}

	if err := d.port.Drain(); err != nil {
		return fmt.Errorf("%w: drain: %w", dmx.ErrWriteFailed, err)
	}

	d.stripBreak = true
	return nil
}

// Receive blocks until bytes arrive or timeout elapses.
//
// A responder's break shows up as a 0x00 byte ahead of its packet;
// leading zeros on the first data after a send are stripped so callers
// see the packet from its start code.
func (d *Driver) Receive(timeout time.Duration) ([]byte, error) {
	if d.closed {
		return nil, dmx.ErrClosed
	}

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, dmx.ErrTimeout
		}
		if err := d.port.SetReadTimeout(remaining); err != nil {
			return nil, fmt.Errorf("serialdmx: setting read timeout: %w", err)
		}

		n, err := d.port.Read(d.readBuf[:])
		if err != nil {
			return nil, fmt.Errorf("serialdmx: read: %w", err)
		}
		if n == 0 {
			return nil, dmx.ErrTimeout
		}

		chunk := d.readBuf[:n]
		if d.stripBreak {
			for len(chunk) > 0 && chunk[0] == 0x00 {
				chunk = chunk[1:]
			}
			if len(chunk) == 0 {
				// Only the break so far; keep waiting for data.
				continue
			}
			d.stripBreak = false
		}

		out := make([]byte, len(chunk))
		copy(out, chunk)
		return out, nil
	}
}

// Flush waits until all queued output is on the wire.
func (d *Driver) Flush() error {
	if d.closed {
		return dmx.ErrClosed
	}
	if err := d.port.Drain(); err != nil {
		return fmt.Errorf("%w: drain: %w", dmx.ErrWriteFailed, err)
	}
	return nil
}

// Close releases the serial device. Subsequent operations return
// dmx.ErrClosed.
func (d *Driver) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if err := d.port.Close(); err != nil {
		return fmt.Errorf("serialdmx: closing port: %w", err)
	}
	return nil
}
