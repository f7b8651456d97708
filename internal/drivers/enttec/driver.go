package enttec

import (
	"encoding/binary"
	"fmt"
	"time"

	"go.bug.st/serial"

	"github.com/strandlab/dmx-rdm-core/internal/dmx"
	"github.com/strandlab/dmx-rdm-core/internal/rdm"
)

// ManufacturerID is Enttec's ESTA manufacturer ID ("EN").
const ManufacturerID uint16 = 0x454E

const (
	// widgetBaud is the USB-side baud rate. The widget regenerates DMX
	// timing itself, so this is framing-protocol speed, not line speed.
	widgetBaud = 115200

	// rdmSettleTime gives the widget time to put an RDM packet on the
	// wire before the host starts waiting on the reply.
	rdmSettleTime = 5 * time.Millisecond

	// serialQueryTimeout bounds the GET_WIDGET_SERIAL exchange.
	serialQueryTimeout = 500 * time.Millisecond

	// widgetSerialLength is the payload size of the serial number reply.
	widgetSerialLength = 4
)

// Port is the subset of serial.Port the driver uses.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
	Close() error
}

// Driver implements dmx.Transport over an Enttec DMX USB Pro widget.
//
// The widget owns the line: it generates break and mark-after-break,
// regenerates DMX timing, handles bus turnaround for RDM, and reports
// everything it receives in framed messages. The host side is pure
// message plumbing.
//
// The widget must run the RDM-capable firmware; OpenDMX hardware
// (a bare FTDI) does not speak this protocol — use serialdmx for that.
//
// Not safe for concurrent use; the controller serializes all access.
type Driver struct {
	port   Port
	closed bool
	sleep  func(time.Duration)
}

// Open opens the widget's serial device.
//
// Parameters:
//   - device: Serial device path (e.g. /dev/ttyUSB0)
//
// Returns:
//   - *Driver: Ready transport
//   - error: If the device cannot be opened
func Open(device string) (*Driver, error) {
	mode := &serial.Mode{
		BaudRate: widgetBaud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("enttec: opening %s: %w", device, err)
	}
	return newDriver(port), nil
}

// newDriver wires a Driver around an open port. Split from Open so
// tests can inject a fake port.
func newDriver(port Port) *Driver {
	return &Driver{
		port:  port,
		sleep: time.Sleep,
	}
}

// WidgetUID derives the widget's own controller UID from its serial
// number (Enttec manufacturer ID + 32-bit serial). Use it as the
// source UID when none is configured.
func (d *Driver) WidgetUID() (rdm.UID, error) {
	if d.closed {
		return 0, dmx.ErrClosed
	}

	query, err := message{label: labelGetSerial}.encode()
	if err != nil {
		return 0, err
	}
	if _, err := d.port.Write(query); err != nil {
		return 0, fmt.Errorf("%w: serial query: %w", dmx.ErrWriteFailed, err)
	}

	deadline := time.Now().Add(serialQueryTimeout)
	for {
		msg, err := d.readMessage(deadline)
		if err != nil {
			return 0, fmt.Errorf("enttec: reading widget serial: %w", err)
		}
		if msg.label != labelGetSerial {
			continue
		}
		if len(msg.data) != widgetSerialLength {
			return 0, fmt.Errorf("%w: serial reply %d bytes", ErrBadFraming, len(msg.data))
		}
		serialNumber := binary.LittleEndian.Uint32(msg.data)
		return rdm.NewUID(ManufacturerID, serialNumber), nil
	}
}

// SetMode is a no-op: the widget switches bus direction itself.
func (d *Driver) SetMode(dmx.Mode) error {
	if d.closed {
		return dmx.ErrClosed
	}
	return nil
}

// SendFrame hands a frame to the widget.
//
// RDM packets (alternate start code 0xCC) are routed to the widget's
// RDM send, with DISC_UNIQUE_BRANCH going to the discovery variant so
// the widget collects the unframed EUID response. Everything else is a
// DMX send.
func (d *Driver) SendFrame(data []byte) error {
	if d.closed {
		return dmx.ErrClosed
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: empty frame", dmx.ErrWriteFailed)
	}

	label := byte(labelSendDMX)
	isRDM := data[0] == rdm.StartCode && len(data) > offParameterIDEnd
	if isRDM {
		label = labelSendRDM
		cc := rdm.CommandClass(data[offCommandClass])
		pid := rdm.ParameterID(binary.BigEndian.Uint16(data[offParameterID:offParameterIDEnd]))
		if cc == rdm.DiscoveryCommand && pid == rdm.ParamDiscUniqueBranch {
			label = labelSendRDMDiscovery
		}
	}

	wire, err := message{label: label, data: data}.encode()
	if err != nil {
		return fmt.Errorf("%w: %w", dmx.ErrWriteFailed, err)
	}
	if _, err := d.port.Write(wire); err != nil {
		return fmt.Errorf("%w: %w", dmx.ErrWriteFailed, err)
	}

	if isRDM {
		d.sleep(rdmSettleTime)
	}
	return nil
}

// RDM packet field offsets used for label selection.
const (
	offCommandClass   = 20
	offParameterID    = 21
	offParameterIDEnd = 23
)

// Receive waits for the widget to report received bus data.
//
// The widget's receive report carries a status byte ahead of the bus
// bytes; the status byte is dropped so callers see the packet from its
// start code (or the raw EUID bytes for discovery responses).
func (d *Driver) Receive(timeout time.Duration) ([]byte, error) {
	if d.closed {
		return nil, dmx.ErrClosed
	}

	deadline := time.Now().Add(timeout)
	for {
		msg, err := d.readMessage(deadline)
		if err != nil {
			return nil, err
		}
		if msg.label != labelReceivedPacket {
			continue
		}
		if len(msg.data) < 1 {
			return nil, fmt.Errorf("%w: empty receive report", ErrBadFraming)
		}
		return msg.data[1:], nil
	}
}

// Flush is a no-op: the widget queues and paces output itself.
func (d *Driver) Flush() error {
	if d.closed {
		return dmx.ErrClosed
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
		return fmt.Errorf("enttec: closing port: %w", err)
	}
	return nil
}

// readMessage assembles one framed widget message, scanning past noise
// until a start delimiter, then reading header and payload. Returns
// dmx.ErrTimeout if no complete message arrives before deadline.
func (d *Driver) readMessage(deadline time.Time) (message, error) {
	var one [1]byte
	for {
		if err := d.readFull(one[:], deadline); err != nil {
			return message{}, err
		}
		if one[0] == startDelimiter {
			break
		}
	}

	header := make([]byte, headerLength)
	header[0] = startDelimiter
	if err := d.readFull(header[1:], deadline); err != nil {
		return message{}, err
	}

	length := int(binary.LittleEndian.Uint16(header[2:4]))
	if length > maxDataLength {
		return message{}, fmt.Errorf("%w: declared length %d", ErrBadFraming, length)
	}

	rest := make([]byte, length+1)
	if err := d.readFull(rest, deadline); err != nil {
		return message{}, err
	}

	return decodeMessage(append(header, rest...))
}

// readFull reads exactly len(buf) bytes or fails with dmx.ErrTimeout
// at the deadline.
func (d *Driver) readFull(buf []byte, deadline time.Time) error {
	head := 0
	for head < len(buf) {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return dmx.ErrTimeout
		}
		if err := d.port.SetReadTimeout(remaining); err != nil {
			return fmt.Errorf("enttec: setting read timeout: %w", err)
		}
		n, err := d.port.Read(buf[head:])
		if err != nil {
			return fmt.Errorf("enttec: read: %w", err)
		}
		if n == 0 {
			return dmx.ErrTimeout
		}
		head += n
	}
	return nil
}
