package rdm

import (
	"encoding/binary"
	"fmt"
)

// RDM framing constants from ANSI E1.20.
const (
	// StartCode is the DMX alternate start code that marks an RDM packet.
	StartCode byte = 0xCC

	// SubStartCode follows the start code in every RDM packet.
	SubStartCode byte = 0x01

	// MaxParameterDataLength is the protocol maximum for parameter data.
	MaxParameterDataLength = 231

	// baseLength is the slot count from the start code through the
	// parameter data length field, i.e. a packet with no parameter data.
	baseLength = 24

	// checksumLength is the size of the trailing checksum.
	checksumLength = 2

	// minPacketLength is the smallest valid encoded packet.
	minPacketLength = baseLength + checksumLength
)

// Field offsets within an encoded packet.
const (
	offMessageLength     = 2
	offDestination       = 3
	offSource            = 9
	offTransactionNumber = 15
	offPortID            = 16
	offMessageCount      = 17
	offSubDevice         = 18
	offCommandClass      = 20
	offParameterID       = 21
	offParameterDataLen  = 23
	offParameterData     = 24
)

// CommandClass identifies the kind of RDM transaction.
type CommandClass byte

// Command classes defined by E1.20.
const (
	DiscoveryCommand         CommandClass = 0x10
	DiscoveryCommandResponse CommandClass = 0x11
	GetCommand               CommandClass = 0x20
	GetCommandResponse       CommandClass = 0x21
	SetCommand               CommandClass = 0x30
	SetCommandResponse       CommandClass = 0x31
)

// ParameterID identifies the parameter a command addresses.
type ParameterID uint16

// Parameter IDs used by the link layer. Discovery PIDs are mandatory for
// every responder; the rest are the common management set.
const (
	ParamDiscUniqueBranch     ParameterID = 0x0001
	ParamDiscMute             ParameterID = 0x0002
	ParamDiscUnMute           ParameterID = 0x0003
	ParamSupportedParameters  ParameterID = 0x0050
	ParamDeviceInfo           ParameterID = 0x0060
	ParamDeviceModel          ParameterID = 0x0080
	ParamManufacturerLabel    ParameterID = 0x0081
	ParamDeviceLabel          ParameterID = 0x0082
	ParamSoftwareVersionLabel ParameterID = 0x00C0
	ParamDMXStartAddress      ParameterID = 0x00F0
	ParamIdentifyDevice       ParameterID = 0x1000
)

// ResponseType values carried in the port ID field of responses.
const (
	ResponseAck         byte = 0x00
	ResponseAckTimer    byte = 0x01
	ResponseNackReason  byte = 0x02
	ResponseAckOverflow byte = 0x03
)

// SubDeviceAll addresses every sub-device of a responder.
const SubDeviceAll uint16 = 0xFFFF

// Packet is a structured RDM message.
//
// The PortID field doubles as the response type on responder packets, as
// the wire format defines one slot for both. The zero value of every other
// field is a valid encoding; ParameterData may be nil.
type Packet struct {
	// Destination is the target UID (may be a broadcast UID).
	Destination UID

	// Source is the sender's UID.
	Source UID

	// TransactionNumber matches responses to requests.
	TransactionNumber uint8

	// PortID on requests identifies the controller port (1-based);
	// on responses it carries the response type.
	PortID uint8

	// MessageCount is the responder's queued-message count.
	MessageCount uint8

	// SubDevice addresses a sub-device, or SubDeviceAll.
	SubDevice uint16

	// CommandClass is the transaction kind.
	CommandClass CommandClass

	// ParameterID is the parameter being addressed.
	ParameterID ParameterID

	// ParameterData is the PID-specific payload, at most
	// MaxParameterDataLength bytes.
	ParameterData []byte
}

// IsResponse reports whether the command class is a responder-to-controller
// class.
func (p Packet) IsResponse() bool {
	switch p.CommandClass {
	case DiscoveryCommandResponse, GetCommandResponse, SetCommandResponse:
		return true
	default:
		return false
	}
}

// Checksum computes the RDM checksum over data: the sum of all bytes
// modulo 65536.
func Checksum(data []byte) uint16 {
	var sum uint16
	for _, b := range data {
		sum += uint16(b)
	}
	return sum
}

// Encode serializes the packet in E1.20 field order and appends the
// checksum. It fails with ErrPayloadTooLarge if the parameter data exceeds
// the protocol maximum.
func (p Packet) Encode() ([]byte, error) {
	if len(p.ParameterData) > MaxParameterDataLength {
		return nil, fmt.Errorf("%w: %d bytes (max %d)",
			ErrPayloadTooLarge, len(p.ParameterData), MaxParameterDataLength)
	}

	msgLen := baseLength + len(p.ParameterData)
	buf := make([]byte, msgLen+checksumLength)

	buf[0] = StartCode
	buf[1] = SubStartCode
	buf[offMessageLength] = byte(msgLen)

	dst := p.Destination.Bytes()
	copy(buf[offDestination:], dst[:])
	src := p.Source.Bytes()
	copy(buf[offSource:], src[:])

	buf[offTransactionNumber] = p.TransactionNumber
	buf[offPortID] = p.PortID
	buf[offMessageCount] = p.MessageCount
	binary.BigEndian.PutUint16(buf[offSubDevice:], p.SubDevice)
	buf[offCommandClass] = byte(p.CommandClass)
	binary.BigEndian.PutUint16(buf[offParameterID:], uint16(p.ParameterID))
	buf[offParameterDataLen] = byte(len(p.ParameterData))
	copy(buf[offParameterData:], p.ParameterData)

	binary.BigEndian.PutUint16(buf[msgLen:], Checksum(buf[:msgLen]))
	return buf, nil
}

// Decode parses an encoded RDM packet.
//
// Checksum and length are mandatory gates: both are verified before any
// field is interpreted, so corrupted bus noise never produces a packet.
// Malformed input returns a typed error, never a panic.
func Decode(data []byte) (Packet, error) {
	if len(data) < minPacketLength {
		return Packet{}, fmt.Errorf("%w: %d bytes (min %d)",
			ErrTruncated, len(data), minPacketLength)
	}
	if data[0] != StartCode || data[1] != SubStartCode {
		return Packet{}, fmt.Errorf("%w: %#02x %#02x", ErrInvalidStartCode, data[0], data[1])
	}

	msgLen := int(data[offMessageLength])
	if msgLen+checksumLength != len(data) {
		return Packet{}, fmt.Errorf("%w: declared %d, actual %d",
			ErrLengthMismatch, msgLen, len(data)-checksumLength)
	}

	want := Checksum(data[:msgLen])
	got := binary.BigEndian.Uint16(data[msgLen:])
	if want != got {
		return Packet{}, fmt.Errorf("%w: computed %#04x, transmitted %#04x",
			ErrChecksumMismatch, want, got)
	}

	pdl := int(data[offParameterDataLen])
	if baseLength+pdl != msgLen {
		return Packet{}, fmt.Errorf("%w: parameter data length %d inconsistent with message length %d",
			ErrLengthMismatch, pdl, msgLen)
	}

	dst, err := UIDFromBytes(data[offDestination : offDestination+UIDSize])
	if err != nil {
		return Packet{}, err
	}
	src, err := UIDFromBytes(data[offSource : offSource+UIDSize])
	if err != nil {
		return Packet{}, err
	}

	p := Packet{
		Destination:       dst,
		Source:            src,
		TransactionNumber: data[offTransactionNumber],
		PortID:            data[offPortID],
		MessageCount:      data[offMessageCount],
		SubDevice:         binary.BigEndian.Uint16(data[offSubDevice:]),
		CommandClass:      CommandClass(data[offCommandClass]),
		ParameterID:       ParameterID(binary.BigEndian.Uint16(data[offParameterID:])),
	}
	if pdl > 0 {
		p.ParameterData = make([]byte, pdl)
		copy(p.ParameterData, data[offParameterData:offParameterData+pdl])
	}
	return p, nil
}

// String returns a compact human-readable summary for logs.
func (p Packet) String() string {
	return fmt.Sprintf("Packet{%s->%s tn=%d cc=%#02x pid=%#04x pdl=%d}",
		p.Source, p.Destination, p.TransactionNumber,
		byte(p.CommandClass), uint16(p.ParameterID), len(p.ParameterData))
}
