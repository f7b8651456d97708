package enttec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Widget protocol framing, per the Enttec DMX USB Pro API.
const (
	startDelimiter = 0x7E
	endDelimiter   = 0xE7

	// maxDataLength is the widget's payload ceiling.
	maxDataLength = 600

	// headerLength covers delimiter, label and the little-endian length.
	headerLength = 4

	// minMessageLength is the smallest wire message (empty payload).
	minMessageLength = 5
)

// Widget message labels.
const (
	labelReceivedPacket   = 5
	labelSendDMX          = 6
	labelSendRDM          = 7
	labelGetSerial        = 10
	labelSendRDMDiscovery = 11
)

// Framing errors.
var (
	// ErrMessageTooLarge is returned when a payload exceeds the widget limit.
	ErrMessageTooLarge = errors.New("enttec: message payload too large")

	// ErrBadFraming is returned when a wire message violates the framing rules.
	ErrBadFraming = errors.New("enttec: bad message framing")
)

// message is one widget protocol exchange unit.
type message struct {
	label byte
	data  []byte
}

// encode serializes the message for the wire:
// 0x7E, label, length (little-endian uint16), payload, 0xE7.
func (m message) encode() ([]byte, error) {
	if len(m.data) > maxDataLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(m.data))
	}

	out := make([]byte, 0, minMessageLength+len(m.data))
	out = append(out, startDelimiter, m.label)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(m.data)))
	out = append(out, m.data...)
	out = append(out, endDelimiter)
	return out, nil
}

// decodeMessage parses one complete wire message.
func decodeMessage(raw []byte) (message, error) {
	if len(raw) < minMessageLength {
		return message{}, fmt.Errorf("%w: %d bytes", ErrBadFraming, len(raw))
	}
	if raw[0] != startDelimiter || raw[len(raw)-1] != endDelimiter {
		return message{}, fmt.Errorf("%w: missing delimiters", ErrBadFraming)
	}

	length := int(binary.LittleEndian.Uint16(raw[2:4]))
	if length > maxDataLength {
		return message{}, fmt.Errorf("%w: declared length %d", ErrBadFraming, length)
	}
	if len(raw) != minMessageLength+length {
		return message{}, fmt.Errorf("%w: declared %d bytes, framed %d", ErrBadFraming, length, len(raw)-minMessageLength)
	}

	data := make([]byte, length)
	copy(data, raw[headerLength:headerLength+length])
	return message{label: raw[1], data: data}, nil
}
