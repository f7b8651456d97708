package enttec

import (
	"bytes"
	"errors"
	"testing"
)

func TestMessageEncode(t *testing.T) {
	tests := []struct {
		name  string
		msg   message
		want  []byte
	}{
		{
			name: "empty payload",
			msg:  message{label: labelGetSerial},
			want: []byte{0x7E, 10, 0x00, 0x00, 0xE7},
		},
		{
			name: "dmx send",
			msg:  message{label: labelSendDMX, data: []byte{0x00, 0xFF, 0x80}},
			want: []byte{0x7E, 6, 0x03, 0x00, 0x00, 0xFF, 0x80, 0xE7},
		},
		{
			name: "length is little endian",
			msg:  message{label: labelSendRDM, data: make([]byte, 0x0102)},
			want: append(append([]byte{0x7E, 7, 0x02, 0x01}, make([]byte, 0x0102)...), 0xE7),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.msg.encode()
			if err != nil {
				t.Fatalf("encode() error = %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("encode() = %x, want %x", got, tt.want)
			}
		})
	}
}

func TestMessageEncode_TooLarge(t *testing.T) {
	msg := message{label: labelSendDMX, data: make([]byte, maxDataLength+1)}
	if _, err := msg.encode(); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("encode() error = %v, want ErrMessageTooLarge", err)
	}
}

func TestMessageRoundTrip(t *testing.T) {
	original := message{label: labelReceivedPacket, data: []byte{0x00, 0xCC, 0x01, 0x18}}

	wire, err := original.encode()
	if err != nil {
		t.Fatalf("encode() error = %v", err)
	}

	decoded, err := decodeMessage(wire)
	if err != nil {
		t.Fatalf("decodeMessage() error = %v", err)
	}
	if decoded.label != original.label {
		t.Errorf("label = %d, want %d", decoded.label, original.label)
	}
	if !bytes.Equal(decoded.data, original.data) {
		t.Errorf("data = %x, want %x", decoded.data, original.data)
	}
}

func TestDecodeMessage_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"too short", []byte{0x7E, 5, 0x00}},
		{"missing start delimiter", []byte{0x00, 5, 0x00, 0x00, 0xE7}},
		{"missing end delimiter", []byte{0x7E, 5, 0x00, 0x00, 0x00}},
		{"length mismatch", []byte{0x7E, 5, 0x05, 0x00, 0x01, 0xE7}},
		{"declared length too large", append([]byte{0x7E, 5, 0xFF, 0xFF}, make([]byte, 20)...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := decodeMessage(tt.raw); !errors.Is(err, ErrBadFraming) {
				t.Errorf("decodeMessage() error = %v, want ErrBadFraming", err)
			}
		})
	}
}
