package dmx

import "fmt"

// DMX frame constants from ANSI E1.11.
const (
	// MaxSlots is the maximum number of channel slots per frame.
	MaxSlots = 512

	// NullStartCode marks a standard dimmer-data frame.
	NullStartCode byte = 0x00
)

// Frame is one DMX512 data frame: a start code followed by up to 512
// channel slots. Slot indices are 1-based on the wire and in Slot; storage
// is 0-based. A Frame is immutable after construction, so a frame already
// handed to a transport can never change mid-send.
type Frame struct {
	startCode byte
	slots     []byte
}

// NewFrame builds a standard (null start code) frame from the given slot
// values. The slice is copied. More than MaxSlots slots is rejected with
// ErrTooManySlots; short frames are legal, down to zero slots.
func NewFrame(slots []byte) (Frame, error) {
	return NewFrameWithStartCode(NullStartCode, slots)
}

// NewFrameWithStartCode builds a frame with an alternate start code, for
// non-dimmer data such as text packets or system information.
func NewFrameWithStartCode(startCode byte, slots []byte) (Frame, error) {
	if len(slots) > MaxSlots {
		return Frame{}, fmt.Errorf("%w: %d", ErrTooManySlots, len(slots))
	}
	copied := make([]byte, len(slots))
	copy(copied, slots)
	return Frame{startCode: startCode, slots: copied}, nil
}

// StartCode returns the frame's start code.
func (f Frame) StartCode() byte {
	return f.startCode
}

// SlotCount returns the number of channel slots.
func (f Frame) SlotCount() int {
	return len(f.slots)
}

// Slot returns the value of the 1-based slot n, or (0, false) if n is out
// of range.
func (f Frame) Slot(n int) (byte, bool) {
	if n < 1 || n > len(f.slots) {
		return 0, false
	}
	return f.slots[n-1], true
}

// Slots returns a copy of the slot values.
func (f Frame) Slots() []byte {
	out := make([]byte, len(f.slots))
	copy(out, f.slots)
	return out
}

// Encode returns the wire bytes: start code followed by the slots
// verbatim. DMX has no checksum.
func (f Frame) Encode() []byte {
	out := make([]byte, 1+len(f.slots))
	out[0] = f.startCode
	copy(out[1:], f.slots)
	return out
}
