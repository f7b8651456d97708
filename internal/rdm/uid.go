package rdm

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// UIDSize is the wire size of a UID in bytes.
const UIDSize = 6

// uidMask keeps a UID within its 48-bit range.
const uidMask = 0xFFFFFFFFFFFF

// UID is a 48-bit RDM unique identifier: a 16-bit ESTA manufacturer ID
// followed by a 32-bit device ID. The zero value is not a valid device
// address and is used as "unset".
type UID uint64

// BroadcastAll addresses every responder on the bus regardless of
// manufacturer. Reserved: never individually addressable and never
// returned by discovery.
const BroadcastAll UID = 0xFFFFFFFFFFFF

// MaxDeviceUID is the highest UID a responder may actually hold. It is one
// below BroadcastAll, which is reserved.
const MaxDeviceUID UID = BroadcastAll - 1

// NewUID builds a UID from its manufacturer and device halves.
func NewUID(manufacturer uint16, device uint32) UID {
	return UID(uint64(manufacturer)<<32 | uint64(device))
}

// ManufacturerBroadcast returns the broadcast UID for a single
// manufacturer (device bits all set). Reserved like BroadcastAll.
func ManufacturerBroadcast(manufacturer uint16) UID {
	return NewUID(manufacturer, 0xFFFFFFFF)
}

// Manufacturer returns the 16-bit ESTA manufacturer ID.
func (u UID) Manufacturer() uint16 {
	return uint16(u >> 32) //nolint:gosec // masked to 48 bits by construction
}

// Device returns the 32-bit device ID.
func (u UID) Device() uint32 {
	return uint32(u) //nolint:gosec // low 32 bits wanted
}

// IsBroadcast reports whether u is BroadcastAll or a manufacturer
// broadcast. Broadcast UIDs carry special discovery semantics and must
// never appear as a discovered responder.
func (u UID) IsBroadcast() bool {
	return u.Device() == 0xFFFFFFFF
}

// Bytes returns the big-endian wire encoding of the UID.
func (u UID) Bytes() [UIDSize]byte {
	var b [UIDSize]byte
	binary.BigEndian.PutUint16(b[0:2], u.Manufacturer())
	binary.BigEndian.PutUint32(b[2:6], u.Device())
	return b
}

// UIDFromBytes parses a big-endian 6-byte UID.
func UIDFromBytes(b []byte) (UID, error) {
	if len(b) != UIDSize {
		return 0, fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidUID, UIDSize, len(b))
	}
	mfr := binary.BigEndian.Uint16(b[0:2])
	dev := binary.BigEndian.Uint32(b[2:6])
	return NewUID(mfr, dev), nil
}

// String formats the UID in the conventional "mmmm:dddddddd" hex form,
// e.g. "02b0:00000017".
func (u UID) String() string {
	return fmt.Sprintf("%04x:%08x", u.Manufacturer(), u.Device())
}

// ParseUID parses the "mmmm:dddddddd" form produced by String.
func ParseUID(s string) (UID, error) {
	mfrStr, devStr, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidUID, s)
	}
	mfr, err := strconv.ParseUint(mfrStr, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: manufacturer in %q", ErrInvalidUID, s)
	}
	dev, err := strconv.ParseUint(devStr, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: device in %q", ErrInvalidUID, s)
	}
	return NewUID(uint16(mfr), uint32(dev)), nil
}
