package rdm

import (
	"encoding/binary"
	"fmt"
)

// DISC_UNIQUE_BRANCH responses do not use the normal packet framing. The
// responder sends up to seven 0xFE preamble bytes, a 0xAA separator, then
// the UID and a 16-bit checksum each encoded twice per byte: the even slot
// ORed with 0xAA, the odd slot ORed with 0x55. ANDing a pair recovers the
// byte. The redundancy exists so that overlapping replies from several
// responders are detectable as garbage rather than mistaken for a UID.
const (
	euidPreamble   byte = 0xFE
	euidSeparator  byte = 0xAA
	maxPreambleLen      = 7

	// euidDataLen is the encoded payload after the separator:
	// 12 UID bytes plus 4 checksum bytes.
	euidDataLen = 2*UIDSize + 4
)

// EncodeDiscoveryResponse builds the full DISC_UNIQUE_BRANCH response a
// responder with the given UID puts on the bus, including the preamble.
// Used by responder emulation and the discovery tests.
func EncodeDiscoveryResponse(uid UID) []byte {
	out := make([]byte, 0, maxPreambleLen+1+euidDataLen)
	for i := 0; i < maxPreambleLen; i++ {
		out = append(out, euidPreamble)
	}
	out = append(out, euidSeparator)

	raw := uid.Bytes()
	for _, b := range raw {
		out = append(out, b|0xAA, b|0x55)
	}

	// Checksum covers the 12 encoded UID bytes, not the raw ones.
	sum := Checksum(out[len(out)-2*UIDSize:])
	var csum [2]byte
	binary.BigEndian.PutUint16(csum[:], sum)
	for _, b := range csum {
		out = append(out, b|0xAA, b|0x55)
	}
	return out
}

// DecodeDiscoveryResponse parses a DISC_UNIQUE_BRANCH response.
//
// Any malformation (missing separator, oversized preamble, inconsistent
// encoded pairs, checksum failure, trailing bytes) returns
// ErrInvalidDiscoveryResponse. Callers treat that as the collision
// signature: two or more responders answered at once.
func DecodeDiscoveryResponse(data []byte) (UID, error) {
	// Skip the preamble run to the separator.
	i := 0
	for i < len(data) && data[i] == euidPreamble {
		i++
	}
	if i > maxPreambleLen {
		return 0, fmt.Errorf("%w: preamble of %d bytes", ErrInvalidDiscoveryResponse, i)
	}
	if i >= len(data) || data[i] != euidSeparator {
		return 0, fmt.Errorf("%w: missing separator", ErrInvalidDiscoveryResponse)
	}
	payload := data[i+1:]
	if len(payload) != euidDataLen {
		return 0, fmt.Errorf("%w: %d payload bytes (want %d)",
			ErrInvalidDiscoveryResponse, len(payload), euidDataLen)
	}

	decode16 := func(even, odd byte) (byte, bool) {
		// Each pair must carry the same byte under both masks.
		if even&0xAA != 0xAA || odd&0x55 != 0x55 {
			return 0, false
		}
		return even & odd, true
	}

	var raw [UIDSize]byte
	for j := 0; j < UIDSize; j++ {
		b, ok := decode16(payload[2*j], payload[2*j+1])
		if !ok {
			return 0, fmt.Errorf("%w: inconsistent encoding pair %d", ErrInvalidDiscoveryResponse, j)
		}
		raw[j] = b
	}

	hi, okHi := decode16(payload[2*UIDSize], payload[2*UIDSize+1])
	lo, okLo := decode16(payload[2*UIDSize+2], payload[2*UIDSize+3])
	if !okHi || !okLo {
		return 0, fmt.Errorf("%w: inconsistent checksum encoding", ErrInvalidDiscoveryResponse)
	}
	got := uint16(hi)<<8 | uint16(lo)

	want := Checksum(payload[:2*UIDSize])
	if got != want {
		return 0, fmt.Errorf("%w: checksum computed %#04x, transmitted %#04x",
			ErrInvalidDiscoveryResponse, want, got)
	}

	uid, err := UIDFromBytes(raw[:])
	if err != nil {
		return 0, err
	}
	if uid.IsBroadcast() {
		// Reserved values can only come from line noise or collisions.
		return 0, fmt.Errorf("%w: reserved UID %s", ErrInvalidDiscoveryResponse, uid)
	}
	return uid, nil
}
