package rdm

import "errors"

// Domain errors for the rdm package.
var (
	// ErrPayloadTooLarge is returned when parameter data exceeds the
	// protocol maximum of 231 bytes.
	ErrPayloadTooLarge = errors.New("rdm: parameter data too large")

	// ErrTruncated is returned when a byte sequence is too short to hold
	// a complete RDM packet.
	ErrTruncated = errors.New("rdm: packet truncated")

	// ErrChecksumMismatch is returned when the transmitted checksum does
	// not match the computed one.
	ErrChecksumMismatch = errors.New("rdm: checksum mismatch")

	// ErrLengthMismatch is returned when the declared message length does
	// not match the actual encoded length.
	ErrLengthMismatch = errors.New("rdm: message length mismatch")

	// ErrInvalidStartCode is returned when a packet does not begin with
	// the RDM start code and sub-start code.
	ErrInvalidStartCode = errors.New("rdm: invalid start code")

	// ErrInvalidUID is returned when a UID string or byte sequence cannot
	// be parsed.
	ErrInvalidUID = errors.New("rdm: invalid UID")

	// ErrInvalidDiscoveryResponse is returned when a DISC_UNIQUE_BRANCH
	// response is malformed. On a shared bus this is the collision
	// signature: overlapping replies from multiple responders.
	ErrInvalidDiscoveryResponse = errors.New("rdm: invalid discovery response")

	// ErrProbeBudgetExhausted is returned when discovery stops because the
	// configured probe budget ran out before all ranges were resolved.
	// The UIDs found so far are still returned.
	ErrProbeBudgetExhausted = errors.New("rdm: discovery probe budget exhausted")

	// ErrUnreachableResponder is recorded when a single-UID range keeps
	// colliding after all retries. Wrapped into the Discover result.
	ErrUnreachableResponder = errors.New("rdm: responder unreachable after retries")
)
