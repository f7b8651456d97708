package bridge

import "errors"

// Domain errors for the bridge package.
var (
	// ErrInvalidPayload is returned when a command payload cannot be
	// parsed or fails validation.
	ErrInvalidPayload = errors.New("bridge: invalid payload")

	// ErrUniverseMismatch is returned when a command names a universe
	// this bridge does not serve.
	ErrUniverseMismatch = errors.New("bridge: universe not served by this bridge")

	// ErrDiscoveryBusy is returned when a discovery run is requested
	// while one is already in progress.
	ErrDiscoveryBusy = errors.New("bridge: discovery already in progress")
)
