package registry

import "errors"

// Domain errors for the registry package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, registry.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a UID has never been discovered.
	ErrDeviceNotFound = errors.New("registry: device not found")

	// ErrRunNotFound is returned when a discovery run ID does not exist.
	ErrRunNotFound = errors.New("registry: discovery run not found")

	// ErrRunCompleted is returned when recording against an already-completed run.
	ErrRunCompleted = errors.New("registry: discovery run already completed")
)
