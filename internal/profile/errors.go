package profile

import "errors"

var (
	// ErrRegistryNotFound is recorded when no registry candidate exists.
	ErrRegistryNotFound = errors.New("profile registry not found")

	// ErrRegistryReadOnly is recorded when the registry lacks the profile
	// and cannot be written.
	ErrRegistryReadOnly = errors.New("profile registry is not writable")
)
