package registry

import "errors"

var (
	// ErrNameConflict is returned when a name is already registered under
	// case-insensitive comparison.
	ErrNameConflict = errors.New("name taken")

	// ErrInvalidName is returned when a name is empty after trimming.
	ErrInvalidName = errors.New("invalid name")

	// ErrNotFound is returned when no client matches a credential or name.
	ErrNotFound = errors.New("client not found")

	// ErrCredentialExhausted is returned when the credential source keeps
	// producing values that are already in use.
	ErrCredentialExhausted = errors.New("could not issue a unique credential")

	// ErrClosed is returned when attaching to a registry that has been closed.
	ErrClosed = errors.New("registry closed")

	// ErrNilOutbound is returned when Attach is called without an outbound.
	ErrNilOutbound = errors.New("nil outbound")
)
