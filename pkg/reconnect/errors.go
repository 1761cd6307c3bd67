package reconnect

import "errors"

var (
	// ErrMissingConnectionID is returned when issuing a snapshot without an
	// originating connection ID.
	ErrMissingConnectionID = errors.New("connection ID is required")
	// ErrTokenGeneration is returned when the random token source fails.
	ErrTokenGeneration = errors.New("failed to generate reconnection token")
)
