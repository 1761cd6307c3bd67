package hub

import "errors"

// Package-level error definitions for hub operations.
var (
	ErrConnectionNotFound = errors.New("connection not found")
	ErrNilTransport       = errors.New("nil transport")
	ErrEmptyConnectionID  = errors.New("empty connection id")
)
