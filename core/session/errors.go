package session

import "errors"

// Package-level error definitions for session operations.
var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrTransportClosed  = errors.New("transport closed")
	ErrSendQueueFull    = errors.New("send queue full")
)
