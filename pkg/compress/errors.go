package compress

import "errors"

var (
	// ErrUnknownAlgorithm is returned for algorithm values outside the
	// supported set.
	ErrUnknownAlgorithm = errors.New("unknown compression algorithm")
	// ErrInvalidLevel is returned when a compression level is outside the
	// range supported by the selected algorithm.
	ErrInvalidLevel = errors.New("invalid compression level")
	// ErrCorruptPayload is returned when decompression fails because the
	// input is not valid output of the claimed algorithm.
	ErrCorruptPayload = errors.New("corrupt compressed payload")
)
