package frame

import "errors"

var (
	// ErrShortHeader is returned when a buffer cannot hold the fixed header.
	ErrShortHeader = errors.New("frame buffer shorter than header")
	// ErrUnsupportedVersion is returned for version bytes this codec does
	// not speak.
	ErrUnsupportedVersion = errors.New("unsupported frame version")
	// ErrUnknownType is returned for type bytes outside the known set.
	ErrUnknownType = errors.New("unknown frame type")
	// ErrTruncated is returned when the metadata or payload section is
	// shorter than the header declares.
	ErrTruncated = errors.New("truncated frame")
	// ErrTrailingData is returned when the buffer is longer than the header
	// declares.
	ErrTrailingData = errors.New("frame has trailing data")
	// ErrInvalidMetadata is returned when the metadata section is not valid
	// UTF-8 JSON.
	ErrInvalidMetadata = errors.New("invalid frame metadata")
	// ErrSectionTooLarge is returned at pack time when a section exceeds
	// what its wire length field can express.
	ErrSectionTooLarge = errors.New("frame section exceeds wire limit")
	// ErrTypeMismatch is returned by typed decoders applied to a frame of a
	// different type.
	ErrTypeMismatch = errors.New("frame type mismatch")
)
