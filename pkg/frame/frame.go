package frame

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// Version is the only frame format version this codec speaks. The version
// byte exists so the format can evolve without breaking old clients.
const Version = 1

// HeaderSize is the fixed length of the frame header in bytes:
// version(1) type(1) metadataLen(2, big-endian) payloadLen(4, big-endian).
const HeaderSize = 8

const (
	// MaxMetadataSize is the largest metadata section the 2-byte length
	// field can describe.
	MaxMetadataSize = 1<<16 - 1
	// MaxPayloadSize is the largest payload the 4-byte length field can
	// describe.
	MaxPayloadSize = 1<<32 - 1
)

// Type identifies the kind of out-of-band payload a frame carries.
type Type uint8

const (
	TypeImage Type = iota + 1
	TypeAudio
	TypeVideo
	TypeRawBinary
	TypeCompressedJSON
)

// String returns the frame type name used in logs and metadata.
func (t Type) String() string {
	switch t {
	case TypeImage:
		return "image"
	case TypeAudio:
		return "audio"
	case TypeVideo:
		return "video"
	case TypeRawBinary:
		return "raw_binary"
	case TypeCompressedJSON:
		return "compressed_json"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

func (t Type) valid() bool {
	return t >= TypeImage && t <= TypeCompressedJSON
}

// Frame is a decoded binary frame.
type Frame struct {
	Type     Type
	Payload  []byte
	Metadata map[string]any
}

// Pack encodes a frame: 8-byte header, UTF-8 JSON metadata section, payload.
// A nil metadata map encodes as an empty JSON object.
func Pack(typ Type, payload []byte, metadata map[string]any) ([]byte, error) {
	if !typ.valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, uint8(typ))
	}

	if metadata == nil {
		metadata = map[string]any{}
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMetadata, err)
	}
	if len(meta) > MaxMetadataSize {
		return nil, fmt.Errorf("%w: metadata is %d bytes, limit %d", ErrSectionTooLarge, len(meta), MaxMetadataSize)
	}
	if uint64(len(payload)) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: payload is %d bytes, limit %d", ErrSectionTooLarge, len(payload), uint64(MaxPayloadSize))
	}

	buf := make([]byte, HeaderSize+len(meta)+len(payload))
	buf[0] = Version
	buf[1] = byte(typ)
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(meta)))
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(payload)))
	copy(buf[HeaderSize:], meta)
	copy(buf[HeaderSize+len(meta):], payload)
	return buf, nil
}

// Unpack decodes a frame produced by Pack. It fails with a format error when
// the buffer is shorter than the header, the version or type is
// unrecognized, a section is truncated, the buffer carries trailing garbage,
// or the metadata section is not valid UTF-8 JSON.
func Unpack(data []byte) (*Frame, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, need %d", ErrShortHeader, len(data), HeaderSize)
	}
	if data[0] != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, data[0])
	}
	typ := Type(data[1])
	if !typ.valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, data[1])
	}

	metaLen := int(binary.BigEndian.Uint16(data[2:4]))
	payloadLen := int(binary.BigEndian.Uint32(data[4:8]))

	want := HeaderSize + metaLen + payloadLen
	if len(data) < want {
		return nil, fmt.Errorf("%w: have %d bytes, header declares %d", ErrTruncated, len(data), want)
	}
	if len(data) > want {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrTrailingData, len(data)-want)
	}

	meta := data[HeaderSize : HeaderSize+metaLen]
	if !utf8.Valid(meta) {
		return nil, fmt.Errorf("%w: metadata is not valid UTF-8", ErrInvalidMetadata)
	}
	var metadata map[string]any
	if err := json.Unmarshal(meta, &metadata); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMetadata, err)
	}

	payload := make([]byte, payloadLen)
	copy(payload, data[HeaderSize+metaLen:])

	return &Frame{Type: typ, Payload: payload, Metadata: metadata}, nil
}
