package frame

import (
	"fmt"

	"github.com/dmitrymomot/eventhub/pkg/compress"
)

// Typed constructors attach the conventional metadata keys for each payload
// kind so producers and consumers agree on them without a side channel.

// NewImageFrame packs an image payload with format and dimension metadata.
func NewImageFrame(payload []byte, format string, width, height int) ([]byte, error) {
	return Pack(TypeImage, payload, map[string]any{
		"format": format,
		"width":  width,
		"height": height,
	})
}

// NewAudioFrame packs an audio payload with format, sample rate and channel
// count metadata.
func NewAudioFrame(payload []byte, format string, sampleRate, channels int) ([]byte, error) {
	return Pack(TypeAudio, payload, map[string]any{
		"format":      format,
		"sample_rate": sampleRate,
		"channels":    channels,
	})
}

// NewVideoFrame packs a video payload with format, dimensions and frame rate
// metadata.
func NewVideoFrame(payload []byte, format string, width, height int, fps float64) ([]byte, error) {
	return Pack(TypeVideo, payload, map[string]any{
		"format": format,
		"width":  width,
		"height": height,
		"fps":    fps,
	})
}

// NewRawBinaryFrame packs an opaque payload with caller-supplied metadata.
func NewRawBinaryFrame(payload []byte, metadata map[string]any) ([]byte, error) {
	return Pack(TypeRawBinary, payload, metadata)
}

// NewCompressedJSONFrame compresses a JSON body with the given compressor
// and frames the result as COMPRESSED_JSON, recording the original and
// compressed sizes plus the algorithm actually used. When the compressor
// skips compression (payload too small, insufficient benefit) the body is
// framed as-is with algorithm "none".
func NewCompressedJSONFrame(jsonBody []byte, c *compress.Compressor) ([]byte, error) {
	out, alg := c.Apply(jsonBody)
	return Pack(TypeCompressedJSON, out, map[string]any{
		"algorithm":       alg.String(),
		"original_size":   len(jsonBody),
		"compressed_size": len(out),
	})
}

// DecodeCompressedJSONFrame reverses NewCompressedJSONFrame, returning the
// original JSON body of a COMPRESSED_JSON frame.
func DecodeCompressedJSONFrame(f *Frame) ([]byte, error) {
	if f.Type != TypeCompressedJSON {
		return nil, fmt.Errorf("%w: have %s, want %s", ErrTypeMismatch, f.Type, TypeCompressedJSON)
	}

	name, _ := f.Metadata["algorithm"].(string)
	if name == "" {
		return nil, fmt.Errorf("%w: missing algorithm key", ErrInvalidMetadata)
	}
	alg, err := compress.ParseAlgorithm(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMetadata, err)
	}

	body, err := compress.Decompress(f.Payload, alg)
	if err != nil {
		return nil, err
	}
	return body, nil
}
