package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm identifies a payload compression scheme. The zero value None
// means the payload is stored uncompressed.
type Algorithm uint8

const (
	None Algorithm = iota
	Deflate
	Gzip
	Zstd
	LZ4
)

// String returns the wire name of the algorithm as recorded in frame metadata.
func (a Algorithm) String() string {
	switch a {
	case None:
		return "none"
	case Deflate:
		return "deflate"
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(a))
	}
}

// ParseAlgorithm parses a wire name back into an Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch name {
	case "none":
		return None, nil
	case "deflate":
		return Deflate, nil
	case "gzip":
		return Gzip, nil
	case "zstd":
		return Zstd, nil
	case "lz4":
		return LZ4, nil
	default:
		return None, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
}

// Shared zstd coder instances. Both are safe for concurrent use; building
// them per call would dominate the cost of compressing small payloads.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("compress: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("compress: zstd decoder initialization failed: " + err.Error())
	}
}

// Compress compresses data with the given algorithm and level. Level 0
// selects the algorithm's default; levels outside an algorithm's supported
// range return ErrInvalidLevel. Compressing with None returns the input
// unchanged.
//
// Decompress(Compress(data, alg, level), alg) round-trips byte-exactly for
// every supported algorithm.
func Compress(data []byte, alg Algorithm, level int) ([]byte, error) {
	switch alg {
	case None:
		return data, nil
	case Deflate:
		return compressDeflate(data, level)
	case Gzip:
		return compressGzip(data, level)
	case Zstd:
		return compressZstd(data, level)
	case LZ4:
		return compressLZ4(data, level)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownAlgorithm, uint8(alg))
	}
}

// Decompress reverses Compress for the given algorithm.
func Decompress(data []byte, alg Algorithm) ([]byte, error) {
	switch alg {
	case None:
		return data, nil
	case Deflate:
		return decompressReader(flate.NewReader(bytes.NewReader(data)))
	case Gzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: gzip: %w", ErrCorruptPayload, err)
		}
		return decompressReader(r)
	case Zstd:
		result, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %w", ErrCorruptPayload, err)
		}
		return result, nil
	case LZ4:
		return decompressReader(io.NopCloser(lz4.NewReader(bytes.NewReader(data))))
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownAlgorithm, uint8(alg))
	}
}

func compressDeflate(data []byte, level int) ([]byte, error) {
	if level == 0 {
		level = flate.DefaultCompression
	}
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("%w: deflate level %d", ErrInvalidLevel, level)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("deflate compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("deflate compress: %w", err)
	}
	return buf.Bytes(), nil
}

func compressGzip(data []byte, level int) ([]byte, error) {
	if level == 0 {
		level = gzip.DefaultCompression
	}
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("%w: gzip level %d", ErrInvalidLevel, level)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("gzip compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip compress: %w", err)
	}
	return buf.Bytes(), nil
}

func compressZstd(data []byte, level int) ([]byte, error) {
	if level == 0 {
		return zstdEncoder.EncodeAll(data, nil), nil
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, fmt.Errorf("%w: zstd level %d", ErrInvalidLevel, level)
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func compressLZ4(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if level != 0 {
		lvl, err := lz4Level(level)
		if err != nil {
			return nil, err
		}
		if err := w.Apply(lz4.CompressionLevelOption(lvl)); err != nil {
			return nil, fmt.Errorf("%w: lz4 level %d", ErrInvalidLevel, level)
		}
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	return buf.Bytes(), nil
}

// lz4Level maps a numeric 1..9 level onto the lz4 package's level constants,
// which are bit flags rather than plain integers.
func lz4Level(level int) (lz4.CompressionLevel, error) {
	levels := []lz4.CompressionLevel{
		lz4.Level1, lz4.Level2, lz4.Level3, lz4.Level4, lz4.Level5,
		lz4.Level6, lz4.Level7, lz4.Level8, lz4.Level9,
	}
	if level < 1 || level > len(levels) {
		return lz4.Fast, fmt.Errorf("%w: lz4 level %d", ErrInvalidLevel, level)
	}
	return levels[level-1], nil
}

func decompressReader(r io.ReadCloser) ([]byte, error) {
	defer r.Close()
	result, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptPayload, err)
	}
	return result, nil
}
