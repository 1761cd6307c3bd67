package compress

// Compressor applies one algorithm with a benefit gate: payloads below
// MinSize are not worth the CPU, and results that shave off less than
// MinRatio of the original are discarded in favor of the original bytes.
// The returned algorithm tells the caller what actually happened, so the
// decision travels with the payload (typically in frame metadata).
type Compressor struct {
	algorithm Algorithm
	level     int
	minSize   int
	minRatio  float64
}

const (
	// DefaultMinSize is the payload size below which compression is skipped.
	DefaultMinSize = 1024
	// DefaultMinRatio is the minimum fractional size reduction required to
	// keep a compressed result.
	DefaultMinRatio = 0.1
)

// Option configures a Compressor.
type Option func(*Compressor)

// WithAlgorithm selects the compression algorithm. Default is Deflate.
func WithAlgorithm(alg Algorithm) Option {
	return func(c *Compressor) {
		c.algorithm = alg
	}
}

// WithLevel sets the compression level. Zero selects the algorithm default.
func WithLevel(level int) Option {
	return func(c *Compressor) {
		c.level = level
	}
}

// WithMinSize sets the size threshold below which payloads pass through
// uncompressed.
func WithMinSize(size int) Option {
	return func(c *Compressor) {
		if size >= 0 {
			c.minSize = size
		}
	}
}

// WithMinRatio sets the minimum fractional reduction (0..1) required to keep
// a compressed result.
func WithMinRatio(ratio float64) Option {
	return func(c *Compressor) {
		if ratio >= 0 && ratio < 1 {
			c.minRatio = ratio
		}
	}
}

// New creates a Compressor with Deflate and the default thresholds.
func New(opts ...Option) *Compressor {
	c := &Compressor{
		algorithm: Deflate,
		minSize:   DefaultMinSize,
		minRatio:  DefaultMinRatio,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Algorithm returns the configured algorithm.
func (c *Compressor) Algorithm() Algorithm {
	return c.algorithm
}

// Apply compresses data when it is worth it. The second return value is the
// algorithm the output is encoded with: None means the original bytes came
// back (payload too small, compression failed, or insufficient benefit).
func (c *Compressor) Apply(data []byte) ([]byte, Algorithm) {
	if len(data) < c.minSize {
		return data, None
	}

	compressed, err := Compress(data, c.algorithm, c.level)
	if err != nil {
		return data, None
	}

	saved := float64(len(data)-len(compressed)) / float64(len(data))
	if saved < c.minRatio {
		return data, None
	}
	return compressed, c.algorithm
}

// PayloadKind declares the shape of a payload so the adaptive compressor can
// pick an appropriate algorithm and threshold for it.
type PayloadKind string

const (
	KindText   PayloadKind = "text"
	KindJSON   PayloadKind = "json"
	KindBinary PayloadKind = "binary"
)

// Adaptive selects algorithm and threshold per declared payload kind.
// Text-like payloads compress well and get zstd with a low threshold; opaque
// binary gets LZ4 with a higher threshold since it is frequently already
// compressed and LZ4 fails fast on incompressible input.
type Adaptive struct {
	profiles map[PayloadKind]*Compressor
	fallback *Compressor
}

// NewAdaptive creates an Adaptive compressor with the default per-kind
// profiles.
func NewAdaptive() *Adaptive {
	return &Adaptive{
		profiles: map[PayloadKind]*Compressor{
			KindText: New(WithAlgorithm(Zstd), WithMinSize(256)),
			KindJSON: New(WithAlgorithm(Zstd), WithMinSize(256)),
			KindBinary: New(WithAlgorithm(LZ4), WithMinSize(4096),
				WithMinRatio(0.2)),
		},
		fallback: New(),
	}
}

// Apply compresses data using the profile for the declared kind. Unknown
// kinds use the deflate fallback profile.
func (a *Adaptive) Apply(data []byte, kind PayloadKind) ([]byte, Algorithm) {
	if profile, ok := a.profiles[kind]; ok {
		return profile.Apply(data)
	}
	return a.fallback.Apply(data)
}
