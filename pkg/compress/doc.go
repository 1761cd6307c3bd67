// Package compress provides payload compression for the event hub's binary
// frames.
//
// Four interchangeable algorithms are supported: deflate and gzip (the
// classic deflate family), zstd for text-heavy payloads, and LZ4 when encode
// speed matters more than ratio. The raw Compress/Decompress functions
// round-trip byte-exactly; the Compressor type adds the operational policy
// on top: payloads below a size threshold pass through untouched, and a
// compressed result that does not beat the original by a minimum ratio is
// discarded.
//
//	c := compress.New(compress.WithAlgorithm(compress.Zstd))
//	out, alg := c.Apply(payload)
//	// alg == compress.None means out is the original payload
//
// The Adaptive variant picks algorithm and threshold per declared payload
// kind (text, json, binary), since different payload shapes compress very
// differently.
package compress
