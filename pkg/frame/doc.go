// Package frame implements the binary wire format for out-of-band payloads
// (images, audio, video, raw binary, compressed JSON).
//
// Each frame is self-delimited: an 8-byte header — version(1), type(1),
// metadata length(2, big-endian), payload length(4, big-endian) — followed
// by a UTF-8 JSON metadata section and the payload bytes. Frames travel in
// binary websocket messages, one frame per message.
//
//	buf, err := frame.NewImageFrame(jpeg, "jpeg", 1920, 1080)
//	...
//	f, err := frame.Unpack(buf)
//
// Unpack rejects anything malformed with a sentinel error (short header,
// unsupported version, unknown type, truncated or oversized sections,
// non-JSON metadata) so callers can answer with a protocol error instead of
// dropping the connection.
package frame
