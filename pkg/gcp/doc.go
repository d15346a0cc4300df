// Package gcp implements the GOS General Communication Protocol.
package gcp

// GCP is spoken between GOS firmware and host tools over a byte stream
// (usually a UART). It has two layers:
//
// The frame layer moves an arbitrary buffer (up to 64KiB) as a 16-byte
// frame header followed by fixed-size frames. The header carries the
// total data size, the frame size and a checksum over the whole data,
// and is protected by its own checksum. Every frame occupies the full
// frame size on the wire; the tail of the last frame is zero padding.
//
// The message layer sends a logical message as two framed transfers:
// the 10-byte message header (protocol version, message id, payload size,
// payload checksum) and then the payload. The payload checksum is verified
// again after reassembly, independent of the frame level check.
//
// Correlation is strictly sequential: a host transmits a request and then
// blocks receiving the response. There is no multiplexing; callers must
// serialize transactions on a channel.
