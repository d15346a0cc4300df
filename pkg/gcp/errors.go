package gcp

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrHeaderCRC indicates a frame header checksum mismatch.
	ErrHeaderCRC = errors.New("frame header crc mismatch")
	// ErrDataCRC indicates the reassembled data doesn't match the frame header checksum.
	ErrDataCRC = errors.New("frame data crc mismatch")
	// ErrProtocolVersion indicates an unexpected frame protocol version.
	ErrProtocolVersion = errors.New("unexpected frame protocol version")
	// ErrFrameSize indicates an invalid frame size in the frame header.
	ErrFrameSize = errors.New("invalid frame size")
	// ErrDataSize indicates the framed transfer is not of the expected size.
	ErrDataSize = errors.New("unexpected data size")
	// ErrTooLarge indicates the buffer doesn't fit into a single framed transfer.
	ErrTooLarge = errors.New("data too large")
	// ErrPayloadCRC indicates a message payload checksum mismatch.
	ErrPayloadCRC = errors.New("message payload crc mismatch")
)

// UnexpectedMessageError is returned when the received message id
// doesn't match the expected response.
type UnexpectedMessageError struct {
	Expected uint16
	Got      uint16
}

// Error implements error.
func (e *UnexpectedMessageError) Error() string {
	return fmt.Sprintf("unexpected message 0x%04x, expect 0x%04x", e.Got, e.Expected)
}

// IsIntegrity tells if err is a framing or payload integrity failure.
func IsIntegrity(err error) bool {
	switch errors.Cause(err) {
	case ErrHeaderCRC, ErrDataCRC, ErrProtocolVersion, ErrFrameSize, ErrDataSize, ErrPayloadCRC:
		return true
	}
	return false
}
