package gcp

import (
	"encoding"
	"encoding/binary"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// Message layer constants.
const (
	MessageHeaderSize = 10

	// DefaultTimeout suits quick status queries.
	DefaultTimeout = 250 * time.Millisecond
	// LongTimeout suits long device operations (e.g. flash erase).
	LongTimeout = 10 * time.Second
)

// MessageHeader precedes the payload of a message.
type MessageHeader struct {
	ProtocolVersion uint16
	MessageID       uint16
	PayloadSize     uint16
	PayloadCRC      uint32
}

// Bytes encodes the header.
func (h *MessageHeader) Bytes() []byte {
	b := make([]byte, MessageHeaderSize)
	binary.LittleEndian.PutUint16(b[0:], h.ProtocolVersion)
	binary.LittleEndian.PutUint16(b[2:], h.MessageID)
	binary.LittleEndian.PutUint16(b[4:], h.PayloadSize)
	binary.LittleEndian.PutUint32(b[6:], h.PayloadCRC)
	return b
}

// DecodeMessageHeader decodes a message header.
func DecodeMessageHeader(b []byte) (h MessageHeader) {
	h.ProtocolVersion = binary.LittleEndian.Uint16(b[0:])
	h.MessageID = binary.LittleEndian.Uint16(b[2:])
	h.PayloadSize = binary.LittleEndian.Uint16(b[4:])
	h.PayloadCRC = binary.LittleEndian.Uint32(b[6:])
	return
}

// Message identifies a catalog message.
type Message interface {
	MessageID() uint16
	ProtocolVersion() uint16
}

// Request is a message the sender serializes.
type Request interface {
	Message
	encoding.BinaryMarshaler
}

// Response is a message the receiver deserializes.
type Response interface {
	Message
	encoding.BinaryUnmarshaler
}

// Channel implements the message layer. It's the connection handle
// shared by all transactions on one link and is not safe for
// concurrent transactions.
type Channel struct {
	*Framer
}

// NewChannel creates a Channel over link with protocol defaults.
func NewChannel(link Link) *Channel {
	return &Channel{Framer: NewFramer(link)}
}

// TransmitMessage sends a message. PayloadSize and PayloadCRC are
// always computed from payload. Stale inbound bytes are discarded first.
func (c *Channel) TransmitMessage(hdr MessageHeader, payload []byte) error {
	if len(payload) > MaxDataSize {
		return ErrTooLarge
	}
	c.Link.ClearInbound()
	hdr.PayloadSize = uint16(len(payload))
	hdr.PayloadCRC = c.checksum()(payload)
	glog.V(2).Infof("TX msg=0x%04x pv=%d size=%d", hdr.MessageID, hdr.ProtocolVersion, hdr.PayloadSize)
	if err := c.TransmitFramed(hdr.Bytes()); err != nil {
		return errors.Wrap(err, "transmit message header")
	}
	if err := c.TransmitFramed(payload); err != nil {
		return errors.Wrap(err, "transmit message payload")
	}
	return nil
}

// ReceiveMessage receives a message, waiting up to timeout for each receive.
func (c *Channel) ReceiveMessage(timeout time.Duration) (MessageHeader, []byte, error) {
	raw, err := c.ReceiveFramed(MessageHeaderSize, timeout)
	if err != nil {
		return MessageHeader{}, nil, errors.Wrap(err, "receive message header")
	}
	hdr := DecodeMessageHeader(raw)
	payload, err := c.ReceiveFramed(int(hdr.PayloadSize), timeout)
	if err != nil {
		return MessageHeader{}, nil, errors.Wrap(err, "receive message payload")
	}
	if c.checksum()(payload) != hdr.PayloadCRC {
		return MessageHeader{}, nil, ErrPayloadCRC
	}
	glog.V(2).Infof("RX msg=0x%04x pv=%d size=%d", hdr.MessageID, hdr.ProtocolVersion, hdr.PayloadSize)
	return hdr, payload, nil
}

// Send marshals and transmits a request.
func (c *Channel) Send(req Request) error {
	payload, err := req.MarshalBinary()
	if err != nil {
		return err
	}
	return c.TransmitMessage(MessageHeader{
		ProtocolVersion: req.ProtocolVersion(),
		MessageID:       req.MessageID(),
	}, payload)
}

// Recv receives a message and unmarshals it into resp.
// The message id must match resp.
func (c *Channel) Recv(resp Response, timeout time.Duration) error {
	hdr, payload, err := c.ReceiveMessage(timeout)
	if err != nil {
		return err
	}
	if hdr.MessageID != resp.MessageID() {
		return &UnexpectedMessageError{Expected: resp.MessageID(), Got: hdr.MessageID}
	}
	return resp.UnmarshalBinary(payload)
}

// Do sends req and receives resp.
func (c *Channel) Do(req Request, resp Response, timeout time.Duration) error {
	if err := c.Send(req); err != nil {
		return err
	}
	return c.Recv(resp, timeout)
}
