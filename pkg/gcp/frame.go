package gcp

import (
	"encoding/binary"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/gos-rtos/gostool.go/pkg/gcp/crc"
)

// Frame layer constants.
const (
	FrameHeaderSize             = 16
	FrameProtocolVersion uint16 = 0x0100
	DefaultFrameSize     uint16 = 48
	MaxDataSize                 = 0xffff

	// SyncPattern is reserved by the firmware for frame synchronization.
	// It's not sent by the current protocol version.
	SyncPattern uint32 = 0xAFBC8C55

	DefaultHeaderDelay = 10 * time.Millisecond
	DefaultFrameDelay  = time.Millisecond
)

// SessionID numbers framed transfers. It's informational only.
type SessionID uint16

// Next calculates the next session id, wrapping at 65536.
func (s SessionID) Next() SessionID {
	return s + 1
}

// FrameHeader precedes the frames of a framed transfer.
type FrameHeader struct {
	ProtocolVersion uint16
	SessionID       SessionID
	DataSize        uint16
	FrameSize       uint16
	DataCRC         uint32
	HeaderCRC       uint32
}

// Bytes encodes the header as is.
func (h *FrameHeader) Bytes() []byte {
	b := make([]byte, FrameHeaderSize)
	binary.LittleEndian.PutUint16(b[0:], h.ProtocolVersion)
	binary.LittleEndian.PutUint16(b[2:], uint16(h.SessionID))
	binary.LittleEndian.PutUint16(b[4:], h.DataSize)
	binary.LittleEndian.PutUint16(b[6:], h.FrameSize)
	binary.LittleEndian.PutUint32(b[8:], h.DataCRC)
	binary.LittleEndian.PutUint32(b[12:], h.HeaderCRC)
	return b
}

// Seal computes HeaderCRC over the other fields.
// It must be the last modification before encoding.
func (h *FrameHeader) Seal(sum crc.Func) {
	h.HeaderCRC = sum(h.Bytes()[:FrameHeaderSize-4])
}

// FrameCount is the number of frames following the header.
func (h *FrameHeader) FrameCount() int {
	if h.FrameSize == 0 {
		return 0
	}
	return (int(h.DataSize) + int(h.FrameSize) - 1) / int(h.FrameSize)
}

// DecodeFrameHeader decodes without verification.
func DecodeFrameHeader(b []byte) (h FrameHeader) {
	h.ProtocolVersion = binary.LittleEndian.Uint16(b[0:])
	h.SessionID = SessionID(binary.LittleEndian.Uint16(b[2:]))
	h.DataSize = binary.LittleEndian.Uint16(b[4:])
	h.FrameSize = binary.LittleEndian.Uint16(b[6:])
	h.DataCRC = binary.LittleEndian.Uint32(b[8:])
	h.HeaderCRC = binary.LittleEndian.Uint32(b[12:])
	return
}

// Link is the byte channel used by the frame layer.
// transport.Transport implements it.
type Link interface {
	Send([]byte) error
	Receive(size int, timeout time.Duration) ([]byte, error)
	ClearInbound()
}

// Framer implements the frame layer over a Link.
type Framer struct {
	Link        Link
	FrameSize   uint16
	HeaderDelay time.Duration
	FrameDelay  time.Duration
	Checksum    crc.Func

	session SessionID
}

// NewFramer creates a Framer with protocol defaults.
func NewFramer(link Link) *Framer {
	return &Framer{
		Link:        link,
		FrameSize:   DefaultFrameSize,
		HeaderDelay: DefaultHeaderDelay,
		FrameDelay:  DefaultFrameDelay,
		Checksum:    crc.Reflected,
	}
}

// Session returns the session id of the next framed transfer.
func (f *Framer) Session() SessionID {
	return f.session
}

func (f *Framer) checksum() crc.Func {
	if f.Checksum != nil {
		return f.Checksum
	}
	return crc.Reflected
}

func (f *Framer) frameSize() uint16 {
	if f.FrameSize != 0 {
		return f.FrameSize
	}
	return DefaultFrameSize
}

// TransmitFramed sends p as a framed transfer. An empty p sends the header only.
func (f *Framer) TransmitFramed(p []byte) error {
	if len(p) > MaxDataSize {
		return ErrTooLarge
	}
	sum, size := f.checksum(), f.frameSize()
	hdr := FrameHeader{
		ProtocolVersion: FrameProtocolVersion,
		SessionID:       f.session,
		DataSize:        uint16(len(p)),
		FrameSize:       size,
		DataCRC:         sum(p),
	}
	hdr.Seal(sum)
	f.session = f.session.Next()
	glog.V(3).Infof("frame TX session=%d size=%d frames=%d", hdr.SessionID, hdr.DataSize, hdr.FrameCount())

	if err := f.Link.Send(hdr.Bytes()); err != nil {
		return errors.Wrap(err, "send frame header")
	}
	sleep(f.HeaderDelay)

	frame := make([]byte, size)
	for n, off := 0, 0; off < len(p); n, off = n+1, off+int(size) {
		copied := copy(frame, p[off:])
		for i := copied; i < len(frame); i++ {
			frame[i] = 0
		}
		if err := f.Link.Send(frame); err != nil {
			return errors.Wrapf(err, "send frame %d", n)
		}
		sleep(f.FrameDelay)
	}
	return nil
}

// ReceiveFramed receives a framed transfer. If expected is not negative,
// a transfer of another size is rejected. Each receive (header and every
// frame) waits up to timeout.
func (f *Framer) ReceiveFramed(expected int, timeout time.Duration) ([]byte, error) {
	raw, err := f.Link.Receive(FrameHeaderSize, timeout)
	if err != nil {
		return nil, errors.Wrap(err, "receive frame header")
	}
	sum := f.checksum()
	hdr := DecodeFrameHeader(raw)
	if hdr.HeaderCRC != sum(raw[:FrameHeaderSize-4]) {
		return nil, ErrHeaderCRC
	}
	if hdr.ProtocolVersion != FrameProtocolVersion {
		return nil, ErrProtocolVersion
	}
	if hdr.FrameSize == 0 && hdr.DataSize > 0 {
		return nil, ErrFrameSize
	}
	if expected >= 0 && int(hdr.DataSize) != expected {
		return nil, ErrDataSize
	}
	glog.V(3).Infof("frame RX session=%d size=%d frames=%d", hdr.SessionID, hdr.DataSize, hdr.FrameCount())

	data := make([]byte, hdr.DataSize)
	for n := 0; n < hdr.FrameCount(); n++ {
		frame, err := f.Link.Receive(int(hdr.FrameSize), timeout)
		if err != nil {
			return nil, errors.Wrapf(err, "receive frame %d", n)
		}
		copy(data[n*int(hdr.FrameSize):], frame)
	}
	if sum(data) != hdr.DataCRC {
		return nil, ErrDataCRC
	}
	return data, nil
}

func sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}
