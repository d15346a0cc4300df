package gcp

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

var errLinkTimeout = errors.New("link timeout")

// memLink loops sent bytes back to the receiver.
type memLink struct {
	lock    sync.Mutex
	inbound []byte
	sends   [][]byte
	failAt  int
}

func (l *memLink) Send(p []byte) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.failAt > 0 && len(l.sends)+1 == l.failAt {
		return errors.New("send failed")
	}
	l.sends = append(l.sends, append([]byte(nil), p...))
	l.inbound = append(l.inbound, p...)
	return nil
}

func (l *memLink) Receive(size int, timeout time.Duration) ([]byte, error) {
	l.lock.Lock()
	if len(l.inbound) >= size {
		out := append([]byte(nil), l.inbound[:size]...)
		l.inbound = l.inbound[size:]
		l.lock.Unlock()
		return out, nil
	}
	l.lock.Unlock()
	time.Sleep(timeout)
	return nil, errLinkTimeout
}

func (l *memLink) ClearInbound() {
	l.lock.Lock()
	l.inbound = nil
	l.lock.Unlock()
}

func (l *memLink) wire() []byte {
	l.lock.Lock()
	defer l.lock.Unlock()
	return append([]byte(nil), l.inbound...)
}

func (l *memLink) replace(wire []byte) {
	l.lock.Lock()
	l.inbound = wire
	l.lock.Unlock()
}

func newTestFramer(link Link) *Framer {
	f := NewFramer(link)
	f.HeaderDelay, f.FrameDelay = 0, 0
	return f
}

func testData(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*7 + 3)
	}
	return data
}

func TestFrameHeaderBytes(t *testing.T) {
	hdr := FrameHeader{
		ProtocolVersion: FrameProtocolVersion,
		SessionID:       0x1234,
		DataSize:        10,
		FrameSize:       48,
		DataCRC:         0xa1b2c3d4,
	}
	hdr.Seal(func(p []byte) uint32 {
		require.Len(t, p, 12)
		return 0x55667788
	})
	require.Equal(t, []byte{
		0x00, 0x01,
		0x34, 0x12,
		0x0a, 0x00,
		0x30, 0x00,
		0xd4, 0xc3, 0xb2, 0xa1,
		0x88, 0x77, 0x66, 0x55,
	}, hdr.Bytes())
	require.Equal(t, hdr, DecodeFrameHeader(hdr.Bytes()))
	require.Equal(t, 1, hdr.FrameCount())
}

func TestFrameReassembly(t *testing.T) {
	for _, size := range []int{0, 1, 47, 48, 49, 96, 97, 480, 1000} {
		t.Run("", func(t *testing.T) {
			link := &memLink{}
			f := newTestFramer(link)
			data := testData(size)
			require.NoError(t, f.TransmitFramed(data))

			frames := (size + 47) / 48
			require.Len(t, link.sends, 1+frames)
			require.Len(t, link.wire(), FrameHeaderSize+frames*48)

			received, err := f.ReceiveFramed(size, 10*time.Millisecond)
			require.NoError(t, err)
			require.Equal(t, data, received)
			require.Empty(t, link.wire())
		})
	}
}

func TestFramePadding(t *testing.T) {
	link := &memLink{}
	f := newTestFramer(link)
	require.NoError(t, f.TransmitFramed([]byte{1, 2, 3}))
	frame := link.sends[1]
	require.Len(t, frame, 48)
	require.Equal(t, []byte{1, 2, 3}, frame[:3])
	require.Equal(t, make([]byte, 45), frame[3:])
}

func TestFrameSizeFromHeader(t *testing.T) {
	link := &memLink{}
	tx := newTestFramer(link)
	tx.FrameSize = 16
	data := testData(40)
	require.NoError(t, tx.TransmitFramed(data))

	received, err := newTestFramer(link).ReceiveFramed(-1, 10*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, data, received)
}

func TestFrameBitFlip(t *testing.T) {
	data := testData(60)
	link := &memLink{}
	f := newTestFramer(link)
	require.NoError(t, f.TransmitFramed(data))
	wire := link.wire()

	check := func(pos int, bit uint, expected error) {
		flipped := append([]byte(nil), wire...)
		flipped[pos] ^= 1 << bit
		link.replace(flipped)
		received, err := f.ReceiveFramed(len(data), time.Millisecond)
		require.Equalf(t, expected, errors.Cause(err), "byte %d bit %d", pos, bit)
		require.Nil(t, received)
	}
	for pos := 0; pos < FrameHeaderSize; pos++ {
		for bit := uint(0); bit < 8; bit++ {
			check(pos, bit, ErrHeaderCRC)
		}
	}
	for pos := FrameHeaderSize; pos < FrameHeaderSize+len(data); pos++ {
		for bit := uint(0); bit < 8; bit++ {
			check(pos, bit, ErrDataCRC)
		}
	}
}

func TestFrameProtocolVersion(t *testing.T) {
	link := &memLink{}
	hdr := FrameHeader{ProtocolVersion: 0x0200, FrameSize: 48}
	hdr.Seal(newTestFramer(link).checksum())
	link.replace(hdr.Bytes())
	_, err := newTestFramer(link).ReceiveFramed(-1, time.Millisecond)
	require.Equal(t, ErrProtocolVersion, err)
}

func TestFrameZeroFrameSize(t *testing.T) {
	link := &memLink{}
	f := newTestFramer(link)
	hdr := FrameHeader{ProtocolVersion: FrameProtocolVersion, DataSize: 4}
	hdr.Seal(f.checksum())
	link.replace(hdr.Bytes())
	_, err := f.ReceiveFramed(-1, time.Millisecond)
	require.Equal(t, ErrFrameSize, err)
}

func TestFrameUnexpectedSize(t *testing.T) {
	link := &memLink{}
	f := newTestFramer(link)
	require.NoError(t, f.TransmitFramed(testData(12)))
	_, err := f.ReceiveFramed(10, time.Millisecond)
	require.Equal(t, ErrDataSize, err)
}

func TestFrameTimeout(t *testing.T) {
	link := &memLink{}
	f := newTestFramer(link)
	require.NoError(t, f.TransmitFramed(testData(100)))
	wire := link.wire()
	link.replace(wire[:len(wire)-1])

	received, err := f.ReceiveFramed(100, 5*time.Millisecond)
	require.Equal(t, errLinkTimeout, errors.Cause(err))
	require.Nil(t, received)
}

func TestFrameSendFailure(t *testing.T) {
	link := &memLink{failAt: 3}
	f := newTestFramer(link)
	require.Error(t, f.TransmitFramed(testData(200)))
	require.Len(t, link.sends, 2)
}

func TestSessionID(t *testing.T) {
	link := &memLink{}
	f := newTestFramer(link)
	f.session = 0xfffe
	for _, expected := range []SessionID{0xfffe, 0xffff, 0, 1} {
		require.NoError(t, f.TransmitFramed(nil))
		hdr := DecodeFrameHeader(link.sends[len(link.sends)-1])
		require.Equal(t, expected, hdr.SessionID)
	}
	require.Equal(t, SessionID(2), f.Session())
}

func TestTooLarge(t *testing.T) {
	f := newTestFramer(&memLink{})
	require.Equal(t, ErrTooLarge, f.TransmitFramed(make([]byte, MaxDataSize+1)))
}
