package gcp

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/gos-rtos/gostool.go/pkg/gcp/crc"
)

type testRequest struct {
	Value uint32
}

func (r *testRequest) MessageID() uint16       { return 0x1234 }
func (r *testRequest) ProtocolVersion() uint16 { return 1 }

func (r *testRequest) MarshalBinary() ([]byte, error) {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, r.Value)
	return b, nil
}

type testResponse struct {
	id    uint16
	Value uint32
}

func (r *testResponse) MessageID() uint16       { return r.id }
func (r *testResponse) ProtocolVersion() uint16 { return 1 }

func (r *testResponse) UnmarshalBinary(b []byte) error {
	if len(b) < 4 {
		return errors.New("short")
	}
	r.Value = binary.LittleEndian.Uint32(b)
	return nil
}

func newTestChannel() (*Channel, *memLink) {
	link := &memLink{}
	ch := NewChannel(link)
	ch.HeaderDelay, ch.FrameDelay = 0, 0
	return ch, link
}

func TestMessageRoundTrip(t *testing.T) {
	for _, size := range []int{0, 1, 48, 62, 100, 684} {
		t.Run("", func(t *testing.T) {
			ch, link := newTestChannel()
			payload := testData(size)
			// TransmitMessage drops inbound bytes, so the loopback
			// holds exactly what was just sent.
			require.NoError(t, ch.TransmitMessage(MessageHeader{
				ProtocolVersion: 1,
				MessageID:       0x50a0,
				PayloadSize:     0xffff,
				PayloadCRC:      0xdeadbeef,
			}, payload))
			// the header transfer and the payload transfer each start with a frame header
			require.Len(t, link.sends, 3+(size+47)/48)
			require.Len(t, link.sends[0], FrameHeaderSize)
			require.Len(t, link.sends[2], FrameHeaderSize)
			frames := append([][]byte{link.sends[1]}, link.sends[3:]...)
			for _, frame := range frames {
				require.Len(t, frame, int(DefaultFrameSize))
			}
			if rest := size % 48; rest != 0 {
				last := link.sends[len(link.sends)-1]
				require.Equal(t, make([]byte, 48-rest), last[rest:])
			}

			hdr, received, err := ch.ReceiveMessage(10 * time.Millisecond)
			require.NoError(t, err)
			require.Equal(t, uint16(0x50a0), hdr.MessageID)
			require.Equal(t, uint16(1), hdr.ProtocolVersion)
			require.Equal(t, uint16(size), hdr.PayloadSize)
			require.Equal(t, crc.Reflected(payload), hdr.PayloadCRC)
			require.Equal(t, payload, received)
		})
	}
}

func TestMessageHeaderBytes(t *testing.T) {
	hdr := MessageHeader{ProtocolVersion: 1, MessageID: 0x1b67, PayloadSize: 2, PayloadCRC: 0x01020304}
	b := hdr.Bytes()
	require.Equal(t, []byte{1, 0, 0x67, 0x1b, 2, 0, 4, 3, 2, 1}, b)
	require.Equal(t, hdr, DecodeMessageHeader(b))
}

func TestTransmitClearsInbound(t *testing.T) {
	ch, link := newTestChannel()
	link.replace([]byte{0xde, 0xad})
	require.NoError(t, ch.TransmitMessage(MessageHeader{MessageID: 1}, nil))
	require.Len(t, link.wire(), 2*FrameHeaderSize+MessageHeaderSize+38)
}

func TestPayloadCRCMismatch(t *testing.T) {
	ch, _ := newTestChannel()
	payload := []byte{1, 2, 3}
	hdr := MessageHeader{MessageID: 7, PayloadSize: 3, PayloadCRC: crc.Reflected(payload) ^ 1}
	require.NoError(t, ch.TransmitFramed(hdr.Bytes()))
	require.NoError(t, ch.TransmitFramed(payload))

	_, received, err := ch.ReceiveMessage(time.Millisecond)
	require.Equal(t, ErrPayloadCRC, err)
	require.Nil(t, received)
	require.True(t, IsIntegrity(err))
}

func TestMessageBitFlip(t *testing.T) {
	ch, link := newTestChannel()
	require.NoError(t, ch.Send(&testRequest{Value: 0x11223344}))
	wire := link.wire()
	for pos := range wire {
		// padding bytes of the header frame aren't covered
		if pos >= FrameHeaderSize+MessageHeaderSize && pos < FrameHeaderSize+48 {
			continue
		}
		if pos >= 2*FrameHeaderSize+48+4 {
			continue
		}
		flipped := append([]byte(nil), wire...)
		flipped[pos] ^= 0x10
		link.replace(flipped)
		_, _, err := ch.ReceiveMessage(time.Millisecond)
		require.Errorf(t, err, "byte %d", pos)
		require.Truef(t, IsIntegrity(err), "byte %d: %v", pos, err)
	}
}

func TestMessageSizeMismatch(t *testing.T) {
	ch, _ := newTestChannel()
	hdr := MessageHeader{MessageID: 7, PayloadSize: 8}
	require.NoError(t, ch.TransmitFramed(hdr.Bytes()))
	require.NoError(t, ch.TransmitFramed([]byte{1, 2, 3}))
	_, _, err := ch.ReceiveMessage(time.Millisecond)
	require.Equal(t, ErrDataSize, errors.Cause(err))
}

func TestDo(t *testing.T) {
	ch, _ := newTestChannel()
	resp := &testResponse{id: 0x1234}
	require.NoError(t, ch.Do(&testRequest{Value: 42}, resp, 10*time.Millisecond))
	require.Equal(t, uint32(42), resp.Value)
}

func TestUnexpectedMessage(t *testing.T) {
	ch, _ := newTestChannel()
	err := ch.Do(&testRequest{Value: 42}, &testResponse{id: 0x4321}, 10*time.Millisecond)
	require.Equal(t, &UnexpectedMessageError{Expected: 0x4321, Got: 0x1234}, err)
	require.EqualError(t, err, "unexpected message 0x1234, expect 0x4321")
}

func TestReceiveMessageTimeout(t *testing.T) {
	ch, _ := newTestChannel()
	start := time.Now()
	_, _, err := ch.ReceiveMessage(20 * time.Millisecond)
	require.Equal(t, errLinkTimeout, errors.Cause(err))
	require.False(t, IsIntegrity(err))
	require.True(t, time.Since(start) >= 20*time.Millisecond)
}

func TestIEEEChecksum(t *testing.T) {
	ch, link := newTestChannel()
	ch.Checksum = crc.IEEE
	require.NoError(t, ch.Send(&testRequest{Value: 7}))
	hdr := DecodeFrameHeader(link.wire())
	require.Equal(t, crc.IEEE(link.wire()[:12]), hdr.HeaderCRC)

	resp := &testResponse{id: 0x1234}
	require.NoError(t, ch.Recv(resp, 10*time.Millisecond))
	require.Equal(t, uint32(7), resp.Value)
}
