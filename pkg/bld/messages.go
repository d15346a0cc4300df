package bld

import (
	"encoding/binary"

	"github.com/gos-rtos/gostool.go/pkg/gcp/codec"
	"github.com/gos-rtos/gostool.go/pkg/gcp/crc"
)

// DefaultClientName identifies this tool to the bootloader.
const DefaultClientName = "gos_monitoring_tool_pc"

// DefaultDisconnectReason is sent by Disconnect.
const DefaultDisconnectReason uint16 = 100

type message struct{}

func (message) ProtocolVersion() uint16 { return ProtocolVersion }

func unmarshalByte(b []byte, v *uint8) error {
	if len(b) < 1 {
		return &codec.ShortError{Size: len(b), Expected: 1}
	}
	*v = b[0]
	return nil
}

// ConnRequest opens a bootloader session.
type ConnRequest struct {
	message
	Client [ClientNameSize]byte
}

// NewConnRequest creates a ConnRequest for client.
func NewConnRequest(client string) *ConnRequest {
	r := &ConnRequest{}
	codec.PutString(r.Client[:], client)
	return r
}

// MessageID implements gcp.Message.
func (*ConnRequest) MessageID() uint16 { return ConnReqID }

// ClientName returns the client name.
func (r *ConnRequest) ClientName() string { return codec.String(r.Client[:]) }

// MarshalBinary implements encoding.BinaryMarshaler.
func (r *ConnRequest) MarshalBinary() ([]byte, error) {
	return append([]byte(nil), r.Client[:]...), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (r *ConnRequest) UnmarshalBinary(b []byte) error {
	if len(b) < ClientNameSize {
		return &codec.ShortError{Size: len(b), Expected: ClientNameSize}
	}
	copy(r.Client[:], b)
	return nil
}

// ConnResponse answers ConnRequest.
type ConnResponse struct {
	message
	Result ConnResult
}

// MessageID implements gcp.Message.
func (*ConnResponse) MessageID() uint16 { return ConnRespID }

// MarshalBinary implements encoding.BinaryMarshaler.
func (r *ConnResponse) MarshalBinary() ([]byte, error) { return []byte{byte(r.Result)}, nil }

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (r *ConnResponse) UnmarshalBinary(b []byte) error {
	return unmarshalByte(b, (*uint8)(&r.Result))
}

// DisconnRequest closes the bootloader session.
type DisconnRequest struct {
	message
	Reason uint16
}

// MessageID implements gcp.Message.
func (*DisconnRequest) MessageID() uint16 { return DisconnReqID }

// MarshalBinary implements encoding.BinaryMarshaler.
func (r *DisconnRequest) MarshalBinary() ([]byte, error) {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, r.Reason)
	return b, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (r *DisconnRequest) UnmarshalBinary(b []byte) error {
	if len(b) < 2 {
		return &codec.ShortError{Size: len(b), Expected: 2}
	}
	r.Reason = binary.LittleEndian.Uint16(b)
	return nil
}

// DisconnResponse answers DisconnRequest.
type DisconnResponse struct {
	message
	Result ConnResult
}

// MessageID implements gcp.Message.
func (*DisconnResponse) MessageID() uint16 { return DisconnRespID }

// MarshalBinary implements encoding.BinaryMarshaler.
func (r *DisconnResponse) MarshalBinary() ([]byte, error) { return []byte{byte(r.Result)}, nil }

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (r *DisconnResponse) UnmarshalBinary(b []byte) error {
	return unmarshalByte(b, (*uint8)(&r.Result))
}

// DataRequest queries the bootloader and application data.
type DataRequest struct{ message }

// MessageID implements gcp.Message.
func (*DataRequest) MessageID() uint16 { return DataReqID }

// MarshalBinary implements encoding.BinaryMarshaler.
func (*DataRequest) MarshalBinary() ([]byte, error) { return nil, nil }

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (*DataRequest) UnmarshalBinary([]byte) error { return nil }

// DataResponse answers DataRequest.
type DataResponse struct {
	message
	Bld Data
	App AppData
}

// MessageID implements gcp.Message.
func (*DataResponse) MessageID() uint16 { return DataRespID }

type dataPayload struct {
	Bld Data
	App AppData
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (r *DataResponse) MarshalBinary() ([]byte, error) {
	return codec.Marshal(&dataPayload{Bld: r.Bld, App: r.App})
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (r *DataResponse) UnmarshalBinary(b []byte) error {
	var p dataPayload
	if err := codec.Unmarshal(b, &p); err != nil {
		return err
	}
	r.Bld, r.App = p.Bld, p.App
	return nil
}

// InstallRequest starts an installation or erases the application.
type InstallRequest struct {
	message
	Type UpdateType
	App  AppData
}

// MessageID implements gcp.Message.
func (*InstallRequest) MessageID() uint16 { return AppDataReqID }

type installPayload struct {
	Type UpdateType
	App  AppData
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (r *InstallRequest) MarshalBinary() ([]byte, error) {
	return codec.Marshal(&installPayload{Type: r.Type, App: r.App})
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (r *InstallRequest) UnmarshalBinary(b []byte) error {
	var p installPayload
	if err := codec.Unmarshal(b, &p); err != nil {
		return err
	}
	r.Type, r.App = p.Type, p.App
	return nil
}

// InstallResponse answers InstallRequest.
type InstallResponse struct {
	message
	Result InstallResult
}

// MessageID implements gcp.Message.
func (*InstallResponse) MessageID() uint16 { return AppDataRespID }

// MarshalBinary implements encoding.BinaryMarshaler.
func (r *InstallResponse) MarshalBinary() ([]byte, error) { return []byte{byte(r.Result)}, nil }

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (r *InstallResponse) UnmarshalBinary(b []byte) error {
	return unmarshalByte(b, (*uint8)(&r.Result))
}

// PacketHeader precedes the data of a PacketRequest.
type PacketHeader struct {
	Size     uint16
	Sequence uint32
	Checksum uint32
}

// PacketHeaderSize is the size of PacketHeader on the wire.
const PacketHeaderSize = 10

// PacketRequest carries a piece of the application image.
type PacketRequest struct {
	message
	PacketHeader
	Data []byte
}

// NewPacketRequest creates a PacketRequest for data.
func NewPacketRequest(seq uint32, data []byte) *PacketRequest {
	return &PacketRequest{
		PacketHeader: PacketHeader{
			Size:     uint16(len(data)),
			Sequence: seq,
			Checksum: crc.Direct(data),
		},
		Data: data,
	}
}

// MessageID implements gcp.Message.
func (*PacketRequest) MessageID() uint16 { return PacketReqID }

// Verify tells if the header matches Data.
func (r *PacketRequest) Verify() bool {
	return int(r.Size) == len(r.Data) && crc.Direct(r.Data) == r.Checksum
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (r *PacketRequest) MarshalBinary() ([]byte, error) {
	b, err := codec.Marshal(&r.PacketHeader)
	if err != nil {
		return nil, err
	}
	return append(b, r.Data...), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
// Data is whatever follows the header.
func (r *PacketRequest) UnmarshalBinary(b []byte) error {
	if err := codec.Unmarshal(b, &r.PacketHeader); err != nil {
		return err
	}
	r.Data = append([]byte(nil), b[PacketHeaderSize:]...)
	return nil
}

// PacketAck is the payload of PacketResponse.
type PacketAck struct {
	Sequence uint32
	Result   PacketResult
}

// PacketResponse answers PacketRequest.
type PacketResponse struct {
	message
	PacketAck
}

// MessageID implements gcp.Message.
func (*PacketResponse) MessageID() uint16 { return PacketRespID }

// MarshalBinary implements encoding.BinaryMarshaler.
func (r *PacketResponse) MarshalBinary() ([]byte, error) { return codec.Marshal(&r.PacketAck) }

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (r *PacketResponse) UnmarshalBinary(b []byte) error {
	return codec.Unmarshal(b, &r.PacketAck)
}

// SwitchToBootModeRequest restarts the device into the bootloader.
// It has no response.
type SwitchToBootModeRequest struct{ message }

// MessageID implements gcp.Message.
func (*SwitchToBootModeRequest) MessageID() uint16 { return SwitchToBootModeReqID }

// MarshalBinary implements encoding.BinaryMarshaler.
func (*SwitchToBootModeRequest) MarshalBinary() ([]byte, error) { return nil, nil }

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (*SwitchToBootModeRequest) UnmarshalBinary([]byte) error { return nil }
