package bld

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gos-rtos/gostool.go/pkg/gcp/codec"
	"github.com/gos-rtos/gostool.go/pkg/gcp/crc"
	"github.com/gos-rtos/gostool.go/pkg/sysmon"
)

func testVersion() Version {
	v := Version{
		Major: 1,
		Minor: 2,
		Build: 345,
		Date:  sysmon.Time{Days: 11, Months: 7, Years: 2023},
	}
	v.Set("app", "demo application", "gos")
	return v
}

func TestRecordSizes(t *testing.T) {
	require.Equal(t, 160, VersionSize)
	require.Equal(t, 340, AppDataSize)
	require.Equal(t, 344, DataSize)
	require.Equal(t, 684, DataResponseSize)
	require.Equal(t, VersionSize, codec.MustSizeof(&Version{}))
	require.Equal(t, AppDataSize, codec.MustSizeof(&AppData{}))
	require.Equal(t, DataSize, codec.MustSizeof(&Data{}))
	require.Equal(t, PacketHeaderSize, codec.MustSizeof(&PacketHeader{}))
}

func TestVersion(t *testing.T) {
	v := testVersion()
	require.Equal(t, VersionInfo{
		Major:       1,
		Minor:       2,
		Build:       345,
		Date:        "2023-07-11",
		Name:        "app",
		Description: "demo application",
		Author:      "gos",
	}, v.Info())
	require.Equal(t, "app 1.2.345 (2023-07-11)", v.String())

	b, err := codec.Marshal(&v)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 0, 2, 0, 0x59, 0x01}, b[:6])
	require.Equal(t, byte('a'), b[16])
	require.Equal(t, byte('d'), b[64])
	require.Equal(t, byte('g'), b[128])
}

func TestAppDataSeal(t *testing.T) {
	image := []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f}
	app := NewAppData(image, DefaultStartAddress, testVersion())
	require.Equal(t, uint32(16), app.Size)
	require.Equal(t, uint32(0xEB99FA90), app.CRC)
	require.False(t, app.Verify())

	require.NoError(t, app.Seal())
	require.True(t, app.Verify())
	b, err := codec.Marshal(app)
	require.NoError(t, err)
	require.Len(t, b, AppDataSize)
	require.Equal(t, crc.Direct(b[:AppDataSize-4]), app.DataCRC)
	require.Equal(t, []byte{0x00, 0x00, 0x02, 0x08}, b[4:8])

	app.AppVersion.Build++
	require.False(t, app.Verify())
}

func TestBootUpdateMode(t *testing.T) {
	var d Data
	require.False(t, d.BootUpdateMode())
	d.SetBootUpdateMode(true)
	require.Equal(t, uint8(54), d.UpdateMode)
	require.True(t, d.BootUpdateMode())
	d.UpdateMode = 1
	require.False(t, d.BootUpdateMode())
}

func TestDataResponse(t *testing.T) {
	resp := &DataResponse{}
	resp.Bld.InitPattern = InitPattern
	resp.Bld.Version = testVersion()
	resp.Bld.SetBootUpdateMode(true)
	resp.App = *NewAppData([]byte{1, 2, 3}, DefaultStartAddress, testVersion())
	require.NoError(t, resp.App.Seal())

	b, err := resp.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, DataResponseSize)
	require.Equal(t, []byte{0x55, 0xea, 0x55, 0xae}, b[:4])
	require.Equal(t, byte(54), b[336])

	var decoded DataResponse
	require.NoError(t, decoded.UnmarshalBinary(b))
	require.Equal(t, resp, &decoded)
	require.Error(t, decoded.UnmarshalBinary(b[:DataResponseSize-1]))
}

func TestConnMessages(t *testing.T) {
	req := NewConnRequest(DefaultClientName)
	require.Equal(t, ConnReqID, req.MessageID())
	require.Equal(t, ProtocolVersion, req.ProtocolVersion())
	b, err := req.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, ClientNameSize)
	var decoded ConnRequest
	require.NoError(t, decoded.UnmarshalBinary(b))
	require.Equal(t, DefaultClientName, decoded.ClientName())

	var resp ConnResponse
	require.NoError(t, resp.UnmarshalBinary([]byte{100}))
	require.Equal(t, ConnAccepted, resp.Result)
	require.Error(t, resp.UnmarshalBinary(nil))

	disc := &DisconnRequest{Reason: DefaultDisconnectReason}
	b, err = disc.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, []byte{100, 0}, b)

	var dresp DisconnResponse
	require.NoError(t, dresp.UnmarshalBinary([]byte{2}))
	require.Equal(t, DisconnAccepted, dresp.Result)
	require.Equal(t, "DISCONNECT_ACCEPTED", dresp.Result.String())
}

func TestInstallRequest(t *testing.T) {
	req := &InstallRequest{Type: UpdateErase}
	b, err := req.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, 1+AppDataSize)
	require.Equal(t, byte(1), b[0])

	req.Type = UpdateInstall
	req.App = *NewAppData([]byte{9, 9}, DefaultStartAddress, testVersion())
	require.NoError(t, req.App.Seal())
	b, err = req.MarshalBinary()
	require.NoError(t, err)
	var decoded InstallRequest
	require.NoError(t, decoded.UnmarshalBinary(b))
	require.Equal(t, req, &decoded)
	require.True(t, decoded.App.Verify())
}

func TestPacketMessages(t *testing.T) {
	data := []byte{0xde, 0xad, 0xbe, 0xef, 0x01}
	req := NewPacketRequest(7, data)
	require.True(t, req.Verify())
	b, err := req.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, PacketHeaderSize+len(data))
	require.Equal(t, []byte{5, 0, 7, 0, 0, 0}, b[:6])

	var decoded PacketRequest
	require.NoError(t, decoded.UnmarshalBinary(b))
	require.Equal(t, req, &decoded)
	decoded.Data[0] ^= 1
	require.False(t, decoded.Verify())

	resp := &PacketResponse{PacketAck: PacketAck{Sequence: 7, Result: PacketAccepted}}
	b, err = resp.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, []byte{7, 0, 0, 0, 100}, b)
	var dresp PacketResponse
	require.NoError(t, dresp.UnmarshalBinary(b))
	require.Equal(t, resp, &dresp)
}

func TestResultError(t *testing.T) {
	err := &ResultError{MessageID: AppDataRespID, Result: InstallSizeError}
	require.EqualError(t, err, "bootloader message 0xA030: SIZE_ERROR")
	require.Equal(t, "INSTALL_RESULT(77)", InstallResult(77).String())
	require.Equal(t, "REPEAT", PacketRepeat.String())
	require.Equal(t, "ERASE", UpdateErase.String())
}
