// Package bld defines the bootloader messages of a GOS target.
package bld

import (
	"fmt"
)

// Message ids.
const (
	ConnReqID             uint16 = 0x1011
	ConnRespID            uint16 = 0xA011
	DataReqID             uint16 = 0x1020
	DataRespID            uint16 = 0xA020
	AppDataReqID          uint16 = 0x1030
	AppDataRespID         uint16 = 0xA030
	PacketReqID           uint16 = 0x1040
	PacketRespID          uint16 = 0xA040
	DisconnReqID          uint16 = 0x1050
	DisconnRespID         uint16 = 0xA050
	SwitchToBootModeReqID uint16 = 0x9999
)

// ProtocolVersion is the version of all bootloader messages.
const ProtocolVersion uint16 = 1

// ConnResult is the result of connect and disconnect requests.
type ConnResult uint8

// Connection results.
const (
	ConnAccepted    ConnResult = 100
	ConnRefused     ConnResult = 1
	DisconnAccepted ConnResult = 2
	DisconnRefused  ConnResult = 3
	DisconnTimeout  ConnResult = 4
)

// String implements fmt.Stringer.
func (r ConnResult) String() string {
	switch r {
	case ConnAccepted:
		return "ACCEPTED"
	case ConnRefused:
		return "REFUSED"
	case DisconnAccepted:
		return "DISCONNECT_ACCEPTED"
	case DisconnRefused:
		return "DISCONNECT_REFUSED"
	case DisconnTimeout:
		return "DISCONNECT_TMO"
	}
	return fmt.Sprintf("CONN_RESULT(%d)", uint8(r))
}

// UpdateType selects the action of an install request.
type UpdateType uint8

// Update types.
const (
	UpdateInstall UpdateType = 0
	UpdateErase   UpdateType = 1
)

// String implements fmt.Stringer.
func (t UpdateType) String() string {
	switch t {
	case UpdateInstall:
		return "INSTALL"
	case UpdateErase:
		return "ERASE"
	}
	return fmt.Sprintf("UPDATE(%d)", uint8(t))
}

// InstallResult is the result of an install request.
type InstallResult uint8

// Install results.
const (
	InstallAccepted          InstallResult = 100
	InstallSizeError         InstallResult = 1
	InstallStartAddressError InstallResult = 2
	InstallDataCRCError      InstallResult = 3
	EraseSuccessful          InstallResult = 101
	EraseFailed              InstallResult = 4
)

// String implements fmt.Stringer.
func (r InstallResult) String() string {
	switch r {
	case InstallAccepted:
		return "ACCEPTED"
	case InstallSizeError:
		return "SIZE_ERROR"
	case InstallStartAddressError:
		return "START_ADDRESS_ERROR"
	case InstallDataCRCError:
		return "DATA_CRC_ERROR"
	case EraseSuccessful:
		return "ERASE_SUCCESSFUL"
	case EraseFailed:
		return "ERASE_FAILED"
	}
	return fmt.Sprintf("INSTALL_RESULT(%d)", uint8(r))
}

// PacketResult is the result of a packet transfer.
type PacketResult uint8

// Packet results.
const (
	PacketAccepted PacketResult = 100
	PacketRepeat   PacketResult = 0
)

// String implements fmt.Stringer.
func (r PacketResult) String() string {
	switch r {
	case PacketAccepted:
		return "ACCEPTED"
	case PacketRepeat:
		return "REPEAT"
	}
	return fmt.Sprintf("PACKET_RESULT(%d)", uint8(r))
}

// ResultError is an unexpected result reported by the bootloader.
type ResultError struct {
	MessageID uint16
	Result    fmt.Stringer
}

// Error implements error.
func (e *ResultError) Error() string {
	return fmt.Sprintf("bootloader message 0x%04X: %v", e.MessageID, e.Result)
}
