// Package sysmon defines the system monitoring messages of a GOS target.
package sysmon

import (
	"fmt"
)

// Message ids.
const (
	PingReqID            uint16 = 0x1010
	PingRespID           uint16 = 0x50A0
	CPUUsageGetReqID     uint16 = 0x1023
	CPUUsageGetRespID    uint16 = 0x5C20
	TaskGetDataReqID     uint16 = 0x1B67
	TaskGetDataRespID    uint16 = 0x5F8A
	TaskGetVarDataReqID  uint16 = 0x12D5
	TaskGetVarDataRespID uint16 = 0x596B
	TaskModifyReqID      uint16 = 0xA917
	TaskModifyRespID     uint16 = 0x4AB2
	SysRuntimeGetReqID   uint16 = 0x33AF
	SysRuntimeGetRespID  uint16 = 0xD91E
	SysTimeSetReqID      uint16 = 0xBB53
	SysTimeSetRespID     uint16 = 0x174C
	ResetReqID           uint16 = 0x0A78
)

// ProtocolVersion is the version of all sysmon messages.
const ProtocolVersion uint16 = 1

// AllTasks as a task index requests the records of all tasks.
const AllTasks uint16 = 0xFFFF

// Result is the result code leading every sysmon response.
type Result uint8

// Result codes.
const (
	ResultOK           Result = 40
	ResultGenericError Result = 99
	ResultInvalidPV    Result = 35
	ResultInvalidCRC   Result = 28
)

// String implements fmt.Stringer.
func (r Result) String() string {
	switch r {
	case ResultOK:
		return "OK"
	case ResultGenericError:
		return "ERROR"
	case ResultInvalidPV:
		return "INV_PV"
	case ResultInvalidCRC:
		return "INV_PAYLOAD_CRC"
	}
	return fmt.Sprintf("RESULT(%d)", uint8(r))
}

// Err returns nil for ResultOK, otherwise a *ResultError.
func (r Result) Err() error {
	if r == ResultOK {
		return nil
	}
	return &ResultError{Result: r}
}

// ResultError is a non-OK result reported by the device.
type ResultError struct {
	Result Result
}

// Error implements error.
func (e *ResultError) Error() string {
	return "device result " + e.Result.String()
}

// ModifyType selects a task modification.
type ModifyType uint8

// Task modification types.
const (
	ModifySuspend ModifyType = 12
	ModifyResume  ModifyType = 34
	ModifyDelete  ModifyType = 49
	ModifyBlock   ModifyType = 52
	ModifyUnblock ModifyType = 63
	ModifyWakeup  ModifyType = 74
)

var modifyTypeNames = map[ModifyType]string{
	ModifySuspend: "suspend",
	ModifyResume:  "resume",
	ModifyDelete:  "delete",
	ModifyBlock:   "block",
	ModifyUnblock: "unblock",
	ModifyWakeup:  "wakeup",
}

// String implements fmt.Stringer.
func (t ModifyType) String() string {
	if name, ok := modifyTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("modify(%d)", uint8(t))
}

// ParseModifyType parses a modification type by name.
func ParseModifyType(name string) (ModifyType, error) {
	for t, n := range modifyTypeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown task modification %q", name)
}
