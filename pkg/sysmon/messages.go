package sysmon

import (
	"github.com/gos-rtos/gostool.go/pkg/gcp/codec"
)

// Response payloads lead with the result byte. The rest of the payload
// is only decoded when the result is OK.

func marshalResult(result Result, rec interface{}) ([]byte, error) {
	if rec == nil {
		return []byte{byte(result)}, nil
	}
	b, err := codec.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return append([]byte{byte(result)}, b...), nil
}

func unmarshalResult(b []byte, result *Result, rec interface{}) error {
	if len(b) < 1 {
		return &codec.ShortError{Size: len(b), Expected: 1}
	}
	*result = Result(b[0])
	if *result != ResultOK || rec == nil {
		return nil
	}
	return codec.Unmarshal(b[1:], rec)
}

type message struct{}

func (message) ProtocolVersion() uint16 { return ProtocolVersion }

type empty struct{ message }

func (empty) MarshalBinary() ([]byte, error) { return nil, nil }
func (empty) UnmarshalBinary([]byte) error   { return nil }

// PingRequest checks the device is alive.
type PingRequest struct{ empty }

// MessageID implements gcp.Message.
func (*PingRequest) MessageID() uint16 { return PingReqID }

// PingResponse answers PingRequest.
type PingResponse struct {
	message
	Result Result
}

// MessageID implements gcp.Message.
func (*PingResponse) MessageID() uint16 { return PingRespID }

// MarshalBinary implements encoding.BinaryMarshaler.
func (r *PingResponse) MarshalBinary() ([]byte, error) { return marshalResult(r.Result, nil) }

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (r *PingResponse) UnmarshalBinary(b []byte) error { return unmarshalResult(b, &r.Result, nil) }

// CPUUsageRequest queries the overall CPU usage.
type CPUUsageRequest struct{ empty }

// MessageID implements gcp.Message.
func (*CPUUsageRequest) MessageID() uint16 { return CPUUsageGetReqID }

// CPUUsage is the CPU usage record.
type CPUUsage struct {
	Usage uint16
}

// Percent returns the usage in percent.
func (u CPUUsage) Percent() float64 {
	return Percent(u.Usage)
}

// CPUUsageResponse answers CPUUsageRequest.
type CPUUsageResponse struct {
	message
	Result Result
	CPU    CPUUsage
}

// MessageID implements gcp.Message.
func (*CPUUsageResponse) MessageID() uint16 { return CPUUsageGetRespID }

// MarshalBinary implements encoding.BinaryMarshaler.
func (r *CPUUsageResponse) MarshalBinary() ([]byte, error) { return marshalResult(r.Result, &r.CPU) }

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (r *CPUUsageResponse) UnmarshalBinary(b []byte) error {
	return unmarshalResult(b, &r.Result, &r.CPU)
}

// TaskIndex selects a task, or AllTasks.
type TaskIndex struct {
	Index uint16
}

// TaskGetRequest queries the task record. With AllTasks, the device
// streams one response per task and a non-OK response at the end.
type TaskGetRequest struct {
	message
	TaskIndex
}

// MessageID implements gcp.Message.
func (*TaskGetRequest) MessageID() uint16 { return TaskGetDataReqID }

// MarshalBinary implements encoding.BinaryMarshaler.
func (r *TaskGetRequest) MarshalBinary() ([]byte, error) { return codec.Marshal(&r.TaskIndex) }

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (r *TaskGetRequest) UnmarshalBinary(b []byte) error { return codec.Unmarshal(b, &r.TaskIndex) }

// TaskDataResponse answers TaskGetRequest.
type TaskDataResponse struct {
	message
	Result Result
	Data   TaskData
}

// MessageID implements gcp.Message.
func (*TaskDataResponse) MessageID() uint16 { return TaskGetDataRespID }

// MarshalBinary implements encoding.BinaryMarshaler.
func (r *TaskDataResponse) MarshalBinary() ([]byte, error) { return marshalResult(r.Result, &r.Data) }

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (r *TaskDataResponse) UnmarshalBinary(b []byte) error {
	return unmarshalResult(b, &r.Result, &r.Data)
}

// TaskVarGetRequest queries the variable task record, streamed as
// TaskGetRequest with AllTasks.
type TaskVarGetRequest struct {
	message
	TaskIndex
}

// MessageID implements gcp.Message.
func (*TaskVarGetRequest) MessageID() uint16 { return TaskGetVarDataReqID }

// MarshalBinary implements encoding.BinaryMarshaler.
func (r *TaskVarGetRequest) MarshalBinary() ([]byte, error) { return codec.Marshal(&r.TaskIndex) }

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (r *TaskVarGetRequest) UnmarshalBinary(b []byte) error {
	return codec.Unmarshal(b, &r.TaskIndex)
}

// TaskVarDataResponse answers TaskVarGetRequest.
type TaskVarDataResponse struct {
	message
	Result Result
	Data   TaskVariableData
}

// MessageID implements gcp.Message.
func (*TaskVarDataResponse) MessageID() uint16 { return TaskGetVarDataRespID }

// MarshalBinary implements encoding.BinaryMarshaler.
func (r *TaskVarDataResponse) MarshalBinary() ([]byte, error) {
	return marshalResult(r.Result, &r.Data)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (r *TaskVarDataResponse) UnmarshalBinary(b []byte) error {
	return unmarshalResult(b, &r.Result, &r.Data)
}

// TaskModification is the payload of TaskModifyRequest.
type TaskModification struct {
	Index uint16
	Type  ModifyType
	Param uint32
}

// TaskModifyRequest changes the state of a task.
type TaskModifyRequest struct {
	message
	TaskModification
}

// MessageID implements gcp.Message.
func (*TaskModifyRequest) MessageID() uint16 { return TaskModifyReqID }

// MarshalBinary implements encoding.BinaryMarshaler.
func (r *TaskModifyRequest) MarshalBinary() ([]byte, error) {
	return codec.Marshal(&r.TaskModification)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (r *TaskModifyRequest) UnmarshalBinary(b []byte) error {
	return codec.Unmarshal(b, &r.TaskModification)
}

// TaskModifyResponse answers TaskModifyRequest.
type TaskModifyResponse struct {
	message
	Result Result
}

// MessageID implements gcp.Message.
func (*TaskModifyResponse) MessageID() uint16 { return TaskModifyRespID }

// MarshalBinary implements encoding.BinaryMarshaler.
func (r *TaskModifyResponse) MarshalBinary() ([]byte, error) { return marshalResult(r.Result, nil) }

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (r *TaskModifyResponse) UnmarshalBinary(b []byte) error {
	return unmarshalResult(b, &r.Result, nil)
}

// SysRuntimeRequest queries the time elapsed since boot.
type SysRuntimeRequest struct{ empty }

// MessageID implements gcp.Message.
func (*SysRuntimeRequest) MessageID() uint16 { return SysRuntimeGetReqID }

// SysRuntimeResponse answers SysRuntimeRequest.
type SysRuntimeResponse struct {
	message
	Result  Result
	RunTime RunTime
}

// MessageID implements gcp.Message.
func (*SysRuntimeResponse) MessageID() uint16 { return SysRuntimeGetRespID }

// MarshalBinary implements encoding.BinaryMarshaler.
func (r *SysRuntimeResponse) MarshalBinary() ([]byte, error) {
	return marshalResult(r.Result, &r.RunTime)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (r *SysRuntimeResponse) UnmarshalBinary(b []byte) error {
	return unmarshalResult(b, &r.Result, &r.RunTime)
}

// SysTimeSetRequest sets the system time of the device.
type SysTimeSetRequest struct {
	message
	Time Time
}

// MessageID implements gcp.Message.
func (*SysTimeSetRequest) MessageID() uint16 { return SysTimeSetReqID }

// MarshalBinary implements encoding.BinaryMarshaler.
func (r *SysTimeSetRequest) MarshalBinary() ([]byte, error) { return codec.Marshal(&r.Time) }

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (r *SysTimeSetRequest) UnmarshalBinary(b []byte) error { return codec.Unmarshal(b, &r.Time) }

// SysTimeSetResponse answers SysTimeSetRequest.
type SysTimeSetResponse struct {
	message
	Result Result
}

// MessageID implements gcp.Message.
func (*SysTimeSetResponse) MessageID() uint16 { return SysTimeSetRespID }

// MarshalBinary implements encoding.BinaryMarshaler.
func (r *SysTimeSetResponse) MarshalBinary() ([]byte, error) { return marshalResult(r.Result, nil) }

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (r *SysTimeSetResponse) UnmarshalBinary(b []byte) error {
	return unmarshalResult(b, &r.Result, nil)
}

// ResetRequest restarts the device. It has no response.
type ResetRequest struct{ empty }

// MessageID implements gcp.Message.
func (*ResetRequest) MessageID() uint16 { return ResetReqID }
