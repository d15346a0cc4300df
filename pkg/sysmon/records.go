package sysmon

import (
	"fmt"
	"strings"
	"time"

	"github.com/gos-rtos/gostool.go/pkg/gcp/codec"
)

// Record sizes on the wire.
const (
	RunTimeSize          = 9
	TimeSize             = 10
	TaskNameSize         = 32
	TaskDataSize         = 62
	TaskVariableDataSize = 21
)

// ZeroClock is displayed when the runtime is unknown.
const ZeroClock = "0000:00:00:00"

// RunTime is an elapsed time counter.
type RunTime struct {
	Microseconds uint16
	Milliseconds uint16
	Seconds      uint8
	Minutes      uint8
	Hours        uint8
	Days         uint16
}

// String formats as days:hours:minutes:seconds.milliseconds.
func (r RunTime) String() string {
	return fmt.Sprintf("%02d:%02d:%02d:%02d.%03d", r.Days, r.Hours, r.Minutes, r.Seconds, r.Milliseconds)
}

// TaskString is String with three-digit days, used in task tables.
func (r RunTime) TaskString() string {
	return fmt.Sprintf("%03d:%02d:%02d:%02d.%03d", r.Days, r.Hours, r.Minutes, r.Seconds, r.Milliseconds)
}

// Duration converts to time.Duration.
func (r RunTime) Duration() time.Duration {
	return time.Duration(r.Days)*24*time.Hour +
		time.Duration(r.Hours)*time.Hour +
		time.Duration(r.Minutes)*time.Minute +
		time.Duration(r.Seconds)*time.Second +
		time.Duration(r.Milliseconds)*time.Millisecond +
		time.Duration(r.Microseconds)*time.Microsecond
}

// RunTimeOf splits d into a RunTime. Days saturate at 65535.
func RunTimeOf(d time.Duration) (r RunTime) {
	if d < 0 {
		return
	}
	days := d / (24 * time.Hour)
	if days > 0xffff {
		days = 0xffff
	}
	r.Days = uint16(days)
	d -= days * 24 * time.Hour
	r.Hours = uint8(d / time.Hour % 24)
	r.Minutes = uint8(d / time.Minute % 60)
	r.Seconds = uint8(d / time.Second % 60)
	r.Milliseconds = uint16(d / time.Millisecond % 1000)
	r.Microseconds = uint16(d / time.Microsecond % 1000)
	return
}

// Time is a calendar time of the device.
type Time struct {
	Milliseconds uint16
	Seconds      uint8
	Minutes      uint8
	Hours        uint8
	Days         uint16
	Months       uint8
	Years        uint16
}

// TimeOf converts t in its own location.
func TimeOf(t time.Time) Time {
	return Time{
		Milliseconds: uint16(t.Nanosecond() / int(time.Millisecond)),
		Seconds:      uint8(t.Second()),
		Minutes:      uint8(t.Minute()),
		Hours:        uint8(t.Hour()),
		Days:         uint16(t.Day()),
		Months:       uint8(t.Month()),
		Years:        uint16(t.Year()),
	}
}

// In converts to time.Time in loc.
func (t Time) In(loc *time.Location) time.Time {
	return time.Date(int(t.Years), time.Month(t.Months), int(t.Days),
		int(t.Hours), int(t.Minutes), int(t.Seconds), int(t.Milliseconds)*int(time.Millisecond), loc)
}

// String implements fmt.Stringer.
func (t Time) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d.%03d",
		t.Years, t.Months, t.Days, t.Hours, t.Minutes, t.Seconds, t.Milliseconds)
}

// TaskState is the scheduling state of a task.
type TaskState uint8

// Task states.
const (
	TaskSuspended TaskState = 0x05
	TaskReady     TaskState = 0x0A
	TaskZombie    TaskState = 0x0D
	TaskSleeping  TaskState = 0x16
	TaskBlocked   TaskState = 0x19
)

// String implements fmt.Stringer.
func (s TaskState) String() string {
	switch s {
	case TaskReady:
		return "ready"
	case TaskSleeping:
		return "sleeping"
	case TaskBlocked:
		return "blocked"
	case TaskSuspended:
		return "suspended"
	case TaskZombie:
		return "zombie"
	}
	return "invalid"
}

// Privileges is the privilege mask of a task.
type Privileges uint16

// Privilege levels and bits.
const (
	PrivilegeSupervisor Privileges = 0xFFFF
	PrivilegeKernel     Privileges = 0xFF00
	PrivilegeUser       Privileges = 0x00FF
	PrivilegedUser      Privileges = 0x20FF
	PrivTaskManipulate  Privileges = 1 << 15
	PrivTaskPrioChange  Privileges = 1 << 14
	PrivTrace           Privileges = 1 << 13
	PrivSignaling       Privileges = 1 << 12
)

var privilegeBits = []struct {
	bit  Privileges
	name string
}{
	{PrivTaskManipulate, "GOS_PRIV_TASK_MANIPULATE"},
	{PrivTaskPrioChange, "GOS_PRIV_TASK_PRIO_CHANGE"},
	{PrivTrace, "GOS_PRIV_TRACE"},
	{PrivSignaling, "GOS_PRIV_SIGNALING"},
}

// String returns the level name, or the set bits followed by the
// remaining mask, e.g. "GOS_PRIV_TRACE | 0xFF".
func (p Privileges) String() string {
	switch p {
	case PrivilegeSupervisor:
		return "GOS_TASK_PRIVILEGE_SUPERVISOR"
	case PrivilegeKernel:
		return "GOS_TASK_PRIVILEGE_KERNEL"
	case PrivilegeUser:
		return "GOS_TASK_PRIVILEGE_USER"
	case PrivilegedUser:
		return "GOS_TASK_PRIVILEGED_USER"
	}
	var tokens []string
	for _, b := range privilegeBits {
		if p&b.bit != 0 {
			tokens = append(tokens, b.name)
			p &^= b.bit
		}
	}
	return strings.Join(append(tokens, fmt.Sprintf("0x%X", uint16(p))), " | ")
}

// Percent converts a usage in hundredths of a percent.
func Percent(usage uint16) float64 {
	return float64(usage) / 100
}

// TaskData is the static and dynamic record of a task.
type TaskData struct {
	State            TaskState
	Priority         uint8
	OriginalPriority uint8
	Privileges       Privileges
	Name             [TaskNameSize]byte
	ID               uint16
	CSCounter        uint32
	StackSize        uint16
	RunTime          RunTime
	CPULimit         uint16
	CPUMax           uint16
	CPUUsage         uint16
	StackMaxUsage    uint16
}

// TaskName returns the name of the task.
func (d *TaskData) TaskName() string {
	return codec.String(d.Name[:])
}

// SetTaskName sets the name of the task.
func (d *TaskData) SetTaskName(name string) {
	codec.PutString(d.Name[:], name)
}

// Variable extracts the variable part of the record.
func (d *TaskData) Variable() TaskVariableData {
	return TaskVariableData{
		State:         d.State,
		Priority:      d.Priority,
		CSCounter:     d.CSCounter,
		RunTime:       d.RunTime,
		CPUMax:        d.CPUMax,
		CPUUsage:      d.CPUUsage,
		StackMaxUsage: d.StackMaxUsage,
	}
}

// TaskVariableData is the frequently changing part of TaskData.
type TaskVariableData struct {
	State         TaskState
	Priority      uint8
	CSCounter     uint32
	RunTime       RunTime
	CPUMax        uint16
	CPUUsage      uint16
	StackMaxUsage uint16
}
