// Package sysmon provides the shell commands of the system monitor.
package sysmon

import (
	"fmt"
	"strings"

	"github.com/gos-rtos/gostool.go/pkg/sysmon"
)

// TaskHeader heads the lines of TaskView.Line.
const TaskHeader = "IDX ID     NAME                             STATE     PRIO CPU%    RUNTIME"

// TaskView is the printable form of a task record.
type TaskView struct {
	Index            int     `json:"index"`
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	State            string  `json:"state"`
	Priority         int     `json:"priority"`
	OriginalPriority int     `json:"original_priority"`
	Privileges       string  `json:"privileges"`
	CSCounter        uint32  `json:"cs_counter"`
	StackSize        int     `json:"stack_size"`
	StackMaxUsage    int     `json:"stack_max_usage"`
	RunTime          string  `json:"runtime"`
	CPUUsage         float64 `json:"cpu_usage"`
	CPUMax           float64 `json:"cpu_max"`
	CPULimit         float64 `json:"cpu_limit"`
}

// NewTaskView creates the view of the task at index.
func NewTaskView(index int, task *sysmon.TaskData) TaskView {
	return TaskView{
		Index:            index,
		ID:               fmt.Sprintf("0x%04X", task.ID),
		Name:             task.TaskName(),
		State:            task.State.String(),
		Priority:         int(task.Priority),
		OriginalPriority: int(task.OriginalPriority),
		Privileges:       task.Privileges.String(),
		CSCounter:        task.CSCounter,
		StackSize:        int(task.StackSize),
		StackMaxUsage:    int(task.StackMaxUsage),
		RunTime:          task.RunTime.TaskString(),
		CPUUsage:         sysmon.Percent(task.CPUUsage),
		CPUMax:           sysmon.Percent(task.CPUMax),
		CPULimit:         sysmon.Percent(task.CPULimit),
	}
}

// Line formats the view as a table row.
func (v TaskView) Line() string {
	return fmt.Sprintf("%3d %s %-32s %-9s %4d %6.2f %s",
		v.Index, v.ID, v.Name, v.State, v.Priority, v.CPUUsage, v.RunTime)
}

// Details formats all fields, one per line.
func (v TaskView) Details() string {
	lines := []string{
		fmt.Sprintf("Name:              %s", v.Name),
		fmt.Sprintf("ID:                %s", v.ID),
		fmt.Sprintf("State:             %s", v.State),
		fmt.Sprintf("Priority:          %d (original %d)", v.Priority, v.OriginalPriority),
		fmt.Sprintf("Privileges:        %s", v.Privileges),
		fmt.Sprintf("Context switches:  %d", v.CSCounter),
		fmt.Sprintf("Stack:             %d / %d bytes", v.StackMaxUsage, v.StackSize),
		fmt.Sprintf("Runtime:           %s", v.RunTime),
		fmt.Sprintf("CPU:               %.2f%% (max %.2f%%, limit %.2f%%)", v.CPUUsage, v.CPUMax, v.CPULimit),
	}
	return strings.Join(lines, "\n")
}

// TaskVarView is the printable form of a task variable record.
type TaskVarView struct {
	State         string  `json:"state"`
	Priority      int     `json:"priority"`
	CSCounter     uint32  `json:"cs_counter"`
	RunTime       string  `json:"runtime"`
	CPUUsage      float64 `json:"cpu_usage"`
	CPUMax        float64 `json:"cpu_max"`
	StackMaxUsage int     `json:"stack_max_usage"`
}

// NewTaskVarView creates the view of a record.
func NewTaskVarView(r sysmon.TaskVariableData) TaskVarView {
	return TaskVarView{
		State:         r.State.String(),
		Priority:      int(r.Priority),
		CSCounter:     r.CSCounter,
		RunTime:       r.RunTime.TaskString(),
		CPUUsage:      sysmon.Percent(r.CPUUsage),
		CPUMax:        sysmon.Percent(r.CPUMax),
		StackMaxUsage: int(r.StackMaxUsage),
	}
}

// Line formats the view as a table row.
func (v TaskVarView) Line() string {
	return fmt.Sprintf("%-9s %4d %6.2f%% %6.2f%% %10d %s",
		v.State, v.Priority, v.CPUUsage, v.CPUMax, v.CSCounter, v.RunTime)
}
