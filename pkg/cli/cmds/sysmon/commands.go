package sysmon

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/gos-rtos/gostool.go/pkg/cli/sh"
	"github.com/gos-rtos/gostool.go/pkg/device"
	"github.com/gos-rtos/gostool.go/pkg/sysmon"
)

var (
	// PingCmd pings the device.
	PingCmd = ishell.Cmd{
		Name: "ping",
		Help: "",
		Func: sh.MustBeOpen(func(c *ishell.Context, dev *device.Device) {
			start := time.Now()
			if err := dev.Ping(context.Background()); err != nil {
				c.Err(err)
				return
			}
			elapsed := time.Since(start)
			sh.Print(c, map[string]interface{}{"ok": true, "ms": elapsed.Seconds() * 1000},
				fmt.Sprintf("OK %v", elapsed.Round(time.Millisecond)))
		}),
	}

	// CPUCmd reads the CPU load.
	CPUCmd = ishell.Cmd{
		Name: "cpu",
		Help: "",
		Func: sh.MustBeOpen(func(c *ishell.Context, dev *device.Device) {
			load, err := dev.CPULoad(context.Background())
			if err != nil {
				c.Err(err)
				return
			}
			sh.Print(c, map[string]float64{"load": load}, fmt.Sprintf("%.2f%%", load))
		}),
	}

	// TasksCmd lists all tasks.
	TasksCmd = ishell.Cmd{
		Name:    "tasks",
		Aliases: []string{"ts"},
		Help:    "",
		Func: sh.MustBeOpen(func(c *ishell.Context, dev *device.Device) {
			tasks, err := dev.TaskList(context.Background())
			if err != nil {
				c.Err(err)
				if len(tasks) == 0 {
					return
				}
			}
			views := make([]TaskView, len(tasks))
			lines := []string{TaskHeader}
			for n := range tasks {
				views[n] = NewTaskView(n, &tasks[n])
				lines = append(lines, views[n].Line())
			}
			sh.Print(c, views, strings.Join(lines, "\n"))
		}),
	}

	// TaskCmd shows a task.
	TaskCmd = ishell.Cmd{
		Name:    "task",
		Aliases: []string{"t"},
		Help:    "INDEX",
		Func: sh.MustBeOpen(func(c *ishell.Context, dev *device.Device) {
			index, err := parseIndex(c.Args, 0)
			if err != nil {
				c.Err(err)
				return
			}
			task, err := dev.TaskInfo(context.Background(), index)
			if err != nil {
				c.Err(err)
				return
			}
			view := NewTaskView(int(index), &task)
			sh.Print(c, view, view.Details())
		}),
	}

	// TaskVarCmd shows the variable data of one or all tasks.
	TaskVarCmd = ishell.Cmd{
		Name:    "taskvar",
		Aliases: []string{"tv"},
		Help:    "[INDEX]",
		Func: sh.MustBeOpen(func(c *ishell.Context, dev *device.Device) {
			var records []sysmon.TaskVariableData
			var err error
			if len(c.Args) > 0 {
				var index uint16
				if index, err = parseIndex(c.Args, 0); err != nil {
					c.Err(err)
					return
				}
				var record sysmon.TaskVariableData
				record, err = dev.TaskVariableData(context.Background(), index)
				records = append(records, record)
			} else {
				records, err = dev.TaskVariableDataAll(context.Background())
			}
			if err != nil {
				c.Err(err)
				return
			}
			views := make([]TaskVarView, len(records))
			lines := make([]string, len(records))
			for n, r := range records {
				views[n] = NewTaskVarView(r)
				lines[n] = views[n].Line()
			}
			sh.Print(c, views, strings.Join(lines, "\n"))
		}),
	}

	// RuntimeCmd reads the system runtime.
	RuntimeCmd = ishell.Cmd{
		Name:    "runtime",
		Aliases: []string{"rt"},
		Help:    "",
		Func: sh.MustBeOpen(func(c *ishell.Context, dev *device.Device) {
			rt, err := dev.SystemRuntime(context.Background())
			if err != nil {
				c.Err(err)
				return
			}
			sh.Print(c, map[string]interface{}{"runtime": rt.String(), "seconds": rt.Duration().Seconds()}, rt.String())
		}),
	}

	// SysTimeCmd sets the system time.
	SysTimeCmd = ishell.Cmd{
		Name:    "systime",
		Aliases: []string{"st"},
		Help:    "[RFC3339 TIME], defaults to now",
		Func: sh.MustBeOpen(func(c *ishell.Context, dev *device.Device) {
			t := time.Now()
			if len(c.Args) > 0 {
				var err error
				if t, err = time.Parse(time.RFC3339, c.Args[0]); err != nil {
					c.Err(fmt.Errorf("invalid TIME: %v", err))
					return
				}
			}
			sh.PrintResult(c, dev.SetSystemTime(context.Background(), t))
		}),
	}

	// ModifyCmd modifies a task.
	ModifyCmd = ishell.Cmd{
		Name:    "modify",
		Aliases: []string{"m"},
		Help:    "INDEX suspend|resume|delete|block|unblock|wakeup [PARAM]",
		Func: sh.MustBeOpen(func(c *ishell.Context, dev *device.Device) {
			index, err := parseIndex(c.Args, 0)
			if err != nil {
				c.Err(err)
				return
			}
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("TYPE required"))
				return
			}
			typ, err := sysmon.ParseModifyType(c.Args[1])
			if err != nil {
				c.Err(err)
				return
			}
			var param uint64
			if len(c.Args) > 2 {
				if param, err = strconv.ParseUint(c.Args[2], 0, 32); err != nil {
					c.Err(fmt.Errorf("invalid PARAM: %v", err))
					return
				}
			}
			sh.PrintResult(c, dev.ModifyTask(context.Background(), index, typ, uint32(param)))
		}),
	}

	// ResetCmd resets the device.
	ResetCmd = ishell.Cmd{
		Name: "reset",
		Help: "",
		Func: sh.MustBeOpen(func(c *ishell.Context, dev *device.Device) {
			sh.PrintResult(c, dev.Reset(context.Background()))
		}),
	}
)

func parseIndex(args []string, pos int) (uint16, error) {
	if len(args) <= pos {
		return 0, fmt.Errorf("INDEX required")
	}
	index, err := strconv.ParseUint(args[pos], 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid INDEX: %v", err)
	}
	return uint16(index), nil
}

func init() {
	sh.AddCmds(
		&PingCmd,
		&CPUCmd,
		&TasksCmd,
		&TaskCmd,
		&TaskVarCmd,
		&RuntimeCmd,
		&SysTimeCmd,
		&ModifyCmd,
		&ResetCmd,
	)
}
