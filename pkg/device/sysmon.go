package device

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/gos-rtos/gostool.go/pkg/gcp"
	"github.com/gos-rtos/gostool.go/pkg/sysmon"
)

// Ping checks the device answers with OK.
func (d *Device) Ping(ctx context.Context) error {
	return d.transact(ctx, func(ch *gcp.Channel) error {
		var resp sysmon.PingResponse
		if err := ch.Do(&sysmon.PingRequest{}, &resp, d.Config.Timeout); err != nil {
			return err
		}
		return resp.Result.Err()
	})
}

// CPULoad returns the CPU usage in percent, or -1 on failure.
func (d *Device) CPULoad(ctx context.Context) (float64, error) {
	var resp sysmon.CPUUsageResponse
	err := d.transact(ctx, func(ch *gcp.Channel) error {
		if err := ch.Do(&sysmon.CPUUsageRequest{}, &resp, d.Config.Timeout); err != nil {
			return err
		}
		return resp.Result.Err()
	})
	if err != nil {
		return -1, err
	}
	return resp.CPU.Percent(), nil
}

// TaskList returns the records of all tasks in device order.
// If the stream breaks after some records, these are returned
// together with the error.
func (d *Device) TaskList(ctx context.Context) ([]sysmon.TaskData, error) {
	var tasks []sysmon.TaskData
	err := d.transact(ctx, func(ch *gcp.Channel) error {
		req := &sysmon.TaskGetRequest{TaskIndex: sysmon.TaskIndex{Index: sysmon.AllTasks}}
		if err := ch.Send(req); err != nil {
			return err
		}
		for {
			if len(tasks) >= d.Config.MaxTasks {
				return ErrTooManyRecords
			}
			var resp sysmon.TaskDataResponse
			if err := ch.Recv(&resp, d.Config.StreamTimeout); err != nil {
				return errors.Wrapf(err, "task record %d", len(tasks))
			}
			if resp.Result != sysmon.ResultOK {
				return nil
			}
			tasks = append(tasks, resp.Data)
		}
	})
	return tasks, err
}

// TaskInfo returns the record of a single task.
func (d *Device) TaskInfo(ctx context.Context, index uint16) (sysmon.TaskData, error) {
	var resp sysmon.TaskDataResponse
	err := d.transact(ctx, func(ch *gcp.Channel) error {
		req := &sysmon.TaskGetRequest{TaskIndex: sysmon.TaskIndex{Index: index}}
		if err := ch.Do(req, &resp, d.Config.Timeout); err != nil {
			return err
		}
		return resp.Result.Err()
	})
	if err != nil {
		return sysmon.TaskData{}, err
	}
	return resp.Data, nil
}

// TaskVariableData returns the variable record of a single task.
func (d *Device) TaskVariableData(ctx context.Context, index uint16) (sysmon.TaskVariableData, error) {
	var resp sysmon.TaskVarDataResponse
	err := d.transact(ctx, func(ch *gcp.Channel) error {
		req := &sysmon.TaskVarGetRequest{TaskIndex: sysmon.TaskIndex{Index: index}}
		if err := ch.Do(req, &resp, d.Config.Timeout); err != nil {
			return err
		}
		return resp.Result.Err()
	})
	if err != nil {
		return sysmon.TaskVariableData{}, err
	}
	return resp.Data, nil
}

// TaskVariableDataAll returns the variable records of all tasks,
// streamed the same way as TaskList.
func (d *Device) TaskVariableDataAll(ctx context.Context) ([]sysmon.TaskVariableData, error) {
	var records []sysmon.TaskVariableData
	err := d.transact(ctx, func(ch *gcp.Channel) error {
		req := &sysmon.TaskVarGetRequest{TaskIndex: sysmon.TaskIndex{Index: sysmon.AllTasks}}
		if err := ch.Send(req); err != nil {
			return err
		}
		for {
			if len(records) >= d.Config.MaxTasks {
				return ErrTooManyRecords
			}
			var resp sysmon.TaskVarDataResponse
			if err := ch.Recv(&resp, d.Config.StreamTimeout); err != nil {
				return errors.Wrapf(err, "task record %d", len(records))
			}
			if resp.Result != sysmon.ResultOK {
				return nil
			}
			records = append(records, resp.Data)
		}
	})
	return records, err
}

// SystemRuntime returns the time elapsed since boot.
// The zero RunTime is returned on failure.
func (d *Device) SystemRuntime(ctx context.Context) (sysmon.RunTime, error) {
	var resp sysmon.SysRuntimeResponse
	err := d.transact(ctx, func(ch *gcp.Channel) error {
		if err := ch.Do(&sysmon.SysRuntimeRequest{}, &resp, d.Config.Timeout); err != nil {
			return err
		}
		return resp.Result.Err()
	})
	if err != nil {
		return sysmon.RunTime{}, err
	}
	return resp.RunTime, nil
}

// SetSystemTime sets the calendar time of the device.
func (d *Device) SetSystemTime(ctx context.Context, t time.Time) error {
	return d.transact(ctx, func(ch *gcp.Channel) error {
		var resp sysmon.SysTimeSetResponse
		if err := ch.Do(&sysmon.SysTimeSetRequest{Time: sysmon.TimeOf(t)}, &resp, d.Config.Timeout); err != nil {
			return err
		}
		return resp.Result.Err()
	})
}

// ModifyTask changes the state of a task.
func (d *Device) ModifyTask(ctx context.Context, index uint16, typ sysmon.ModifyType, param uint32) error {
	return d.transact(ctx, func(ch *gcp.Channel) error {
		req := &sysmon.TaskModifyRequest{
			TaskModification: sysmon.TaskModification{Index: index, Type: typ, Param: param},
		}
		var resp sysmon.TaskModifyResponse
		if err := ch.Do(req, &resp, d.Config.Timeout); err != nil {
			return err
		}
		return resp.Result.Err()
	})
}

// Reset restarts the device. No response is awaited.
func (d *Device) Reset(ctx context.Context) error {
	return d.transact(ctx, func(ch *gcp.Channel) error {
		return ch.Send(&sysmon.ResetRequest{})
	})
}
