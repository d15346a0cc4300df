package device

import (
	"context"
	"time"

	"github.com/gos-rtos/gostool.go/pkg/bld"
	"github.com/gos-rtos/gostool.go/pkg/gcp"
)

// SoftwareInfo returns the bootloader and application data.
func (d *Device) SoftwareInfo(ctx context.Context) (*bld.DataResponse, error) {
	resp := &bld.DataResponse{}
	err := d.transact(ctx, func(ch *gcp.Channel) error {
		return ch.Do(&bld.DataRequest{}, resp, d.Config.Timeout)
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// SwitchToBootMode restarts the device into the bootloader and
// waits Config.BootDelay for it to come up.
func (d *Device) SwitchToBootMode(ctx context.Context) error {
	return d.transact(ctx, func(ch *gcp.Channel) error {
		if err := ch.Send(&bld.SwitchToBootModeRequest{}); err != nil {
			return err
		}
		select {
		case <-time.After(d.Config.BootDelay):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

// Connect opens a bootloader session as client.
func (d *Device) Connect(ctx context.Context, client string) (bld.ConnResult, error) {
	var resp bld.ConnResponse
	err := d.transact(ctx, func(ch *gcp.Channel) error {
		return ch.Do(bld.NewConnRequest(client), &resp, d.Config.Timeout)
	})
	if err != nil {
		return 0, err
	}
	if resp.Result != bld.ConnAccepted {
		return resp.Result, &bld.ResultError{MessageID: bld.ConnRespID, Result: resp.Result}
	}
	return resp.Result, nil
}

// Disconnect closes the bootloader session.
func (d *Device) Disconnect(ctx context.Context, reason uint16) (bld.ConnResult, error) {
	var resp bld.DisconnResponse
	err := d.transact(ctx, func(ch *gcp.Channel) error {
		return ch.Do(&bld.DisconnRequest{Reason: reason}, &resp, d.Config.Timeout)
	})
	if err != nil {
		return 0, err
	}
	if resp.Result != bld.DisconnAccepted {
		return resp.Result, &bld.ResultError{MessageID: bld.DisconnRespID, Result: resp.Result}
	}
	return resp.Result, nil
}

// Erase erases the installed application.
func (d *Device) Erase(ctx context.Context) error {
	return d.transact(ctx, func(ch *gcp.Channel) error {
		var resp bld.InstallResponse
		if err := ch.Do(&bld.InstallRequest{Type: bld.UpdateErase}, &resp, d.Config.LongTimeout); err != nil {
			return err
		}
		if resp.Result != bld.EraseSuccessful {
			return &bld.ResultError{MessageID: bld.AppDataRespID, Result: resp.Result}
		}
		return nil
	})
}
