package device

import (
	"context"
	"time"

	"github.com/golang/glog"

	"github.com/gos-rtos/gostool.go/pkg/bld"
	"github.com/gos-rtos/gostool.go/pkg/gcp"
)

// Install defaults.
const (
	DefaultPacketSize    = 512
	DefaultInstallSettle = 100 * time.Millisecond
	DefaultMaxRepeats    = 3
)

// Progress reports the state of an installation.
type Progress struct {
	// Sent is the number of image bytes acknowledged by the device.
	Sent int
	// Total is the image size.
	Total int
	// Percentage is the completion percentage (0.0 to 100.0).
	Percentage float64
	// Elapsed is the time since the installation started.
	Elapsed time.Duration
}

// ProgressFunc is called after each acknowledged packet.
// It's called with the channel held and should return quickly.
type ProgressFunc func(Progress)

// InstallConfig holds the installation configuration.
type InstallConfig struct {
	StartAddress uint32
	PacketSize   int
	Settle       time.Duration
	MaxRepeats   int
	Progress     ProgressFunc
}

func defaultInstallConfig() InstallConfig {
	return InstallConfig{
		StartAddress: bld.DefaultStartAddress,
		PacketSize:   DefaultPacketSize,
		Settle:       DefaultInstallSettle,
		MaxRepeats:   DefaultMaxRepeats,
	}
}

// InstallOption configures an installation.
type InstallOption func(*InstallConfig)

// WithStartAddress sets the flash address of the image.
func WithStartAddress(addr uint32) InstallOption {
	return func(c *InstallConfig) {
		c.StartAddress = addr
	}
}

// WithPacketSize sets the image bytes per packet.
func WithPacketSize(size int) InstallOption {
	return func(c *InstallConfig) {
		if size > 0 && size <= gcp.MaxDataSize-bld.PacketHeaderSize {
			c.PacketSize = size
		}
	}
}

// WithInstallSettle sets the wait between the install request and
// the first packet.
func WithInstallSettle(d time.Duration) InstallOption {
	return func(c *InstallConfig) {
		c.Settle = d
	}
}

// WithMaxRepeats bounds the resends of a packet the device asked to repeat.
func WithMaxRepeats(n int) InstallOption {
	return func(c *InstallConfig) {
		if n >= 0 {
			c.MaxRepeats = n
		}
	}
}

// WithProgress sets the progress callback.
func WithProgress(fn ProgressFunc) InstallOption {
	return func(c *InstallConfig) {
		c.Progress = fn
	}
}

// Install installs image as the application described by version.
// The channel is held for the whole installation. Any failure aborts
// with *InstallError.
func (d *Device) Install(ctx context.Context, image []byte, version bld.Version, opts ...InstallOption) error {
	cfg := defaultInstallConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	total := len(image)
	sent := 0
	fail := func(err error) error {
		glog.Warningf("install aborted at %d/%d: %v", sent, total, err)
		return &InstallError{Sent: sent, Total: total, Err: err}
	}

	err := d.acquire(ctx)
	if err != nil {
		return fail(err)
	}
	defer d.release()

	start := time.Now()
	app := bld.NewAppData(image, cfg.StartAddress, version)
	if err = app.Seal(); err != nil {
		return fail(err)
	}
	var resp bld.InstallResponse
	if err = d.ch.Do(&bld.InstallRequest{Type: bld.UpdateInstall, App: *app}, &resp, d.Config.LongTimeout); err != nil {
		return fail(err)
	}
	if resp.Result != bld.InstallAccepted && resp.Result != bld.EraseSuccessful {
		return fail(&bld.ResultError{MessageID: bld.AppDataRespID, Result: resp.Result})
	}
	glog.V(2).Infof("install accepted: %d bytes at 0x%08X", total, cfg.StartAddress)

	select {
	case <-time.After(cfg.Settle):
	case <-ctx.Done():
		return fail(ctx.Err())
	}

	seq, repeats := uint32(1), 0
	for sent < total {
		if err = ctx.Err(); err != nil {
			return fail(err)
		}
		end := sent + cfg.PacketSize
		if end > total {
			end = total
		}
		var ack bld.PacketResponse
		if err = d.ch.Do(bld.NewPacketRequest(seq, image[sent:end]), &ack, d.Config.LongTimeout); err != nil {
			return fail(err)
		}
		switch ack.Result {
		case bld.PacketAccepted:
			if ack.Sequence != seq {
				glog.Warningf("packet %d acknowledged as %d", seq, ack.Sequence)
			}
			sent, seq, repeats = end, ack.Sequence+1, 0
			if cfg.Progress != nil {
				elapsed := time.Since(start)
				cfg.Progress(Progress{
					Sent:       sent,
					Total:      total,
					Percentage: float64(sent) * 100 / float64(total),
					Elapsed:    elapsed,
				})
			}
		case bld.PacketRepeat:
			if repeats++; repeats > cfg.MaxRepeats {
				return fail(&bld.ResultError{MessageID: bld.PacketRespID, Result: ack.Result})
			}
			glog.V(2).Infof("repeat packet %d", seq)
		default:
			return fail(&bld.ResultError{MessageID: bld.PacketRespID, Result: ack.Result})
		}
	}
	glog.V(2).Infof("installed %d bytes in %v", total, time.Since(start))
	return nil
}
