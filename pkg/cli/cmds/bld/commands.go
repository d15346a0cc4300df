// Package bld provides the shell commands of the bootloader.
package bld

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/gos-rtos/gostool.go/pkg/bld"
	"github.com/gos-rtos/gostool.go/pkg/cli/sh"
	"github.com/gos-rtos/gostool.go/pkg/device"
	"github.com/gos-rtos/gostool.go/pkg/sysmon"
)

// SoftwareInfo is the printable form of the bootloader data.
type SoftwareInfo struct {
	Bootloader     bld.VersionInfo `json:"bootloader"`
	Driver         bld.VersionInfo `json:"driver"`
	BootUpdateMode bool            `json:"boot_update_mode"`
	App            *AppInfo        `json:"app,omitempty"`
}

// AppInfo describes the installed application.
type AppInfo struct {
	Version      bld.VersionInfo `json:"version"`
	StartAddress string          `json:"start_address"`
	Size         uint32          `json:"size"`
	CRC          string          `json:"crc"`
}

// NewSoftwareInfo converts a data response. The application is
// omitted unless its block is initialized.
func NewSoftwareInfo(resp *bld.DataResponse) SoftwareInfo {
	info := SoftwareInfo{
		Bootloader:     resp.Bld.Version.Info(),
		Driver:         resp.Bld.DriverVersion.Info(),
		BootUpdateMode: resp.Bld.BootUpdateMode(),
	}
	if resp.App.Size > 0 {
		info.App = &AppInfo{
			Version:      resp.App.AppVersion.Info(),
			StartAddress: fmt.Sprintf("0x%08X", resp.App.StartAddress),
			Size:         resp.App.Size,
			CRC:          fmt.Sprintf("0x%08X", resp.App.CRC),
		}
	}
	return info
}

// String implements fmt.Stringer.
func (i SoftwareInfo) String() string {
	lines := []string{
		"Bootloader: " + versionString(i.Bootloader),
		"Driver:     " + versionString(i.Driver),
	}
	if i.App == nil {
		lines = append(lines, "App:        none")
	} else {
		lines = append(lines, fmt.Sprintf("App:        %s, %d bytes at %s, crc %s",
			versionString(i.App.Version), i.App.Size, i.App.StartAddress, i.App.CRC))
	}
	if i.BootUpdateMode {
		lines = append(lines, "Update pending at next boot")
	}
	return strings.Join(lines, "\n")
}

func versionString(v bld.VersionInfo) string {
	return fmt.Sprintf("%s %d.%d.%d (%s)", v.Name, v.Major, v.Minor, v.Build, v.Date)
}

// ParseVersion parses MAJOR.MINOR.BUILD, missing parts are 0.
func ParseVersion(s string) (major, minor, build uint16, err error) {
	parts := strings.Split(s, ".")
	if len(parts) > 3 {
		return 0, 0, 0, fmt.Errorf("invalid version %q", s)
	}
	nums := make([]uint16, 3)
	for n, part := range parts {
		val, err := strconv.ParseUint(part, 10, 16)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid version %q: %v", s, err)
		}
		nums[n] = uint16(val)
	}
	return nums[0], nums[1], nums[2], nil
}

// ImageVersion describes the image file. The name defaults to the
// file name without extension, and the date is the file time.
func ImageVersion(path string, modTime time.Time, version, name string) (bld.Version, error) {
	var v bld.Version
	if version != "" {
		var err error
		if v.Major, v.Minor, v.Build, err = ParseVersion(version); err != nil {
			return v, err
		}
	}
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	v.Date = sysmon.TimeOf(modTime)
	v.Set(name, "", "")
	return v, nil
}

var (
	// InfoCmd shows the bootloader and application data.
	InfoCmd = ishell.Cmd{
		Name:    "info",
		Aliases: []string{"i"},
		Help:    "",
		Func: sh.MustBeOpen(func(c *ishell.Context, dev *device.Device) {
			resp, err := dev.SoftwareInfo(context.Background())
			if err != nil {
				c.Err(err)
				return
			}
			info := NewSoftwareInfo(resp)
			sh.Print(c, info, info.String())
		}),
	}

	// BootModeCmd restarts the device into the bootloader.
	BootModeCmd = ishell.Cmd{
		Name: "bootmode",
		Help: "",
		Func: sh.MustBeOpen(func(c *ishell.Context, dev *device.Device) {
			sh.PrintResult(c, dev.SwitchToBootMode(context.Background()))
		}),
	}

	// ConnectCmd connects to the bootloader.
	ConnectCmd = ishell.Cmd{
		Name:    "bconnect",
		Aliases: []string{"bc"},
		Help:    "[CLIENT]",
		Func: sh.MustBeOpen(func(c *ishell.Context, dev *device.Device) {
			client := sh.ShellFrom(c).Config.Client()
			if len(c.Args) > 0 {
				client = c.Args[0]
			}
			result, err := dev.Connect(context.Background(), client)
			if err != nil {
				c.Err(err)
				return
			}
			sh.Print(c, map[string]string{"result": result.String()}, result.String())
		}),
	}

	// DisconnectCmd disconnects from the bootloader.
	DisconnectCmd = ishell.Cmd{
		Name:    "bdisconnect",
		Aliases: []string{"bd"},
		Help:    "[REASON]",
		Func: sh.MustBeOpen(func(c *ishell.Context, dev *device.Device) {
			reason := bld.DefaultDisconnectReason
			if len(c.Args) > 0 {
				val, err := strconv.ParseUint(c.Args[0], 0, 16)
				if err != nil {
					c.Err(fmt.Errorf("invalid REASON: %v", err))
					return
				}
				reason = uint16(val)
			}
			result, err := dev.Disconnect(context.Background(), reason)
			if err != nil {
				c.Err(err)
				return
			}
			sh.Print(c, map[string]string{"result": result.String()}, result.String())
		}),
	}

	// InstallCmd installs an application image.
	InstallCmd = ishell.Cmd{
		Name: "install",
		Help: "FILE [MAJOR.MINOR.BUILD] [NAME]",
		Func: sh.MustBeOpen(func(c *ishell.Context, dev *device.Device) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("FILE required"))
				return
			}
			path := c.Args[0]
			fi, err := os.Stat(path)
			if err != nil {
				c.Err(err)
				return
			}
			image, err := os.ReadFile(path)
			if err != nil {
				c.Err(err)
				return
			}
			var version, name string
			if len(c.Args) > 1 {
				version = c.Args[1]
			}
			if len(c.Args) > 2 {
				name = c.Args[2]
			}
			v, err := ImageVersion(path, fi.ModTime(), version, name)
			if err != nil {
				c.Err(err)
				return
			}

			var progress device.ProgressFunc
			if sh.ShellFrom(c).Interactive {
				bar := c.ProgressBar()
				bar.Start()
				defer bar.Stop()
				progress = func(p device.Progress) {
					bar.Suffix(fmt.Sprintf(" %d/%d bytes", p.Sent, p.Total))
					bar.Progress(int(p.Percentage))
				}
			}
			start := time.Now()
			err = dev.Install(context.Background(), image, v, device.WithProgress(progress))
			if err != nil {
				c.Err(err)
				return
			}
			sh.Print(c, map[string]interface{}{"ok": true, "size": len(image)},
				fmt.Sprintf("Installed %d bytes in %v", len(image), time.Since(start).Round(time.Millisecond)))
		}),
	}

	// EraseCmd erases the application.
	EraseCmd = ishell.Cmd{
		Name: "erase",
		Help: "",
		Func: sh.MustBeOpen(func(c *ishell.Context, dev *device.Device) {
			sh.PrintResult(c, dev.Erase(context.Background()))
		}),
	}
)

func init() {
	sh.AddCmds(
		&InfoCmd,
		&BootModeCmd,
		&ConnectCmd,
		&DisconnectCmd,
		&InstallCmd,
		&EraseCmd,
	)
}
