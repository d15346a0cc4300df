package bld

import (
	"fmt"

	"github.com/gos-rtos/gostool.go/pkg/gcp/codec"
	"github.com/gos-rtos/gostool.go/pkg/gcp/crc"
	"github.com/gos-rtos/gostool.go/pkg/sysmon"
)

// Record sizes on the wire.
const (
	VersionSize      = 6 + sysmon.TimeSize + 48 + 64 + 32
	AppDataSize      = 16 + 2*VersionSize + 4
	DataSize         = 16 + 2*VersionSize + 1 + 4 + 3
	DataResponseSize = DataSize + AppDataSize
	ClientNameSize   = 32
)

// InitPattern marks initialized bootloader data blocks.
const InitPattern uint32 = 0xAE55EA55

// DefaultStartAddress is the flash address of the application.
const DefaultStartAddress uint32 = 0x08020000

// bootUpdateModeSet is the marker of a pending update.
const bootUpdateModeSet = 54

// Version describes a software component.
type Version struct {
	Major       uint16
	Minor       uint16
	Build       uint16
	Date        sysmon.Time
	Name        [48]byte
	Description [64]byte
	Author      [32]byte
}

// Set fills the text fields.
func (v *Version) Set(name, description, author string) {
	codec.PutString(v.Name[:], name)
	codec.PutString(v.Description[:], description)
	codec.PutString(v.Author[:], author)
}

// VersionInfo is the decoded form of Version.
type VersionInfo struct {
	Major       int    `json:"major"`
	Minor       int    `json:"minor"`
	Build       int    `json:"build"`
	Date        string `json:"date"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Author      string `json:"author"`
}

// Info decodes the version.
func (v *Version) Info() VersionInfo {
	return VersionInfo{
		Major:       int(v.Major),
		Minor:       int(v.Minor),
		Build:       int(v.Build),
		Date:        fmt.Sprintf("%04d-%02d-%02d", v.Date.Years, v.Date.Months, v.Date.Days),
		Name:        codec.String(v.Name[:]),
		Description: codec.String(v.Description[:]),
		Author:      codec.String(v.Author[:]),
	}
}

// String implements fmt.Stringer.
func (v *Version) String() string {
	info := v.Info()
	return fmt.Sprintf("%s %d.%d.%d (%s)", info.Name, info.Major, info.Minor, info.Build, info.Date)
}

// AppData describes the installed or to be installed application.
type AppData struct {
	InitPattern   uint32
	StartAddress  uint32
	Size          uint32
	CRC           uint32
	DriverVersion Version
	AppVersion    Version
	DataCRC       uint32
}

// NewAppData describes image to be installed at start.
func NewAppData(image []byte, start uint32, version Version) *AppData {
	return &AppData{
		StartAddress: start,
		Size:         uint32(len(image)),
		CRC:          crc.Direct(image),
		AppVersion:   version,
	}
}

// Seal sets DataCRC over the rest of the block.
func (a *AppData) Seal() error {
	b, err := codec.Marshal(a)
	if err != nil {
		return err
	}
	a.DataCRC = crc.Direct(b[:len(b)-4])
	return nil
}

// Verify tells if DataCRC matches the block.
func (a *AppData) Verify() bool {
	b, err := codec.Marshal(a)
	return err == nil && crc.Direct(b[:len(b)-4]) == a.DataCRC
}

// Data describes the bootloader itself.
type Data struct {
	InitPattern   uint32
	StartAddress  uint32
	Size          uint32
	CRC           uint32
	DriverVersion Version
	Version       Version
	UpdateMode    uint8
	DataCRC       uint32
	Reserved      [3]byte
}

// BootUpdateMode tells if an update is pending at next boot.
func (d *Data) BootUpdateMode() bool {
	return d.UpdateMode == bootUpdateModeSet
}

// SetBootUpdateMode sets or clears the update marker.
func (d *Data) SetBootUpdateMode(set bool) {
	d.UpdateMode = 0
	if set {
		d.UpdateMode = bootUpdateModeSet
	}
}
