// Package sim simulates a GOS target speaking GCP.
//
// The simulated target answers all sysmon and bootloader requests
// from an in-memory state and supports fault injection. It's served
// over an in-memory port so the tools and tests run without hardware.
package sim

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/gos-rtos/gostool.go/pkg/bld"
	"github.com/gos-rtos/gostool.go/pkg/gcp"
	"github.com/gos-rtos/gostool.go/pkg/gcp/crc"
	"github.com/gos-rtos/gostool.go/pkg/gcp/transport"
	"github.com/gos-rtos/gostool.go/pkg/sysmon"
)

// FlashSize is the largest accepted application image.
const FlashSize = 384 * 1024

// pollInterval bounds how long Serve takes to notice cancellation.
const pollInterval = 50 * time.Millisecond

// Fault alters the responses to matching requests.
type Fault struct {
	// ID of the request to match, 0 matches any.
	ID uint16
	// Skip passes the first matching requests through.
	Skip int
	// Count is the number of affected requests, 0 means all.
	Count int
	// Drop suppresses the response.
	Drop bool
	// Corrupt sends the response with a wrong payload checksum.
	Corrupt bool
	// Override replaces the result code of the response with Result.
	Override bool
	Result   uint8
	// Delay is waited before responding.
	Delay time.Duration
}

func (f *Fault) match(id uint16) bool {
	if f.ID != 0 && f.ID != id {
		return false
	}
	if f.Skip > 0 {
		f.Skip--
		return false
	}
	return true
}

// Device is a simulated GOS target.
type Device struct {
	// HeaderDelay and FrameDelay configure the transmit side.
	HeaderDelay time.Duration
	FrameDelay  time.Duration

	lock     sync.Mutex
	tasks    []sysmon.TaskData
	cpuUsage uint16
	started  time.Time
	sysTime  sysmon.Time
	bldData  bld.Data
	appData  bld.AppData

	client    string
	connected bool
	bootMode  bool
	resets    int

	pending  *bld.AppData
	image    []byte
	nextSeq  uint32
	packets  []uint32
	faults   []*Fault
	requests map[uint16]int

	ch *gcp.Channel
}

// NewDevice creates a target with a few tasks.
func NewDevice() *Device {
	d := &Device{
		HeaderDelay: gcp.DefaultHeaderDelay,
		FrameDelay:  gcp.DefaultFrameDelay,
		cpuUsage:    1234,
		started:     time.Now(),
		requests:    make(map[uint16]int),
	}
	d.bldData.InitPattern = bld.InitPattern
	d.bldData.StartAddress = 0x08000000
	d.bldData.Size = 0x20000
	d.bldData.Version.Major = 1
	d.bldData.Version.Set("gos_bootloader", "simulated bootloader", "gos")
	d.bldData.DriverVersion.Set("gos_driver", "simulated driver", "gos")
	d.SetTasks(DefaultTasks()...)
	return d
}

// DefaultTasks returns the task table of a fresh target.
func DefaultTasks() []sysmon.TaskData {
	tasks := []sysmon.TaskData{
		{State: sysmon.TaskReady, Priority: 255, OriginalPriority: 255, Privileges: sysmon.PrivilegeKernel, StackSize: 0x200, CPUUsage: 8766},
		{State: sysmon.TaskSleeping, Priority: 190, OriginalPriority: 190, Privileges: sysmon.PrivilegeSupervisor, StackSize: 0x400, CPUUsage: 120},
		{State: sysmon.TaskBlocked, Priority: 100, OriginalPriority: 100, Privileges: sysmon.PrivilegedUser, StackSize: 0x300, CPUUsage: 34},
	}
	for n, name := range []string{"gos_idle_task", "gos_sysmon_daemon", "app_task"} {
		tasks[n].ID = 0x8000 + uint16(n)
		tasks[n].CPULimit = 10000
		tasks[n].SetTaskName(name)
	}
	return tasks
}

// SetTasks replaces the task table.
func (d *Device) SetTasks(tasks ...sysmon.TaskData) {
	d.lock.Lock()
	d.tasks = append([]sysmon.TaskData(nil), tasks...)
	d.lock.Unlock()
}

// Tasks returns a copy of the task table.
func (d *Device) Tasks() []sysmon.TaskData {
	d.lock.Lock()
	defer d.lock.Unlock()
	return append([]sysmon.TaskData(nil), d.tasks...)
}

// SetCPUUsage sets the CPU usage in hundredths of a percent.
func (d *Device) SetCPUUsage(usage uint16) {
	d.lock.Lock()
	d.cpuUsage = usage
	d.lock.Unlock()
}

// SetStarted sets the boot time the runtime is counted from.
func (d *Device) SetStarted(t time.Time) {
	d.lock.Lock()
	d.started = t
	d.lock.Unlock()
}

// SysTime returns the last time set by the host.
func (d *Device) SysTime() sysmon.Time {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.sysTime
}

// Resets counts reset requests.
func (d *Device) Resets() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.resets
}

// BootMode tells if a switch to boot mode was requested.
func (d *Device) BootMode() bool {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.bootMode
}

// Client returns the connected bootloader client, if any.
func (d *Device) Client() (string, bool) {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.client, d.connected
}

// App returns the installed application data.
func (d *Device) App() bld.AppData {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.appData
}

// Image returns the received image bytes.
func (d *Device) Image() []byte {
	d.lock.Lock()
	defer d.lock.Unlock()
	return append([]byte(nil), d.image...)
}

// Packets returns the sequence numbers of accepted packets.
func (d *Device) Packets() []uint32 {
	d.lock.Lock()
	defer d.lock.Unlock()
	return append([]uint32(nil), d.packets...)
}

// Requests counts the received requests with id.
func (d *Device) Requests(id uint16) int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.requests[id]
}

// Inject adds a fault. Faults are matched in order.
func (d *Device) Inject(f Fault) {
	d.lock.Lock()
	d.faults = append(d.faults, &f)
	d.lock.Unlock()
}

// ClearFaults removes all faults.
func (d *Device) ClearFaults() {
	d.lock.Lock()
	d.faults = nil
	d.lock.Unlock()
}

// Start serves the device on an in-memory port and returns the host
// end. Closing the host end stops the device.
func (d *Device) Start() transport.Port {
	host, target := Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	host.(*pipePort).onClose = cancel
	tr := transport.NewWithPort(target)
	go func() {
		defer tr.Close()
		if err := d.Serve(ctx, tr); err != nil && errors.Cause(err) != context.Canceled {
			glog.Warningf("sim: %v", err)
		}
	}()
	return host
}

// Serve answers requests received on link until ctx is done.
func (d *Device) Serve(ctx context.Context, link gcp.Link) error {
	ch := gcp.NewChannel(link)
	ch.HeaderDelay, ch.FrameDelay = d.HeaderDelay, d.FrameDelay
	d.lock.Lock()
	d.ch = ch
	d.lock.Unlock()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, payload, err := ch.ReceiveMessage(pollInterval)
		switch {
		case err == nil:
		case errors.Cause(err) == transport.ErrTimeout:
			continue
		case errors.Cause(err) == transport.ErrNotOpen:
			return err
		case gcp.IsIntegrity(err):
			glog.V(2).Infof("sim: dropped request: %v", err)
			continue
		default:
			return err
		}
		if hdr.ProtocolVersion != sysmon.ProtocolVersion {
			glog.V(2).Infof("sim: request 0x%04x with protocol version %d", hdr.MessageID, hdr.ProtocolVersion)
			continue
		}
		if err := d.handle(hdr.MessageID, payload); err != nil {
			return err
		}
	}
}

func (d *Device) fault(id uint16) *Fault {
	for n, f := range d.faults {
		if !f.match(id) {
			continue
		}
		if f.Count > 0 {
			if f.Count--; f.Count == 0 {
				d.faults = append(d.faults[:n:n], d.faults[n+1:]...)
			}
		}
		return f
	}
	return nil
}

type response interface {
	gcp.Message
	MarshalBinary() ([]byte, error)
}

// respond sends resp to the request reqID, applying faults.
func (d *Device) respond(reqID uint16, resp response) error {
	d.lock.Lock()
	f := d.fault(reqID)
	ch := d.ch
	d.lock.Unlock()

	var fault Fault
	if f != nil {
		fault = *f
	}
	if fault.Delay > 0 {
		time.Sleep(fault.Delay)
	}
	if fault.Drop {
		glog.V(3).Infof("sim: drop response 0x%04x", resp.MessageID())
		return nil
	}
	payload, err := resp.MarshalBinary()
	if err != nil {
		return err
	}
	if fault.Override && len(payload) > 0 {
		payload[resultOffset(resp)] = fault.Result
	}
	hdr := gcp.MessageHeader{
		ProtocolVersion: resp.ProtocolVersion(),
		MessageID:       resp.MessageID(),
		PayloadSize:     uint16(len(payload)),
		PayloadCRC:      checksum(ch)(payload),
	}
	if fault.Corrupt {
		hdr.PayloadCRC ^= 1
	}
	if err := ch.TransmitFramed(hdr.Bytes()); err != nil {
		return err
	}
	return ch.TransmitFramed(payload)
}

func checksum(ch *gcp.Channel) crc.Func {
	if ch.Checksum != nil {
		return ch.Checksum
	}
	return crc.Reflected
}

func resultOffset(resp response) int {
	if _, ok := resp.(*bld.PacketResponse); ok {
		return 4
	}
	return 0
}

func (d *Device) handle(id uint16, payload []byte) error {
	d.lock.Lock()
	d.requests[id]++
	d.lock.Unlock()

	switch id {
	case sysmon.PingReqID:
		return d.respond(id, &sysmon.PingResponse{Result: sysmon.ResultOK})
	case sysmon.CPUUsageGetReqID:
		d.lock.Lock()
		resp := &sysmon.CPUUsageResponse{Result: sysmon.ResultOK, CPU: sysmon.CPUUsage{Usage: d.cpuUsage}}
		d.lock.Unlock()
		return d.respond(id, resp)
	case sysmon.TaskGetDataReqID:
		return d.handleTaskGet(id, payload)
	case sysmon.TaskGetVarDataReqID:
		return d.handleTaskVarGet(id, payload)
	case sysmon.TaskModifyReqID:
		return d.handleTaskModify(id, payload)
	case sysmon.SysRuntimeGetReqID:
		d.lock.Lock()
		resp := &sysmon.SysRuntimeResponse{Result: sysmon.ResultOK, RunTime: sysmon.RunTimeOf(time.Since(d.started))}
		d.lock.Unlock()
		return d.respond(id, resp)
	case sysmon.SysTimeSetReqID:
		var req sysmon.SysTimeSetRequest
		if err := req.UnmarshalBinary(payload); err != nil {
			return d.respond(id, &sysmon.SysTimeSetResponse{Result: sysmon.ResultGenericError})
		}
		d.lock.Lock()
		d.sysTime = req.Time
		d.lock.Unlock()
		return d.respond(id, &sysmon.SysTimeSetResponse{Result: sysmon.ResultOK})
	case sysmon.ResetReqID:
		d.lock.Lock()
		d.resets++
		d.started = time.Now()
		d.lock.Unlock()
		return nil
	case bld.SwitchToBootModeReqID:
		d.lock.Lock()
		d.bootMode = true
		d.lock.Unlock()
		return nil
	case bld.ConnReqID:
		return d.handleConn(id, payload)
	case bld.DisconnReqID:
		d.lock.Lock()
		result := bld.DisconnRefused
		if d.connected {
			d.connected, d.client, result = false, "", bld.DisconnAccepted
		}
		d.lock.Unlock()
		return d.respond(id, &bld.DisconnResponse{Result: result})
	case bld.DataReqID:
		d.lock.Lock()
		resp := &bld.DataResponse{Bld: d.bldData, App: d.appData}
		d.lock.Unlock()
		return d.respond(id, resp)
	case bld.AppDataReqID:
		return d.handleInstall(id, payload)
	case bld.PacketReqID:
		return d.handlePacket(id, payload)
	}
	glog.V(2).Infof("sim: unknown request 0x%04x", id)
	return nil
}

func (d *Device) handleTaskGet(id uint16, payload []byte) error {
	var req sysmon.TaskGetRequest
	if err := req.UnmarshalBinary(payload); err != nil {
		return d.respond(id, &sysmon.TaskDataResponse{Result: sysmon.ResultGenericError})
	}
	tasks := d.Tasks()
	if req.Index != sysmon.AllTasks {
		if int(req.Index) >= len(tasks) {
			return d.respond(id, &sysmon.TaskDataResponse{Result: sysmon.ResultGenericError})
		}
		return d.respond(id, &sysmon.TaskDataResponse{Result: sysmon.ResultOK, Data: tasks[req.Index]})
	}
	for _, task := range tasks {
		if err := d.respond(id, &sysmon.TaskDataResponse{Result: sysmon.ResultOK, Data: task}); err != nil {
			return err
		}
	}
	return d.respond(id, &sysmon.TaskDataResponse{Result: sysmon.ResultGenericError})
}

func (d *Device) handleTaskVarGet(id uint16, payload []byte) error {
	var req sysmon.TaskVarGetRequest
	if err := req.UnmarshalBinary(payload); err != nil {
		return d.respond(id, &sysmon.TaskVarDataResponse{Result: sysmon.ResultGenericError})
	}
	tasks := d.Tasks()
	if req.Index != sysmon.AllTasks {
		if int(req.Index) >= len(tasks) {
			return d.respond(id, &sysmon.TaskVarDataResponse{Result: sysmon.ResultGenericError})
		}
		return d.respond(id, &sysmon.TaskVarDataResponse{Result: sysmon.ResultOK, Data: tasks[req.Index].Variable()})
	}
	for _, task := range tasks {
		if err := d.respond(id, &sysmon.TaskVarDataResponse{Result: sysmon.ResultOK, Data: task.Variable()}); err != nil {
			return err
		}
	}
	return d.respond(id, &sysmon.TaskVarDataResponse{Result: sysmon.ResultGenericError})
}

var modifiedStates = map[sysmon.ModifyType]sysmon.TaskState{
	sysmon.ModifySuspend: sysmon.TaskSuspended,
	sysmon.ModifyResume:  sysmon.TaskReady,
	sysmon.ModifyDelete:  sysmon.TaskZombie,
	sysmon.ModifyBlock:   sysmon.TaskBlocked,
	sysmon.ModifyUnblock: sysmon.TaskReady,
	sysmon.ModifyWakeup:  sysmon.TaskReady,
}

func (d *Device) handleTaskModify(id uint16, payload []byte) error {
	var req sysmon.TaskModifyRequest
	result := sysmon.ResultGenericError
	if err := req.UnmarshalBinary(payload); err == nil {
		d.lock.Lock()
		state, ok := modifiedStates[req.Type]
		if ok && int(req.Index) < len(d.tasks) {
			d.tasks[req.Index].State = state
			result = sysmon.ResultOK
		}
		d.lock.Unlock()
	}
	return d.respond(id, &sysmon.TaskModifyResponse{Result: result})
}

func (d *Device) handleConn(id uint16, payload []byte) error {
	var req bld.ConnRequest
	result := bld.ConnRefused
	if err := req.UnmarshalBinary(payload); err == nil && req.ClientName() != "" {
		d.lock.Lock()
		d.client, d.connected = req.ClientName(), true
		d.lock.Unlock()
		result = bld.ConnAccepted
	}
	return d.respond(id, &bld.ConnResponse{Result: result})
}

func (d *Device) handleInstall(id uint16, payload []byte) error {
	var req bld.InstallRequest
	if err := req.UnmarshalBinary(payload); err != nil {
		return d.respond(id, &bld.InstallResponse{Result: bld.InstallDataCRCError})
	}
	var result bld.InstallResult
	d.lock.Lock()
	switch {
	case req.Type == bld.UpdateErase:
		d.appData, d.pending, d.image, d.packets = bld.AppData{}, nil, nil, nil
		result = bld.EraseSuccessful
	case !req.App.Verify():
		result = bld.InstallDataCRCError
	case req.App.StartAddress != bld.DefaultStartAddress:
		result = bld.InstallStartAddressError
	case req.App.Size == 0 || req.App.Size > FlashSize:
		result = bld.InstallSizeError
	default:
		app := req.App
		d.pending, d.image, d.packets, d.nextSeq = &app, nil, nil, 1
		result = bld.InstallAccepted
	}
	d.lock.Unlock()
	return d.respond(id, &bld.InstallResponse{Result: result})
}

func (d *Device) handlePacket(id uint16, payload []byte) error {
	var req bld.PacketRequest
	ack := bld.PacketAck{Result: bld.PacketRepeat}
	if err := req.UnmarshalBinary(payload); err == nil && req.Verify() {
		d.lock.Lock()
		if d.pending != nil && req.Sequence == d.nextSeq {
			d.image = append(d.image, req.Data...)
			d.packets = append(d.packets, req.Sequence)
			d.nextSeq++
			ack = bld.PacketAck{Sequence: req.Sequence, Result: bld.PacketAccepted}
			if uint32(len(d.image)) >= d.pending.Size {
				if crc.Direct(d.image) == d.pending.CRC {
					d.appData = *d.pending
				}
				d.pending = nil
			}
		} else if d.nextSeq > 1 && req.Sequence == d.nextSeq-1 {
			// acknowledged before, the host missed it
			ack = bld.PacketAck{Sequence: req.Sequence, Result: bld.PacketAccepted}
		} else {
			ack.Sequence = d.nextSeq - 1
		}
		d.lock.Unlock()
	}
	return d.respond(id, &bld.PacketResponse{PacketAck: ack})
}
