// Package monitor polls a GOS target periodically and publishes the
// observations as samples to sinks.
//
// Each poller runs on its own cadence and calls one device operation
// per tick. When the device channel is taken by another poller the
// tick is skipped, so a slow device sheds load instead of queueing.
// The Monitor is added to a framework.Loop: the pollers run with the
// loop and post samples to it, and the Monitor consumes them as a
// controller, fanning them out to all sinks.
package monitor

import (
	"context"
	"time"

	"github.com/golang/glog"
	structpb "github.com/golang/protobuf/ptypes/struct"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/gos-rtos/gostool.go/pkg/device"
	fx "github.com/gos-rtos/gostool.go/pkg/framework"
	"github.com/gos-rtos/gostool.go/pkg/sysmon"
)

// Default poll intervals.
const (
	DefaultLinkInterval       = time.Second
	DefaultCPUInterval        = 500 * time.Millisecond
	DefaultRuntimeInterval    = time.Second
	DefaultTaskListInterval   = 5 * time.Second
	DefaultTaskDetailInterval = time.Second
)

// Source is the part of the device the monitor polls.
// *device.Device implements it.
type Source interface {
	Ping(context.Context) error
	CPULoad(context.Context) (float64, error)
	SystemRuntime(context.Context) (sysmon.RunTime, error)
	TaskList(context.Context) ([]sysmon.TaskData, error)
	TaskVariableDataAll(context.Context) ([]sysmon.TaskVariableData, error)
}

// PollFunc observes the source once.
type PollFunc func(context.Context, Source) (*structpb.Struct, error)

// Poller polls a Source every Interval and posts the results.
type Poller struct {
	Kind     string
	Interval time.Duration
	Poll     PollFunc

	monitor *Monitor
}

// Name implements framework.Named.
func (p *Poller) Name() string {
	return "poll-" + p.Kind
}

// Run implements framework.Runnable. The first poll happens right away.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	for {
		p.tick(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	values, err := p.Poll(ctx, p.monitor.Source)
	switch {
	case err == nil:
	case errors.Cause(err) == device.ErrBusy:
		glog.V(3).Infof("%s: device busy, skipped", p.Kind)
		return
	case ctx.Err() != nil:
		return
	default:
		glog.Warningf("%s: %v", p.Kind, err)
		return
	}
	p.monitor.loop.PostMessage(&Sample{
		Kind:    p.Kind,
		Time:    time.Now(),
		Session: p.monitor.Session,
		Values:  values,
	})
	if p.Kind == KindLink {
		// link state is published without waiting for the next iteration
		p.monitor.loop.TriggerNext()
	}
}

// Config holds the poll intervals. A zero interval disables the poller.
type Config struct {
	LinkInterval       time.Duration
	CPUInterval        time.Duration
	RuntimeInterval    time.Duration
	TaskListInterval   time.Duration
	TaskDetailInterval time.Duration
}

func defaultConfig() Config {
	return Config{
		LinkInterval:       DefaultLinkInterval,
		CPUInterval:        DefaultCPUInterval,
		RuntimeInterval:    DefaultRuntimeInterval,
		TaskListInterval:   DefaultTaskListInterval,
		TaskDetailInterval: DefaultTaskDetailInterval,
	}
}

// Option configures a Monitor.
type Option func(*Config)

// WithInterval sets the interval of the poller of kind.
func WithInterval(kind string, d time.Duration) Option {
	return func(c *Config) {
		switch kind {
		case KindLink:
			c.LinkInterval = d
		case KindCPU:
			c.CPUInterval = d
		case KindRuntime:
			c.RuntimeInterval = d
		case KindTasks:
			c.TaskListInterval = d
		case KindTaskVars:
			c.TaskDetailInterval = d
		}
	}
}

// Monitor owns the pollers of a Source and publishes their samples
// to sinks. It's run by adding it to a framework.Loop.
type Monitor struct {
	Source  Source
	Session string
	Pollers []*Poller

	sinks []Sink
	loop  fx.LoopControl
	up    *bool
}

// New creates a Monitor with a new session id.
func New(src Source, opts ...Option) *Monitor {
	conf := defaultConfig()
	for _, opt := range opts {
		opt(&conf)
	}
	m := &Monitor{
		Source:  src,
		Session: uuid.New().String(),
	}
	m.addPoller(KindLink, conf.LinkInterval, m.pollLink)
	m.addPoller(KindCPU, conf.CPUInterval, pollCPU)
	m.addPoller(KindRuntime, conf.RuntimeInterval, pollRuntime)
	m.addPoller(KindTasks, conf.TaskListInterval, pollTasks)
	m.addPoller(KindTaskVars, conf.TaskDetailInterval, pollTaskVars)
	return m
}

func (m *Monitor) addPoller(kind string, interval time.Duration, poll PollFunc) {
	if interval > 0 {
		m.Pollers = append(m.Pollers, &Poller{Kind: kind, Interval: interval, Poll: poll, monitor: m})
	}
}

// AddSinks adds sinks receiving all samples.
func (m *Monitor) AddSinks(sinks ...Sink) *Monitor {
	m.sinks = append(m.sinks, sinks...)
	return m
}

// Control implements framework.Controller, publishing the samples of
// the iteration to all sinks.
func (m *Monitor) Control(cc fx.ControlContext) error {
	var errs fx.AggregatedError
	for _, kind := range Kinds {
		for _, msg := range cc.TakeMessages(kind) {
			sample, ok := msg.(*Sample)
			if !ok {
				continue
			}
			for _, sink := range m.sinks {
				errs.Add(errors.Wrapf(sink.Publish(sample), "publish %s", kind))
			}
		}
	}
	return errs.Aggregate()
}

// AddToLoop implements framework.LoopAdder. The Monitor becomes a
// controller of l and the pollers are run with it.
func (m *Monitor) AddToLoop(l *fx.Loop) {
	glog.Infof("monitor session %s", m.Session)
	m.loop = l
	l.AddController(m)
	for _, p := range m.Pollers {
		l.AddRunnable(p)
	}
}

func (m *Monitor) pollLink(ctx context.Context, src Source) (*structpb.Struct, error) {
	err := src.Ping(ctx)
	if errors.Cause(err) == device.ErrBusy {
		return nil, err
	}
	up := err == nil
	if m.up == nil || *m.up != up {
		if up {
			glog.Info("link up")
		} else {
			glog.Warningf("link down: %v", err)
		}
		m.up = &up
	}
	return linkValues(err), nil
}

func pollCPU(ctx context.Context, src Source) (*structpb.Struct, error) {
	load, err := src.CPULoad(ctx)
	if err != nil {
		return nil, err
	}
	return cpuValues(load), nil
}

func pollRuntime(ctx context.Context, src Source) (*structpb.Struct, error) {
	rt, err := src.SystemRuntime(ctx)
	if err != nil {
		return nil, err
	}
	return runtimeValues(rt), nil
}

func pollTasks(ctx context.Context, src Source) (*structpb.Struct, error) {
	tasks, err := src.TaskList(ctx)
	if err != nil {
		return nil, err
	}
	return tasksValues(tasks), nil
}

func pollTaskVars(ctx context.Context, src Source) (*structpb.Struct, error) {
	records, err := src.TaskVariableDataAll(ctx)
	if err != nil {
		return nil, err
	}
	return taskVarsValues(records), nil
}
