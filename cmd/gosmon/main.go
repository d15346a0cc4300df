package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"time"

	"github.com/golang/glog"

	"github.com/gos-rtos/gostool.go/pkg/env"
	fx "github.com/gos-rtos/gostool.go/pkg/framework"
	"github.com/gos-rtos/gostool.go/pkg/monitor"
	"github.com/gos-rtos/gostool.go/pkg/mqtt"
	"github.com/gos-rtos/gostool.go/pkg/sim"
)

const connectTimeout = 5 * time.Second

var intervals = map[string]*time.Duration{
	monitor.KindLink:     durationOf(monitor.DefaultLinkInterval),
	monitor.KindCPU:      durationOf(monitor.DefaultCPUInterval),
	monitor.KindRuntime:  durationOf(monitor.DefaultRuntimeInterval),
	monitor.KindTasks:    durationOf(monitor.DefaultTaskListInterval),
	monitor.KindTaskVars: durationOf(monitor.DefaultTaskDetailInterval),
}

var (
	quiet    bool
	duration time.Duration
)

func durationOf(d time.Duration) *time.Duration {
	return &d
}

func init() {
	env.SetupFlags()
	env.SetupPublishFlags()
	sim.Register()
	for kind, d := range intervals {
		flag.DurationVar(d, "poll-"+kind, *d, "Poll interval of "+kind+", 0 disables.")
	}
	flag.BoolVar(&quiet, "q", false, "Don't log samples.")
	flag.DurationVar(&duration, "for", 0, "Stop after the duration, 0 runs until interrupted.")
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf := env.NewConfig()
	dev, err := conf.OpenDevice()
	if err != nil {
		glog.Exitf("open %s: %v", conf.Port, err)
	}
	defer dev.Close()

	var opts []monitor.Option
	for kind, d := range intervals {
		opts = append(opts, monitor.WithInterval(kind, *d))
	}
	mon := monitor.New(dev, opts...)
	if !quiet {
		mon.AddSinks(monitor.LogSink{})
	}

	runner := fx.NewRunner().HandleSignals()
	if conf.MQTTURL != "" {
		q, err := mqtt.NewQueueFromURL(conf.MQTTURL)
		if err != nil {
			glog.Exit(err)
		}
		if err := q.Connect(connectTimeout); err != nil {
			glog.Exitf("connect %s: %v", conf.MQTTURL, err)
		}
		defer q.Close()
		mon.AddSinks(monitor.NewMQTTSink(q))
	}
	if conf.HTTPAddr != "" {
		hub := monitor.NewWSHub()
		mon.AddSinks(hub)
		runner.Go(&monitor.Server{Addr: conf.HTTPAddr, Hub: hub})
	}

	if duration > 0 {
		time.AfterFunc(duration, runner.Stop)
	}
	if err := runner.Go(fx.NamedRun("monitor", fx.NewLoop().Add(mon))).Wait(); err != nil {
		glog.Error(err)
	}
}
