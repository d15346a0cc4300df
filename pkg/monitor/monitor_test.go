package monitor

import (
	"context"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/gos-rtos/gostool.go/pkg/device"
	fx "github.com/gos-rtos/gostool.go/pkg/framework"
	"github.com/gos-rtos/gostool.go/pkg/gcp/transport"
	"github.com/gos-rtos/gostool.go/pkg/mqtt"
	"github.com/gos-rtos/gostool.go/pkg/sim"
	"github.com/gos-rtos/gostool.go/pkg/sysmon"
)

func TestSampleEncoding(t *testing.T) {
	s := &Sample{
		Kind:    KindCPU,
		Time:    time.Date(2024, 5, 1, 10, 0, 0, 123000000, time.UTC),
		Session: "s1",
		Values:  cpuValues(12.5),
	}
	b, err := s.Marshal()
	require.NoError(t, err)
	decoded, err := DecodeSample(b)
	require.NoError(t, err)
	assert.Equal(t, s.Kind, decoded.Kind)
	assert.Equal(t, s.Session, decoded.Session)
	assert.True(t, s.Time.Equal(decoded.Time))
	assert.Equal(t, 12.5, decoded.Values.GetFields()["load"].GetNumberValue())

	text, err := s.JSON()
	require.NoError(t, err)
	assert.Contains(t, text, `"kind":"cpu"`)
	decoded, err = DecodeSampleJSON(text)
	require.NoError(t, err)
	assert.Equal(t, 12.5, decoded.Values.GetFields()["load"].GetNumberValue())

	_, err = DecodeSampleJSON(`{"time":"2024-05-01T10:00:00Z"}`)
	assert.Error(t, err)
}

func TestTaskValues(t *testing.T) {
	tasks := sim.DefaultTasks()
	values := tasksValues(tasks).GetFields()["tasks"].GetListValue().GetValues()
	require.Len(t, values, 3)
	task := values[2].GetStructValue().GetFields()
	assert.Equal(t, "app_task", task["name"].GetStringValue())
	assert.Equal(t, 2.0, task["index"].GetNumberValue())
	assert.Equal(t, sysmon.PrivilegedUser.String(), task["privileges"].GetStringValue())
	assert.Equal(t, 0.34, task["cpu_usage"].GetNumberValue())
}

// collector gathers published samples by kind.
type collector struct {
	lock    sync.Mutex
	samples map[string][]*Sample
}

func (c *collector) Publish(s *Sample) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.samples == nil {
		c.samples = make(map[string][]*Sample)
	}
	c.samples[s.Kind] = append(c.samples[s.Kind], s)
	return nil
}

func (c *collector) latest(kind string) *Sample {
	c.lock.Lock()
	defer c.lock.Unlock()
	if samples := c.samples[kind]; len(samples) > 0 {
		return samples[len(samples)-1]
	}
	return nil
}

func runMonitor(t *testing.T, m *Monitor) context.CancelFunc {
	loop := fx.NewLoop().Add(m)
	loop.Interval = 10 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.Equal(t, context.Canceled, <-done)
	})
	return cancel
}

func TestMonitorInLoop(t *testing.T) {
	var sink collector
	m := New(&fakeSource{},
		WithInterval(KindLink, 10*time.Millisecond),
		WithInterval(KindCPU, 0),
		WithInterval(KindRuntime, 0),
		WithInterval(KindTasks, 0),
		WithInterval(KindTaskVars, 0),
	).AddSinks(&sink)
	_, runnable := interface{}(m).(fx.Runnable)
	require.False(t, runnable)

	before := runtime.NumGoroutine()
	loop := fx.NewLoop().Add(m)
	// link samples trigger their own iteration
	loop.Interval = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()
	defer func() {
		cancel()
		require.Equal(t, context.Canceled, <-done)
	}()
	require.Eventually(t, func() bool {
		return sink.latest(KindLink) != nil
	}, 5*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	// the loop and its single poller
	assert.LessOrEqual(t, runtime.NumGoroutine(), before+5)

	sink.lock.Lock()
	defer sink.lock.Unlock()
	for _, s := range sink.samples[KindLink] {
		assert.Equal(t, m.Session, s.Session)
	}
}

func TestMonitorWithSim(t *testing.T) {
	target := sim.NewDevice()
	target.HeaderDelay, target.FrameDelay = 0, 0
	target.SetCPUUsage(4200)
	dev := device.New(transport.NewWithPort(target.Start()), device.WithSettleDelay(0))
	dev.Channel().HeaderDelay, dev.Channel().FrameDelay = 0, 0
	defer dev.Close()

	var sink collector
	m := New(dev,
		WithInterval(KindLink, 20*time.Millisecond),
		WithInterval(KindCPU, 20*time.Millisecond),
		WithInterval(KindRuntime, 20*time.Millisecond),
		WithInterval(KindTasks, 20*time.Millisecond),
		WithInterval(KindTaskVars, 20*time.Millisecond),
	).AddSinks(&sink)
	require.Len(t, m.Pollers, 5)
	runMonitor(t, m)

	require.Eventually(t, func() bool {
		for _, kind := range []string{KindLink, KindCPU, KindRuntime, KindTasks, KindTaskVars} {
			if sink.latest(kind) == nil {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)

	assert.True(t, sink.latest(KindLink).Values.GetFields()["up"].GetBoolValue())
	assert.Equal(t, 42.0, sink.latest(KindCPU).Values.GetFields()["load"].GetNumberValue())
	assert.Len(t, sink.latest(KindTasks).Values.GetFields()["tasks"].GetListValue().GetValues(), 3)
	assert.Len(t, sink.latest(KindTaskVars).Values.GetFields()["tasks"].GetListValue().GetValues(), 3)
	assert.Equal(t, m.Session, sink.latest(KindCPU).Session)
}

type fakeSource struct {
	pingErr error
	cpuErr  error
}

func (s *fakeSource) Ping(context.Context) error { return s.pingErr }

func (s *fakeSource) CPULoad(context.Context) (float64, error) {
	if s.cpuErr != nil {
		return -1, s.cpuErr
	}
	return 1, nil
}

func (s *fakeSource) SystemRuntime(context.Context) (sysmon.RunTime, error) {
	return sysmon.RunTime{Seconds: 1}, nil
}

func (s *fakeSource) TaskList(context.Context) ([]sysmon.TaskData, error) {
	return nil, errors.New("no tasks")
}

func (s *fakeSource) TaskVariableDataAll(context.Context) ([]sysmon.TaskVariableData, error) {
	return nil, nil
}

func TestPollerErrors(t *testing.T) {
	src := &fakeSource{
		pingErr: errors.Wrap(transport.ErrTimeout, "receive"),
		cpuErr:  device.ErrBusy,
	}
	var sink collector
	m := New(src,
		WithInterval(KindLink, 10*time.Millisecond),
		WithInterval(KindCPU, 10*time.Millisecond),
		WithInterval(KindRuntime, 10*time.Millisecond),
		WithInterval(KindTasks, 10*time.Millisecond),
		WithInterval(KindTaskVars, 0),
	).AddSinks(&sink)
	require.Len(t, m.Pollers, 4)
	runMonitor(t, m)

	require.Eventually(t, func() bool {
		return sink.latest(KindLink) != nil && sink.latest(KindRuntime) != nil
	}, 5*time.Second, 10*time.Millisecond)
	link := sink.latest(KindLink).Values.GetFields()
	assert.False(t, link["up"].GetBoolValue())
	assert.Contains(t, link["error"].GetStringValue(), "receive timeout")
	// busy and failed polls publish nothing
	assert.Nil(t, sink.latest(KindCPU))
	assert.Nil(t, sink.latest(KindTasks))
}

func TestWSHub(t *testing.T) {
	hub := NewWSHub()
	srv := httptest.NewServer((&Server{Hub: hub}).Handler())
	defer srv.Close()

	require.NoError(t, hub.Publish(&Sample{Kind: KindCPU, Time: time.Now(), Values: cpuValues(3)}))

	conn, err := websocket.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", "", "http://localhost/")
	require.NoError(t, err)
	defer conn.Close()

	receive := func() *Sample {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var text string
		require.NoError(t, websocket.Message.Receive(conn, &text))
		s, err := DecodeSampleJSON(text)
		require.NoError(t, err)
		return s
	}
	s := receive()
	assert.Equal(t, KindCPU, s.Kind)
	assert.Equal(t, 3.0, s.Values.GetFields()["load"].GetNumberValue())
	assert.Equal(t, 1, hub.Clients())

	require.NoError(t, hub.Publish(&Sample{Kind: KindLink, Time: time.Now(), Values: linkValues(nil)}))
	s = receive()
	assert.Equal(t, KindLink, s.Kind)
	assert.Len(t, hub.Latest(), 2)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 5*time.Second, 10*time.Millisecond)
}

type fakeClient struct {
	paho.Client
	lock     sync.Mutex
	payloads map[string][]byte
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.payloads == nil {
		c.payloads = make(map[string][]byte)
	}
	c.payloads[topic] = payload.([]byte)
	return &paho.DummyToken{}
}

func TestMQTTSink(t *testing.T) {
	client := &fakeClient{}
	sink := NewMQTTSink(&mqtt.Queue{Client: client, TopicPrefix: "gos/"})
	sink.QoS = 1
	require.NoError(t, sink.Publish(&Sample{Kind: KindRuntime, Time: time.Now(), Session: "s", Values: runtimeValues(sysmon.RunTime{Minutes: 2})}))

	s, err := DecodeSample(client.payloads["gos/runtime"])
	require.NoError(t, err)
	assert.Equal(t, "s", s.Session)
	assert.Equal(t, 120.0, s.Values.GetFields()["seconds"].GetNumberValue())
}
