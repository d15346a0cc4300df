package monitor

import (
	"time"

	"github.com/golang/glog"

	"github.com/gos-rtos/gostool.go/pkg/mqtt"
)

// Sink receives published samples. Publish is called from the loop
// goroutine and should not block for long.
type Sink interface {
	Publish(*Sample) error
}

// SinkFunc is the func form of Sink.
type SinkFunc func(*Sample) error

// Publish implements Sink.
func (f SinkFunc) Publish(s *Sample) error {
	return f(s)
}

// LogSink logs samples as JSON.
type LogSink struct{}

// Publish implements Sink.
func (LogSink) Publish(s *Sample) error {
	text, err := s.JSON()
	if err != nil {
		return err
	}
	glog.Infof("%s %s", s.Kind, text)
	return nil
}

// DefaultPublishTimeout bounds the broker acknowledgement of a sample.
const DefaultPublishTimeout = time.Second

// MQTTSink publishes samples in protobuf wire format to the topic
// named by the sample kind. Samples are retained so late subscribers
// see the latest state.
type MQTTSink struct {
	Queue   *mqtt.Queue
	QoS     byte
	Timeout time.Duration
}

// NewMQTTSink creates a MQTTSink.
func NewMQTTSink(q *mqtt.Queue) *MQTTSink {
	return &MQTTSink{Queue: q, Timeout: DefaultPublishTimeout}
}

// Publish implements Sink.
func (m *MQTTSink) Publish(s *Sample) error {
	payload, err := s.Marshal()
	if err != nil {
		return err
	}
	token := m.Queue.Pub(s.Kind, payload, m.QoS, true)
	if m.QoS == 0 {
		return nil
	}
	if !token.WaitTimeout(m.Timeout) {
		return mqtt.ErrTimeout
	}
	return token.Error()
}
