package monitor

import (
	"time"

	"github.com/golang/protobuf/jsonpb"
	"github.com/golang/protobuf/proto"
	structpb "github.com/golang/protobuf/ptypes/struct"
	"github.com/pkg/errors"

	"github.com/gos-rtos/gostool.go/pkg/sysmon"
)

// Sample kinds.
const (
	KindLink     = "link"
	KindCPU      = "cpu"
	KindRuntime  = "runtime"
	KindTasks    = "tasks"
	KindTaskVars = "taskvars"
)

// Kinds lists all sample kinds.
var Kinds = []string{KindLink, KindCPU, KindRuntime, KindTasks, KindTaskVars}

// Sample is a single observation of the device.
type Sample struct {
	Kind    string
	Time    time.Time
	Session string
	Values  *structpb.Struct
}

// Topic implements framework.Message.
func (s *Sample) Topic() string {
	return s.Kind
}

// Proto encodes the sample with its metadata.
func (s *Sample) Proto() *structpb.Struct {
	values := s.Values
	if values == nil {
		values = &structpb.Struct{}
	}
	return Object(map[string]*structpb.Value{
		"kind":    String(s.Kind),
		"time":    String(s.Time.UTC().Format(time.RFC3339Nano)),
		"session": String(s.Session),
		"values":  {Kind: &structpb.Value_StructValue{StructValue: values}},
	}).GetStructValue()
}

// Marshal encodes the sample in protobuf wire format.
func (s *Sample) Marshal() ([]byte, error) {
	return proto.Marshal(s.Proto())
}

// JSON encodes the sample as JSON.
func (s *Sample) JSON() (string, error) {
	return (&jsonpb.Marshaler{}).MarshalToString(s.Proto())
}

// DecodeSample decodes a sample encoded by Marshal.
func DecodeSample(b []byte) (*Sample, error) {
	var pb structpb.Struct
	if err := proto.Unmarshal(b, &pb); err != nil {
		return nil, err
	}
	return sampleFrom(&pb)
}

// DecodeSampleJSON decodes a sample encoded by JSON.
func DecodeSampleJSON(s string) (*Sample, error) {
	var pb structpb.Struct
	if err := jsonpb.UnmarshalString(s, &pb); err != nil {
		return nil, err
	}
	return sampleFrom(&pb)
}

func sampleFrom(pb *structpb.Struct) (*Sample, error) {
	f := pb.GetFields()
	s := &Sample{
		Kind:    f["kind"].GetStringValue(),
		Session: f["session"].GetStringValue(),
		Values:  f["values"].GetStructValue(),
	}
	if s.Kind == "" {
		return nil, errors.New("sample without kind")
	}
	t, err := time.Parse(time.RFC3339Nano, f["time"].GetStringValue())
	if err != nil {
		return nil, errors.Wrap(err, "sample time")
	}
	s.Time = t
	return s, nil
}

// Number creates a number value.
func Number(v float64) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_NumberValue{NumberValue: v}}
}

// String creates a string value.
func String(v string) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_StringValue{StringValue: v}}
}

// Bool creates a bool value.
func Bool(v bool) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_BoolValue{BoolValue: v}}
}

// List creates a list value.
func List(values ...*structpb.Value) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_ListValue{ListValue: &structpb.ListValue{Values: values}}}
}

// Object creates a struct value.
func Object(fields map[string]*structpb.Value) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_StructValue{StructValue: &structpb.Struct{Fields: fields}}}
}

func linkValues(err error) *structpb.Struct {
	fields := map[string]*structpb.Value{"up": Bool(err == nil)}
	if err != nil {
		fields["error"] = String(err.Error())
	}
	return &structpb.Struct{Fields: fields}
}

func cpuValues(load float64) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{"load": Number(load)}}
}

func runtimeValues(rt sysmon.RunTime) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"runtime": String(rt.String()),
		"seconds": Number(rt.Duration().Seconds()),
	}}
}

func taskValue(index int, task *sysmon.TaskData) *structpb.Value {
	return Object(map[string]*structpb.Value{
		"index":             Number(float64(index)),
		"id":                Number(float64(task.ID)),
		"name":              String(task.TaskName()),
		"state":             String(task.State.String()),
		"priority":          Number(float64(task.Priority)),
		"original_priority": Number(float64(task.OriginalPriority)),
		"privileges":        String(task.Privileges.String()),
		"cs_counter":        Number(float64(task.CSCounter)),
		"stack_size":        Number(float64(task.StackSize)),
		"stack_max_usage":   Number(float64(task.StackMaxUsage)),
		"runtime":           String(task.RunTime.TaskString()),
		"cpu_usage":         Number(sysmon.Percent(task.CPUUsage)),
		"cpu_max":           Number(sysmon.Percent(task.CPUMax)),
		"cpu_limit":         Number(sysmon.Percent(task.CPULimit)),
	})
}

func tasksValues(tasks []sysmon.TaskData) *structpb.Struct {
	values := make([]*structpb.Value, len(tasks))
	for n := range tasks {
		values[n] = taskValue(n, &tasks[n])
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{"tasks": List(values...)}}
}

func taskVarsValues(records []sysmon.TaskVariableData) *structpb.Struct {
	values := make([]*structpb.Value, len(records))
	for n, r := range records {
		values[n] = Object(map[string]*structpb.Value{
			"index":           Number(float64(n)),
			"state":           String(r.State.String()),
			"priority":        Number(float64(r.Priority)),
			"cs_counter":      Number(float64(r.CSCounter)),
			"runtime":         String(r.RunTime.TaskString()),
			"cpu_usage":       Number(sysmon.Percent(r.CPUUsage)),
			"cpu_max":         Number(sysmon.Percent(r.CPUMax)),
			"stack_max_usage": Number(float64(r.StackMaxUsage)),
		})
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{"tasks": List(values...)}}
}
