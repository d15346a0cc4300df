// Package env provides the common configuration of the tools from
// flags and GOS_* environment variables.
package env

import (
	"flag"
	"os"
	"strconv"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/gos-rtos/gostool.go/pkg/bld"
	"github.com/gos-rtos/gostool.go/pkg/device"
	"github.com/gos-rtos/gostool.go/pkg/gcp"
	"github.com/gos-rtos/gostool.go/pkg/gcp/transport"
)

// MachineClient is the client name replaced by a machine derived one.
const MachineClient = "machine"

// DefaultBaud is the baud rate of GOS targets.
const DefaultBaud = 115200

// Config provides common options to open a device.
type Config struct {
	// Port is the serial port name, e.g. /dev/ttyUSB0, COM3 or sim://demo.
	Port string
	Baud int

	Timeout        time.Duration
	LongTimeout    time.Duration
	AcquireTimeout time.Duration

	// ClientName identifies the tool to the bootloader.
	ClientName string

	// MQTTURL specifies the MQTT broker for samples,
	// e.g. mqtt://host:port/topic-prefix.
	MQTTURL string
	// HTTPAddr is the listen address of the sample server.
	HTTPAddr string
}

var defaultConfig = Config{
	Baud:           DefaultBaud,
	Timeout:        gcp.DefaultTimeout,
	LongTimeout:    gcp.LongTimeout,
	AcquireTimeout: device.DefaultAcquireTimeout,
	ClientName:     bld.DefaultClientName,
}

func init() {
	if val := os.Getenv("GOS_PORT"); val != "" {
		defaultConfig.Port = val
	}
	if val := os.Getenv("GOS_BAUD"); val != "" {
		if baud, err := strconv.Atoi(val); err == nil {
			defaultConfig.Baud = baud
		}
	}
	if val := os.Getenv("GOS_CLIENT"); val != "" {
		defaultConfig.ClientName = val
	}
	if val := os.Getenv("GOS_MQTT_URL"); val != "" {
		defaultConfig.MQTTURL = val
	}
	if val := os.Getenv("GOS_HTTP_ADDR"); val != "" {
		defaultConfig.HTTPAddr = val
	}
}

// SetupFlags sets up command line flags for the device.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Port, "port", defaultConfig.Port, "Serial port of the device.")
	flag.IntVar(&defaultConfig.Baud, "baud", defaultConfig.Baud, "Baud rate.")
	flag.DurationVar(&defaultConfig.Timeout, "timeout", defaultConfig.Timeout, "Response timeout.")
	flag.DurationVar(&defaultConfig.LongTimeout, "long-timeout", defaultConfig.LongTimeout, "Response timeout of slow operations.")
	flag.DurationVar(&defaultConfig.AcquireTimeout, "acquire-timeout", defaultConfig.AcquireTimeout, "Wait for a busy device.")
	flag.StringVar(&defaultConfig.ClientName, "client", defaultConfig.ClientName, `Bootloader client name, "machine" derives one from the machine ID.`)
}

// SetupPublishFlags sets up command line flags for sample publishing.
func SetupPublishFlags() {
	flag.StringVar(&defaultConfig.MQTTURL, "mqtt", defaultConfig.MQTTURL, "MQTT broker URL.")
	flag.StringVar(&defaultConfig.HTTPAddr, "http", defaultConfig.HTTPAddr, "Listen address of the sample server.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Client returns the bootloader client name.
func (c *Config) Client() string {
	if c.ClientName == MachineClient {
		return MachineClientName()
	}
	return c.ClientName
}

// DeviceOptions returns the device options of the config.
func (c *Config) DeviceOptions() []device.Option {
	return []device.Option{
		device.WithTimeouts(c.Timeout, c.LongTimeout),
		device.WithAcquireTimeout(c.AcquireTimeout),
	}
}

// OpenDevice opens the configured port.
func (c *Config) OpenDevice(opts ...device.Option) (*device.Device, error) {
	if c.Port == "" {
		return nil, errors.New("port must be specified")
	}
	tr := transport.New()
	if err := tr.Open(c.Port, c.Baud); err != nil {
		return nil, err
	}
	glog.V(1).Infof("opened %s", c.Port)
	return device.New(tr, append(c.DeviceOptions(), opts...)...), nil
}

// MachineClientName derives a client name from the machine ID which
// fits the bootloader client name field.
func MachineClientName() string {
	id, err := machineid.ProtectedID("gostool")
	if err != nil {
		glog.Warningf("machine id: %v", err)
		return bld.DefaultClientName
	}
	name := "gostool_" + id
	if limit := bld.ClientNameSize - 1; len(name) > limit {
		name = name[:limit]
	}
	return name
}
