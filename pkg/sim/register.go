package sim

import (
	"sync"

	"github.com/gos-rtos/gostool.go/pkg/gcp/transport"
)

// Scheme is the port name scheme of simulated targets.
const Scheme = "sim"

var (
	devices     = make(map[string]*Device)
	devicesLock sync.Mutex
)

// Register serves port names like "sim://name" with simulated targets.
// Each name gets its own target which keeps its state across opens.
func Register() {
	transport.RegisterScheme(Scheme, func(name string, baud int) (transport.Port, error) {
		return Lookup(name).Start(), nil
	})
}

// Lookup returns the target serving the port name, creating it if needed.
func Lookup(name string) *Device {
	devicesLock.Lock()
	defer devicesLock.Unlock()
	d := devices[name]
	if d == nil {
		d = NewDevice()
		devices[name] = d
	}
	return d
}
