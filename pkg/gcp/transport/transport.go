// Package transport provides the byte-level duplex channel under GCP.
package transport

import (
	"io"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"go.bug.st/serial"
)

var (
	// ErrNotOpen indicates the transport has no open port.
	ErrNotOpen = errors.New("transport not open")
	// ErrTimeout indicates not enough bytes arrived in time.
	ErrTimeout = errors.New("receive timeout")
	// ErrWriteTimeout indicates the port didn't accept the bytes in time.
	ErrWriteTimeout = errors.New("write timeout")
)

// DefaultWriteTimeout bounds a single Send.
const DefaultWriteTimeout = time.Second

// Port is the underlying byte channel, e.g. serial.Port.
type Port interface {
	io.ReadWriteCloser
	ResetInputBuffer() error
	ResetOutputBuffer() error
}

// Opener opens a named port.
type Opener func(name string, baud int) (Port, error)

var (
	schemes     = make(map[string]Opener)
	schemesLock sync.RWMutex
)

// RegisterScheme serves port names like "scheme://..." with opener.
func RegisterScheme(scheme string, opener Opener) {
	schemesLock.Lock()
	schemes[scheme] = opener
	schemesLock.Unlock()
}

// OpenPort opens a port by name. Names without a registered scheme
// are opened as serial ports (8N1).
func OpenPort(name string, baud int) (Port, error) {
	if pos := strings.Index(name, "://"); pos > 0 {
		schemesLock.RLock()
		opener := schemes[name[:pos]]
		schemesLock.RUnlock()
		if opener == nil {
			return nil, errors.Errorf("unknown port scheme %q", name[:pos])
		}
		return opener(name, baud)
	}
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", name)
	}
	return port, nil
}

// ListPorts enumerates serial ports visible to the host.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}

// Transport buffers inbound bytes in the background and serves
// fixed-size receives with timeout.
type Transport struct {
	Opener       Opener
	WriteTimeout time.Duration

	lock    sync.Mutex
	port    Port
	buf     []byte
	arrived chan struct{}
}

// New creates a Transport using OpenPort.
func New() *Transport {
	return &Transport{
		Opener:       OpenPort,
		WriteTimeout: DefaultWriteTimeout,
	}
}

// NewWithPort creates a Transport over an already opened port.
func NewWithPort(port Port) *Transport {
	t := New()
	t.attach(port)
	return t
}

// Open closes any previous port and opens the named one.
func (t *Transport) Open(name string, baud int) error {
	t.Close()
	opener := t.Opener
	if opener == nil {
		opener = OpenPort
	}
	port, err := opener(name, baud)
	if err != nil {
		return err
	}
	if err = port.ResetInputBuffer(); err == nil {
		err = port.ResetOutputBuffer()
	}
	if err != nil {
		port.Close()
		return errors.Wrapf(err, "reset %s", name)
	}
	t.attach(port)
	glog.V(2).Infof("opened %s at %d baud", name, baud)
	return nil
}

func (t *Transport) attach(port Port) {
	t.lock.Lock()
	t.port = port
	t.buf = t.buf[:0]
	t.arrived = make(chan struct{})
	t.lock.Unlock()
	go t.readLoop(port)
}

// IsOpen tells if a port is attached.
func (t *Transport) IsOpen() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.port != nil
}

// Close closes the port. It's safe to call when not open.
func (t *Transport) Close() error {
	t.lock.Lock()
	port := t.port
	t.lock.Unlock()
	return t.detach(port)
}

// detach closes port if it's still the attached one.
func (t *Transport) detach(port Port) error {
	t.lock.Lock()
	if port == nil || t.port != port {
		t.lock.Unlock()
		return nil
	}
	t.port = nil
	t.buf = t.buf[:0]
	close(t.arrived)
	t.lock.Unlock()
	return port.Close()
}

// Send writes all bytes to the port.
func (t *Transport) Send(p []byte) error {
	t.lock.Lock()
	port := t.port
	t.lock.Unlock()
	if port == nil {
		return ErrNotOpen
	}
	glog.V(4).Infof("TX % x", p)

	timeout := t.WriteTimeout
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	errCh := make(chan error, 1)
	go func() {
		_, err := port.Write(p)
		errCh <- err
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-errCh:
		return errors.Wrap(err, "write")
	case <-timer.C:
	}
	// The blocked Write returns once the port is closed.
	glog.Warningf("write timeout after %v, closing port", timeout)
	t.detach(port)
	timer.Reset(timeout)
	select {
	case <-errCh:
	case <-timer.C:
		glog.Errorf("write still blocked after close")
	}
	return ErrWriteTimeout
}

// Receive removes exactly size bytes from the front of the inbound buffer.
// The buffer is left untouched on timeout.
func (t *Transport) Receive(size int, timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		t.lock.Lock()
		if t.port == nil {
			t.lock.Unlock()
			return nil, ErrNotOpen
		}
		if len(t.buf) >= size {
			out := make([]byte, size)
			copy(out, t.buf)
			t.buf = append(t.buf[:0], t.buf[size:]...)
			t.lock.Unlock()
			glog.V(4).Infof("RX % x", out)
			return out, nil
		}
		arrived := t.arrived
		t.lock.Unlock()

		select {
		case <-arrived:
		case <-timer.C:
			return nil, ErrTimeout
		}
	}
}

// Buffered returns the number of inbound bytes not yet received.
func (t *Transport) Buffered() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return len(t.buf)
}

// ClearInbound discards buffered inbound bytes.
func (t *Transport) ClearInbound() {
	t.lock.Lock()
	t.buf = t.buf[:0]
	t.lock.Unlock()
}

func (t *Transport) readLoop(port Port) {
	buf := make([]byte, 256)
	for {
		n, err := port.Read(buf)
		if n > 0 {
			t.lock.Lock()
			if t.port != port {
				t.lock.Unlock()
				return
			}
			t.buf = append(t.buf, buf[:n]...)
			close(t.arrived)
			t.arrived = make(chan struct{})
			t.lock.Unlock()
		}
		if err != nil {
			t.lock.Lock()
			current := t.port == port
			t.lock.Unlock()
			if current {
				glog.Warningf("port read stopped: %v", err)
			}
			return
		}
	}
}
