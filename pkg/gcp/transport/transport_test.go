package transport

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type chanPort struct {
	readCh  chan []byte
	writeCh chan []byte
	closed  chan struct{}
	once    sync.Once
	resets  int
}

func newChanPort() *chanPort {
	return &chanPort{
		readCh:  make(chan []byte, 16),
		writeCh: make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (p *chanPort) Read(b []byte) (int, error) {
	select {
	case data := <-p.readCh:
		return copy(b, data), nil
	case <-p.closed:
		return 0, io.EOF
	}
}

func (p *chanPort) Write(b []byte) (int, error) {
	select {
	case p.writeCh <- append([]byte(nil), b...):
		return len(b), nil
	case <-p.closed:
		return 0, io.ErrClosedPipe
	}
}

func (p *chanPort) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *chanPort) ResetInputBuffer() error  { p.resets++; return nil }
func (p *chanPort) ResetOutputBuffer() error { p.resets++; return nil }

func (p *chanPort) isClosed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

func openTest(t *testing.T) (*Transport, *chanPort) {
	port := newChanPort()
	tr := New()
	tr.Opener = func(name string, baud int) (Port, error) {
		require.Equal(t, "test0", name)
		require.Equal(t, 115200, baud)
		return port, nil
	}
	require.NoError(t, tr.Open("test0", 115200))
	require.Equal(t, 2, port.resets)
	return tr, port
}

func TestReceive(t *testing.T) {
	tr, port := openTest(t)
	defer tr.Close()

	port.readCh <- []byte{1, 2, 3}
	port.readCh <- []byte{4, 5}
	data, err := tr.Receive(4, 500*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, data)

	data, err = tr.Receive(1, 500*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, []byte{5}, data)
}

func TestReceiveWaitsForData(t *testing.T) {
	tr, port := openTest(t)
	defer tr.Close()

	go func() {
		time.Sleep(20 * time.Millisecond)
		port.readCh <- []byte{9, 8}
	}()
	data, err := tr.Receive(2, time.Second)
	require.NoError(t, err)
	require.Equal(t, []byte{9, 8}, data)
}

func TestReceiveTimeout(t *testing.T) {
	tr, port := openTest(t)
	defer tr.Close()

	port.readCh <- []byte{1, 2}
	require.Eventually(t, func() bool { return tr.Buffered() == 2 }, time.Second, time.Millisecond)

	timeout := 50 * time.Millisecond
	start := time.Now()
	data, err := tr.Receive(3, timeout)
	elapsed := time.Since(start)
	require.Equal(t, ErrTimeout, err)
	require.Nil(t, data)
	require.True(t, elapsed >= timeout, "returned after %v", elapsed)
	require.True(t, elapsed < timeout+200*time.Millisecond, "returned after %v", elapsed)
	require.Equal(t, 2, tr.Buffered())
}

func TestClearInbound(t *testing.T) {
	tr, port := openTest(t)
	defer tr.Close()

	port.readCh <- []byte{1, 2, 3}
	require.Eventually(t, func() bool { return tr.Buffered() == 3 }, time.Second, time.Millisecond)
	tr.ClearInbound()
	require.Zero(t, tr.Buffered())
	_, err := tr.Receive(1, 10*time.Millisecond)
	require.Equal(t, ErrTimeout, err)
}

func TestSend(t *testing.T) {
	tr, port := openTest(t)
	defer tr.Close()

	require.NoError(t, tr.Send([]byte{0xaa, 0xbb}))
	require.Equal(t, []byte{0xaa, 0xbb}, <-port.writeCh)
}

// stuckPort blocks writes until closed.
type stuckPort struct {
	*chanPort
	returned chan struct{}
}

func (p *stuckPort) Write(b []byte) (int, error) {
	<-p.closed
	close(p.returned)
	return 0, io.ErrClosedPipe
}

func TestSendTimeout(t *testing.T) {
	port := &stuckPort{chanPort: newChanPort(), returned: make(chan struct{})}
	tr := NewWithPort(port)
	defer tr.Close()
	tr.WriteTimeout = 20 * time.Millisecond
	require.Equal(t, ErrWriteTimeout, tr.Send([]byte{1}))

	require.True(t, port.isClosed())
	require.False(t, tr.IsOpen())
	select {
	case <-port.returned:
	default:
		t.Fatal("blocked write not returned")
	}
	require.Equal(t, ErrNotOpen, tr.Send([]byte{1}))
}

func TestNotOpen(t *testing.T) {
	tr := New()
	require.False(t, tr.IsOpen())
	require.Equal(t, ErrNotOpen, tr.Send([]byte{1}))
	_, err := tr.Receive(1, 10*time.Millisecond)
	require.Equal(t, ErrNotOpen, err)
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
}

func TestCloseWakesReceiver(t *testing.T) {
	tr, _ := openTest(t)
	errCh := make(chan error, 1)
	go func() {
		_, err := tr.Receive(1, 5*time.Second)
		errCh <- err
	}()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, tr.Close())
	select {
	case err := <-errCh:
		require.Equal(t, ErrNotOpen, err)
	case <-time.After(time.Second):
		t.Fatal("receiver not woken by Close")
	}
}

func TestReopenClosesPrevious(t *testing.T) {
	tr, first := openTest(t)
	second := newChanPort()
	tr.Opener = func(string, int) (Port, error) { return second, nil }
	require.NoError(t, tr.Open("test1", 9600))
	require.True(t, first.isClosed())
	require.False(t, second.isClosed())
	require.NoError(t, tr.Close())
	require.True(t, second.isClosed())
}

func TestOpenError(t *testing.T) {
	tr := New()
	tr.Opener = func(string, int) (Port, error) { return nil, errors.New("busy") }
	require.EqualError(t, tr.Open("x", 1), "busy")
	require.False(t, tr.IsOpen())
}

func TestSchemes(t *testing.T) {
	port := newChanPort()
	RegisterScheme("test", func(name string, baud int) (Port, error) {
		require.Equal(t, "test://dev", name)
		return port, nil
	})
	p, err := OpenPort("test://dev", 115200)
	require.NoError(t, err)
	require.Equal(t, port, p)

	_, err = OpenPort("nope://dev", 115200)
	require.Error(t, err)
}
