package sim

import (
	"io"
	"sync"

	"github.com/gos-rtos/gostool.go/pkg/gcp/transport"
)

// pipePort is one end of an in-memory full-duplex byte channel.
type pipePort struct {
	r *io.PipeReader
	w *io.PipeWriter

	once    sync.Once
	onClose func()
}

// Pipe creates a connected pair of in-memory ports. Bytes written to
// one end are read from the other. Closing either end ends both
// directions.
func Pipe() (transport.Port, transport.Port) {
	r1, w1 := io.Pipe()
	r2, w2 := io.Pipe()
	return &pipePort{r: r1, w: w2}, &pipePort{r: r2, w: w1}
}

func (p *pipePort) Read(b []byte) (int, error) {
	return p.r.Read(b)
}

func (p *pipePort) Write(b []byte) (int, error) {
	return p.w.Write(b)
}

func (p *pipePort) Close() error {
	p.once.Do(func() {
		p.w.Close()
		p.r.Close()
		if p.onClose != nil {
			p.onClose()
		}
	})
	return nil
}

func (p *pipePort) ResetInputBuffer() error  { return nil }
func (p *pipePort) ResetOutputBuffer() error { return nil }
