package device

import (
	"context"
	"io"
	"time"

	"github.com/golang/glog"

	"github.com/gos-rtos/gostool.go/pkg/gcp"
)

// Defaults.
const (
	DefaultAcquireTimeout = time.Second
	DefaultSettleDelay    = 10 * time.Millisecond
	DefaultStreamTimeout  = 500 * time.Millisecond
	DefaultMaxTasks       = 256
	DefaultBootDelay      = time.Second
)

// Config holds the device configuration.
type Config struct {
	// AcquireTimeout bounds the wait for the channel.
	AcquireTimeout time.Duration
	// SettleDelay is waited before the channel is released.
	SettleDelay time.Duration
	// Timeout is the response timeout of quick queries.
	Timeout time.Duration
	// LongTimeout is the response timeout of slow operations.
	LongTimeout time.Duration
	// StreamTimeout is the timeout of each response of a record stream.
	StreamTimeout time.Duration
	// MaxTasks bounds record streams.
	MaxTasks int
	// BootDelay is waited after the switch to boot mode.
	BootDelay time.Duration
}

func defaultConfig() Config {
	return Config{
		AcquireTimeout: DefaultAcquireTimeout,
		SettleDelay:    DefaultSettleDelay,
		Timeout:        gcp.DefaultTimeout,
		LongTimeout:    gcp.LongTimeout,
		StreamTimeout:  DefaultStreamTimeout,
		MaxTasks:       DefaultMaxTasks,
		BootDelay:      DefaultBootDelay,
	}
}

// Option configures a Device.
type Option func(*Config)

// WithAcquireTimeout sets Config.AcquireTimeout.
func WithAcquireTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.AcquireTimeout = d
	}
}

// WithSettleDelay sets Config.SettleDelay.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Config) {
		c.SettleDelay = d
	}
}

// WithTimeouts sets Config.Timeout and Config.LongTimeout.
// Zero values keep the defaults.
func WithTimeouts(timeout, long time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.Timeout = timeout
		}
		if long > 0 {
			c.LongTimeout = long
		}
	}
}

// WithStreamTimeout sets Config.StreamTimeout.
func WithStreamTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.StreamTimeout = d
	}
}

// WithMaxTasks sets Config.MaxTasks.
func WithMaxTasks(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxTasks = n
		}
	}
}

// WithBootDelay sets Config.BootDelay.
func WithBootDelay(d time.Duration) Option {
	return func(c *Config) {
		c.BootDelay = d
	}
}

// Device is the operations facade of a GOS target. It's safe for
// concurrent use.
type Device struct {
	Config Config

	ch   *gcp.Channel
	lock chan struct{}
}

// New creates a Device on link with protocol defaults.
func New(link gcp.Link, opts ...Option) *Device {
	return NewWithChannel(gcp.NewChannel(link), opts...)
}

// NewWithChannel creates a Device on a configured channel.
func NewWithChannel(ch *gcp.Channel, opts ...Option) *Device {
	d := &Device{
		Config: defaultConfig(),
		ch:     ch,
		lock:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(&d.Config)
	}
	return d
}

// Channel returns the underlying channel. It must only be used
// when no operation is in progress.
func (d *Device) Channel() *gcp.Channel {
	return d.ch
}

// Close closes the link if it's an io.Closer.
func (d *Device) Close() error {
	if closer, ok := d.ch.Link.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (d *Device) acquire(ctx context.Context) error {
	select {
	case d.lock <- struct{}{}:
		return nil
	default:
	}
	if d.Config.AcquireTimeout <= 0 {
		return ErrBusy
	}
	timer := time.NewTimer(d.Config.AcquireTimeout)
	defer timer.Stop()
	select {
	case d.lock <- struct{}{}:
		return nil
	case <-timer.C:
		glog.V(3).Info("channel acquire timeout")
		return ErrBusy
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Device) release() {
	if d.Config.SettleDelay > 0 {
		time.Sleep(d.Config.SettleDelay)
	}
	<-d.lock
}

// transact runs fn holding the channel.
func (d *Device) transact(ctx context.Context, fn func(*gcp.Channel) error) error {
	if err := d.acquire(ctx); err != nil {
		return err
	}
	defer d.release()
	return fn(d.ch)
}
