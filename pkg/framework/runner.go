package framework

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// ErrForcedExit is returned by Runner.Wait when a second stop
// signal arrives before all runnables stopped.
var ErrForcedExit = errors.New("forced exit")

type namedRunnable struct {
	Runnable
	name string
}

func (r *namedRunnable) Name() string {
	return r.name
}

// NamedRun wraps a Runnable with a name.
func NamedRun(name string, runnable Runnable) Runnable {
	return &namedRunnable{name: name, Runnable: runnable}
}

// Runner runs multiple Runnables and collect errors.
type Runner struct {
	Context context.Context

	cancel  context.CancelFunc
	started int
	errCh   chan error
	exitCh  chan struct{}
}

// NewRunner creates a runner with a default background context.
func NewRunner() *Runner {
	return NewRunnerWith(context.Background())
}

// NewRunnerWith creates a runner with a specified context.
func NewRunnerWith(ctx context.Context) *Runner {
	ctx, cancel := context.WithCancel(ctx)
	return &Runner{
		Context: ctx,
		cancel:  cancel,
		errCh:   make(chan error, 1),
		exitCh:  make(chan struct{}),
	}
}

// HandleSignals stops the runnables on SIGINT or SIGTERM. A second
// signal makes Wait return immediately.
func (r *Runner) HandleSignals() *Runner {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		glog.Info("stop requested")
		r.cancel()
		<-sigCh
		glog.Error("stop requested again, force exit")
		close(r.exitCh)
	}()
	return r
}

// Stop cancels the context of all runnables.
func (r *Runner) Stop() {
	r.cancel()
}

// Go spawns Runnables with the runner's context.
func (r *Runner) Go(runners ...Runnable) *Runner {
	for _, runner := range runners {
		name := strconv.Itoa(r.started)
		if named, ok := runner.(Named); ok {
			name = named.Name()
		}
		r.started++
		go func(runner Runnable, name string) {
			glog.V(4).Infof("Runner[%s] started", name)
			err := runner.Run(r.Context)
			glog.V(4).Infof("Runner[%s] stopped: %v", name, err)
			r.errCh <- errors.Wrap(err, name)
		}(runner, name)
	}
	return r
}

// Wait waits until all Runnables stop and aggregates their errors.
// Cancellation isn't an error. The first failing runnable stops the
// others.
func (r *Runner) Wait() error {
	var errs AggregatedError
	for ; r.started > 0; r.started-- {
		select {
		case <-r.exitCh:
			return ErrForcedExit
		case err := <-r.errCh:
			if err != nil && errors.Cause(err) != context.Canceled {
				errs.Add(err)
				r.cancel()
			}
		}
	}
	r.cancel()
	return errs.Aggregate()
}

// RunWithContextCancel runs fn which doesn't accept a context.
// onCancel is called only when the context is canceled, and must
// make fn return.
func RunWithContextCancel(ctx context.Context, onCancel func(), fn func() error) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- fn()
	}()
	select {
	case <-ctx.Done():
		if onCancel != nil {
			onCancel()
		}
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// RunWithContextCloser runs fn and closes closer either on cancel
// or when fn returns.
func RunWithContextCloser(ctx context.Context, closer io.Closer, fn func() error) error {
	closed := make(chan struct{})
	err := RunWithContextCancel(ctx, func() {
		closer.Close()
		close(closed)
	}, fn)
	select {
	case <-closed:
	default:
		closer.Close()
	}
	return err
}
