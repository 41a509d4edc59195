package framework

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/golang/glog"
)

// ErrForcedExit is returned by Wait after a second stop signal.
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

// RunFunc is the func form of Runnable.
type RunFunc func(context.Context) error

// Run implements Runnable.
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}

func runnableName(r Runnable, index int) string {
	if named, ok := r.(Named); ok {
		return named.Name()
	}
	return strconv.Itoa(index)
}

// Runner runs Runnables in their own goroutines sharing one context.
// With FailFast, the first failure stops all others, e.g. a link going
// away ends the session built on it.
type Runner struct {
	Context  context.Context
	Runners  []Runnable
	FailFast bool

	cancel   context.CancelFunc
	errCh    chan error
	exitCh   chan struct{}
	stopOnce sync.Once
}

// NewRunner creates a runner with a default background context.
func NewRunner() *Runner {
	return NewRunnerWith(context.Background())
}

// NewRunnerWith creates a runner derived from ctx.
func NewRunnerWith(ctx context.Context) *Runner {
	r := &Runner{
		errCh:  make(chan error, 1),
		exitCh: make(chan struct{}),
	}
	r.Context, r.cancel = context.WithCancel(ctx)
	return r
}

// WithFailFast sets FailFast.
func (r *Runner) WithFailFast(en bool) *Runner {
	r.FailFast = en
	return r
}

// Stop cancels the context of all Runnables.
func (r *Runner) Stop() {
	r.cancel()
}

// HandleSignals stops on Ctrl-C or SIGTERM. A second signal makes Wait
// return ErrForcedExit without waiting.
func (r *Runner) HandleSignals() *Runner {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		glog.Info("stop requested")
		r.Stop()
		<-sigCh
		glog.Error("stop requested again, force exit")
		r.stopOnce.Do(func() { close(r.exitCh) })
	}()
	return r
}

// Go spawns Runnables with the runner context.
func (r *Runner) Go(runners ...Runnable) *Runner {
	for _, runner := range runners {
		name := runnableName(runner, len(r.Runners))
		r.Runners = append(r.Runners, runner)
		go r.run(runner, name)
	}
	return r
}

func (r *Runner) run(runner Runnable, name string) {
	glog.V(4).Infof("Runner[%s] started", name)
	err := runner.Run(r.Context)
	glog.V(4).Infof("Runner[%s] stopped: %v", name, err)
	if err != nil && !errors.Is(err, context.Canceled) {
		if r.FailFast {
			glog.Errorf("%s failed, stopping: %v", name, err)
			r.Stop()
		}
		err = &RunError{Name: name, Err: err}
	}
	r.errCh <- err
}

// Wait waits until all Runnables stop and aggregates their failures.
// Cancellation is not a failure.
func (r *Runner) Wait() error {
	defer r.cancel()
	var errs AggregatedError
	for range r.Runners {
		select {
		case <-r.exitCh:
			return ErrForcedExit
		case err := <-r.errCh:
			if !errors.Is(err, context.Canceled) {
				errs.Add(err)
			}
		}
	}
	return errs.Aggregate()
}

// RunError names the Runnable which failed.
type RunError struct {
	Name string
	Err  error
}

// Error implements error.
func (e *RunError) Error() string {
	return e.Name + ": " + e.Err.Error()
}

// Unwrap returns the failure.
func (e *RunError) Unwrap() error {
	return e.Err
}

// RunWithContextCancel runs fn which doesn't accept a context.
// onCancel is called only when ctx is done first, and fn is still
// waited for.
func RunWithContextCancel(ctx context.Context, onCancel func(), fn func() error) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- fn()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	if onCancel != nil {
		onCancel()
	}
	<-errCh
	return ctx.Err()
}

// RunWithContextCloser closes closer when fn returns or ctx is done,
// whichever comes first. Used to unblock reads on links.
func RunWithContextCloser(ctx context.Context, closer io.Closer, fn func() error) error {
	var once sync.Once
	closeOnce := func() { once.Do(func() { closer.Close() }) }
	defer closeOnce()
	return RunWithContextCancel(ctx, closeOnce, fn)
}
