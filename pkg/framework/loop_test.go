package framework

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoopStepOrder(t *testing.T) {
	clock := NewManualClock(time.Unix(100, 0))
	loop := &Loop{Clock: clock}
	var order []string
	var seen time.Time
	record := func(name string) Controller {
		return ControlFunc(func(ctx ControlContext) error {
			order = append(order, name)
			seen = ctx.Time()
			return nil
		})
	}
	loop.AddController(StageOutput, record("output"))
	loop.AddController(StageInput, record("input"))
	loop.AddController(StageControl, record("control1"), record("control2"))

	loop.Step(context.Background())
	require.Equal(t, []string{"input", "control1", "control2", "output"}, order)
	require.Equal(t, time.Unix(100, 0), seen)

	clock.Advance(time.Second)
	loop.Step(context.Background())
	require.Equal(t, time.Unix(101, 0), seen)
}

func TestLoopControllerErrorDoesNotStop(t *testing.T) {
	loop := &Loop{Clock: NewManualClock(time.Unix(0, 0))}
	var ran bool
	loop.AddController(StageInput, ControlFunc(func(ControlContext) error {
		return errors.New("boom")
	}))
	loop.AddController(StageControl, ControlFunc(func(ControlContext) error {
		ran = true
		return nil
	}))
	loop.Step(context.Background())
	require.True(t, ran)
}

func TestLoopTriggerNext(t *testing.T) {
	loop := NewLoop()
	loop.Interval = time.Hour
	stepCh := make(chan struct{}, 4)
	loop.AddController(StageControl, ControlFunc(func(ControlContext) error {
		stepCh <- struct{}{}
		return nil
	}))
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- loop.Run(ctx) }()

	loop.TriggerNext()
	select {
	case <-stepCh:
	case <-time.After(time.Second):
		t.Fatal("iteration not triggered")
	}
	cancel()
	require.Equal(t, context.Canceled, <-errCh)
}

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	require.NoError(t, errs.Add(nil).Aggregate())
	errs.Add(io.EOF)
	require.Equal(t, "EOF", errs.Error())
	errs.Add(io.ErrUnexpectedEOF)
	err := errs.Aggregate()
	require.Error(t, err)
	require.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	require.Contains(t, err.Error(), "multiple errors:")
}

func TestRunnerWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunnerWith(ctx)
	r.Go(NamedRun("blocked", RunFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})), RunFunc(func(context.Context) error {
		return io.EOF
	}))
	cancel()
	err := r.Wait()
	require.Error(t, err)
	require.True(t, errors.Is(err, io.EOF))
}

func TestRunnerFailFast(t *testing.T) {
	r := NewRunner().WithFailFast(true)
	r.Go(NamedRun("waiter", RunFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})), NamedRun("link", RunFunc(func(context.Context) error {
		return io.ErrClosedPipe
	})))
	err := r.Wait()
	require.True(t, errors.Is(err, io.ErrClosedPipe))
	require.Equal(t, "link: io: read/write on closed pipe", err.Error())
}

func TestRunWithContextCloser(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RunWithContextCloser(ctx, pr, func() error {
		_, err := pr.Read(make([]byte, 1))
		return err
	})
	require.Equal(t, context.Canceled, err)
}

func TestStageString(t *testing.T) {
	require.Equal(t, "control", StageControl.String())
	require.Equal(t, "stage(?)", Stage(7).String())
}
