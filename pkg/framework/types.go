package framework

import (
	"context"
	"time"
)

// Named is implemented by things that report a name in logs.
type Named interface {
	Name() string
}

// Runnable is a background worker which runs until ctx is done or it fails.
type Runnable interface {
	Run(context.Context) error
}

// Controller is invoked once per loop iteration.
type Controller interface {
	Control(ControlContext) error
}

// ControlFunc is the func form of Controller.
type ControlFunc func(ControlContext) error

// Control implements Controller.
func (f ControlFunc) Control(ctx ControlContext) error {
	return f(ctx)
}

// ControlContext describes the iteration a Controller runs in.
type ControlContext interface {
	Context() context.Context
	// Time is sampled once per iteration, all controllers see the same value.
	Time() time.Time
	Stage() Stage
	// TriggerNext asks for another iteration right after this one.
	TriggerNext()
}

// Stage orders controllers within an iteration.
type Stage int

// Stages run in declaration order.
const (
	// StageInput samples inputs: tag readers, register sensors.
	StageInput Stage = iota
	// StageControl runs the state machines.
	StageControl
	// StageOutput drives actuators and flushes outgoing data.
	StageOutput

	numStages
)

var stageNames = [numStages]string{"input", "control", "output"}

func (s Stage) String() string {
	if s < 0 || s >= numStages {
		return "stage(?)"
	}
	return stageNames[s]
}
