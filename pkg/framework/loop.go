package framework

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
)

// DefaultInterval is the loop interval when none is specified.
const DefaultInterval = 10 * time.Millisecond

// Loop runs controllers cooperatively, one iteration at a time.
// All controllers of an iteration run on the same goroutine in
// priority order, so state only touched by controllers needs no locking.
type Loop struct {
	Interval time.Duration
	Clock    Clock

	stages  [numStages][]Controller
	runners []Runnable

	iterLock sync.Mutex
	wakeUpCh chan struct{}
	wakeOnce sync.Once
}

// LoopAdder is a component which knows how to register its own
// controllers and runnables.
type LoopAdder interface {
	AddToLoop(*Loop)
}

type iteration struct {
	loop  *Loop
	ctx   context.Context
	now   time.Time
	stage Stage
}

// NewLoop creates a Loop.
func NewLoop() *Loop {
	return &Loop{Interval: DefaultInterval, Clock: RealClock{}}
}

// Add adds LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		adder.AddToLoop(l)
	}
	return l
}

// AddController registers controllers at stage. Controllers which are
// also Runnable are started with the loop.
func (l *Loop) AddController(stage Stage, ctls ...Controller) *Loop {
	l.stages[stage] = append(l.stages[stage], ctls...)
	for _, ctl := range ctls {
		if runner, ok := ctl.(Runnable); ok {
			l.runners = append(l.runners, runner)
		}
	}
	return l
}

// AddRunnable adds workers started and stopped with the loop.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.runners = append(l.runners, runnables...)
	return l
}

// Run implements Runnable.
func (l *Loop) Run(ctx context.Context) error {
	runner := NewRunnerWith(ctx).Go(l.runners...)

	interval := l.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := runner.Wait(); err != nil {
				glog.Errorf("loop runners: %v", err)
			}
			return ctx.Err()
		case <-ticker.C:
			l.Step(ctx)
		case <-l.wakeUp():
			l.Step(ctx)
		}
	}
}

// Step runs exactly one iteration at the current Clock time.
func (l *Loop) Step(ctx context.Context) {
	clock := l.Clock
	if clock == nil {
		clock = RealClock{}
	}
	l.iterLock.Lock()
	defer l.iterLock.Unlock()
	iter := &iteration{loop: l, ctx: ctx, now: clock.Now()}
	for stage, ctls := range l.stages {
		iter.stage = Stage(stage)
		for _, ctl := range ctls {
			if err := ctl.Control(iter); err != nil {
				glog.Errorf("%s controller: %v", iter.stage, err)
			}
		}
	}
}

// TriggerNext wakes the loop for an iteration without waiting for the
// next tick. Calls while a wake-up is pending are coalesced.
func (l *Loop) TriggerNext() {
	select {
	case l.wakeUp() <- struct{}{}:
	default:
	}
}

func (l *Loop) wakeUp() chan struct{} {
	l.wakeOnce.Do(func() {
		l.wakeUpCh = make(chan struct{}, 1)
	})
	return l.wakeUpCh
}

func (it *iteration) Context() context.Context { return it.ctx }
func (it *iteration) Time() time.Time { return it.now }
func (it *iteration) Stage() Stage { return it.stage }
func (it *iteration) TriggerNext() { it.loop.TriggerNext() }
