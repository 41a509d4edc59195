// Package sim provides simulated endpoint hardware.
package sim

import (
	"sync"
	"time"

	"github.com/golang/glog"
)

// Tags is a queue of tag presentations.
type Tags struct {
	lock     sync.Mutex
	pending  [][]byte
	released int
}

// Present queues a tag presentation.
func (t *Tags) Present(uid []byte) {
	t.lock.Lock()
	t.pending = append(t.pending, append([]byte(nil), uid...))
	t.lock.Unlock()
}

// TryReadUID implements device.TagReader.
func (t *Tags) TryReadUID() ([]byte, bool) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if len(t.pending) == 0 {
		return nil, false
	}
	uid := t.pending[0]
	t.pending = t.pending[1:]
	return uid, true
}

// Release implements device.TagReader.
func (t *Tags) Release() {
	t.lock.Lock()
	t.released++
	t.lock.Unlock()
}

// Released returns how many times Release was called.
func (t *Tags) Released() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.released
}

// Register simulates the lock. A pulse opens it when Responsive is set,
// a manual override can open or close it at any time.
type Register struct {
	// Pulse is how long PulseOpen blocks.
	Pulse time.Duration
	// Responsive makes a pulse actually open the register.
	Responsive bool
	// AutoClose closes the register this long after it was opened, 0 disables.
	AutoClose time.Duration

	lock     sync.Mutex
	open     bool
	openedAt time.Time
	pulses   int
	now      func() time.Time
}

// NewRegister creates a responsive Register with a 100ms pulse.
func NewRegister() *Register {
	return &Register{Pulse: 100 * time.Millisecond, Responsive: true, now: time.Now}
}

// WithClock sets the time source used for AutoClose.
func (r *Register) WithClock(now func() time.Time) *Register {
	r.now = now
	return r
}

// PhysicallyOpen implements device.Register.
func (r *Register) PhysicallyOpen() bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.open && r.AutoClose > 0 && r.clock().Sub(r.openedAt) >= r.AutoClose {
		r.open = false
	}
	return r.open
}

// PulseOpen implements device.Register.
func (r *Register) PulseOpen() {
	if r.Pulse > 0 {
		time.Sleep(r.Pulse)
	}
	r.lock.Lock()
	r.pulses++
	if r.Responsive {
		r.setLocked(true)
	}
	r.lock.Unlock()
	glog.V(2).Info("register pulse")
}

// Set forces the physical state, e.g. a manual override.
func (r *Register) Set(open bool) {
	r.lock.Lock()
	r.setLocked(open)
	r.lock.Unlock()
}

// Pulses returns how many open pulses were fired.
func (r *Register) Pulses() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.pulses
}

func (r *Register) setLocked(open bool) {
	if open && !r.open {
		r.openedAt = r.clock()
	}
	r.open = open
}

func (r *Register) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

// Tone names recorded by Buzzer.
const (
	ToneBeep    = "beep"
	ToneStartup = "startup"
	ToneError   = "error"
)

// Buzzer records what was played.
type Buzzer struct {
	lock   sync.Mutex
	played []string
}

// Beep implements device.Buzzer.
func (b *Buzzer) Beep() { b.play(ToneBeep) }

// StartupChord implements device.Buzzer.
func (b *Buzzer) StartupChord() { b.play(ToneStartup) }

// ErrorChord implements device.Buzzer.
func (b *Buzzer) ErrorChord() { b.play(ToneError) }

// Played returns the tones played so far.
func (b *Buzzer) Played() []string {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]string(nil), b.played...)
}

// Count returns how many times tone was played.
func (b *Buzzer) Count(tone string) (n int) {
	for _, t := range b.Played() {
		if t == tone {
			n++
		}
	}
	return
}

func (b *Buzzer) play(tone string) {
	b.lock.Lock()
	b.played = append(b.played, tone)
	b.lock.Unlock()
	glog.V(2).Infof("buzzer %s", tone)
}
