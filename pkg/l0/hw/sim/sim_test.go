package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTags(t *testing.T) {
	var tags Tags
	_, ok := tags.TryReadUID()
	assert.False(t, ok)
	tags.Present([]byte{1, 2})
	tags.Present([]byte{3})
	uid, ok := tags.TryReadUID()
	assert.True(t, ok)
	assert.Equal(t, []byte{1, 2}, uid)
	uid, _ = tags.TryReadUID()
	assert.Equal(t, []byte{3}, uid)
	_, ok = tags.TryReadUID()
	assert.False(t, ok)
	tags.Release()
	assert.Equal(t, 1, tags.Released())
}

func TestRegister(t *testing.T) {
	now := time.Unix(0, 0)
	r := NewRegister().WithClock(func() time.Time { return now })
	r.Pulse = 0
	r.AutoClose = time.Second
	assert.False(t, r.PhysicallyOpen())
	r.PulseOpen()
	assert.True(t, r.PhysicallyOpen())
	assert.Equal(t, 1, r.Pulses())
	now = now.Add(time.Second)
	assert.False(t, r.PhysicallyOpen())

	r.Responsive = false
	r.PulseOpen()
	assert.False(t, r.PhysicallyOpen())
	r.Set(true)
	assert.True(t, r.PhysicallyOpen())
}

func TestBuzzer(t *testing.T) {
	var b Buzzer
	b.StartupChord()
	b.Beep()
	b.ErrorChord()
	b.ErrorChord()
	assert.Equal(t, []string{ToneStartup, ToneBeep, ToneError, ToneError}, b.Played())
	assert.Equal(t, 2, b.Count(ToneError))
}
