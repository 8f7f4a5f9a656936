package timeline

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualTime is a controllable wall clock for tests
type manualTime struct {
	t time.Time
}

func newManualTime() *manualTime {
	return &manualTime{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (m *manualTime) Now() time.Time { return m.t }

func (m *manualTime) Advance(d time.Duration) { m.t = m.t.Add(d) }

func TestClockUnloadedReadsZero(t *testing.T) {
	mt := newManualTime()
	c := NewClock(mt.Now)

	c.Play()
	mt.Advance(time.Second)
	snap := c.Snapshot(mt.Now())
	assert.False(t, snap.Loaded)
	assert.False(t, snap.Playing)
	assert.Equal(t, 0.0, snap.Time)
	assert.Equal(t, 0.0, c.Seek(5))
}

func TestClockPlayPauseSeek(t *testing.T) {
	mt := newManualTime()
	c := NewClock(mt.Now)
	c.Load(60)

	c.Play()
	mt.Advance(1500 * time.Millisecond)
	assert.InDelta(t, 1.5, c.CurrentTime(), 1e-9)

	c.Pause()
	mt.Advance(10 * time.Second)
	assert.InDelta(t, 1.5, c.CurrentTime(), 1e-9)

	assert.Equal(t, 30.0, c.Seek(30))
	assert.Equal(t, 60.0, c.Seek(90))
	assert.Equal(t, 0.0, c.Seek(-3))
	assert.Equal(t, 0.0, c.Seek(math.NaN()))
}

func TestClockSnapshotIsStableForOneInstant(t *testing.T) {
	mt := newManualTime()
	c := NewClock(mt.Now)
	c.Load(60)
	c.Play()
	mt.Advance(2 * time.Second)

	now := mt.Now()
	first := c.Snapshot(now)
	second := c.Snapshot(now)
	assert.Equal(t, first, second)
	assert.InDelta(t, 2.0, first.Time, 1e-9)
}

func TestClockRate(t *testing.T) {
	mt := newManualTime()
	c := NewClock(mt.Now)
	c.Load(60)
	c.Play()

	assert.Equal(t, 0.5, c.SetRate(0.5))
	mt.Advance(2 * time.Second)
	assert.InDelta(t, 1.0, c.CurrentTime(), 1e-9)

	c.SetRate(2)
	mt.Advance(time.Second)
	assert.InDelta(t, 3.0, c.CurrentTime(), 1e-9)

	assert.Equal(t, MinRate, c.SetRate(0.01))
	assert.Equal(t, MaxRate, c.SetRate(8))
}

func TestClockStopsAtEnd(t *testing.T) {
	mt := newManualTime()
	c := NewClock(mt.Now)
	c.Load(10)
	c.Seek(9)
	c.Play()
	mt.Advance(5 * time.Second)

	snap := c.Snapshot(mt.Now())
	assert.Equal(t, 10.0, snap.Time)
	assert.False(t, snap.Playing)
	assert.True(t, snap.Ended)

	// playing a finished track restarts it
	c.Play()
	mt.Advance(time.Second)
	assert.InDelta(t, 1.0, c.CurrentTime(), 1e-9)
}

func TestClockLoopWraps(t *testing.T) {
	mt := newManualTime()
	c := NewClock(mt.Now)
	c.Load(10)
	c.SetLoop(true)
	c.Seek(9)
	c.Play()
	mt.Advance(3 * time.Second)

	snap := c.Snapshot(mt.Now())
	assert.InDelta(t, 2.0, snap.Time, 1e-9)
	assert.True(t, snap.Playing)
	assert.True(t, snap.Loop)
}

func TestClockHoldSuspendsLoopWrap(t *testing.T) {
	mt := newManualTime()
	c := NewClock(mt.Now)
	c.Load(10)
	c.SetLoop(true)
	c.Hold(true)
	c.Seek(9)
	c.Play()
	mt.Advance(3 * time.Second)

	snap := c.Snapshot(mt.Now())
	assert.Equal(t, 10.0, snap.Time)
	assert.True(t, snap.Ended)
	assert.True(t, snap.Loop, "the loop setting itself is kept")

	c.Hold(false)
	c.Seek(9)
	c.Play()
	mt.Advance(3 * time.Second)
	assert.InDelta(t, 2.0, c.CurrentTime(), 1e-9)
}

func TestClockToggleAndVolume(t *testing.T) {
	mt := newManualTime()
	c := NewClock(mt.Now)
	c.Load(10)

	assert.True(t, c.Toggle())
	assert.False(t, c.Toggle())

	assert.Equal(t, 0, c.SetVolume(-5))
	assert.Equal(t, 100, c.SetVolume(150))
	assert.Equal(t, 40, c.SetVolume(40))
	assert.Equal(t, 40, c.Snapshot(mt.Now()).Volume)
}

func TestClockLoadResets(t *testing.T) {
	mt := newManualTime()
	c := NewClock(mt.Now)
	c.Load(10)
	c.Play()
	mt.Advance(4 * time.Second)

	c.Load(20)
	snap := c.Snapshot(mt.Now())
	require.True(t, snap.Loaded)
	assert.False(t, snap.Playing)
	assert.Equal(t, 0.0, snap.Time)
	assert.Equal(t, 20.0, snap.Duration)

	c.Unload()
	assert.False(t, c.Snapshot(mt.Now()).Loaded)
}
