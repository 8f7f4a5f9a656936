package frameloop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waveanalyzer/freqmap"
	"waveanalyzer/spectral"
	"waveanalyzer/timeline"
	"waveanalyzer/types"
)

type wallClock struct{ t time.Time }

func (w *wallClock) Now() time.Time          { return w.t }
func (w *wallClock) Advance(d time.Duration) { w.t = w.t.Add(d) }

func TestLoopGuardRewindsToRangeStart(t *testing.T) {
	wc := &wallClock{t: epoch}
	clock := timeline.NewClock(wc.Now)
	clock.Load(20)
	vp := timeline.NewViewport(1000)
	vp.SetDuration(20)
	sel := timeline.NewSelection(vp, 0)
	require.True(t, sel.Set(timeline.Range{Start: 5, End: 10}))

	sched := NewManualScheduler()
	g := NewLoopGuard(sched, sel, clock)
	var rewinds int
	g.OnRewind(func(time.Time) { rewinds++ })
	g.Start()

	clock.Seek(9)
	clock.Play()
	wc.Advance(1500 * time.Millisecond)
	sched.Step(wc.Now())

	snap := clock.Snapshot(wc.Now())
	assert.Equal(t, 5.0, snap.Time)
	assert.True(t, snap.Playing)
	assert.Equal(t, 1, rewinds)

	wc.Advance(time.Second)
	sched.Step(wc.Now())
	assert.InDelta(t, 6.0, clock.Snapshot(wc.Now()).Time, 1e-9)
	assert.Equal(t, 1, rewinds)
}

func TestLoopGuardRestartsEndedTrack(t *testing.T) {
	wc := &wallClock{t: epoch}
	clock := timeline.NewClock(wc.Now)
	clock.Load(10)
	vp := timeline.NewViewport(1000)
	vp.SetDuration(10)
	sel := timeline.NewSelection(vp, 0)
	require.True(t, sel.Set(timeline.Range{Start: 5, End: 10}))

	g := NewLoopGuard(NewManualScheduler(), sel, clock)

	clock.Seek(8)
	clock.Play()
	wc.Advance(5 * time.Second)
	require.True(t, clock.Snapshot(wc.Now()).Ended)

	g.Step(Tick{Seq: 1, Now: wc.Now()})
	snap := clock.Snapshot(wc.Now())
	assert.Equal(t, 5.0, snap.Time)
	assert.True(t, snap.Playing)
}

func TestLoopGuardWithoutRangeDoesNothing(t *testing.T) {
	wc := &wallClock{t: epoch}
	clock := timeline.NewClock(wc.Now)
	clock.Load(10)
	sel := timeline.NewSelection(timeline.NewViewport(100), 0)

	g := NewLoopGuard(NewManualScheduler(), sel, clock)
	clock.Seek(9.5)
	g.Step(Tick{Seq: 1, Now: wc.Now()})
	assert.Equal(t, 9.5, clock.CurrentTime())
}

// All loops of one tick must observe the time the guard corrected.
func TestLoopsShareCorrectedTimeWithinTick(t *testing.T) {
	wc := &wallClock{t: epoch}
	clock := timeline.NewClock(wc.Now)
	clock.Load(20)
	vp := timeline.NewViewport(1000)
	vp.SetDuration(20)
	sel := timeline.NewSelection(vp, 0)
	require.True(t, sel.Set(timeline.Range{Start: 5, End: 10}))

	mag := make([][]float64, 32)
	for b := range mag {
		mag[b] = make([]float64, 400)
		for f := range mag[b] {
			mag[b][f] = float64(b%4) + 0.5
		}
	}
	m, err := spectral.NewMatrix(mag, spectral.DefaultSampleRate, spectral.DefaultHopLength)
	require.NoError(t, err)

	sched := NewManualScheduler()
	rec := &recorder{}
	guard := NewLoopGuard(sched, sel, clock)
	seeker := NewSeekerSync("s", sched, clock, vp, rec)
	seeker.SetEase(0)
	vis := NewVisualizer("s", sched, clock, func() *spectral.Matrix { return m }, rec, freqmap.DefaultParams(), 800, 400)
	guard.Start()
	seeker.Start()
	vis.Start()

	clock.Seek(9.9)
	clock.Play()
	wc.Advance(200 * time.Millisecond)
	assert.Equal(t, 3, sched.Step(wc.Now()))

	seek, ok := rec.last(types.MessageSeeker)
	require.True(t, ok)
	assert.Equal(t, 5.0, seek.Seeker.Time)
	assert.Equal(t, 250.0, seek.Seeker.X)

	spec, ok := rec.last(types.MessageSpectrum)
	require.True(t, ok)
	assert.Equal(t, m.FrameIndex(5), spec.Spectrum.FrameIndex)
	assert.Equal(t, seek.Seq, spec.Seq)
}
