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

// testMatrix builds a bins x frames matrix where frame f peaks at bin f%bins
func testMatrix(t *testing.T, bins, frames int) *spectral.Matrix {
	t.Helper()
	mag := make([][]float64, bins)
	for b := range mag {
		mag[b] = make([]float64, frames)
		for f := range mag[b] {
			mag[b][f] = 0.1
			if b == 1+f%(bins/2) {
				mag[b][f] = 1
			}
		}
	}
	m, err := spectral.NewMatrix(mag, spectral.DefaultSampleRate, spectral.DefaultHopLength)
	require.NoError(t, err)
	return m
}

func loadedClock(duration, at float64) *fixedClock {
	return &fixedClock{snap: timeline.Snapshot{Time: at, Duration: duration, Loaded: true}}
}

func TestVisualizerFrameAtTwoSeconds(t *testing.T) {
	m := testMatrix(t, 64, 40)
	rec := &recorder{}
	v := NewVisualizer("s1", NewManualScheduler(), loadedClock(4, 2.0), func() *spectral.Matrix { return m }, rec, freqmap.DefaultParams(), 800, 400)

	v.Step(Tick{Seq: 1, Now: epoch})

	frame := v.LastFrame()
	assert.Equal(t, 17, frame.FrameIndex)
	assert.True(t, frame.Present)
	require.NotEmpty(t, frame.Points)
	assert.Zero(t, len(frame.Points)%2)
	assert.Equal(t, 1.0, frame.ScaleX)

	msg, ok := rec.last(types.MessageSpectrum)
	require.True(t, ok)
	assert.Equal(t, "s1", msg.SessionID)
	assert.Equal(t, uint64(1), msg.Seq)
}

func TestVisualizerPointsMatchFreqmap(t *testing.T) {
	m := testMatrix(t, 64, 40)
	p := freqmap.DefaultParams()
	v := NewVisualizer("s", NewManualScheduler(), loadedClock(4, 2.0), func() *spectral.Matrix { return m }, nil, p, 800, 400)

	v.Step(Tick{Seq: 1, Now: epoch})

	want := freqmap.Flatten(freqmap.FrameToPoints(m.Frame(17, nil), m.SampleRate, p, 800, 400))
	assert.Equal(t, want, v.LastFrame().Points)
}

func TestVisualizerAbsentFramePublishedOnce(t *testing.T) {
	m := testMatrix(t, 64, 10)
	clock := loadedClock(100, 50)
	rec := &recorder{}
	v := NewVisualizer("s", NewManualScheduler(), clock, func() *spectral.Matrix { return m }, rec, freqmap.DefaultParams(), 800, 400)

	for i := 0; i < 4; i++ {
		v.Step(Tick{Seq: uint64(i + 1), Now: epoch.Add(time.Duration(i) * time.Millisecond)})
	}
	assert.Equal(t, 1, rec.count(types.MessageSpectrum))
	frame := v.LastFrame()
	assert.False(t, frame.Present)
	assert.Empty(t, frame.Points)
	assert.Equal(t, m.FrameIndex(50), frame.FrameIndex)

	clock.set(0.5)
	v.Step(Tick{Seq: 5, Now: epoch.Add(10 * time.Millisecond)})
	assert.True(t, v.LastFrame().Present)
	assert.Equal(t, 2, rec.count(types.MessageSpectrum))

	clock.set(60)
	v.Step(Tick{Seq: 6, Now: epoch.Add(20 * time.Millisecond)})
	v.Step(Tick{Seq: 7, Now: epoch.Add(30 * time.Millisecond)})
	assert.Equal(t, 3, rec.count(types.MessageSpectrum), "absent announced once on the transition")
}

func TestVisualizerWithoutMatrix(t *testing.T) {
	rec := &recorder{}
	v := NewVisualizer("s", NewManualScheduler(), loadedClock(10, 1), func() *spectral.Matrix { return nil }, rec, freqmap.DefaultParams(), 800, 400)

	v.Step(Tick{Seq: 1, Now: epoch})
	v.Step(Tick{Seq: 2, Now: epoch})

	frame := v.LastFrame()
	assert.Equal(t, -1, frame.FrameIndex)
	assert.False(t, frame.Present)
	assert.Equal(t, 1, rec.count(types.MessageSpectrum))

	v.Reset()
	v.Step(Tick{Seq: 3, Now: epoch})
	assert.Equal(t, 2, rec.count(types.MessageSpectrum))
}

func TestVisualizerKeyboardZoomScalesFrame(t *testing.T) {
	m := testMatrix(t, 64, 40)
	v := NewVisualizer("s", NewManualScheduler(), loadedClock(4, 1), func() *spectral.Matrix { return m }, nil, freqmap.DefaultParams(), 800, 400)

	v.Keys().Set(freqmap.MinVisibleKeys * 2)
	v.Step(Tick{Seq: 1, Now: epoch})
	assert.InDelta(t, 2.0, v.LastFrame().ScaleX, 1e-9)
}

func TestVisualizerSetSize(t *testing.T) {
	v := NewVisualizer("s", NewManualScheduler(), loadedClock(4, 1), func() *spectral.Matrix { return nil }, nil, freqmap.DefaultParams(), 800, 400)

	v.SetSize(1200, -1)
	w, h := v.Size()
	assert.Equal(t, 1200.0, w)
	assert.Equal(t, 400.0, h)
}
