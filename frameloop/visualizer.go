package frameloop

import (
	"sync"

	"waveanalyzer/freqmap"
	"waveanalyzer/spectral"
	"waveanalyzer/timeline"
	"waveanalyzer/types"
)

// MatrixSource returns the spectral matrix of the current track, or nil
// while it is loading, failed or absent
type MatrixSource func() *spectral.Matrix

// Visualizer turns the spectral column under the playhead into curve
// points every frame. Outside the matrix it publishes an absent frame once
// rather than holding the last valid one.
type Visualizer struct {
	sessionID string
	clock     timeline.ClockReader
	matrix    MatrixSource
	pub       Publisher
	loop      *Loop

	mu      sync.Mutex
	params  freqmap.Params
	width   float64
	height  float64
	keys    *freqmap.KeyboardZoom
	column  []float64
	last    types.SpectrumFrame
	present bool
	sent    bool
}

// NewVisualizer creates a stopped visualization loop for a panel of
// width x height pixels
func NewVisualizer(sessionID string, sched Scheduler, clock timeline.ClockReader, matrix MatrixSource, pub Publisher, params freqmap.Params, width, height float64) *Visualizer {
	v := &Visualizer{
		sessionID: sessionID,
		clock:     clock,
		matrix:    matrix,
		pub:       pub,
		params:    params,
		width:     width,
		height:    height,
		keys:      freqmap.NewKeyboardZoom(),
	}
	v.loop = NewLoop("visualizer", sched, v.Step)
	return v
}

// Start schedules the loop
func (v *Visualizer) Start() { v.loop.Start() }

// Stop cancels the loop
func (v *Visualizer) Stop() { v.loop.Stop() }

// Running reports whether the loop is scheduled
func (v *Visualizer) Running() bool { return v.loop.Running() }

// SetSize records the measured panel size
func (v *Visualizer) SetSize(width, height float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if width >= 0 {
		v.width = width
	}
	if height >= 0 {
		v.height = height
	}
}

// Size returns the panel size
func (v *Visualizer) Size() (float64, float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.width, v.height
}

// SetParams replaces the point transform
func (v *Visualizer) SetParams(p freqmap.Params) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.params = p
}

// Params returns the point transform
func (v *Visualizer) Params() freqmap.Params {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.params
}

// Keys returns the keyboard zoom that stretches the panel
func (v *Visualizer) Keys() *freqmap.KeyboardZoom {
	return v.keys
}

// LastFrame returns the last computed frame
func (v *Visualizer) LastFrame() types.SpectrumFrame {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.last
}

// Reset forgets the previous frame so the next step always publishes
func (v *Visualizer) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.last = types.SpectrumFrame{}
	v.present = false
	v.sent = false
}

// Step computes one frame
func (v *Visualizer) Step(t Tick) {
	snap := v.clock.Snapshot(t.Now)
	m := v.matrix()

	v.mu.Lock()
	frame := types.SpectrumFrame{FrameIndex: -1, ScaleX: v.keys.ScaleX(), Points: []float64{}}
	if m != nil && snap.Loaded {
		idx := m.FrameIndex(snap.Time)
		frame.FrameIndex = idx
		if m.InRange(idx) {
			v.column = m.Frame(idx, v.column)
			points := freqmap.FrameToPoints(v.column, m.SampleRate, v.params, v.width, v.height)
			frame.Present = true
			frame.Points = freqmap.Flatten(points)
		}
	}

	// absent frames are only announced on the transition
	publish := frame.Present || v.present || !v.sent
	v.present = frame.Present
	v.sent = true
	v.last = frame
	v.mu.Unlock()

	if publish && v.pub != nil {
		v.pub.Publish(types.FrameMessage{
			SessionID: v.sessionID,
			Type:      types.MessageSpectrum,
			Seq:       t.Seq,
			Spectrum:  &frame,
			Timestamp: t.Now,
		})
	}
}
