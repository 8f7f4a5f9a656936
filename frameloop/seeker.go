package frameloop

import (
	"math"
	"sync"
	"time"

	"waveanalyzer/timeline"
	"waveanalyzer/types"
)

// DefaultSeekerEase is the tween length toward a new playhead target
const DefaultSeekerEase = 300 * time.Millisecond

// EaseInOut is the sinusoidal ease 0.5*(1-cos(pi*p)) for p in [0,1]
func EaseInOut(p float64) float64 {
	if p <= 0 {
		return 0
	}
	if p >= 1 {
		return 1
	}
	return 0.5 * (1 - math.Cos(math.Pi*p))
}

// seekTolerance is how far, in seconds, the playhead may drift from the
// time predicted by continuous playback before the move counts as a jump
const seekTolerance = 0.05

// SeekerSync moves the displayed playhead toward TimeToX(currentTime) every
// frame. Continuous playback is followed directly; a jump (seek, loop
// rewind) leaves a pixel offset that eases out over the ease window. It
// only reads the clock.
type SeekerSync struct {
	sessionID string
	clock     timeline.ClockReader
	viewport  *timeline.Viewport
	pub       Publisher
	loop      *Loop

	mu          sync.Mutex
	ease        time.Duration
	initialized bool
	version     uint64
	pos         float64
	target      float64
	offset      float64
	tweenStart  time.Time
	prev        timeline.Snapshot
	prevAt      time.Time
	last        types.SeekerFrame
	published   bool
}

// NewSeekerSync creates a stopped seeker loop
func NewSeekerSync(sessionID string, sched Scheduler, clock timeline.ClockReader, viewport *timeline.Viewport, pub Publisher) *SeekerSync {
	s := &SeekerSync{
		sessionID: sessionID,
		clock:     clock,
		viewport:  viewport,
		pub:       pub,
		ease:      DefaultSeekerEase,
	}
	s.loop = NewLoop("seeker", sched, s.Step)
	return s
}

// SetEase changes the tween length; zero snaps every frame
func (s *SeekerSync) SetEase(d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ease = d
}

// Start schedules the loop
func (s *SeekerSync) Start() { s.loop.Start() }

// Stop cancels the loop
func (s *SeekerSync) Stop() { s.loop.Stop() }

// Running reports whether the loop is scheduled
func (s *SeekerSync) Running() bool { return s.loop.Running() }

// Snap makes the next frame jump straight to the playhead
func (s *SeekerSync) Snap() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = false
}

// Position returns the last displayed playhead x
func (s *SeekerSync) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// Last returns the last computed frame
func (s *SeekerSync) Last() types.SeekerFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Step computes one frame. It is exported so a session can render on
// demand outside the scheduler.
func (s *SeekerSync) Step(t Tick) {
	snap := s.clock.Snapshot(t.Now)
	vs := s.viewport.State()

	target := vs.TimeToX(snap.Time)
	if math.IsNaN(target) || math.IsInf(target, 0) {
		target = 0
	}
	target = vs.ClampX(target)

	s.mu.Lock()
	switch {
	case !s.initialized || vs.Version != s.version || s.ease <= 0:
		// a zoom or resize invalidates every pixel position, so snap
		s.pos, s.target, s.offset = target, target, 0
		s.initialized = true
		s.version = vs.Version
	default:
		if target != s.target && !s.continuous(snap, t.Now) {
			s.offset = s.pos - target
			s.tweenStart = t.Now
		}
		s.target = target
		p := float64(t.Now.Sub(s.tweenStart)) / float64(s.ease)
		if p >= 1 {
			s.offset = 0
		}
		s.pos = target + s.offset*(1-EaseInOut(p))
	}
	s.prev, s.prevAt = snap, t.Now
	s.pos = vs.ClampX(s.pos)

	frame := types.SeekerFrame{
		X:        s.pos,
		Target:   s.target,
		Time:     snap.Time,
		Duration: snap.Duration,
		Playing:  snap.Playing,
		Zoom:     vs.Zoom,
	}
	changed := !s.published || frame != s.last
	s.last = frame
	s.published = true
	s.mu.Unlock()

	if changed && s.pub != nil {
		s.pub.Publish(types.FrameMessage{
			SessionID: s.sessionID,
			Type:      types.MessageSeeker,
			Seq:       t.Seq,
			Seeker:    &frame,
			Timestamp: t.Now,
		})
	}
}

// continuous reports whether snap follows the previous snapshot by plain
// playback at the current rate
func (s *SeekerSync) continuous(snap timeline.Snapshot, now time.Time) bool {
	if !s.prev.Playing || !snap.Playing {
		return false
	}
	expected := s.prev.Time + now.Sub(s.prevAt).Seconds()*snap.Rate
	return math.Abs(snap.Time-expected) <= seekTolerance
}
