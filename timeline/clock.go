package timeline

import (
	"math"
	"sync"
	"time"
)

// Playback rate and volume limits
const (
	MinRate   = 0.25
	MaxRate   = 2.0
	MaxVolume = 100
)

// Snapshot is the playback state at one instant. Frame loops read it once
// per tick and reuse it for every derived value.
type Snapshot struct {
	Time     float64 `json:"time"`
	Duration float64 `json:"duration"`
	Playing  bool    `json:"playing"`
	Ended    bool    `json:"ended"`
	Rate     float64 `json:"rate"`
	Loop     bool    `json:"loop"`
	Volume   int     `json:"volume"`
	Loaded   bool    `json:"loaded"`
}

// ClockReader is the read-only view handed to frame loops
type ClockReader interface {
	Snapshot(now time.Time) Snapshot
}

// Clock is the single source of truth for the current playback time. Media
// time advances from an anchor while playing; every mutation first settles
// the position at the current instant and re-anchors.
type Clock struct {
	mu       sync.Mutex
	now      func() time.Time
	loaded   bool
	duration float64
	playing  bool
	position float64
	anchorAt time.Time
	rate     float64
	loop     bool
	held     bool
	volume   int
}

// NewClock creates an unloaded clock. A nil now uses time.Now.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now, rate: 1, volume: MaxVolume}
}

// Load resets the clock for a track of the given duration, paused at 0
func (c *Clock) Load(duration float64) {
	if !finite(duration) || duration < 0 {
		duration = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = true
	c.duration = duration
	c.playing = false
	c.position = 0
	c.anchorAt = c.now()
}

// Unload drops the track; the clock reads 0 until the next Load
func (c *Clock) Unload() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
	c.duration = 0
	c.playing = false
	c.position = 0
}

// Snapshot computes the playback state at now without changing it
func (c *Clock) Snapshot(now time.Time) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked(now)
}

// CurrentTime returns the playback position now
func (c *Clock) CurrentTime() float64 {
	return c.Snapshot(c.now()).Time
}

func (c *Clock) snapshotLocked(now time.Time) Snapshot {
	s := Snapshot{
		Time:     c.position,
		Duration: c.duration,
		Playing:  c.playing,
		Rate:     c.rate,
		Loop:     c.loop,
		Volume:   c.volume,
		Loaded:   c.loaded,
	}
	if !c.loaded {
		s.Time, s.Playing = 0, false
		return s
	}
	if !c.playing {
		s.Ended = c.duration > 0 && c.position >= c.duration
		return s
	}

	elapsed := now.Sub(c.anchorAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	t := c.position + elapsed*c.rate

	if c.duration <= 0 {
		s.Time = 0
		return s
	}
	if t >= c.duration {
		if c.loop && !c.held {
			t = math.Mod(t, c.duration)
		} else {
			t = c.duration
			s.Playing = false
			s.Ended = true
		}
	}
	s.Time = t
	return s
}

// settleLocked folds elapsed play time into position and re-anchors at now
func (c *Clock) settleLocked(now time.Time) {
	s := c.snapshotLocked(now)
	c.position = s.Time
	c.playing = s.Playing
	c.anchorAt = now
}

// Play starts or resumes playback. A finished track restarts from 0.
func (c *Clock) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		return
	}
	now := c.now()
	c.settleLocked(now)
	if c.duration > 0 && c.position >= c.duration {
		c.position = 0
	}
	c.playing = true
}

// Pause stops playback at the current position
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settleLocked(c.now())
	c.playing = false
}

// Toggle flips between playing and paused and reports the new state
func (c *Clock) Toggle() bool {
	c.mu.Lock()
	playing := c.loaded && c.snapshotLocked(c.now()).Playing
	c.mu.Unlock()

	if playing {
		c.Pause()
		return false
	}
	c.Play()
	return c.Snapshot(c.now()).Playing
}

// Seek moves to t, clamped to [0, duration], and returns the new position.
// Non-finite targets are ignored.
func (c *Clock) Seek(t float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.settleLocked(now)
	if !c.loaded || !finite(t) {
		return c.position
	}
	c.position = math.Max(0, math.Min(c.duration, t))
	return c.position
}

// SetRate sets the playback speed, clamped to [MinRate, MaxRate]
func (c *Clock) SetRate(rate float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !finite(rate) {
		return c.rate
	}
	c.settleLocked(c.now())
	c.rate = math.Max(MinRate, math.Min(MaxRate, rate))
	return c.rate
}

// SetLoop toggles whole-track looping
func (c *Clock) SetLoop(loop bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settleLocked(c.now())
	c.loop = loop
}

// Hold suspends whole-track wrapping while a loop range is active. A held
// clock stops at the end of the track so the range guard sees the overrun.
func (c *Clock) Hold(held bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.held == held {
		return
	}
	// the interval up to now never wraps; the range guard resolves it
	c.held = true
	c.settleLocked(c.now())
	c.held = held
}

// SetVolume sets the volume, clamped to [0, MaxVolume]
func (c *Clock) SetVolume(v int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v < 0 {
		v = 0
	}
	if v > MaxVolume {
		v = MaxVolume
	}
	c.volume = v
	return v
}
