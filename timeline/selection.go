package timeline

import (
	"math"
	"sync"
	"time"
)

// DefaultDragDebounce bounds how often a drag recomputes its end point
const DefaultDragDebounce = 8 * time.Millisecond

// minRangeSeconds is the shortest range a release commits
const minRangeSeconds = 0.001

// SelectionState is the drag state of the loop tool
type SelectionState int

const (
	SelectionIdle SelectionState = iota
	SelectionDragging
)

func (s SelectionState) String() string {
	if s == SelectionDragging {
		return "dragging"
	}
	return "idle"
}

// Range is a loop window in seconds with Start <= End
type Range struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func normalize(a, b float64) Range {
	return Range{Start: math.Min(a, b), End: math.Max(a, b)}
}

// Selection is the loop tool. A modifier-press starts a drag, moves update
// the end point and the release commits a normalized range. Any press
// while a range exists clears it instead.
type Selection struct {
	mu        sync.Mutex
	viewport  *Viewport
	debounce  time.Duration
	state     SelectionState
	anchor    float64
	current   float64
	lastMove  time.Time
	committed Range
	active    bool
}

// NewSelection creates an idle selection converting through viewport
func NewSelection(viewport *Viewport, debounce time.Duration) *Selection {
	if debounce < 0 {
		debounce = 0
	}
	return &Selection{viewport: viewport, debounce: debounce}
}

// State returns the drag state
func (s *Selection) State() SelectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Selection) timeAt(x float64) float64 {
	vs := s.viewport.State()
	return vs.XToTime(vs.ClampX(x))
}

// Press handles a pointer press at x. It returns true when the press was
// consumed by the selection (a clear or a drag start).
func (s *Selection) Press(x float64, modifier bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		s.active = false
		s.committed = Range{}
		s.state = SelectionIdle
		return true
	}
	if s.state == SelectionDragging || !modifier {
		return false
	}

	t := s.timeAt(x)
	s.state = SelectionDragging
	s.anchor, s.current = t, t
	s.lastMove = time.Time{}
	return true
}

// Move updates the drag end point. Moves closer than the debounce interval
// to the previous accepted move are dropped.
func (s *Selection) Move(x float64, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != SelectionDragging {
		return false
	}
	if !s.lastMove.IsZero() && at.Sub(s.lastMove) < s.debounce {
		return false
	}
	s.current = s.timeAt(x)
	s.lastMove = at
	return true
}

// Release ends the drag at x and commits the normalized range. Zero-length
// drags commit nothing.
func (s *Selection) Release(x float64) (Range, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != SelectionDragging {
		return Range{}, false
	}
	s.state = SelectionIdle
	s.current = s.timeAt(x)

	r := normalize(s.anchor, s.current)
	if r.End-r.Start < minRangeSeconds {
		return Range{}, false
	}
	s.committed = r
	s.active = true
	return r, true
}

// Set commits r directly, e.g. when restoring a saved project
func (s *Selection) Set(r Range) bool {
	if !finite(r.Start) || !finite(r.End) {
		return false
	}
	r = normalize(r.Start, r.End)
	if r.Start < 0 || r.End-r.Start < minRangeSeconds {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SelectionIdle
	s.committed = r
	s.active = true
	return true
}

// Clear drops any committed range or drag in progress
func (s *Selection) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SelectionIdle
	s.active = false
	s.committed = Range{}
}

// Range returns the committed range
func (s *Selection) Range() (Range, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed, s.active
}

// Preview returns the normalized range of the drag in progress
func (s *Selection) Preview() (Range, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SelectionDragging {
		return Range{}, false
	}
	return normalize(s.anchor, s.current), true
}

// Enforce confines playback to the committed range: once the time at now
// reaches the end it is moved back to the start. A clock that stopped at
// the end of the track is restarted. It reports whether it seeked.
func (s *Selection) Enforce(clock *Clock, now time.Time) bool {
	r, ok := s.Range()
	clock.Hold(ok)
	if !ok {
		return false
	}

	snap := clock.Snapshot(now)
	if !snap.Loaded || snap.Time < r.End {
		return false
	}

	clock.Seek(r.Start)
	if snap.Ended {
		clock.Play()
	}
	return true
}
