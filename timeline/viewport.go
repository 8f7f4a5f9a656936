// Package timeline holds the playback clock and the time/pixel mapping
// shared by the seeker, markers, loop selection and grid.
package timeline

import (
	"math"
	"sync"
)

// Zoom defaults
const (
	DefaultMinZoom = 0.5
	DefaultMaxZoom = 4.0
	WheelZoomStep  = 1.05
)

// ViewState is an immutable copy of the viewport. Version changes on every
// mutation so readers can tell a zoom or resize from ordinary playback.
type ViewState struct {
	PixelWidth float64 `json:"pixelWidth"`
	Zoom       float64 `json:"zoom"`
	Duration   float64 `json:"duration"`
	Version    uint64  `json:"version"`
}

// ContentWidth is the full zoomed width of the timeline in pixels
func (s ViewState) ContentWidth() float64 {
	return s.PixelWidth * s.Zoom
}

// TimeToX returns (t / duration) * pixelWidth * zoom. It returns 0 while the
// duration is unknown.
func (s ViewState) TimeToX(t float64) float64 {
	if s.Duration <= 0 || !finite(s.Duration) {
		return 0
	}
	x := (t / s.Duration) * s.ContentWidth()
	if !finite(x) {
		return 0
	}
	return x
}

// XToTime is the inverse of TimeToX
func (s ViewState) XToTime(x float64) float64 {
	w := s.ContentWidth()
	if w <= 0 || !finite(w) {
		return 0
	}
	t := (x / w) * s.Duration
	if !finite(t) {
		return 0
	}
	return t
}

// ClampX limits x to the drawn timeline
func (s ViewState) ClampX(x float64) float64 {
	if !finite(x) || x < 0 {
		return 0
	}
	return math.Min(x, s.ContentWidth())
}

// Viewport owns the zoom factor, the measured pixel width and the track
// duration. All positions on the timeline are derived from it.
type Viewport struct {
	mu      sync.RWMutex
	state   ViewState
	minZoom float64
	maxZoom float64
}

// NewViewport creates a viewport at zoom 1
func NewViewport(pixelWidth float64) *Viewport {
	return &Viewport{
		state:   ViewState{PixelWidth: math.Max(0, pixelWidth), Zoom: 1},
		minZoom: DefaultMinZoom,
		maxZoom: DefaultMaxZoom,
	}
}

// State returns a consistent copy of the viewport
func (v *Viewport) State() ViewState {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state
}

// TimeToX maps a playback time to a pixel offset
func (v *Viewport) TimeToX(t float64) float64 {
	return v.State().TimeToX(t)
}

// XToTime maps a pixel offset to a playback time
func (v *Viewport) XToTime(x float64) float64 {
	return v.State().XToTime(x)
}

// ZoomBounds returns the allowed zoom range
func (v *Viewport) ZoomBounds() (float64, float64) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.minZoom, v.maxZoom
}

// SetZoomBounds replaces the zoom range and re-clamps the current zoom
func (v *Viewport) SetZoomBounds(minZoom, maxZoom float64) {
	if minZoom <= 0 || maxZoom < minZoom {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.minZoom, v.maxZoom = minZoom, maxZoom
	v.setZoomLocked(v.state.Zoom)
}

// SetZoom clamps z into the zoom range and returns the applied value
func (v *Viewport) SetZoom(z float64) float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.setZoomLocked(z)
}

// ZoomByWheel applies one wheel notch: positive deltaY zooms out
func (v *Viewport) ZoomByWheel(deltaY float64) float64 {
	v.mu.Lock()
	defer v.mu.Unlock()

	z := v.state.Zoom
	switch {
	case deltaY > 0:
		z /= WheelZoomStep
	case deltaY < 0:
		z *= WheelZoomStep
	default:
		return z
	}
	return v.setZoomLocked(z)
}

func (v *Viewport) setZoomLocked(z float64) float64 {
	if !finite(z) {
		return v.state.Zoom
	}
	z = math.Max(v.minZoom, math.Min(v.maxZoom, z))
	if z != v.state.Zoom {
		v.state.Zoom = z
		v.state.Version++
	}
	return z
}

// SetPixelWidth records a new measured container width
func (v *Viewport) SetPixelWidth(w float64) {
	if !finite(w) || w < 0 {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if w != v.state.PixelWidth {
		v.state.PixelWidth = w
		v.state.Version++
	}
}

// SetDuration records the duration of a newly loaded track
func (v *Viewport) SetDuration(d float64) {
	if !finite(d) || d < 0 {
		d = 0
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if d != v.state.Duration {
		v.state.Duration = d
		v.state.Version++
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
