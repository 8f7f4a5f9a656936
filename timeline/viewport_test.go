package timeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeToXAndXToTimeAreInverses(t *testing.T) {
	for _, zoom := range []float64{0.5, 0.75, 1, 1.05, 2, 3.3, 4} {
		vs := ViewState{PixelWidth: 1000, Zoom: zoom, Duration: 187.3}
		for sec := 0.0; sec <= vs.Duration; sec += 0.37 {
			assert.InDelta(t, sec, vs.XToTime(vs.TimeToX(sec)), 1e-9, "zoom=%v t=%v", zoom, sec)
		}
		assert.InDelta(t, vs.Duration, vs.XToTime(vs.TimeToX(vs.Duration)), 1e-9)
	}
}

func TestZoomChangeMovesSeekerTarget(t *testing.T) {
	v := NewViewport(1000)
	v.SetDuration(100)

	assert.InDelta(t, 500, v.TimeToX(50), 1e-9)
	v.SetZoom(2)
	assert.InDelta(t, 1000, v.TimeToX(50), 1e-9)
}

func TestTimeToXGuardsUnknownDuration(t *testing.T) {
	vs := ViewState{PixelWidth: 800, Zoom: 1}
	assert.Equal(t, 0.0, vs.TimeToX(12))
	assert.Equal(t, 0.0, vs.XToTime(12))

	vs = ViewState{PixelWidth: 0, Zoom: 1, Duration: 10}
	assert.Equal(t, 0.0, vs.XToTime(5))

	vs = ViewState{PixelWidth: 100, Zoom: 1, Duration: math.NaN()}
	assert.Equal(t, 0.0, vs.TimeToX(1))
}

func TestSetZoomClamps(t *testing.T) {
	v := NewViewport(500)
	assert.Equal(t, 4.0, v.SetZoom(10))
	assert.Equal(t, 0.5, v.SetZoom(0.1))
	assert.Equal(t, 0.5, v.SetZoom(math.NaN()))
	assert.Equal(t, 1.5, v.SetZoom(1.5))
}

func TestZoomByWheel(t *testing.T) {
	v := NewViewport(500)

	assert.InDelta(t, 1.05, v.ZoomByWheel(-120), 1e-12)
	assert.InDelta(t, 1.0, v.ZoomByWheel(120), 1e-12)
	assert.InDelta(t, 1.0, v.ZoomByWheel(0), 1e-12)

	for i := 0; i < 100; i++ {
		v.ZoomByWheel(-1)
	}
	assert.Equal(t, DefaultMaxZoom, v.State().Zoom)

	for i := 0; i < 100; i++ {
		v.ZoomByWheel(1)
	}
	assert.Equal(t, DefaultMinZoom, v.State().Zoom)
}

func TestViewportVersionChangesOnMutation(t *testing.T) {
	v := NewViewport(500)
	v0 := v.State().Version

	v.SetZoom(1)
	assert.Equal(t, v0, v.State().Version, "no-op zoom keeps the version")

	v.SetZoom(2)
	v1 := v.State().Version
	assert.Greater(t, v1, v0)

	v.SetPixelWidth(600)
	v2 := v.State().Version
	assert.Greater(t, v2, v1)

	v.SetDuration(30)
	assert.Greater(t, v.State().Version, v2)
}

func TestSetZoomBoundsReclamps(t *testing.T) {
	v := NewViewport(500)
	v.SetZoom(3)
	v.SetZoomBounds(0.5, 2)

	lo, hi := v.ZoomBounds()
	assert.Equal(t, 0.5, lo)
	assert.Equal(t, 2.0, hi)
	assert.Equal(t, 2.0, v.State().Zoom)

	v.SetZoomBounds(3, 1)
	lo, hi = v.ZoomBounds()
	assert.Equal(t, 0.5, lo)
	assert.Equal(t, 2.0, hi)
}

func TestClampX(t *testing.T) {
	vs := ViewState{PixelWidth: 400, Zoom: 2, Duration: 10}
	require.Equal(t, 800.0, vs.ContentWidth())
	assert.Equal(t, 0.0, vs.ClampX(-5))
	assert.Equal(t, 800.0, vs.ClampX(900))
	assert.Equal(t, 123.0, vs.ClampX(123))
	assert.Equal(t, 0.0, vs.ClampX(math.Inf(1)))
}
