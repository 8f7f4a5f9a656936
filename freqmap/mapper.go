// Package freqmap projects spectral frames onto a logarithmic piano-key axis.
package freqmap

import (
	"math"
)

// Reference pitches bounding the displayed range (C1 and C7)
const (
	LowC  = 32.7
	HighC = 2093.0

	// KeyCount is the number of key slots between LowC and HighC
	KeyCount = 43
)

// Params controls the frame-to-points transform. Exponent and Headroom
// decide how sharp peaks look, so two renderers only agree pixel for pixel
// when they share them.
type Params struct {
	LowFreq        float64
	HighFreq       float64
	KeyCount       int
	Sigma          float64
	Exponent       float64
	Headroom       float64
	HeightFraction float64

	// PlotSmoothed plots the smoothed amplitudes instead of the raw ones.
	// The maximum is always taken from the smoothed frame.
	PlotSmoothed bool

	// CenterKeys shifts every point by half a key slot so peaks sit in the
	// middle of their key
	CenterKeys bool
}

// DefaultParams returns the standard piano-axis transform
func DefaultParams() Params {
	return Params{
		LowFreq:        LowC,
		HighFreq:       HighC,
		KeyCount:       KeyCount,
		Sigma:          1.5,
		Exponent:       2,
		Headroom:       80,
		HeightFraction: 0.85,
		CenterKeys:     true,
	}
}

// Point is one vertex of the frequency curve
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FrequencyToX maps freq onto [0, width - width/keyCount] on a log2 axis
// anchored at low and high
func FrequencyToX(freq, low, high, width float64, keyCount int) float64 {
	span := width
	if keyCount > 0 {
		span = width - width/float64(keyCount)
	}
	return (math.Log2(freq/low) / math.Log2(high/low)) * span
}

// KeyOffset is the half-slot shift applied to centred points and labels
func KeyOffset(width float64, keyCount int) float64 {
	if keyCount <= 0 {
		return 0
	}
	return width / float64(keyCount*2)
}

// FrameToPoints converts one spectral column into curve vertices for a view
// of width x height pixels. Bins outside [LowFreq, HighFreq] and non-finite
// values are skipped. A frame whose smoothed maximum is not positive yields
// no points.
func FrameToPoints(frame []float64, sampleRate int, p Params, width, height float64) []Point {
	binCount := len(frame)
	if binCount == 0 || sampleRate <= 0 {
		return []Point{}
	}

	smoothed := GaussianSmooth(frame, p.Sigma)
	maxAmplitude := math.Inf(-1)
	for _, v := range smoothed {
		if isFinite(v) && v > maxAmplitude {
			maxAmplitude = v
		}
	}
	if !isFinite(maxAmplitude) || maxAmplitude <= 0 {
		return []Point{}
	}

	amplitudes := frame
	if p.PlotSmoothed {
		amplitudes = smoothed
	}

	offset := 0.0
	if p.CenterKeys {
		offset = KeyOffset(width, p.KeyCount)
	}

	nyquist := float64(sampleRate) / 2
	points := make([]Point, 0, binCount)
	for bin, amplitude := range amplitudes {
		freq := float64(bin) * nyquist / float64(binCount)
		if !isFinite(freq) || !isFinite(amplitude) {
			continue
		}
		if freq < p.LowFreq || freq > p.HighFreq {
			continue
		}

		x := FrequencyToX(freq, p.LowFreq, p.HighFreq, width, p.KeyCount) + offset
		y := AmplitudeToY(amplitude, maxAmplitude, p, height)
		if !isFinite(x) || !isFinite(y) {
			continue
		}
		points = append(points, Point{X: x, Y: y})
	}
	return points
}

// AmplitudeToY normalizes by max, applies the exaggeration curve, rescales
// and maps the result against the headroom:
//
//	y = height - ((max*(a/max)^exp + headroom) / headroom) * height * heightFraction
func AmplitudeToY(amplitude, maxAmplitude float64, p Params, height float64) float64 {
	exaggerated := math.Pow(amplitude/maxAmplitude, p.Exponent) * maxAmplitude
	return height - ((exaggerated+p.Headroom)/p.Headroom)*height*p.HeightFraction
}

// Flatten interleaves points into the x0,y0,x1,y1,... layout line renderers expect
func Flatten(points []Point) []float64 {
	out := make([]float64, 0, len(points)*2)
	for _, pt := range points {
		out = append(out, pt.X, pt.Y)
	}
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
