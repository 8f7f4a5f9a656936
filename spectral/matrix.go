package spectral

import (
	"errors"
	"fmt"
	"math"
)

// Default analysis contract of the spectral service
const (
	DefaultSampleRate = 8192
	DefaultHopLength  = 916
)

// Matrix is a magnitude grid indexed as Magnitude[bin][frame]. It is never
// modified after construction.
type Matrix struct {
	Magnitude  [][]float64
	SampleRate int
	HopLength  int
}

// NewMatrix validates that magnitude is a non-empty rectangle and that the
// timing contract is usable
func NewMatrix(magnitude [][]float64, sampleRate, hopLength int) (*Matrix, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if hopLength <= 0 {
		return nil, fmt.Errorf("invalid hop length %d", hopLength)
	}
	if len(magnitude) == 0 {
		return nil, errors.New("matrix has no frequency bins")
	}

	frames := len(magnitude[0])
	for i, row := range magnitude {
		if len(row) != frames {
			return nil, fmt.Errorf("bin %d has %d frames, bin 0 has %d", i, len(row), frames)
		}
	}

	return &Matrix{
		Magnitude:  magnitude,
		SampleRate: sampleRate,
		HopLength:  hopLength,
	}, nil
}

// BinCount returns the number of frequency bins
func (m *Matrix) BinCount() int {
	return len(m.Magnitude)
}

// FrameCount returns the number of time frames
func (m *Matrix) FrameCount() int {
	if len(m.Magnitude) == 0 {
		return 0
	}
	return len(m.Magnitude[0])
}

// FrameIndex maps a playback time to floor(t * sampleRate / hopLength).
// Non-finite times map to -1, which is never a valid frame.
func (m *Matrix) FrameIndex(seconds float64) int {
	return FrameIndex(seconds, m.SampleRate, m.HopLength)
}

// FrameIndex is the frame arithmetic without a matrix
func FrameIndex(seconds float64, sampleRate, hopLength int) int {
	if hopLength <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return -1
	}
	return int(math.Floor(seconds * float64(sampleRate) / float64(hopLength)))
}

// InRange reports whether idx addresses a frame of the matrix
func (m *Matrix) InRange(idx int) bool {
	return idx >= 0 && idx < m.FrameCount()
}

// Frame copies column idx across all bins into dst, growing it as needed.
// It returns nil when idx is out of range.
func (m *Matrix) Frame(idx int, dst []float64) []float64 {
	if !m.InRange(idx) {
		return nil
	}

	bins := m.BinCount()
	if cap(dst) < bins {
		dst = make([]float64, bins)
	}
	dst = dst[:bins]
	for b, row := range m.Magnitude {
		dst[b] = row[idx]
	}
	return dst
}

// BinFrequency returns the Hz value represented by bin on the linear axis
func (m *Matrix) BinFrequency(bin int) float64 {
	return BinFrequency(bin, m.BinCount(), m.SampleRate)
}

// BinFrequency returns bin * (sampleRate/2) / binCount
func BinFrequency(bin, binCount, sampleRate int) float64 {
	if binCount <= 0 {
		return math.NaN()
	}
	return float64(bin) * (float64(sampleRate) / 2) / float64(binCount)
}

// Duration returns the span of audio covered by the frames, in seconds
func (m *Matrix) Duration() float64 {
	return float64(m.FrameCount()*m.HopLength) / float64(m.SampleRate)
}
