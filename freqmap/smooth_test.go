package freqmap

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGaussianKernelSize(t *testing.T) {
	tests := []struct {
		sigma float64
		size  int
	}{
		{1.5, 11},
		{1.0, 7},
		{0.5, 5},
		{0, 1},
	}

	for _, tt := range tests {
		kernel := GaussianKernel(tt.sigma)
		assert.Len(t, kernel, tt.size, "sigma=%v", tt.sigma)
		mid := len(kernel) / 2
		assert.Equal(t, 1.0, kernel[mid])
		for i := 0; i < mid; i++ {
			assert.Equal(t, kernel[i], kernel[len(kernel)-1-i])
		}
	}
}

func TestGaussianSmoothPreservesLength(t *testing.T) {
	for _, n := range []int{0, 1, 2, 5, 11, 100} {
		data := make([]float64, n)
		for i := range data {
			data[i] = math.Sin(float64(i))
		}
		assert.Len(t, GaussianSmooth(data, 1.5), n)
	}
}

func TestGaussianSmoothConstantIsNoop(t *testing.T) {
	data := make([]float64, 37)
	for i := range data {
		data[i] = -42.25
	}

	out := GaussianSmooth(data, 1.5)
	for i, v := range out {
		assert.InDelta(t, -42.25, v, 1e-9, "index %d", i)
	}
}

func TestGaussianSmoothSpreadsImpulse(t *testing.T) {
	data := make([]float64, 21)
	data[10] = 1

	out := GaussianSmooth(data, 1.5)
	require.Len(t, out, 21)
	assert.Less(t, out[10], 1.0)
	assert.Greater(t, out[9], 0.0)
	assert.InDelta(t, out[9], out[11], 1e-12)
	assert.Greater(t, out[10], out[9])
	assert.Equal(t, 0.0, out[0])
}

func TestGaussianSmoothIgnoresNonFinite(t *testing.T) {
	data := []float64{2, 2, math.NaN(), 2, 2}
	out := GaussianSmooth(data, 1.0)
	for _, v := range out {
		assert.InDelta(t, 2, v, 1e-9)
	}

	out = GaussianSmooth([]float64{math.NaN()}, 1.5)
	assert.True(t, math.IsNaN(out[0]))
}
