package audio

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReduceSamplesLengthAndOrdering(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for _, n := range []int{0, 1, 7, 299, 300, 301, 1000, 44100} {
		samples := make([]float32, n)
		for i := range samples {
			samples[i] = rng.Float32()*2 - 1
		}

		for _, chunks := range []int{1, 10, 300} {
			envelope := ReduceSamples(samples, chunks)
			require.Len(t, envelope, chunks, "n=%d chunks=%d", n, chunks)
			for i, p := range envelope {
				assert.LessOrEqual(t, p.Min, p.Max, "n=%d chunk=%d", n, i)
			}
		}
	}
}

func TestReduceSamplesExtremes(t *testing.T) {
	samples := []float32{0.1, -0.2, 0.3, 0.9, -0.8, 0.0}

	envelope := ReduceSamples(samples, 3)
	assert.Equal(t, Envelope{
		{Min: -0.2, Max: 0.1},
		{Min: 0.3, Max: 0.9},
		{Min: -0.8, Max: 0.0},
	}, envelope)
}

func TestReduceSamplesFewerSamplesThanChunks(t *testing.T) {
	samples := []float32{0.5, -0.5, 0.25}

	envelope := ReduceSamples(samples, 5)
	require.Len(t, envelope, 5)
	assert.Equal(t, Peak{Min: 0.5, Max: 0.5}, envelope[0])
	assert.Equal(t, Peak{Min: -0.5, Max: -0.5}, envelope[1])
	assert.Equal(t, Peak{Min: 0.25, Max: 0.25}, envelope[2])
	assert.Equal(t, Peak{}, envelope[3])
	assert.Equal(t, Peak{}, envelope[4])
}

func TestReduceSamplesShortLastChunk(t *testing.T) {
	// ceil(10/4) = 3: chunks of 3,3,3,1
	samples := []float32{0, 1, 2, 3, 4, 5, 6, 7, 8, -9}

	envelope := ReduceSamples(samples, 4)
	assert.Equal(t, Peak{Min: -9, Max: -9}, envelope[3])
	assert.Equal(t, Peak{Min: 6, Max: 8}, envelope[2])
}

func TestReduceDegenerateInputs(t *testing.T) {
	assert.Empty(t, ReduceSamples([]float32{1, 2}, 0))
	assert.Len(t, Reduce(nil, 4), 4)
}
