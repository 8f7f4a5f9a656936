package audio

import (
	"errors"
	"fmt"
)

// Track is a fully decoded recording. It is immutable once built; loading a
// new file produces a new Track rather than mutating this one.
type Track struct {
	Name       string
	Format     string
	SampleRate int
	Duration   float64 // seconds

	// channels[c][i] is sample i of channel c, in [-1, 1]
	channels [][]float32
}

// NewTrack validates the channel layout and derives the duration
func NewTrack(name, format string, sampleRate int, channels [][]float32) (*Track, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if len(channels) == 0 {
		return nil, errors.New("track has no channels")
	}

	n := len(channels[0])
	for i, ch := range channels[1:] {
		if len(ch) != n {
			return nil, fmt.Errorf("channel %d has %d samples, channel 0 has %d", i+1, len(ch), n)
		}
	}

	return &Track{
		Name:       name,
		Format:     format,
		SampleRate: sampleRate,
		Duration:   float64(n) / float64(sampleRate),
		channels:   channels,
	}, nil
}

// ChannelCount returns the number of decoded channels
func (t *Track) ChannelCount() int {
	return len(t.channels)
}

// SampleCount returns the number of samples per channel
func (t *Track) SampleCount() int {
	if len(t.channels) == 0 {
		return 0
	}
	return len(t.channels[0])
}

// Channel returns the samples of channel i. The slice must not be modified.
func (t *Track) Channel(i int) []float32 {
	if i < 0 || i >= len(t.channels) {
		return nil
	}
	return t.channels[i]
}
