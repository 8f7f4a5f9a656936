package audio

// DefaultChunkCount is the number of envelope pairs drawn for a track
const DefaultChunkCount = 300

// Peak summarizes one contiguous chunk of samples
type Peak struct {
	Min float32 `json:"min"`
	Max float32 `json:"max"`
}

// Envelope is a fixed-length min/max summary of channel 0
type Envelope []Peak

// Reduce summarizes channel 0 of the track into chunkCount peaks
func Reduce(t *Track, chunkCount int) Envelope {
	if t == nil {
		return ReduceSamples(nil, chunkCount)
	}
	return ReduceSamples(t.Channel(0), chunkCount)
}

// ReduceSamples splits samples into chunkCount windows of
// ceil(len/chunkCount) samples and records each window's extremes. Windows
// that start past the end of the data are {0, 0}, so the result always has
// exactly chunkCount entries.
func ReduceSamples(samples []float32, chunkCount int) Envelope {
	if chunkCount <= 0 {
		return Envelope{}
	}

	envelope := make(Envelope, chunkCount)
	n := len(samples)
	if n == 0 {
		return envelope
	}

	chunkSize := (n + chunkCount - 1) / chunkCount
	for i := 0; i < chunkCount; i++ {
		start := i * chunkSize
		if start >= n {
			break
		}
		end := start + chunkSize
		if end > n {
			end = n
		}

		lo, hi := samples[start], samples[start]
		for _, s := range samples[start+1 : end] {
			if s < lo {
				lo = s
			}
			if s > hi {
				hi = s
			}
		}
		envelope[i] = Peak{Min: lo, Max: hi}
	}

	return envelope
}

// Extremes returns the lowest minimum and highest maximum of the envelope
func (e Envelope) Extremes() (lo, hi float32) {
	for i, p := range e {
		if i == 0 || p.Min < lo {
			lo = p.Min
		}
		if i == 0 || p.Max > hi {
			hi = p.Max
		}
	}
	return lo, hi
}
