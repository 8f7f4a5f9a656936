package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

var (
	// ErrNoInput is returned when there is nothing to decode, as opposed to
	// something undecodable
	ErrNoInput = errors.New("no audio file provided")

	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// DecodeError reports a malformed or unsupported upload
type DecodeError struct {
	Name   string
	Format string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("decode %s (%s): %v", e.Name, e.Format, e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Name, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decoder turns uploaded bytes into a Track. Non-seekable input is spooled to
// a temporary file which is removed again once decoding finishes.
type Decoder struct {
	TempDir string
}

// NewDecoder creates a decoder spooling to the default temp directory
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode reads a WAV or MP3 stream into a Track
func (d *Decoder) Decode(ctx context.Context, name string, r io.Reader) (*Track, error) {
	if r == nil {
		return nil, &DecodeError{Name: name, Err: ErrNoInput}
	}

	rs, ok := r.(io.ReadSeeker)
	if !ok {
		tmp, err := os.CreateTemp(d.TempDir, "waveanalyzer-decode-*")
		if err != nil {
			return nil, fmt.Errorf("failed to create spool file: %w", err)
		}
		defer func() {
			tmp.Close()
			os.Remove(tmp.Name())
		}()

		if _, err := io.Copy(tmp, r); err != nil {
			return nil, fmt.Errorf("failed to spool upload: %w", err)
		}
		if _, err := tmp.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		rs = tmp
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	header := make([]byte, 12)
	n, err := io.ReadFull(rs, header)
	if n == 0 {
		return nil, &DecodeError{Name: name, Err: ErrNoInput}
	}
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, &DecodeError{Name: name, Err: err}
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	format := sniffFormat(header[:n])
	switch format {
	case "wav":
		return decodeWAV(ctx, name, rs)
	case "mp3":
		return decodeMP3(ctx, name, rs)
	default:
		return nil, &DecodeError{Name: name, Format: format, Err: ErrUnsupportedFormat}
	}
}

// DecodeBytes is Decode over an in-memory upload
func (d *Decoder) DecodeBytes(ctx context.Context, name string, data []byte) (*Track, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Name: name, Err: ErrNoInput}
	}
	return d.Decode(ctx, name, bytes.NewReader(data))
}

func sniffFormat(header []byte) string {
	switch {
	case len(header) >= 12 && string(header[0:4]) == "RIFF" && string(header[8:12]) == "WAVE":
		return "wav"
	case len(header) >= 3 && string(header[0:3]) == "ID3":
		return "mp3"
	case len(header) >= 2 && header[0] == 0xFF && header[1]&0xE0 == 0xE0:
		return "mp3"
	case len(header) >= 4 && string(header[0:4]) == "fLaC":
		return "flac"
	case len(header) >= 4 && string(header[0:4]) == "OggS":
		return "ogg"
	}
	return "unknown"
}

func decodeWAV(ctx context.Context, name string, r io.ReadSeeker) (*Track, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, &DecodeError{Name: name, Format: "wav", Err: errors.New("invalid wav file")}
	}
	if decoder.WavAudioFormat != 1 {
		return nil, &DecodeError{Name: name, Format: "wav", Err: fmt.Errorf("%w: wav encoding %d", ErrUnsupportedFormat, decoder.WavAudioFormat)}
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, &DecodeError{Name: name, Format: "wav", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	numChannels := buf.Format.NumChannels
	if numChannels <= 0 {
		return nil, &DecodeError{Name: name, Format: "wav", Err: errors.New("no channels")}
	}

	bitDepth := int(decoder.BitDepth)
	if bitDepth == 0 {
		bitDepth = buf.SourceBitDepth
	}
	if bitDepth < 8 || bitDepth > 32 {
		return nil, &DecodeError{Name: name, Format: "wav", Err: fmt.Errorf("%w: %d-bit samples", ErrUnsupportedFormat, bitDepth)}
	}

	frames := len(buf.Data) / numChannels
	channels := make([][]float32, numChannels)
	for c := range channels {
		channels[c] = make([]float32, frames)
	}

	scale := float32(int64(1) << (bitDepth - 1))
	for i := 0; i < frames; i++ {
		for c := 0; c < numChannels; c++ {
			v := buf.Data[i*numChannels+c]
			if bitDepth == 8 {
				// 8-bit PCM is unsigned
				v -= 128
			}
			channels[c][i] = clampSample(float32(v) / scale)
		}
	}

	return NewTrack(name, "wav", buf.Format.SampleRate, channels)
}

func decodeMP3(ctx context.Context, name string, r io.Reader) (*Track, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, &DecodeError{Name: name, Format: "mp3", Err: err}
	}

	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, &DecodeError{Name: name, Format: "mp3", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// go-mp3 always yields 16-bit little-endian interleaved stereo
	const frameBytes = 4
	frames := len(pcm) / frameBytes
	left := make([]float32, frames)
	right := make([]float32, frames)
	for i := 0; i < frames; i++ {
		l := int16(binary.LittleEndian.Uint16(pcm[i*frameBytes:]))
		rr := int16(binary.LittleEndian.Uint16(pcm[i*frameBytes+2:]))
		left[i] = float32(l) / 32768.0
		right[i] = float32(rr) / 32768.0
	}

	return NewTrack(name, "mp3", decoder.SampleRate(), [][]float32{left, right})
}

func clampSample(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
