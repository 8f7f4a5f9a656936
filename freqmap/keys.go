package freqmap

import (
	"fmt"
	"math"
	"sync"
)

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Note is one equal-tempered pitch
type Note struct {
	Name      string  `json:"name"`
	Midi      int     `json:"midi"`
	Frequency float64 `json:"frequency"`
}

// MidiFrequency returns the A440 equal-tempered frequency of a MIDI note
func MidiFrequency(midi int) float64 {
	return 440 * math.Pow(2, float64(midi-69)/12)
}

// NoteName formats a MIDI note as name plus octave, e.g. 60 -> C4
func NoteName(midi int) string {
	octave := midi/12 - 1
	idx := midi % 12
	if idx < 0 {
		idx += 12
		octave--
	}
	return fmt.Sprintf("%s%d", noteNames[idx], octave)
}

// NoteTable lists every semitone from C1 to C7 inclusive
func NoteTable() []Note {
	const c1, c7 = 24, 96
	notes := make([]Note, 0, c7-c1+1)
	for m := c1; m <= c7; m++ {
		notes = append(notes, Note{Name: NoteName(m), Midi: m, Frequency: MidiFrequency(m)})
	}
	return notes
}

// NearestNote returns the table note closest to freq on a log scale
func NearestNote(freq float64) (Note, bool) {
	if !isFinite(freq) || freq <= 0 {
		return Note{}, false
	}
	midi := int(math.Round(69 + 12*math.Log2(freq/440)))
	return Note{Name: NoteName(midi), Midi: midi, Frequency: MidiFrequency(midi)}, true
}

// Label is a vertical guide on the frequency panel
type Label struct {
	Text string  `json:"text"`
	X    float64 `json:"x"`
}

// KeyGrid describes the static guide lines of the frequency panel
type KeyGrid struct {
	KeyLines    []float64 `json:"keyLines"`
	OffsetLines []float64 `json:"offsetLines"`
	OctaveLines []Label   `json:"octaveLines"`
}

// BuildKeyGrid lays out keyCount slot lines, the dashed in-between lines and
// one emphasized line per C from C1 to C7, all in the same coordinate space
// as FrameToPoints with CenterKeys set
func BuildKeyGrid(p Params, width float64) KeyGrid {
	n := p.KeyCount
	if n <= 0 {
		return KeyGrid{}
	}
	offset := KeyOffset(width, n)

	grid := KeyGrid{
		KeyLines:    make([]float64, n),
		OffsetLines: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		base := float64(i) / float64(n) * width
		grid.KeyLines[i] = base + offset
		grid.OffsetLines[i] = base + width/float64(n)
	}

	for octave := 1; octave <= 7; octave++ {
		midi := (octave + 1) * 12
		freq := MidiFrequency(midi)
		grid.OctaveLines = append(grid.OctaveLines, Label{
			Text: NoteName(midi),
			X:    FrequencyToX(freq, p.LowFreq, p.HighFreq, width, n) + offset,
		})
	}
	return grid
}

// Keyboard zoom bounds, in visible white-key widths
const (
	MinVisibleKeys = 2.3263
	MaxVisibleKeys = 10.0
	KeyButtonStep  = 2.0
	KeyWheelStep   = 1.0
)

// KeyboardZoom is the horizontal zoom shared by the piano keyboard and the
// frequency panel
type KeyboardZoom struct {
	mu          sync.RWMutex
	visibleKeys float64
}

// NewKeyboardZoom starts fully zoomed out
func NewKeyboardZoom() *KeyboardZoom {
	return &KeyboardZoom{visibleKeys: MinVisibleKeys}
}

// VisibleKeys returns the current zoom
func (k *KeyboardZoom) VisibleKeys() float64 {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.visibleKeys
}

// Set clamps v into [MinVisibleKeys, MaxVisibleKeys] and applies it
func (k *KeyboardZoom) Set(v float64) float64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.setLocked(v)
}

// Step moves the zoom by delta keys
func (k *KeyboardZoom) Step(delta float64) float64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.setLocked(k.visibleKeys + delta)
}

func (k *KeyboardZoom) setLocked(v float64) float64 {
	if !isFinite(v) {
		return k.visibleKeys
	}
	k.visibleKeys = math.Max(MinVisibleKeys, math.Min(MaxVisibleKeys, v))
	return k.visibleKeys
}

// ScaleX is the horizontal stretch applied to the frequency panel
func (k *KeyboardZoom) ScaleX() float64 {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.visibleKeys / MinVisibleKeys
}
