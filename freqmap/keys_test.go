package freqmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoteNames(t *testing.T) {
	assert.Equal(t, "C1", NoteName(24))
	assert.Equal(t, "C4", NoteName(60))
	assert.Equal(t, "A4", NoteName(69))
	assert.Equal(t, "F#2", NoteName(42))
	assert.Equal(t, "C7", NoteName(96))
}

func TestNoteTable(t *testing.T) {
	notes := NoteTable()
	require.Len(t, notes, 73)
	assert.Equal(t, "C1", notes[0].Name)
	assert.InDelta(t, 32.703, notes[0].Frequency, 1e-3)
	assert.Equal(t, "C7", notes[72].Name)
	assert.InDelta(t, 2093.005, notes[72].Frequency, 1e-3)
}

func TestNearestNote(t *testing.T) {
	n, ok := NearestNote(440)
	require.True(t, ok)
	assert.Equal(t, "A4", n.Name)

	n, ok = NearestNote(263)
	require.True(t, ok)
	assert.Equal(t, "C4", n.Name)

	_, ok = NearestNote(0)
	assert.False(t, ok)
}

func TestBuildKeyGrid(t *testing.T) {
	const width = 860.0
	grid := BuildKeyGrid(DefaultParams(), width)

	require.Len(t, grid.KeyLines, KeyCount)
	require.Len(t, grid.OffsetLines, KeyCount)
	require.Len(t, grid.OctaveLines, 7)

	assert.InDelta(t, 10.0, grid.KeyLines[0], 1e-9)
	assert.InDelta(t, 20.0, grid.OffsetLines[0], 1e-9)

	assert.Equal(t, "C1", grid.OctaveLines[0].Text)
	assert.InDelta(t, 10.0, grid.OctaveLines[0].X, 0.1)
	assert.Equal(t, "C7", grid.OctaveLines[6].Text)
	assert.InDelta(t, width-width/KeyCount+10, grid.OctaveLines[6].X, 0.1)

	assert.Empty(t, BuildKeyGrid(Params{}, width).KeyLines)
}

func TestKeyboardZoom(t *testing.T) {
	k := NewKeyboardZoom()
	assert.Equal(t, MinVisibleKeys, k.VisibleKeys())
	assert.InDelta(t, 1.0, k.ScaleX(), 1e-12)

	k.Step(KeyButtonStep)
	assert.InDelta(t, MinVisibleKeys+2, k.VisibleKeys(), 1e-12)

	assert.Equal(t, MaxVisibleKeys, k.Set(50))
	assert.InDelta(t, 10/2.3263, k.ScaleX(), 1e-12)

	assert.Equal(t, MinVisibleKeys, k.Step(-100))
	assert.Equal(t, MinVisibleKeys, k.Set(0))
}
