package theory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNote(t *testing.T) {
	tests := []struct {
		symbol  string
		want    Note
		wantErr bool
	}{
		{symbol: "C4", want: Note{PitchClass: "C", Octave: 4}},
		{symbol: "F#4", want: Note{PitchClass: "F#", Octave: 4}},
		{symbol: "C5", want: Note{PitchClass: "C", Octave: 5}},
		{symbol: "A#-1", want: Note{PitchClass: "A#", Octave: -1}},
		{symbol: "C", wantErr: true},
		{symbol: "Bb4", wantErr: true},
		{symbol: "E#4", wantErr: true},
		{symbol: "c4", wantErr: true},
		{symbol: "X4", wantErr: true},
		{symbol: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			got, err := ParseNote(tt.symbol)
			if tt.wantErr {
				var unknown *UnknownSymbolError
				assert.True(t, errors.As(err, &unknown), "want UnknownSymbolError, got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.symbol, got.String())
		})
	}
}

func TestPitchClassOfAcceptsBothRepresentations(t *testing.T) {
	withOctave, err := PitchClassOf("G#4")
	require.NoError(t, err)
	bare, err := PitchClassOf("G#")
	require.NoError(t, err)

	assert.Equal(t, "G#", withOctave)
	assert.Equal(t, withOctave, bare)

	_, err = PitchClassOf("H")
	assert.Error(t, err)
}

func TestFrequency(t *testing.T) {
	a4, err := Frequency("A4")
	require.NoError(t, err)
	assert.InDelta(t, 440.0, a4, 1e-9)

	c4, err := Frequency("C4")
	require.NoError(t, err)
	assert.InDelta(t, 261.63, c4, 0.01)

	c5, err := Frequency("C5")
	require.NoError(t, err)
	assert.InDelta(t, 523.25, c5, 0.01)

	_, err = Frequency("Q4")
	assert.Error(t, err)
}

func TestDefaultVocabularyOrder(t *testing.T) {
	v := DefaultVocabulary()
	require.Equal(t, 13, v.Len())

	label, err := v.Label(0)
	require.NoError(t, err)
	assert.Equal(t, "A#4", label)

	label, err = v.Label(12)
	require.NoError(t, err)
	assert.Equal(t, "G4", label)

	idx, ok := v.Index("C5")
	assert.True(t, ok)
	assert.Equal(t, 5, idx)

	_, err = v.Label(13)
	assert.Error(t, err)
}

func TestNewVocabularyRejectsDuplicates(t *testing.T) {
	_, err := NewVocabulary([]string{"C4", "C4"})
	assert.Error(t, err)

	_, err = NewVocabulary([]string{"C"})
	assert.Error(t, err)
}

func TestDefaultKeyTable(t *testing.T) {
	table := DefaultKeyTable()
	assert.Equal(t, []string{"C", "G", "D", "A", "E", "B", "F#", "C#", "F", "A#", "D#", "G#"}, table.Order())

	for _, s := range table.Scales() {
		assert.Len(t, s.Notes, 7)
		assert.Equal(t, s.Key, s.Tonic())
	}

	g, ok := table.Scale("G")
	require.True(t, ok)
	assert.True(t, g.Contains("F#"))
	assert.False(t, g.Contains("F"))
}

func TestKeyTableIsNotMutableThroughAccessors(t *testing.T) {
	table := DefaultKeyTable()
	scales := table.Scales()
	scales[0].Notes[0] = "X"

	c, ok := table.Scale("C")
	require.True(t, ok)
	assert.Equal(t, "C", c.Tonic())
}

func TestNewKeyTableValidation(t *testing.T) {
	_, err := NewKeyTable([]Scale{{Key: "C", Notes: []string{"C", "D"}}})
	assert.Error(t, err)

	_, err = NewKeyTable([]Scale{{Key: "G", Notes: []string{"C", "D", "E", "F", "G", "A", "B"}}})
	assert.Error(t, err)

	_, err = NewKeyTable([]Scale{{Key: "C", Notes: []string{"C", "D", "E", "F", "G", "A", "A"}}})
	assert.Error(t, err)
}

func TestReorder(t *testing.T) {
	table := DefaultKeyTable()
	order := []string{"G#", "D#", "A#", "F", "C#", "F#", "B", "E", "A", "D", "G", "C"}

	reordered, err := table.Reorder(order)
	require.NoError(t, err)
	assert.Equal(t, order, reordered.Order())

	_, err = table.Reorder([]string{"C"})
	assert.Error(t, err)
}

func TestNoteFromMIDI(t *testing.T) {
	tests := []struct {
		key  int
		want string
	}{
		{60, "C4"},
		{69, "A4"},
		{72, "C5"},
		{61, "C#4"},
		{11, "B-1"},
	}

	for _, tt := range tests {
		n := NoteFromMIDI(tt.key)
		assert.Equal(t, tt.want, n.String())
		assert.Equal(t, tt.key, n.MIDI())
	}
}
