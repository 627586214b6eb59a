// Package theory holds the immutable musical reference data shared by every
// stage of the transcriber: the pitch vocabulary the classifier predicts, the
// twelve major scales used for key detection and the note-name grammar.
package theory

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// sharp spelling only, C first
var pitchClasses = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var noteGrammar = regexp.MustCompile(`^([A-G]#?)(-?[0-9]+)$`)
var pitchClassGrammar = regexp.MustCompile(`^[A-G]#?$`)

// UnknownSymbolError reports a pitch symbol with no frequency or vocabulary mapping
type UnknownSymbolError struct {
	Symbol string
	Reason string
}

func (e *UnknownSymbolError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("unknown pitch symbol %q", e.Symbol)
	}
	return fmt.Sprintf("unknown pitch symbol %q: %s", e.Symbol, e.Reason)
}

// Note is a parsed pitch symbol such as "C#4"
type Note struct {
	PitchClass string
	Octave     int
}

func (n Note) String() string {
	return n.PitchClass + strconv.Itoa(n.Octave)
}

// MIDI returns the MIDI key number (C4 = 60)
func (n Note) MIDI() int {
	return (n.Octave+1)*12 + PitchClassIndex(n.PitchClass)
}

// Frequency returns the equal-tempered frequency with A4 = 440 Hz
func (n Note) Frequency() float64 {
	return 440.0 * math.Pow(2, float64(n.MIDI()-69)/12.0)
}

// NoteFromMIDI is the inverse of Note.MIDI
func NoteFromMIDI(key int) Note {
	pc := ((key % 12) + 12) % 12
	return Note{PitchClass: pitchClasses[pc], Octave: (key-pc)/12 - 1}
}

// ParseNote parses a note symbol of the form <pitch class><octave>, for
// example "C4", "F#4" or "C5". Flats, lowercase names and bare pitch
// classes are rejected.
func ParseNote(symbol string) (Note, error) {
	m := noteGrammar.FindStringSubmatch(symbol)
	if m == nil {
		return Note{}, &UnknownSymbolError{Symbol: symbol, Reason: "expected <pitch class><octave>"}
	}

	if PitchClassIndex(m[1]) < 0 {
		return Note{}, &UnknownSymbolError{Symbol: symbol, Reason: "not a sharp-spelled pitch class"}
	}

	octave, err := strconv.Atoi(m[2])
	if err != nil {
		return Note{}, &UnknownSymbolError{Symbol: symbol, Reason: err.Error()}
	}

	return Note{PitchClass: m[1], Octave: octave}, nil
}

// PitchClassOf returns the octave-independent pitch class of symbol. Both a
// full note ("G#4") and a bare pitch class ("G#") are accepted; this is the
// single normalization point between ground truth (with octave) and stored
// predictions (without octave).
func PitchClassOf(symbol string) (string, error) {
	if pitchClassGrammar.MatchString(symbol) {
		if PitchClassIndex(symbol) < 0 {
			return "", &UnknownSymbolError{Symbol: symbol, Reason: "not a sharp-spelled pitch class"}
		}
		return symbol, nil
	}

	note, err := ParseNote(symbol)
	if err != nil {
		return "", err
	}
	return note.PitchClass, nil
}

// PitchClassIndex returns 0 for C through 11 for B, or -1 when pc is not a
// sharp-spelled pitch class
func PitchClassIndex(pc string) int {
	for i, name := range pitchClasses {
		if name == pc {
			return i
		}
	}
	return -1
}

// Frequency returns the frequency of a note symbol
func Frequency(symbol string) (float64, error) {
	note, err := ParseNote(symbol)
	if err != nil {
		return 0, err
	}
	return note.Frequency(), nil
}
