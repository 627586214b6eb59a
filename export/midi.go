// Package export writes transcribed melodies as Standard MIDI Files.
package export

import (
	"bytes"
	"fmt"
	"os"

	"github.com/RyanBlaney/sonido-melodia/records"
	"github.com/RyanBlaney/sonido-melodia/theory"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// DefaultOctave is used for note symbols stored without an octave
const DefaultOctave = 4

// MelodyOptions controls how a note sequence is rendered
type MelodyOptions struct {
	BPM      float64
	Channel  uint8
	Velocity uint8
	Name     string
}

// DefaultMelodyOptions returns default rendering options
func DefaultMelodyOptions(bpm float64) MelodyOptions {
	return MelodyOptions{
		BPM:      bpm,
		Channel:  0,
		Velocity: 100,
	}
}

// noteKey maps "C#4" or a bare "C#" to a MIDI key
func noteKey(symbol string) (uint8, error) {
	note, err := theory.ParseNote(symbol)
	if err != nil {
		pc, pcErr := theory.PitchClassOf(symbol)
		if pcErr != nil {
			return 0, err
		}
		note = theory.Note{PitchClass: pc, Octave: DefaultOctave}
	}

	key := note.MIDI()
	if key < 0 || key > 127 {
		return 0, &theory.UnknownSymbolError{Symbol: symbol, Reason: "outside the MIDI key range"}
	}
	return uint8(key), nil
}

// Melody renders notes as consecutive quarter notes, one per beat
func Melody(notes []string, opts MelodyOptions) (*smf.SMF, error) {
	if opts.BPM <= 0 {
		return nil, fmt.Errorf("bpm must be positive, got %g", opts.BPM)
	}
	if opts.Channel > 15 {
		return nil, fmt.Errorf("midi channel %d out of range", opts.Channel)
	}

	s := smf.New()
	ticks, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, fmt.Errorf("unexpected time format %v", s.TimeFormat)
	}
	beat := ticks.Ticks4th()

	var track smf.Track
	if opts.Name != "" {
		track.Add(0, smf.MetaTrackSequenceName(opts.Name))
	}
	track.Add(0, smf.MetaMeter(4, 4))
	track.Add(0, smf.MetaTempo(opts.BPM))

	for _, symbol := range notes {
		key, err := noteKey(symbol)
		if err != nil {
			return nil, err
		}
		track.Add(0, midi.NoteOn(opts.Channel, key, opts.Velocity))
		track.Add(beat, midi.NoteOff(opts.Channel, key))
	}
	track.Close(0)

	if err := s.Add(track); err != nil {
		return nil, fmt.Errorf("failed to add track: %w", err)
	}
	return s, nil
}

// WriteMelody renders notes and stores them at path atomically
func WriteMelody(path string, notes []string, opts MelodyOptions) error {
	s, err := Melody(notes, opts)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return fmt.Errorf("failed to encode midi: %w", err)
	}
	return records.WriteFileAtomic(path, buf.Bytes())
}

// ReadMelody returns the note-on symbols of a file in order and its first
// tempo, or 0 if none is set
func ReadMelody(path string) ([]string, float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read %s: %w", path, err)
	}

	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	var (
		notes []string
		bpm   float64
	)
	for _, track := range s.Tracks {
		for _, event := range track {
			var channel, key, velocity uint8
			var tempo float64
			switch {
			case event.Message.GetNoteOn(&channel, &key, &velocity) && velocity > 0:
				notes = append(notes, theory.NoteFromMIDI(int(key)).String())
			case bpm == 0 && event.Message.GetMetaTempo(&tempo):
				bpm = tempo
			}
		}
	}

	return notes, bpm, nil
}
