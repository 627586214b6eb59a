// Package synth generates sine-tone melodies with known ground truth and
// the reference note templates used by the template classifier.
package synth

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/RyanBlaney/sonido-melodia/classify"
	"github.com/RyanBlaney/sonido-melodia/features"
	"github.com/RyanBlaney/sonido-melodia/logging"
	"github.com/RyanBlaney/sonido-melodia/records"
	"github.com/RyanBlaney/sonido-melodia/segment"
	"github.com/RyanBlaney/sonido-melodia/theory"
	"github.com/RyanBlaney/sonido-melodia/transcode"
)

// Options controls melody and tone generation
type Options struct {
	SampleRate int `json:"sample_rate"`
	MinBPM     int `json:"min_bpm"`
	MaxBPM     int `json:"max_bpm"`
	MinLength  int `json:"min_length"` // notes per song
	MaxLength  int `json:"max_length"`
	Octave     int `json:"octave"`

	Detune       float64 `json:"detune"` // max Hz either side
	MinAmplitude float64 `json:"min_amplitude"`
	MaxAmplitude float64 `json:"max_amplitude"`
	NoiseStdDev  float64 `json:"noise_std_dev"`
}

// DefaultOptions returns the settings of the reference dataset
func DefaultOptions() Options {
	return Options{
		SampleRate:   22050,
		MinBPM:       80,
		MaxBPM:       140,
		MinLength:    20,
		MaxLength:    40,
		Octave:       4,
		Detune:       0.5,
		MinAmplitude: 0.45,
		MaxAmplitude: 0.55,
		NoiseStdDev:  0.005,
	}
}

// Validate checks option ranges
func (o Options) Validate() error {
	if o.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive")
	}
	if o.MinBPM <= 0 || o.MaxBPM < o.MinBPM {
		return fmt.Errorf("bpm range [%d, %d] invalid", o.MinBPM, o.MaxBPM)
	}
	if o.MinLength < 2 || o.MaxLength < o.MinLength {
		return fmt.Errorf("length range [%d, %d] invalid", o.MinLength, o.MaxLength)
	}
	if o.Detune < 0 || o.NoiseStdDev < 0 || o.MinAmplitude < 0 || o.MaxAmplitude < o.MinAmplitude {
		return fmt.Errorf("tone variation settings invalid")
	}
	return nil
}

// Generator produces songs from a seeded source. It is not safe for
// concurrent use.
type Generator struct {
	rng  *rand.Rand
	opts Options
	keys *theory.KeyTable
}

// NewGenerator creates a generator. A nil key table means the default
// major keys.
func NewGenerator(seed int64, opts Options, keys *theory.KeyTable) (*Generator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if keys == nil {
		keys = theory.DefaultKeyTable()
	}
	return &Generator{
		rng:  rand.New(rand.NewSource(seed)),
		opts: opts,
		keys: keys,
	}, nil
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

// Tone renders a sine at freq with jittered pitch and amplitude plus
// gaussian noise
func (g *Generator) Tone(freq float64, samples int) []float64 {
	detune := g.uniform(-g.opts.Detune, g.opts.Detune)
	amp := g.uniform(g.opts.MinAmplitude, g.opts.MaxAmplitude)
	rate := float64(g.opts.SampleRate)

	out := make([]float64, samples)
	for i := range out {
		t := float64(i) / rate
		out[i] = amp*math.Sin(2*math.Pi*(freq+detune)*t) + g.rng.NormFloat64()*g.opts.NoiseStdDev
	}
	return out
}

// Melody walks the scale from its tonic in steps of at most two degrees,
// clamped to the scale, and returns to the tonic on the last note
func (g *Generator) Melody(scale theory.Scale, length int) []string {
	if length <= 0 {
		return nil
	}

	melody := make([]string, 0, length)
	melody = append(melody, scale.Tonic())

	idx := 0
	for _i, n := 0, length-2; _i < n; _i++ {
		idx += g.rng.Intn(5) - 2
		idx = max(0, min(len(scale.Notes)-1, idx))
		melody = append(melody, scale.Notes[idx])
	}

	if length > 1 {
		melody = append(melody, scale.Tonic())
	}
	return melody
}

// Song draws a key, tempo and melody and renders it. Every note lasts
// exactly one beat as the segmenter computes it.
func (g *Generator) Song() (*records.Metadata, *transcode.Waveform, error) {
	scale := g.keys.ScaleAt(g.rng.Intn(g.keys.Len()))
	bpm := g.opts.MinBPM + g.rng.Intn(g.opts.MaxBPM-g.opts.MinBPM+1)
	length := g.opts.MinLength + g.rng.Intn(g.opts.MaxLength-g.opts.MinLength+1)

	beat, err := segment.BeatSamples(float64(bpm), g.opts.SampleRate)
	if err != nil {
		return nil, nil, err
	}

	pitchClasses := g.Melody(scale, length)
	notes := make([]string, len(pitchClasses))
	samples := make([]float64, 0, beat*len(pitchClasses))

	for i, pc := range pitchClasses {
		note := theory.Note{PitchClass: pc, Octave: g.opts.Octave}
		notes[i] = note.String()
		samples = append(samples, g.Tone(note.Frequency(), beat)...)
	}

	return &records.Metadata{Key: scale.Key, BPM: bpm, Notes: notes},
		&transcode.Waveform{Samples: samples, SampleRate: g.opts.SampleRate},
		nil
}

// WriteSongs generates count songs into layout starting at index first
func (g *Generator) WriteSongs(layout records.Layout, first, count int) error {
	logger := logging.WithFields(logging.Fields{
		"component": "synth",
		"function":  "WriteSongs",
	})

	for i := first; i < first+count; i++ {
		meta, wave, err := g.Song()
		if err != nil {
			return fmt.Errorf("song_%d: %w", i, err)
		}

		if err := layout.WriteMetadata(i, meta); err != nil {
			return fmt.Errorf("song_%d: %w", i, err)
		}
		if err := transcode.WriteWaveform(layout.SongPath(i), wave); err != nil {
			return fmt.Errorf("song_%d: %w", i, err)
		}

		logger.Debug("Generated song", logging.Fields{
			"song":  i,
			"key":   meta.Key,
			"bpm":   meta.BPM,
			"notes": len(meta.Notes),
		})
	}

	logger.Info("Generated songs", logging.Fields{"count": count, "dir": layout.SongsDir})
	return nil
}

// NoteTemplates renders examples tones of seconds length for every
// vocabulary label and averages their feature maps into a template model
func (g *Generator) NoteTemplates(extractor *features.Extractor, vocab *theory.Vocabulary, examples int, seconds, temperature float64) (*classify.TemplateModel, error) {
	if examples <= 0 || seconds <= 0 {
		return nil, fmt.Errorf("need a positive example count and duration")
	}

	samples := int(math.Round(seconds * float64(g.opts.SampleRate)))
	maps := make(map[string][]features.FeatureMap, vocab.Len())

	for _, label := range vocab.Labels() {
		freq, err := theory.Frequency(label)
		if err != nil {
			return nil, err
		}
		for _i := 0; _i < examples; _i++ {
			fm, err := extractor.ExtractSamples(g.Tone(freq, samples))
			if err != nil {
				return nil, fmt.Errorf("label %s: %w", label, err)
			}
			maps[label] = append(maps[label], fm)
		}
	}

	return classify.NewTemplateModel(vocab.Labels(), maps, temperature)
}
