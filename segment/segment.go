// Package segment cuts a waveform into beat-length chunks.
package segment

import (
	"fmt"
	"math"
	"time"

	"github.com/RyanBlaney/sonido-melodia/logging"
	"github.com/RyanBlaney/sonido-melodia/transcode"
)

// ConfigurationError reports a tempo or sample rate that cannot produce chunks
type ConfigurationError struct {
	Field string
	Value float64
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %g", e.Field, e.Value)
}

// Chunk is one beat of a waveform. Samples aliases the source waveform and
// must not be modified.
type Chunk struct {
	Index      int       `json:"index"`
	Samples    []float64 `json:"-"`
	SampleRate int       `json:"sample_rate"`
}

// Duration returns the chunk length in time
func (c Chunk) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(c.Samples)) / float64(c.SampleRate) * float64(time.Second))
}

// Seconds returns the chunk length in seconds
func (c Chunk) Seconds() float64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// BeatSamples returns round(60/bpm × sampleRate)
func BeatSamples(bpm float64, sampleRate int) (int, error) {
	if bpm <= 0 || math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		return 0, &ConfigurationError{Field: "bpm", Value: bpm}
	}
	if sampleRate <= 0 {
		return 0, &ConfigurationError{Field: "sample rate", Value: float64(sampleRate)}
	}

	beat := int(math.Round(60 / bpm * float64(sampleRate)))
	if beat <= 0 {
		return 0, &ConfigurationError{Field: "bpm", Value: bpm}
	}
	return beat, nil
}

// Split returns floor(N/beat) consecutive chunks of exactly one beat each,
// starting at sample 0. Trailing samples shorter than a beat are dropped. A
// waveform shorter than one beat yields no chunks and no error.
func Split(w *transcode.Waveform, bpm float64) ([]Chunk, error) {
	if w == nil {
		return nil, fmt.Errorf("waveform is nil")
	}

	beat, err := BeatSamples(bpm, w.SampleRate)
	if err != nil {
		return nil, err
	}

	numChunks := len(w.Samples) / beat
	chunks := make([]Chunk, numChunks)
	for i := range chunks {
		start := i * beat
		chunks[i] = Chunk{
			Index:      i,
			Samples:    w.Samples[start : start+beat : start+beat],
			SampleRate: w.SampleRate,
		}
	}

	logging.Debug("Split waveform into beats", logging.Fields{
		"component":    "segmenter",
		"bpm":          bpm,
		"beat_samples": beat,
		"chunks":       numChunks,
		"dropped":      len(w.Samples) - numChunks*beat,
	})

	return chunks, nil
}
