package transcode

import (
	"fmt"
	"time"
)

// Waveform is a mono signal with its sample rate. Samples are normalized to
// [-1, 1]. A Waveform is not modified after it is loaded.
type Waveform struct {
	Samples    []float64 `json:"-"`
	SampleRate int       `json:"sample_rate"`
}

// Duration returns the length of the waveform in time
func (w *Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(w.Samples)) / float64(w.SampleRate) * float64(time.Second))
}

// Seconds returns the length of the waveform in seconds
func (w *Waveform) Seconds() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// Validate checks that the sample rate is usable
func (w *Waveform) Validate() error {
	if w == nil {
		return fmt.Errorf("waveform is nil")
	}
	if w.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", w.SampleRate)
	}
	return nil
}

// downmix averages interleaved channels into one
func downmix(interleaved []float64, channels int) []float64 {
	if channels <= 1 {
		return interleaved
	}

	frames := len(interleaved) / channels
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		mono[i] = sum / float64(channels)
	}
	return mono
}
