package spectral

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/RyanBlaney/sonido-melodia/algorithms/windowing"
)

// PhaseVocoder changes signal duration without changing pitch
type PhaseVocoder struct {
	stft       *STFT
	windowSize int
	hopSize    int
	window     *windowing.Hann
}

// NewPhaseVocoder creates a vocoder working on windowSize frames with a
// periodic Hann window
func NewPhaseVocoder(windowSize, hopSize int) (*PhaseVocoder, error) {
	if windowSize <= 0 || hopSize <= 0 || hopSize > windowSize {
		return nil, fmt.Errorf("invalid vocoder geometry: window %d, hop %d", windowSize, hopSize)
	}
	return &PhaseVocoder{
		stft:       NewSTFT(1),
		windowSize: windowSize,
		hopSize:    hopSize,
		window:     windowing.NewHann(windowSize, false),
	}, nil
}

// TimeStretch plays signal rate times faster: rate 2 halves the duration,
// rate 0.5 doubles it. The result has round(len(signal)/rate) samples.
func (pv *PhaseVocoder) TimeStretch(signal []float64, rate float64) ([]float64, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}
	if rate <= 0 || math.IsInf(rate, 0) || math.IsNaN(rate) {
		return nil, fmt.Errorf("stretch rate must be positive and finite, got %g", rate)
	}

	length := int(math.Round(float64(len(signal)) / rate))
	if length <= 0 {
		return nil, fmt.Errorf("stretch rate %g leaves no samples", rate)
	}

	spectrum, err := pv.stft.ComputeCentered(signal, pv.windowSize, pv.hopSize, 0, pv.window)
	if err != nil {
		return nil, fmt.Errorf("analysis failed: %w", err)
	}

	frames := pv.stretchFrames(spectrum.Complex, rate)

	out, err := pv.stft.Inverse(frames, pv.windowSize, pv.hopSize, pv.window.GetCoefficients(), true, length)
	if err != nil {
		return nil, fmt.Errorf("synthesis failed: %w", err)
	}
	return out, nil
}

// stretchFrames resamples frames at fractional steps of rate, interpolating
// magnitudes and accumulating phase from the measured per-bin advance
func (pv *PhaseVocoder) stretchFrames(frames [][]complex128, rate float64) [][]complex128 {
	bins := len(frames[0])
	at := func(t int) []complex128 {
		if t < len(frames) {
			return frames[t]
		}
		// zero frames past the end
		return make([]complex128, bins)
	}

	expected := make([]float64, bins)
	for k := range expected {
		expected[k] = 2 * math.Pi * float64(pv.hopSize) * float64(k) / float64(pv.windowSize)
	}

	phase := make([]float64, bins)
	for k, c := range frames[0] {
		phase[k] = cmplx.Phase(c)
	}

	steps := int(math.Ceil(float64(len(frames)) / rate))
	out := make([][]complex128, 0, steps)

	for t := 0; t < steps; t++ {
		step := float64(t) * rate
		base := int(step)
		alpha := step - float64(base)
		cur, next := at(base), at(base+1)

		frame := make([]complex128, bins)
		for k := 0; k < bins; k++ {
			mag := (1-alpha)*cmplx.Abs(cur[k]) + alpha*cmplx.Abs(next[k])
			frame[k] = cmplx.Rect(mag, phase[k])

			dphase := cmplx.Phase(next[k]) - cmplx.Phase(cur[k]) - expected[k]
			dphase -= 2 * math.Pi * math.Round(dphase/(2*math.Pi))
			phase[k] += expected[k] + dphase
		}
		out = append(out, frame)
	}

	return out
}
