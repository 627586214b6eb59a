// Package features turns beat chunks into fixed-shape log-mel feature maps.
package features

import (
	"errors"
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-melodia/algorithms/common"
	"github.com/RyanBlaney/sonido-melodia/algorithms/spectral"
	"github.com/RyanBlaney/sonido-melodia/algorithms/windowing"
	"github.com/RyanBlaney/sonido-melodia/config"
	"github.com/RyanBlaney/sonido-melodia/segment"
	"gonum.org/v1/gonum/mat"
)

// ErrEmptyChunk is returned for chunks with no samples
var ErrEmptyChunk = errors.New("chunk has no samples")

// FeatureMap is a Height x Width grid of log-mel energy scaled to [0, 1].
// Row 0 is the highest mel band, column 0 the earliest frame.
type FeatureMap struct {
	data *mat.Dense
}

// NewFeatureMap wraps a row-major slice of rows*cols values
func NewFeatureMap(rows, cols int, values []float64) (FeatureMap, error) {
	if rows <= 0 || cols <= 0 || len(values) != rows*cols {
		return FeatureMap{}, fmt.Errorf("feature map %dx%d needs %d values, got %d", rows, cols, rows*cols, len(values))
	}
	return FeatureMap{data: mat.NewDense(rows, cols, values)}, nil
}

// Dims returns the number of rows and columns
func (f FeatureMap) Dims() (rows, cols int) {
	if f.data == nil {
		return 0, 0
	}
	return f.data.Dims()
}

// At returns the value at row i, column j
func (f FeatureMap) At(i, j int) float64 {
	return f.data.At(i, j)
}

// Flatten returns a row-major copy of the values
func (f FeatureMap) Flatten() []float64 {
	rows, cols := f.Dims()
	out := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		out = append(out, f.data.RawRowView(i)...)
	}
	return out
}

// Extractor normalizes chunk duration and renders feature maps. It is
// immutable after construction and safe for concurrent use.
type Extractor struct {
	cfg        config.FeatureConfig
	sampleRate int

	vocoder    *spectral.PhaseVocoder
	stft       *spectral.STFT
	window     *windowing.Hann
	filterBank [][]float64
	mel        *spectral.MelScale
	power      *spectral.PowerSpectrum
}

// NewExtractor builds an extractor for waveforms at sampleRate
func NewExtractor(cfg config.FeatureConfig, sampleRate int) (*Extractor, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive: %d", sampleRate)
	}
	if cfg.TargetDuration <= 0 {
		return nil, fmt.Errorf("target duration must be positive: %g", cfg.TargetDuration)
	}
	if cfg.Height <= 0 || cfg.Width <= 0 {
		return nil, fmt.Errorf("feature map shape must be positive: %dx%d", cfg.Height, cfg.Width)
	}
	if cfg.FFTSize <= 0 || cfg.HopSize <= 0 {
		return nil, fmt.Errorf("fft and hop sizes must be positive")
	}

	vocoder, err := spectral.NewPhaseVocoder(cfg.StretchFFTSize, cfg.StretchHopSize)
	if err != nil {
		return nil, err
	}

	mel := spectral.NewMelScale()
	bank, err := mel.CreateMelFilterBank(cfg.MelBands, cfg.FFTSize, sampleRate, cfg.FMin, cfg.FMax)
	if err != nil {
		return nil, err
	}

	return &Extractor{
		cfg:        cfg,
		sampleRate: sampleRate,
		vocoder:    vocoder,
		stft:       spectral.NewSTFT(1),
		window:     windowing.NewHann(cfg.FFTSize, false),
		filterBank: bank,
		mel:        mel,
		power:      spectral.NewPowerSpectrum(),
	}, nil
}

// TargetSamples is the length every chunk is normalized to
func (e *Extractor) TargetSamples() int {
	return int(math.Round(e.cfg.TargetDuration * float64(e.sampleRate)))
}

// Normalize time-stretches samples to the target duration without changing
// pitch and fixes the length to exactly TargetSamples
func (e *Extractor) Normalize(samples []float64) ([]float64, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyChunk
	}

	target := e.TargetSamples()
	if len(samples) == target {
		return common.FixLength(samples, target), nil
	}

	// original duration / target duration
	rate := float64(len(samples)) / float64(target)

	stretched, err := e.vocoder.TimeStretch(samples, rate)
	if err != nil {
		return nil, fmt.Errorf("time stretch failed: %w", err)
	}

	return common.FixLength(stretched, target), nil
}

// Extract normalizes a chunk and renders its feature map
func (e *Extractor) Extract(chunk segment.Chunk) (FeatureMap, error) {
	if chunk.SampleRate != 0 && chunk.SampleRate != e.sampleRate {
		return FeatureMap{}, fmt.Errorf("chunk %d sample rate %d, extractor expects %d",
			chunk.Index, chunk.SampleRate, e.sampleRate)
	}
	return e.ExtractSamples(chunk.Samples)
}

// ExtractSamples renders the feature map of raw chunk samples
func (e *Extractor) ExtractSamples(samples []float64) (FeatureMap, error) {
	normalized, err := e.Normalize(samples)
	if err != nil {
		return FeatureMap{}, err
	}

	melDB, err := e.LogMel(normalized)
	if err != nil {
		return FeatureMap{}, err
	}

	return e.render(melDB), nil
}

// LogMel returns the Mel x Time power spectrogram of samples in dB relative
// to its own peak, floored at -TopDB
func (e *Extractor) LogMel(samples []float64) ([][]float64, error) {
	spectrum, err := e.stft.ComputeCentered(samples, e.cfg.FFTSize, e.cfg.HopSize, e.sampleRate, e.window)
	if err != nil {
		return nil, fmt.Errorf("stft failed: %w", err)
	}

	melPower := e.mel.MelSpectrogram(spectrum.Power(), e.filterBank)
	return e.power.PowerToDB(melPower, e.cfg.TopDB), nil
}

// render flips bands so high frequencies come first, resizes to the fixed
// shape and maps [-TopDB, 0] dB onto [0, 1]
func (e *Extractor) render(melDB [][]float64) FeatureMap {
	flipped := make([][]float64, len(melDB))
	for i, row := range melDB {
		flipped[len(melDB)-1-i] = row
	}

	resized := common.Resize2D(flipped, e.cfg.Height, e.cfg.Width)

	values := make([]float64, 0, e.cfg.Height*e.cfg.Width)
	for _, row := range resized {
		for _, db := range row {
			values = append(values, common.Clamp((db+e.cfg.TopDB)/e.cfg.TopDB, 0, 1))
		}
	}

	return FeatureMap{data: mat.NewDense(e.cfg.Height, e.cfg.Width, values)}
}

