package spectral

import (
	"fmt"
	"math"
)

// MelScale converts between Hz and HTK mels and builds filter banks
type MelScale struct{}

// NewMelScale creates a new mel scale converter
func NewMelScale() *MelScale {
	return &MelScale{}
}

// HzToMel converts frequency in Hz to mel scale
func (ms *MelScale) HzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// MelToHz converts mel scale to frequency in Hz
func (ms *MelScale) MelToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// CreateMelFilterBank builds numFilters triangular filters over the
// fftSize/2+1 bins, equally spaced in mels between lowFreq and highFreq.
// Triangles are evaluated at each bin's center frequency so narrow low
// bands still get non-zero weights from their nearest bins.
func (ms *MelScale) CreateMelFilterBank(numFilters int, fftSize int, sampleRate int, lowFreq, highFreq float64) ([][]float64, error) {
	if numFilters <= 0 || fftSize <= 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("invalid filter bank size: %d filters, fft %d, rate %d", numFilters, fftSize, sampleRate)
	}
	if lowFreq < 0 || highFreq <= lowFreq || highFreq > float64(sampleRate)/2 {
		return nil, fmt.Errorf("invalid filter bank range [%g, %g] Hz", lowFreq, highFreq)
	}

	lowMel := ms.HzToMel(lowFreq)
	highMel := ms.HzToMel(highFreq)

	hzPoints := make([]float64, numFilters+2)
	melStep := (highMel - lowMel) / float64(numFilters+1)
	for i := range hzPoints {
		hzPoints[i] = ms.MelToHz(lowMel + float64(i)*melStep)
	}

	bins := fftSize/2 + 1
	binHz := float64(sampleRate) / float64(fftSize)

	filterBank := make([][]float64, numFilters)
	for m := range filterBank {
		filterBank[m] = make([]float64, bins)
		left, center, right := hzPoints[m], hzPoints[m+1], hzPoints[m+2]

		for k := 0; k < bins; k++ {
			f := float64(k) * binHz
			rising := (f - left) / (center - left)
			falling := (right - f) / (right - center)
			filterBank[m][k] = math.Max(0, math.Min(rising, falling))
		}

		// no bin landed inside the triangle: fall back to the nearest bin
		if isZero(filterBank[m]) {
			nearest := int(math.Round(center / binHz))
			filterBank[m][min(nearest, bins-1)] = 1
		}
	}

	return filterBank, nil
}

func isZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// ApplyFilterBank applies mel filter bank to power spectrum
func (ms *MelScale) ApplyFilterBank(powerSpectrum []float64, filterBank [][]float64) []float64 {
	if len(filterBank) == 0 || len(powerSpectrum) == 0 {
		return []float64{}
	}

	melSpectrum := make([]float64, len(filterBank))
	for i, filter := range filterBank {
		sum := 0.0
		for j := 0; j < len(filter) && j < len(powerSpectrum); j++ {
			sum += powerSpectrum[j] * filter[j]
		}
		melSpectrum[i] = sum
	}

	return melSpectrum
}

// MelSpectrogram maps a Time x Frequency power spectrogram to Mel x Time,
// low bands first
func (ms *MelScale) MelSpectrogram(power [][]float64, filterBank [][]float64) [][]float64 {
	mel := make([][]float64, len(filterBank))
	for m := range mel {
		mel[m] = make([]float64, len(power))
	}

	for t, frame := range power {
		for m, v := range ms.ApplyFilterBank(frame, filterBank) {
			mel[m][t] = v
		}
	}

	return mel
}
