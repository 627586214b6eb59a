package spectral

import (
	"math"
)

// PowerSpectrum converts magnitudes to power and power to decibels
type PowerSpectrum struct{}

// NewPowerSpectrum creates a new power spectrum calculator
func NewPowerSpectrum() *PowerSpectrum {
	return &PowerSpectrum{}
}

// Compute computes power spectral density from magnitude spectrum
func (ps *PowerSpectrum) Compute(magnitudeSpectrum []float64) []float64 {
	power := make([]float64, len(magnitudeSpectrum))
	for i, mag := range magnitudeSpectrum {
		power[i] = mag * mag
	}
	return power
}

// MinPower is the floor applied before taking logarithms
const MinPower = 1e-10

// PowerToDB converts a power spectrogram to decibels relative to its own
// peak, so the loudest cell is 0 dB. When topDB > 0, cells more than topDB
// below the peak are clamped to -topDB. The input is not modified.
func (ps *PowerSpectrum) PowerToDB(power [][]float64, topDB float64) [][]float64 {
	peak := MinPower
	for _, row := range power {
		for _, v := range row {
			peak = math.Max(peak, v)
		}
	}
	ref := 10 * math.Log10(peak)

	db := make([][]float64, len(power))
	for i, row := range power {
		db[i] = make([]float64, len(row))
		for j, v := range row {
			d := 10*math.Log10(math.Max(MinPower, v)) - ref
			if topDB > 0 {
				d = math.Max(d, -topDB)
			}
			db[i][j] = d
		}
	}

	return db
}
