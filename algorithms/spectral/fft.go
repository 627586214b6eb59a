package spectral

import (
	"github.com/mjibson/go-dsp/fft"
)

// FFT wraps go-dsp's mixed-radix transform
type FFT struct{}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute returns the full complex spectrum of a real signal. Sizes need not
// be powers of two.
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}
	return fft.FFTReal(x)
}

// InverseHalfSpectrum rebuilds a real frame of length n from its n/2+1
// non-negative frequency bins
func (f *FFT) InverseHalfSpectrum(half []complex128, n int) []float64 {
	if len(half) == 0 || n <= 0 {
		return []float64{}
	}

	full := make([]complex128, n)
	for k := 0; k < len(half) && k < n; k++ {
		full[k] = half[k]
	}
	for k := 1; k < len(half); k++ {
		if n-k > k && n-k < n {
			full[n-k] = complex(real(half[k]), -imag(half[k]))
		}
	}

	result := fft.IFFT(full)
	frame := make([]float64, n)
	for i, val := range result {
		frame[i] = real(val)
	}
	return frame
}
