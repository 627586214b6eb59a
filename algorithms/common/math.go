package common

import (
	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// ReflectPad pads both ends of signal by mirroring around the edge samples,
// excluding the edge itself. Padding longer than the signal keeps reflecting.
func ReflectPad(signal []float64, pad int) []float64 {
	n := len(signal)
	out := make([]float64, n+2*pad)
	copy(out[pad:], signal)
	if n <= 1 {
		if n == 1 {
			for i := range out {
				out[i] = signal[0]
			}
		}
		return out
	}

	period := 2 * (n - 1)
	reflect := func(k int) float64 {
		k %= period
		if k < 0 {
			k += period
		}
		if k >= n {
			k = period - k
		}
		return signal[k]
	}

	for i := 0; i < pad; i++ {
		out[i] = reflect(i - pad)
		out[pad+n+i] = reflect(n + i)
	}

	return out
}

// Clamp constrains a value to a range
func Clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

