package common

import (
	"math"
)

// InterpolationType defines interpolation method
type InterpolationType int

const (
	Linear InterpolationType = iota
	Cubic
)

// Interpolator resamples 1-D data at fractional indices
type Interpolator struct {
	method InterpolationType
}

// NewInterpolator creates a new interpolator
func NewInterpolator(method InterpolationType) *Interpolator {
	return &Interpolator{
		method: method,
	}
}

// Interpolate performs interpolation at fractional index
func (interp *Interpolator) Interpolate(data []float64, index float64) float64 {
	switch interp.method {
	case Cubic:
		return interp.cubicInterpolate(data, index)
	default:
		return interp.linearInterpolate(data, index)
	}
}

func (interp *Interpolator) linearInterpolate(data []float64, index float64) float64 {
	if len(data) == 0 {
		return 0.0
	}

	if index <= 0 {
		return data[0]
	}
	if index >= float64(len(data)-1) {
		return data[len(data)-1]
	}

	i := int(index)
	frac := index - float64(i)
	return data[i] + frac*(data[i+1]-data[i])
}

// cubicInterpolate is Catmull-Rom with clamped end points
func (interp *Interpolator) cubicInterpolate(data []float64, index float64) float64 {
	n := len(data)
	if n < 4 {
		return interp.linearInterpolate(data, index)
	}
	if index <= 0 {
		return data[0]
	}
	if index >= float64(n-1) {
		return data[n-1]
	}

	i := int(index)
	t := index - float64(i)

	at := func(k int) float64 {
		return data[max(0, min(n-1, k))]
	}
	p0, p1, p2, p3 := at(i-1), at(i), at(i+1), at(i+2)

	a := -0.5*p0 + 1.5*p1 - 1.5*p2 + 0.5*p3
	b := p0 - 2.5*p1 + 2*p2 - 0.5*p3
	c := -0.5*p0 + 0.5*p2
	return ((a*t+b)*t+c)*t + p1
}

// ResampleSignal resamples a signal to a new sample rate
func (interp *Interpolator) ResampleSignal(signal []float64, originalRate, targetRate int) []float64 {
	if len(signal) == 0 || originalRate <= 0 || targetRate <= 0 || originalRate == targetRate {
		return signal
	}

	ratio := float64(originalRate) / float64(targetRate)
	newLength := int(math.Round(float64(len(signal)) / ratio))

	if newLength <= 0 {
		return []float64{}
	}

	resampled := make([]float64, newLength)
	for i := range resampled {
		resampled[i] = interp.Interpolate(signal, float64(i)*ratio)
	}

	return resampled
}

// FixLength truncates or zero-pads signal to exactly n samples
func FixLength(signal []float64, n int) []float64 {
	out := make([]float64, max(n, 0))
	copy(out, signal)
	return out
}

// BilinearInterpolate performs 2D bilinear interpolation at column x, row y
func BilinearInterpolate(data [][]float64, x, y float64) float64 {
	if len(data) == 0 || len(data[0]) == 0 {
		return 0.0
	}

	rows := len(data)
	cols := len(data[0])

	x = Clamp(x, 0, float64(cols-1))
	y = Clamp(y, 0, float64(rows-1))

	x1 := int(x)
	y1 := int(y)
	x2 := min(x1+1, cols-1)
	y2 := min(y1+1, rows-1)

	fx := x - float64(x1)
	fy := y - float64(y1)

	top := data[y1][x1]*(1-fx) + data[y1][x2]*fx
	bottom := data[y2][x1]*(1-fx) + data[y2][x2]*fx
	return top*(1-fy) + bottom*fy
}

// Resize2D maps a rows×cols grid onto height×width by bilinear sampling with
// corners aligned. The output shape depends only on height and width.
func Resize2D(data [][]float64, height, width int) [][]float64 {
	out := make([][]float64, height)
	for i := range out {
		out[i] = make([]float64, width)
	}
	if len(data) == 0 || len(data[0]) == 0 || height <= 0 || width <= 0 {
		return out
	}

	rows := len(data)
	cols := len(data[0])

	scale := func(n, size int) float64 {
		if size <= 1 {
			return 0
		}
		return float64(n-1) / float64(size-1)
	}
	sy := scale(rows, height)
	sx := scale(cols, width)

	for i := 0; i < height; i++ {
		for j := 0; j < width; j++ {
			out[i][j] = BilinearInterpolate(data, float64(j)*sx, float64(i)*sy)
		}
	}

	return out
}
