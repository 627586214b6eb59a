package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCubicPassesThroughSamples(t *testing.T) {
	interp := NewInterpolator(Cubic)
	data := []float64{0, 1, 4, 9, 16, 25}
	for i, v := range data {
		assert.InDelta(t, v, interp.Interpolate(data, float64(i)), 1e-12)
	}
}

func TestResampleSignalLength(t *testing.T) {
	interp := NewInterpolator(Linear)
	assert.Len(t, interp.ResampleSignal(make([]float64, 44100), 44100, 22050), 22050)
	assert.Len(t, interp.ResampleSignal(make([]float64, 100), 8000, 8000), 100)
}

func TestFixLength(t *testing.T) {
	assert.Equal(t, []float64{1, 2, 0}, FixLength([]float64{1, 2}, 3))
	assert.Equal(t, []float64{1}, FixLength([]float64{1, 2}, 1))
	assert.Empty(t, FixLength([]float64{1}, -1))
}

func TestResize2DShape(t *testing.T) {
	tests := []struct {
		name string
		rows int
		cols int
	}{
		{"narrow", 4, 3},
		{"wide", 4, 90},
		{"single column", 5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grid := make([][]float64, tt.rows)
			for i := range grid {
				grid[i] = make([]float64, tt.cols)
				for j := range grid[i] {
					grid[i][j] = float64(i)
				}
			}

			out := Resize2D(grid, 8, 16)
			require.Len(t, out, 8)
			for _, row := range out {
				assert.Len(t, row, 16)
			}
			assert.Equal(t, 0.0, out[0][0])
			assert.Equal(t, float64(tt.rows-1), out[7][15])
		})
	}
}

func TestReflectPad(t *testing.T) {
	assert.Equal(t, []float64{3, 2, 1, 2, 3, 4, 3, 2}, ReflectPad([]float64{1, 2, 3, 4}, 2))
	assert.Equal(t, []float64{2, 1, 2, 1, 2}, ReflectPad([]float64{1, 2}, 2)[1:])
	assert.Equal(t, []float64{5, 5, 5}, ReflectPad([]float64{5}, 1))
}

func TestOverlapAddIdentity(t *testing.T) {
	window := []float64{0.5, 1, 0.5, 0}
	oab := NewOverlapAddBuffer(window, 2, 3)
	// frames of a constant signal after the analysis window
	for _i := 0; _i < 3; _i++ {
		require.NoError(t, oab.AddFrame([]float64{0.5, 1, 0.5, 0}))
	}
	assert.Error(t, oab.AddFrame([]float64{0.5, 1, 0.5, 0}))
	assert.Error(t, NewOverlapAddBuffer(window, 2, 1).AddFrame([]float64{1}))

	out := oab.Output()
	require.Len(t, out, oab.Len())
	for i := 0; i < 7; i++ {
		assert.InDelta(t, 1.0, out[i], 1e-12, "sample %d", i)
	}
}

