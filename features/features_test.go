package features

import (
	"errors"
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-melodia/config"
	"github.com/RyanBlaney/sonido-melodia/segment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

const rate = 22050

func tone(freq, seconds float64) []float64 {
	n := int(math.Round(seconds * rate))
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.6 * math.Sin(2*math.Pi*freq*float64(i)/rate)
	}
	return out
}

func newExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := NewExtractor(config.DefaultConfig().Features, rate)
	require.NoError(t, err)
	return e
}

func TestFeatureMapShapeIndependentOfDuration(t *testing.T) {
	e := newExtractor(t)

	for _, seconds := range []float64{0.3, 0.5, 1.0, 1.7} {
		fm, err := e.Extract(segment.Chunk{Samples: tone(440, seconds), SampleRate: rate})
		require.NoError(t, err, "%gs", seconds)

		rows, cols := fm.Dims()
		assert.Equal(t, 128, rows, "%gs", seconds)
		assert.Equal(t, 128, cols, "%gs", seconds)
	}
}

func TestNormalizeFixesLength(t *testing.T) {
	e := newExtractor(t)
	for _, seconds := range []float64{0.01, 0.43, 1.0, 2.2} {
		out, err := e.Normalize(tone(330, seconds))
		require.NoError(t, err)
		assert.Len(t, out, e.TargetSamples())
	}
}

func TestEmptyChunk(t *testing.T) {
	e := newExtractor(t)

	_, err := e.Extract(segment.Chunk{Index: 4, SampleRate: rate})
	assert.True(t, errors.Is(err, ErrEmptyChunk))
}

func TestSampleRateMismatch(t *testing.T) {
	e := newExtractor(t)
	_, err := e.Extract(segment.Chunk{Samples: tone(440, 0.5), SampleRate: 44100})
	assert.Error(t, err)
}

func TestFeatureValuesInUnitRange(t *testing.T) {
	e := newExtractor(t)
	fm, err := e.ExtractSamples(tone(261.63, 0.5))
	require.NoError(t, err)

	values := fm.Flatten()
	assert.Len(t, values, 128*128)
	assert.GreaterOrEqual(t, floats.Min(values), 0.0)
	assert.LessOrEqual(t, floats.Max(values), 1.0)
	assert.Greater(t, floats.Max(values), 0.9)
}

func TestExtractIsDeterministic(t *testing.T) {
	e := newExtractor(t)
	samples := tone(392, 0.6)

	a, err := e.ExtractSamples(samples)
	require.NoError(t, err)
	b, err := e.ExtractSamples(samples)
	require.NoError(t, err)

	assert.Equal(t, a.Flatten(), b.Flatten())
}

func TestDifferentPitchesDifferentMaps(t *testing.T) {
	e := newExtractor(t)
	low, err := e.ExtractSamples(tone(261.63, 0.5))
	require.NoError(t, err)
	high, err := e.ExtractSamples(tone(523.25, 0.5))
	require.NoError(t, err)

	assert.Greater(t, floats.Distance(low.Flatten(), high.Flatten(), 2), 1.0)
}

func TestHigherPitchSitsHigherInMap(t *testing.T) {
	e := newExtractor(t)

	peakRow := func(freq float64) int {
		fm, err := e.ExtractSamples(tone(freq, 1.0))
		require.NoError(t, err)
		rows, cols := fm.Dims()
		energy := make([]float64, rows)
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				energy[i] += fm.At(i, j)
			}
		}
		return floats.MaxIdx(energy)
	}

	// row 0 is the top band
	assert.Less(t, peakRow(1000), peakRow(250))
}

func TestNewFeatureMap(t *testing.T) {
	fm, err := NewFeatureMap(2, 3, []float64{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	assert.Equal(t, 6.0, fm.At(1, 2))
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, fm.Flatten())

	_, err = NewFeatureMap(2, 2, []float64{1})
	assert.Error(t, err)

	var zero FeatureMap
	r, c := zero.Dims()
	assert.Zero(t, r)
	assert.Zero(t, c)
}

func TestNewExtractorValidates(t *testing.T) {
	cfg := config.DefaultConfig().Features
	_, err := NewExtractor(cfg, 0)
	assert.Error(t, err)

	bad := cfg
	bad.Height = 0
	_, err = NewExtractor(bad, rate)
	assert.Error(t, err)

	bad = cfg
	bad.FMax = 20000
	_, err = NewExtractor(bad, rate)
	assert.Error(t, err)
}
