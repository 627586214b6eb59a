package segment

import (
	"errors"
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-melodia/transcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeatSamples(t *testing.T) {
	tests := []struct {
		bpm  float64
		rate int
		want int
	}{
		{120, 22050, 11025},
		{60, 22050, 22050},
		{90, 22050, 14700},
		{140, 22050, 9450},
		{97, 22050, 13639}, // 13639.175...
		{133, 22050, 9947}, // 9947.368...
	}

	for _, tt := range tests {
		got, err := BeatSamples(tt.bpm, tt.rate)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "bpm %g", tt.bpm)
	}
}

func TestBeatSamplesRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		bpm  float64
		rate int
	}{
		{"zero bpm", 0, 22050},
		{"negative bpm", -120, 22050},
		{"nan bpm", math.NaN(), 22050},
		{"zero rate", 120, 0},
		{"huge bpm", 1e12, 22050},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BeatSamples(tt.bpm, tt.rate)
			var cfgErr *ConfigurationError
			assert.True(t, errors.As(err, &cfgErr))
		})
	}
}

func TestSplitFiveSecondsAt120(t *testing.T) {
	w := &transcode.Waveform{Samples: make([]float64, 110250), SampleRate: 22050}
	for i := range w.Samples {
		w.Samples[i] = float64(i)
	}

	chunks, err := Split(w, 120)
	require.NoError(t, err)
	require.Len(t, chunks, 10)

	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Len(t, c.Samples, 11025)
		assert.Equal(t, float64(i*11025), c.Samples[0])
		assert.InDelta(t, 0.5, c.Seconds(), 1e-12)
	}
}

func TestSplitChunkCountProperty(t *testing.T) {
	for _, n := range []int{0, 1, 11024, 11025, 11026, 50000, 99999} {
		for _, bpm := range []float64{80, 97, 120, 140} {
			w := &transcode.Waveform{Samples: make([]float64, n), SampleRate: 22050}
			chunks, err := Split(w, bpm)
			require.NoError(t, err)

			beat, _ := BeatSamples(bpm, 22050)
			assert.Len(t, chunks, n/beat)
			for _, c := range chunks {
				assert.Len(t, c.Samples, beat)
			}
		}
	}
}

func TestSplitShortWaveformYieldsNothing(t *testing.T) {
	chunks, err := Split(&transcode.Waveform{Samples: make([]float64, 100), SampleRate: 22050}, 120)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplitChunksDoNotGrowIntoNeighbours(t *testing.T) {
	w := &transcode.Waveform{Samples: make([]float64, 4), SampleRate: 4}
	chunks, err := Split(w, 120)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	_ = append(chunks[0].Samples, 9)
	assert.Equal(t, 0.0, w.Samples[2])
}

func TestSplitErrors(t *testing.T) {
	_, err := Split(nil, 120)
	assert.Error(t, err)

	_, err = Split(&transcode.Waveform{Samples: make([]float64, 10)}, 120)
	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "sample rate", cfgErr.Field)
}
