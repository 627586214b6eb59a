package classify

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/RyanBlaney/sonido-melodia/config"
	"github.com/RyanBlaney/sonido-melodia/features"
	"github.com/RyanBlaney/sonido-melodia/theory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func featureMap(t *testing.T, values ...float64) features.FeatureMap {
	t.Helper()
	fm, err := features.NewFeatureMap(2, 2, values)
	require.NoError(t, err)
	return fm
}

func threeLabelModel(t *testing.T) *TemplateModel {
	t.Helper()
	m, err := NewTemplateModel(
		[]string{"C4", "E4", "G4"},
		map[string][]features.FeatureMap{
			"C4": {featureMap(t, 1, 0, 0, 0), featureMap(t, 0.8, 0, 0, 0)},
			"E4": {featureMap(t, 0, 1, 0, 0)},
			"G4": {featureMap(t, 0, 0, 1, 0)},
		},
		0.1,
	)
	require.NoError(t, err)
	return m
}

func TestDistributionArgMax(t *testing.T) {
	tests := []struct {
		name string
		dist Distribution
		want int
	}{
		{"single max", Distribution{0.1, 0.7, 0.2}, 1},
		{"first max wins", Distribution{0.4, 0.2, 0.4}, 0},
		{"empty", nil, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.dist.ArgMax())
		})
	}
}

func TestNewTemplateModelAverages(t *testing.T) {
	m := threeLabelModel(t)
	assert.Equal(t, 2, m.Height)
	assert.Equal(t, 2, m.Width)
	assert.InDeltaSlice(t, []float64{0.9, 0, 0, 0}, m.Centroids[0], 1e-12)
}

func TestNewTemplateModelNeedsExamples(t *testing.T) {
	_, err := NewTemplateModel([]string{"C4", "D4"}, map[string][]features.FeatureMap{
		"C4": {featureMap(t, 1, 0, 0, 0)},
	}, 1)
	assert.Error(t, err)
}

func TestTemplateClassifierPicksNearestCentroid(t *testing.T) {
	c, err := NewTemplateClassifier(threeLabelModel(t))
	require.NoError(t, err)

	tests := []struct {
		input []float64
		want  string
	}{
		{[]float64{0.9, 0.1, 0, 0}, "C4"},
		{[]float64{0, 0.7, 0.2, 0}, "E4"},
		{[]float64{0, 0, 1, 0.3}, "G4"},
	}

	for _, tt := range tests {
		label, dist, err := Predict(context.Background(), c, featureMap(t, tt.input...))
		require.NoError(t, err)
		assert.Equal(t, tt.want, label)
		assert.InDelta(t, 1.0, floats.Sum(dist), 1e-9)
	}
}

func TestTemplateClassifierRejectsWrongShape(t *testing.T) {
	c, err := NewTemplateClassifier(threeLabelModel(t))
	require.NoError(t, err)

	fm, err := features.NewFeatureMap(1, 4, []float64{1, 0, 0, 0})
	require.NoError(t, err)

	_, err = c.Classify(context.Background(), fm)
	assert.Error(t, err)
}

func TestTemplateClassifierHonoursCancellation(t *testing.T) {
	c, err := NewTemplateClassifier(threeLabelModel(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Classify(ctx, featureMap(t, 1, 0, 0, 0))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTemplateModelValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *TemplateModel)
	}{
		{"no labels", func(m *TemplateModel) { m.Labels = nil }},
		{"centroid count", func(m *TemplateModel) { m.Centroids = m.Centroids[:2] }},
		{"shape", func(m *TemplateModel) { m.Width = 3 }},
		{"temperature", func(m *TemplateModel) { m.Temperature = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := threeLabelModel(t)
			tt.mutate(m)
			assert.Error(t, m.Validate())
		})
	}
}

func TestSaveAndLoadTemplateModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, SaveTemplateModel(path, threeLabelModel(t)))

	loaded, err := LoadTemplateModel(path)
	require.NoError(t, err)
	assert.Equal(t, threeLabelModel(t), loaded)

	_, err = LoadTemplateModel(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadChecksVocabulary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, SaveTemplateModel(path, threeLabelModel(t)))

	cfg := config.DefaultConfig()
	cfg.Classifier.ModelPath = path

	vocab, err := theory.NewVocabulary([]string{"C4", "E4", "G4"})
	require.NoError(t, err)
	c, err := Load(cfg, vocab)
	require.NoError(t, err)
	assert.Equal(t, []string{"C4", "E4", "G4"}, c.Labels())

	reordered, err := theory.NewVocabulary([]string{"E4", "C4", "G4"})
	require.NoError(t, err)
	_, err = Load(cfg, reordered)
	assert.Error(t, err)

	_, err = Load(cfg, theory.DefaultVocabulary())
	assert.Error(t, err)
}

func TestLoadSerialized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, SaveTemplateModel(path, threeLabelModel(t)))

	cfg := config.DefaultConfig()
	cfg.Classifier.ModelPath = path
	cfg.Classifier.Serialize = true

	vocab, err := theory.NewVocabulary([]string{"C4", "E4", "G4"})
	require.NoError(t, err)
	c, err := Load(cfg, vocab)
	require.NoError(t, err)

	_, ok := c.(*serialized)
	assert.True(t, ok)
}

func TestConcurrentClassify(t *testing.T) {
	base, err := NewTemplateClassifier(threeLabelModel(t))
	require.NoError(t, err)

	input := featureMap(t, 0, 0, 0.9, 0)
	for _, c := range []Classifier{base, Serialized(base)} {
		var wg sync.WaitGroup
		labels := make([]string, 32)
		for i := range labels {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				label, _, err := Predict(context.Background(), c, input)
				if err == nil {
					labels[i] = label
				}
			}()
		}
		wg.Wait()

		for _, label := range labels {
			assert.Equal(t, "G4", label)
		}
	}
}
