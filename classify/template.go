package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"slices"

	"github.com/RyanBlaney/sonido-melodia/features"
	"github.com/RyanBlaney/sonido-melodia/records"
	"gonum.org/v1/gonum/floats"
)

// TemplateModel is the serialized nearest-centroid model: one mean feature
// map per label, flattened row-major
type TemplateModel struct {
	Labels      []string    `json:"labels"`
	Height      int         `json:"height"`
	Width       int         `json:"width"`
	Temperature float64     `json:"temperature"`
	Centroids   [][]float64 `json:"centroids"`
}

// Validate checks that every centroid matches the declared shape
func (m *TemplateModel) Validate() error {
	if len(m.Labels) == 0 {
		return fmt.Errorf("template model has no labels")
	}
	if len(m.Centroids) != len(m.Labels) {
		return fmt.Errorf("template model has %d centroids for %d labels", len(m.Centroids), len(m.Labels))
	}
	if m.Height <= 0 || m.Width <= 0 {
		return fmt.Errorf("template model shape %dx%d invalid", m.Height, m.Width)
	}
	if m.Temperature <= 0 {
		return fmt.Errorf("template model temperature must be positive")
	}
	for i, c := range m.Centroids {
		if len(c) != m.Height*m.Width {
			return fmt.Errorf("centroid %q has %d values, want %d", m.Labels[i], len(c), m.Height*m.Width)
		}
	}
	return nil
}

// LoadTemplateModel reads a JSON template model
func LoadTemplateModel(path string) (*TemplateModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template model: %w", err)
	}

	var m TemplateModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse template model %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid template model %s: %w", path, err)
	}
	return &m, nil
}

// SaveTemplateModel writes m as JSON, creating parent directories
func SaveTemplateModel(path string, m *TemplateModel) error {
	if err := m.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode template model: %w", err)
	}
	return records.WriteFileAtomic(path, data)
}

// NewTemplateModel averages the example maps of each label into a centroid.
// Every label needs at least one example.
func NewTemplateModel(labels []string, examples map[string][]features.FeatureMap, temperature float64) (*TemplateModel, error) {
	m := &TemplateModel{
		Labels:      slices.Clone(labels),
		Temperature: temperature,
		Centroids:   make([][]float64, len(labels)),
	}

	for i, label := range labels {
		maps := examples[label]
		if len(maps) == 0 {
			return nil, fmt.Errorf("no examples for label %q", label)
		}

		rows, cols := maps[0].Dims()
		if i == 0 {
			m.Height, m.Width = rows, cols
		}
		if rows != m.Height || cols != m.Width {
			return nil, fmt.Errorf("label %q examples are %dx%d, want %dx%d", label, rows, cols, m.Height, m.Width)
		}

		centroid := make([]float64, rows*cols)
		for _, fm := range maps {
			r, c := fm.Dims()
			if r != rows || c != cols {
				return nil, fmt.Errorf("label %q has mixed example shapes", label)
			}
			floats.Add(centroid, fm.Flatten())
		}
		floats.Scale(1/float64(len(maps)), centroid)
		m.Centroids[i] = centroid
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// TemplateClassifier scores a feature map by a softmax over negative squared
// distances to each label's centroid. It is read-only after construction.
type TemplateClassifier struct {
	model *TemplateModel
}

// NewTemplateClassifier validates m and wraps it
func NewTemplateClassifier(m *TemplateModel) (*TemplateClassifier, error) {
	if m == nil {
		return nil, fmt.Errorf("template model is nil")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &TemplateClassifier{model: m}, nil
}

func (t *TemplateClassifier) Labels() []string {
	return slices.Clone(t.model.Labels)
}

func (t *TemplateClassifier) Classify(ctx context.Context, fm features.FeatureMap) (Distribution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, cols := fm.Dims()
	if rows != t.model.Height || cols != t.model.Width {
		return nil, fmt.Errorf("feature map is %dx%d, model expects %dx%d", rows, cols, t.model.Height, t.model.Width)
	}

	values := fm.Flatten()
	logits := make([]float64, len(t.model.Centroids))
	for i, centroid := range t.model.Centroids {
		d := floats.Distance(values, centroid, 2)
		logits[i] = -d * d / t.model.Temperature
	}

	return softmax(logits), nil
}

func softmax(logits []float64) Distribution {
	peak := floats.Max(logits)
	out := make(Distribution, len(logits))
	for i, l := range logits {
		out[i] = math.Exp(l - peak)
	}
	floats.Scale(1/floats.Sum(out), out)
	return out
}
