// Package classify maps feature maps to a probability distribution over the
// note vocabulary.
package classify

import (
	"context"
	"fmt"
	"sync"

	"github.com/RyanBlaney/sonido-melodia/config"
	"github.com/RyanBlaney/sonido-melodia/features"
	"github.com/RyanBlaney/sonido-melodia/logging"
	"github.com/RyanBlaney/sonido-melodia/theory"
	"gonum.org/v1/gonum/floats"
)

// Distribution holds one probability per vocabulary label, in vocabulary order
type Distribution []float64

// ArgMax returns the index of the largest probability. The first maximum
// wins; an empty distribution returns -1.
func (d Distribution) ArgMax() int {
	if len(d) == 0 {
		return -1
	}
	return floats.MaxIdx(d)
}

// Classifier is a pre-trained note model. Implementations are loaded once and
// must be deterministic for a given input.
type Classifier interface {
	Classify(ctx context.Context, fm features.FeatureMap) (Distribution, error)
	Labels() []string
}

// Predict classifies fm and returns the most likely label
func Predict(ctx context.Context, c Classifier, fm features.FeatureMap) (string, Distribution, error) {
	dist, err := c.Classify(ctx, fm)
	if err != nil {
		return "", nil, err
	}

	labels := c.Labels()
	if len(dist) != len(labels) {
		return "", nil, fmt.Errorf("classifier returned %d scores for %d labels", len(dist), len(labels))
	}

	return labels[dist.ArgMax()], dist, nil
}

// serialized guards a classifier that is not safe for concurrent inference
type serialized struct {
	mu    sync.Mutex
	inner Classifier
}

// Serialized wraps c so that at most one Classify call runs at a time
func Serialized(c Classifier) Classifier {
	return &serialized{inner: c}
}

func (s *serialized) Classify(ctx context.Context, fm features.FeatureMap) (Distribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Classify(ctx, fm)
}

func (s *serialized) Labels() []string {
	return s.inner.Labels()
}

// Load opens the model named by cfg and checks its labels against vocab
func Load(cfg *config.Config, vocab *theory.Vocabulary) (Classifier, error) {
	logger := logging.WithFields(logging.Fields{
		"component":  "classifier",
		"backend":    cfg.Classifier.Backend,
		"model_path": cfg.Classifier.ModelPath,
	})

	var (
		c   Classifier
		err error
	)
	switch cfg.Classifier.Backend {
	case config.BackendTemplate:
		var model *TemplateModel
		model, err = LoadTemplateModel(cfg.Classifier.ModelPath)
		if err == nil {
			c, err = NewTemplateClassifier(model)
		}
	case config.BackendTensorFlow:
		c, err = newTensorFlowClassifier(cfg.Classifier, vocab.Labels(), cfg.Features.Height, cfg.Features.Width)
	default:
		err = fmt.Errorf("unknown classifier backend %q", cfg.Classifier.Backend)
	}
	if err != nil {
		logger.Error(err, "Failed to load classifier")
		return nil, err
	}

	if err := checkLabels(c.Labels(), vocab); err != nil {
		return nil, err
	}

	if cfg.Classifier.Serialize {
		c = Serialized(c)
	}

	logger.Info("Classifier loaded", logging.Fields{"labels": len(c.Labels())})
	return c, nil
}

func checkLabels(labels []string, vocab *theory.Vocabulary) error {
	if len(labels) != vocab.Len() {
		return fmt.Errorf("model has %d labels, vocabulary has %d", len(labels), vocab.Len())
	}
	for i, label := range labels {
		want, _ := vocab.Label(i)
		if label != want {
			return fmt.Errorf("model label %d is %q, vocabulary expects %q", i, label, want)
		}
	}
	return nil
}
