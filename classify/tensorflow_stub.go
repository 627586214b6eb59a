//go:build !tensorflow

package classify

import (
	"fmt"

	"github.com/RyanBlaney/sonido-melodia/config"
)

func newTensorFlowClassifier(_ config.ClassifierConfig, _ []string, _, _ int) (Classifier, error) {
	return nil, fmt.Errorf("tensorflow backend unavailable: rebuild with -tags tensorflow")
}
