//go:build tensorflow

package classify

import (
	"context"
	"fmt"
	"slices"

	"github.com/RyanBlaney/sonido-melodia/config"
	"github.com/RyanBlaney/sonido-melodia/features"
	tf "github.com/wamuir/graft/tensorflow"
)

// TensorFlowClassifier runs an image-shaped SavedModel. Grey feature maps are
// replicated across three channels.
type TensorFlowClassifier struct {
	model    *tf.SavedModel
	inputOp  *tf.Operation
	outputOp *tf.Operation
	labels   []string
	height   int
	width    int
}

func newTensorFlowClassifier(cfg config.ClassifierConfig, labels []string, height, width int) (Classifier, error) {
	return NewTensorFlowClassifier(cfg.ModelPath, cfg.Tags, cfg.InputOp, cfg.OutputOp, labels, height, width)
}

// NewTensorFlowClassifier loads the SavedModel at modelPath
func NewTensorFlowClassifier(modelPath string, tags []string, inputOp, outputOp string, labels []string, height, width int) (*TensorFlowClassifier, error) {
	model, err := tf.LoadSavedModel(modelPath, tags, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load SavedModel: %w", err)
	}

	in := model.Graph.Operation(inputOp)
	if in == nil {
		model.Session.Close()
		return nil, fmt.Errorf("input operation %q not found", inputOp)
	}
	out := model.Graph.Operation(outputOp)
	if out == nil {
		model.Session.Close()
		return nil, fmt.Errorf("output operation %q not found", outputOp)
	}

	return &TensorFlowClassifier{
		model:    model,
		inputOp:  in,
		outputOp: out,
		labels:   slices.Clone(labels),
		height:   height,
		width:    width,
	}, nil
}

// Close releases the TensorFlow session
func (c *TensorFlowClassifier) Close() error {
	if c.model != nil && c.model.Session != nil {
		return c.model.Session.Close()
	}
	return nil
}

func (c *TensorFlowClassifier) Labels() []string {
	return slices.Clone(c.labels)
}

func (c *TensorFlowClassifier) Classify(ctx context.Context, fm features.FeatureMap) (Distribution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, cols := fm.Dims()
	if rows != c.height || cols != c.width {
		return nil, fmt.Errorf("feature map is %dx%d, model expects %dx%d", rows, cols, c.height, c.width)
	}

	// [1, H, W, 3]
	image := make([][][][]float32, 1)
	image[0] = make([][][]float32, rows)
	for i := range rows {
		image[0][i] = make([][]float32, cols)
		for j := range cols {
			v := float32(fm.At(i, j))
			image[0][i][j] = []float32{v, v, v}
		}
	}

	input, err := tf.NewTensor(image)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputs, err := c.model.Session.Run(
		map[tf.Output]*tf.Tensor{c.inputOp.Output(0): input},
		[]tf.Output{c.outputOp.Output(0)},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	scores, ok := outputs[0].Value().([][]float32)
	if !ok || len(scores) != 1 {
		return nil, fmt.Errorf("unexpected output type: %T", outputs[0].Value())
	}

	dist := make(Distribution, len(scores[0]))
	for i, s := range scores[0] {
		dist[i] = float64(s)
	}
	return dist, nil
}
