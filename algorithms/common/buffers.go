package common

import (
	"fmt"
)

// OverlapAddBuffer accumulates windowed frames at a fixed hop and tracks the
// summed squared synthesis window so the output can be renormalized.
type OverlapAddBuffer struct {
	output     []float64
	windowSum  []float64
	window     []float64
	windowSize int
	hopSize    int
	frames     int
}

// NewOverlapAddBuffer creates a buffer sized for frames frames of window
func NewOverlapAddBuffer(window []float64, hopSize, frames int) *OverlapAddBuffer {
	length := len(window) + hopSize*max(frames-1, 0)
	return &OverlapAddBuffer{
		output:     make([]float64, length),
		windowSum:  make([]float64, length),
		window:     window,
		windowSize: len(window),
		hopSize:    hopSize,
	}
}

// AddFrame windows frame and adds it at the next hop position
func (oab *OverlapAddBuffer) AddFrame(frame []float64) error {
	if len(frame) != oab.windowSize {
		return fmt.Errorf("frame size (%d) doesn't match window size (%d)", len(frame), oab.windowSize)
	}

	start := oab.frames * oab.hopSize
	if start+oab.windowSize > len(oab.output) {
		return fmt.Errorf("frame %d exceeds buffer capacity", oab.frames)
	}

	for i, v := range frame {
		w := oab.window[i]
		oab.output[start+i] += v * w
		oab.windowSum[start+i] += w * w
	}
	oab.frames++

	return nil
}

// Output returns the accumulated signal divided by the window envelope where
// the envelope is not negligible
func (oab *OverlapAddBuffer) Output() []float64 {
	out := make([]float64, len(oab.output))
	for i, v := range oab.output {
		if oab.windowSum[i] > 1e-10 {
			out[i] = v / oab.windowSum[i]
		}
	}
	return out
}

// Len returns the output length in samples
func (oab *OverlapAddBuffer) Len() int {
	return len(oab.output)
}
