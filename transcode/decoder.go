// Package transcode loads and stores the mono waveforms the transcriber
// works on. PCM WAV is read natively; anything else goes through ffmpeg.
package transcode

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-melodia/algorithms/common"
	"github.com/RyanBlaney/sonido-melodia/logging"
)

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	TargetSampleRate int           `json:"target_sample_rate"`
	FFmpegPath       string        `json:"ffmpeg_path"`
	Timeout          time.Duration `json:"timeout"` // per ffmpeg invocation
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate: 22050,
		FFmpegPath:       "ffmpeg",
		Timeout:          30 * time.Second,
	}
}

// Decoder produces mono waveforms at a fixed sample rate
type Decoder struct {
	config       *DecoderConfig
	interpolator *common.Interpolator
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{
		config:       config,
		interpolator: common.NewInterpolator(common.Cubic),
	}
}

// ValidateConfig validates the decoder configuration
func (d *Decoder) ValidateConfig() error {
	if d.config.TargetSampleRate <= 0 {
		return fmt.Errorf("target sample rate must be positive: %d", d.config.TargetSampleRate)
	}
	if d.config.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative: %v", d.config.Timeout)
	}
	return nil
}

// DecodeFile loads filename as a mono waveform at the target sample rate.
// WAV files are decoded in process; other containers are piped through ffmpeg.
func (d *Decoder) DecodeFile(ctx context.Context, filename string) (*Waveform, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "audio_decoder",
		"function":  "DecodeFile",
		"filename":  filename,
	})

	if err := d.ValidateConfig(); err != nil {
		return nil, err
	}

	var (
		w   *Waveform
		err error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".wav", ".wave":
		w, err = ReadWAV(filename)
	default:
		logger.Debug("Falling back to ffmpeg")
		w, err = d.decodeWithFFmpeg(ctx, filename)
	}
	if err != nil {
		logger.Error(err, "Failed to decode audio file")
		return nil, err
	}

	if w.SampleRate != d.config.TargetSampleRate {
		logger.Debug("Resampling waveform", logging.Fields{
			"input_sample_rate":  w.SampleRate,
			"target_sample_rate": d.config.TargetSampleRate,
		})
		w = &Waveform{
			Samples:    d.interpolator.ResampleSignal(w.Samples, w.SampleRate, d.config.TargetSampleRate),
			SampleRate: d.config.TargetSampleRate,
		}
	}

	logger.Debug("Audio decoded", logging.Fields{
		"samples":  len(w.Samples),
		"duration": w.Duration().String(),
	})

	return w, nil
}

// decodeWithFFmpeg asks ffmpeg for raw mono f64le at the target rate
func (d *Decoder) decodeWithFFmpeg(ctx context.Context, filename string) (*Waveform, error) {
	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, d.config.FFmpegPath, d.buildFFmpegArgs(filename)...)
	output, err := cmd.Output()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			return nil, fmt.Errorf("ffmpeg decode failed: %w, stderr: %s", err, string(exitError.Stderr))
		}
		return nil, fmt.Errorf("ffmpeg decode failed: %w", err)
	}

	if len(output) == 0 {
		return nil, fmt.Errorf("ffmpeg produced no audio for %s", filename)
	}

	return &Waveform{
		Samples:    bytesToFloat64(output),
		SampleRate: d.config.TargetSampleRate,
	}, nil
}

func (d *Decoder) buildFFmpegArgs(filename string) []string {
	return []string{
		"-v", "error",
		"-i", filename,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(d.config.TargetSampleRate),
		"-f", "f64le",
		"pipe:1",
	}
}

func bytesToFloat64(data []byte) []float64 {
	samples := make([]float64, len(data)/8)
	for i := range samples {
		bits := binary.LittleEndian.Uint64(data[i*8 : (i+1)*8])
		samples[i] = math.Float64frombits(bits)
	}
	return samples
}

// ReadWaveform decodes path with a default decoder at sampleRate
func ReadWaveform(ctx context.Context, path string, sampleRate int) (*Waveform, error) {
	config := DefaultDecoderConfig()
	config.TargetSampleRate = sampleRate
	return NewDecoder(config).DecodeFile(ctx, path)
}

// WriteWaveform stores w as a 16-bit mono WAV file
func WriteWaveform(path string, w *Waveform) error {
	return WriteWAV(path, w)
}
