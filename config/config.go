package config

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/RyanBlaney/sonido-melodia/theory"
)

// NoteMatch selects how ground-truth and predicted notes are compared
type NoteMatch string

const (
	// NoteMatchPitchClass compares octave-independent pitch classes
	NoteMatchPitchClass NoteMatch = "pitch_class"
	// NoteMatchExact compares the stored symbols byte for byte
	NoteMatchExact NoteMatch = "exact"
)

// ClassifierBackend names a classifier implementation
type ClassifierBackend string

const (
	BackendTemplate   ClassifierBackend = "template"
	BackendTensorFlow ClassifierBackend = "tensorflow"
)

// Config is the full configuration of a transcription/evaluation run. It is
// built once at startup and treated as read-only afterwards.
type Config struct {
	SongsDir       string `json:"songs_dir"`
	PredictionsDir string `json:"predictions_dir"`
	SongCount      int    `json:"song_count"`
	Workers        int    `json:"workers"`       // songs processed in parallel
	ChunkWorkers   int    `json:"chunk_workers"` // chunks per song processed in parallel
	LogLevel       string `json:"log_level"`

	Audio      AudioConfig      `json:"audio"`
	Features   FeatureConfig    `json:"features"`
	Classifier ClassifierConfig `json:"classifier"`
	Key        KeyConfig        `json:"key"`
	Evaluation EvaluationConfig `json:"evaluation"`
	Output     OutputConfig     `json:"output"`

	// Vocabulary is the classifier label order; index = class id
	Vocabulary []string `json:"vocabulary"`
}

// AudioConfig describes the waveform files
type AudioConfig struct {
	SampleRate   int    `json:"sample_rate"` // waveforms at other rates are resampled
	SongFile     string `json:"song_file"`
	MetadataFile string `json:"metadata_file"`
}

// FeatureConfig controls chunk normalization and the log-mel feature map
type FeatureConfig struct {
	TargetDuration float64 `json:"target_duration"` // seconds every chunk is stretched to
	FFTSize        int     `json:"fft_size"`
	HopSize        int     `json:"hop_size"`
	MelBands       int     `json:"mel_bands"`
	FMin           float64 `json:"fmin"`
	FMax           float64 `json:"fmax"`
	TopDB          float64 `json:"top_db"`
	Height         int     `json:"height"` // feature map rows (frequency)
	Width          int     `json:"width"`  // feature map columns (time)

	// Phase vocoder used for duration normalization
	StretchFFTSize int `json:"stretch_fft_size"`
	StretchHopSize int `json:"stretch_hop_size"`
}

// ClassifierConfig selects and configures the pre-trained model
type ClassifierConfig struct {
	Backend   ClassifierBackend `json:"backend"`
	ModelPath string            `json:"model_path"`
	// Serialize guards inference with a mutex for runtimes that are not
	// safe for concurrent calls
	Serialize bool `json:"serialize"`

	// TensorFlow SavedModel settings
	Tags     []string `json:"tags,omitempty"`
	InputOp  string   `json:"input_op,omitempty"`
	OutputOp string   `json:"output_op,omitempty"`
}

// KeyConfig holds the key detection tables and weights
type KeyConfig struct {
	Scales          []theory.Scale `json:"scales"`
	Order           []string       `json:"order,omitempty"` // tie-break order; defaults to Scales order
	OutOfKeyPenalty float64        `json:"out_of_key_penalty"`
	TonicBonus      float64        `json:"tonic_bonus"`
}

// EvaluationConfig configures the accuracy comparison
type EvaluationConfig struct {
	NoteMatch      NoteMatch `json:"note_match"`
	PredictionFile string    `json:"prediction_file"`
}

// OutputConfig controls what the transcriber writes
type OutputConfig struct {
	// PredictionOctaves keeps the octave suffix on predicted notes. Off by
	// default to match the established predictions.txt format.
	PredictionOctaves bool   `json:"prediction_octaves"`
	ExportMIDI        bool   `json:"export_midi"`
	MIDIFile          string `json:"midi_file"`
}

// DefaultConfig returns the configuration matching the reference dataset
func DefaultConfig() *Config {
	return &Config{
		SongsDir:       "melody/songs",
		PredictionsDir: "melody/predictions",
		SongCount:      100,
		Workers:        runtime.NumCPU(),
		ChunkWorkers:   4,
		LogLevel:       "info",
		Audio: AudioConfig{
			SampleRate:   22050,
			SongFile:     "full_song.wav",
			MetadataFile: "metadata.txt",
		},
		Features: FeatureConfig{
			TargetDuration: 1.0,
			FFTSize:        2048,
			HopSize:        512,
			MelBands:       128,
			FMin:           0,
			FMax:           8000,
			TopDB:          80,
			Height:         128,
			Width:          128,
			StretchFFTSize: 2048,
			StretchHopSize: 512,
		},
		Classifier: ClassifierConfig{
			Backend:   BackendTemplate,
			ModelPath: "models/note_templates.json",
			Tags:      []string{"serve"},
			InputOp:   "serving_default_input",
			OutputOp:  "StatefulPartitionedCall",
		},
		Key: KeyConfig{
			Scales:          theory.DefaultScales(),
			OutOfKeyPenalty: 0.8,
			TonicBonus:      3,
		},
		Evaluation: EvaluationConfig{
			NoteMatch:      NoteMatchPitchClass,
			PredictionFile: "predictions.txt",
		},
		Output: OutputConfig{
			PredictionOctaves: false,
			ExportMIDI:        false,
			MIDIFile:          "predictions.mid",
		},
		Vocabulary: theory.DefaultVocabularyLabels(),
	}
}

// Load overlays the JSON file at path onto DefaultConfig and validates the result
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks ranges and the reference tables
func (c *Config) Validate() error {
	if c.SongCount < 0 {
		return fmt.Errorf("song_count must not be negative")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if c.ChunkWorkers <= 0 {
		return fmt.Errorf("chunk_workers must be positive")
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive")
	}

	f := c.Features
	if f.TargetDuration <= 0 {
		return fmt.Errorf("features.target_duration must be positive")
	}
	if f.FFTSize <= 0 || f.HopSize <= 0 || f.StretchFFTSize <= 0 || f.StretchHopSize <= 0 {
		return fmt.Errorf("features fft and hop sizes must be positive")
	}
	if f.HopSize > f.FFTSize || f.StretchHopSize > f.StretchFFTSize {
		return fmt.Errorf("features hop size must not exceed fft size")
	}
	if f.MelBands <= 0 || f.Height <= 0 || f.Width <= 0 {
		return fmt.Errorf("features mel_bands, height and width must be positive")
	}
	if f.FMin < 0 || f.FMax <= f.FMin || f.FMax > float64(c.Audio.SampleRate)/2 {
		return fmt.Errorf("features frequency range [%g, %g] invalid for sample rate %d",
			f.FMin, f.FMax, c.Audio.SampleRate)
	}
	if f.TopDB <= 0 {
		return fmt.Errorf("features.top_db must be positive")
	}

	switch c.Classifier.Backend {
	case BackendTemplate, BackendTensorFlow:
	default:
		return fmt.Errorf("unknown classifier backend %q", c.Classifier.Backend)
	}

	switch c.Evaluation.NoteMatch {
	case NoteMatchPitchClass, NoteMatchExact:
	default:
		return fmt.Errorf("unknown note_match %q", c.Evaluation.NoteMatch)
	}

	if c.Key.OutOfKeyPenalty < 0 || c.Key.TonicBonus < 0 {
		return fmt.Errorf("key weights must not be negative")
	}

	if _, err := c.Tables(); err != nil {
		return err
	}

	return nil
}

// Tables builds the immutable reference tables described by the config
func (c *Config) Tables() (*Tables, error) {
	vocab, err := theory.NewVocabulary(c.Vocabulary)
	if err != nil {
		return nil, fmt.Errorf("invalid vocabulary: %w", err)
	}

	keys, err := theory.NewKeyTable(c.Key.Scales)
	if err != nil {
		return nil, fmt.Errorf("invalid key scales: %w", err)
	}

	if len(c.Key.Order) > 0 {
		keys, err = keys.Reorder(c.Key.Order)
		if err != nil {
			return nil, fmt.Errorf("invalid key order: %w", err)
		}
	}

	return &Tables{Vocabulary: vocab, Keys: keys}, nil
}

// Tables bundles the validated vocabulary and key table
type Tables struct {
	Vocabulary *theory.Vocabulary
	Keys       *theory.KeyTable
}
