// Package pipeline turns song recordings into stored predictions: segment,
// featurize, classify every beat and estimate the key.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/RyanBlaney/sonido-melodia/algorithms/tonal"
	"github.com/RyanBlaney/sonido-melodia/classify"
	"github.com/RyanBlaney/sonido-melodia/config"
	"github.com/RyanBlaney/sonido-melodia/export"
	"github.com/RyanBlaney/sonido-melodia/features"
	"github.com/RyanBlaney/sonido-melodia/logging"
	"github.com/RyanBlaney/sonido-melodia/records"
	"github.com/RyanBlaney/sonido-melodia/segment"
	"github.com/RyanBlaney/sonido-melodia/theory"
	"github.com/RyanBlaney/sonido-melodia/transcode"
)

// ErrNoSongsTranscribed is returned by Run when every requested song failed
var ErrNoSongsTranscribed = errors.New("no songs transcribed")

// Transcription is the result for one waveform
type Transcription struct {
	Key   string
	Notes []string // vocabulary labels, with octave, in chunk order

	// Distributions holds the classifier output per transcribed note
	Distributions []classify.Distribution
	KeyResult     tonal.KeyDetectionResult

	Chunks        int
	SkippedChunks []int
}

// Runner transcribes songs of one dataset layout. All of its collaborators
// are read-only, so a Runner may serve concurrent calls.
type Runner struct {
	cfg        *config.Config
	layout     records.Layout
	decoder    *transcode.Decoder
	extractor  *features.Extractor
	classifier classify.Classifier
	keys       *tonal.KeyDetector
}

// NewRunner wires the stages described by cfg around an already loaded
// classifier
func NewRunner(cfg *config.Config, classifier classify.Classifier) (*Runner, error) {
	if classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}

	tables, err := cfg.Tables()
	if err != nil {
		return nil, err
	}

	extractor, err := features.NewExtractor(cfg.Features, cfg.Audio.SampleRate)
	if err != nil {
		return nil, err
	}

	keys, err := tonal.NewKeyDetector(tables.Keys, tonal.KeyDetectionParams{
		OutOfKeyPenalty: cfg.Key.OutOfKeyPenalty,
		TonicBonus:      cfg.Key.TonicBonus,
	})
	if err != nil {
		return nil, err
	}

	decoderConfig := transcode.DefaultDecoderConfig()
	decoderConfig.TargetSampleRate = cfg.Audio.SampleRate
	decoder := transcode.NewDecoder(decoderConfig)
	if err := decoder.ValidateConfig(); err != nil {
		return nil, err
	}

	return &Runner{
		cfg:        cfg,
		layout:     records.NewLayout(cfg),
		decoder:    decoder,
		extractor:  extractor,
		classifier: classifier,
		keys:       keys,
	}, nil
}

// Layout returns the dataset layout the runner reads and writes
func (r *Runner) Layout() records.Layout {
	return r.layout
}

type chunkResult struct {
	label string
	dist  classify.Distribution
	err   error
}

// TranscribeWaveform segments w at bpm, classifies every chunk and detects
// the key of the resulting notes. Empty chunks are skipped with a warning;
// any other chunk failure fails the waveform.
func (r *Runner) TranscribeWaveform(ctx context.Context, w *transcode.Waveform, bpm float64) (*Transcription, error) {
	logger := logging.WithContext(ctx).WithFields(logging.Fields{
		"component": "pipeline",
		"function":  "TranscribeWaveform",
	})

	chunks, err := segment.Split(w, bpm)
	if err != nil {
		return nil, err
	}

	results := make([]chunkResult, len(chunks))

	workerCount := min(r.cfg.ChunkWorkers, len(chunks))
	workerCount = max(workerCount, 1)

	jobs := make(chan int, len(chunks))
	var wg sync.WaitGroup

	for _i := 0; _i < workerCount; _i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = r.classifyChunk(ctx, chunks[i])
			}
		}()
	}

	for i := range chunks {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	t := &Transcription{
		Notes:  make([]string, 0, len(chunks)),
		Chunks: len(chunks),
	}

	for i, res := range results {
		if errors.Is(res.err, features.ErrEmptyChunk) {
			logger.Warn("Skipping empty chunk", logging.Fields{"chunk": i})
			t.SkippedChunks = append(t.SkippedChunks, i)
			continue
		}
		if res.err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, res.err)
		}
		t.Notes = append(t.Notes, res.label)
		t.Distributions = append(t.Distributions, res.dist)
	}

	t.KeyResult = r.keys.DetectKey(t.Notes)
	t.Key = t.KeyResult.Key

	logger.Debug("Waveform transcribed", logging.Fields{
		"chunks":  len(chunks),
		"notes":   len(t.Notes),
		"skipped": len(t.SkippedChunks),
		"key":     t.Key,
	})

	return t, nil
}

func (r *Runner) classifyChunk(ctx context.Context, chunk segment.Chunk) chunkResult {
	if err := ctx.Err(); err != nil {
		return chunkResult{err: err}
	}

	fm, err := r.extractor.Extract(chunk)
	if err != nil {
		return chunkResult{err: err}
	}

	label, dist, err := classify.Predict(ctx, r.classifier, fm)
	if err != nil {
		return chunkResult{err: err}
	}
	return chunkResult{label: label, dist: dist}
}

// TranscribeSong reads the bpm and recording of song i, transcribes it and
// stores the prediction, plus a MIDI rendering when enabled
func (r *Runner) TranscribeSong(ctx context.Context, i int) (SongStats, error) {
	stats := SongStats{Song: i}
	start := time.Now()

	meta, err := r.layout.ReadMetadata(i)
	if err != nil {
		return stats, err
	}

	w, err := r.decoder.DecodeFile(ctx, r.layout.SongPath(i))
	if err != nil {
		return stats, err
	}

	t, err := r.TranscribeWaveform(ctx, w, float64(meta.BPM))
	if err != nil {
		return stats, err
	}

	pred := &records.Prediction{Key: t.Key, Notes: r.outputNotes(t.Notes)}
	if err := r.layout.WritePrediction(i, pred); err != nil {
		return stats, err
	}

	if r.cfg.Output.ExportMIDI {
		opts := export.DefaultMelodyOptions(float64(meta.BPM))
		opts.Name = records.SongName(i)
		if err := export.WriteMelody(r.layout.MIDIPath(i), t.Notes, opts); err != nil {
			return stats, err
		}
	}

	stats.Key = t.Key
	stats.Notes = len(t.Notes)
	stats.SkippedChunks = len(t.SkippedChunks)
	stats.Elapsed = time.Since(start)
	return stats, nil
}

// outputNotes drops the octave unless the config asks to keep it
func (r *Runner) outputNotes(notes []string) []string {
	if r.cfg.Output.PredictionOctaves {
		return notes
	}

	out := make([]string, len(notes))
	for i, n := range notes {
		pc, err := theory.PitchClassOf(n)
		if err != nil {
			out[i] = n
			continue
		}
		out[i] = pc
	}
	return out
}

// Run transcribes songs with a bounded pool of Workers goroutines. A failed
// song is logged and recorded in the stats; the batch continues. The context
// is checked before each song starts.
func (r *Runner) Run(ctx context.Context, songs []int) (*RunStats, error) {
	stats := NewRunStats()
	ctx = logging.ContextWithFields(ctx, logging.Fields{"run_id": stats.RunID})

	logger := logging.WithContext(ctx).WithFields(logging.Fields{
		"component": "pipeline",
		"function":  "Run",
	})
	logger.Info("Starting transcription", logging.Fields{
		"songs":   len(songs),
		"workers": r.cfg.Workers,
	})

	workerCount := max(min(r.cfg.Workers, len(songs)), 1)

	jobs := make(chan int, len(songs))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _i := 0; _i < workerCount; _i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for song := range jobs {
				if ctx.Err() != nil {
					return
				}

				songCtx := logging.ContextWithFields(ctx, logging.Fields{"song": song})
				s, err := r.TranscribeSong(songCtx, song)

				mu.Lock()
				if err != nil {
					stats.addFailure(song, err)
				} else {
					stats.addSong(s)
				}
				mu.Unlock()

				if err != nil {
					logger.Error(err, "Failed to transcribe song", logging.Fields{"song": song})
					continue
				}
				logger.Debug("Song transcribed", logging.Fields{
					"song":       song,
					"key":        s.Key,
					"notes":      s.Notes,
					"elapsed_ms": s.Elapsed.Milliseconds(),
				})
			}
		}()
	}

	for _, song := range songs {
		jobs <- song
	}
	close(jobs)
	wg.Wait()

	stats.finish()

	if err := ctx.Err(); err != nil {
		return stats, err
	}

	logger.Info("Transcription finished", logging.Fields{
		"transcribed":       len(stats.Songs),
		"failed":            len(stats.Failures),
		"avg_note_seconds":  stats.AvgTimePerNote.Seconds(),
		"total_elapsed_sec": stats.Elapsed.Seconds(),
	})

	if len(songs) > 0 && len(stats.Songs) == 0 {
		return stats, ErrNoSongsTranscribed
	}
	return stats, nil
}
