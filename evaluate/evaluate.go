// Package evaluate scores stored predictions against ground truth.
package evaluate

import (
	"context"
	"errors"
	"fmt"

	"github.com/RyanBlaney/sonido-melodia/config"
	"github.com/RyanBlaney/sonido-melodia/logging"
	"github.com/RyanBlaney/sonido-melodia/records"
	"github.com/RyanBlaney/sonido-melodia/theory"
)

var (
	// ErrEmptyDenominator is returned by a ratio with nothing counted
	ErrEmptyDenominator = errors.New("accuracy undefined: nothing was compared")
	// ErrNoComparableSongs means every song in the batch was skipped
	ErrNoComparableSongs = errors.New("no song had both metadata and a prediction")
)

// Metrics accumulates match counts across a batch
type Metrics struct {
	CorrectKeys  int `json:"correct_keys"`
	TotalKeys    int `json:"total_keys"`
	CorrectNotes int `json:"correct_notes"`
	TotalNotes   int `json:"total_notes"`
}

// Add folds o into m
func (m *Metrics) Add(o Metrics) {
	m.CorrectKeys += o.CorrectKeys
	m.TotalKeys += o.TotalKeys
	m.CorrectNotes += o.CorrectNotes
	m.TotalNotes += o.TotalNotes
}

// KeyAccuracy returns CorrectKeys/TotalKeys
func (m Metrics) KeyAccuracy() (float64, error) {
	return ratio(m.CorrectKeys, m.TotalKeys)
}

// NoteAccuracy returns CorrectNotes/TotalNotes
func (m Metrics) NoteAccuracy() (float64, error) {
	return ratio(m.CorrectNotes, m.TotalNotes)
}

func ratio(num, den int) (float64, error) {
	if den == 0 {
		return 0, ErrEmptyDenominator
	}
	return float64(num) / float64(den), nil
}

// SongResult is the comparison of one song
type SongResult struct {
	Song         int    `json:"song"`
	TrueKey      string `json:"true_key"`
	PredictedKey string `json:"predicted_key"`
	Metrics
	// UnknownSymbols lists notes that could not be reduced to a pitch class
	UnknownSymbols []string `json:"unknown_symbols,omitempty"`
}

// KeyMatch reports whether the predicted key was correct
func (r SongResult) KeyMatch() bool {
	return r.CorrectKeys == 1
}

// NotesEqual compares one ground-truth note with one predicted note. In
// pitch-class mode both sides are reduced to their pitch class; a symbol that
// does not parse falls back to exact comparison and is reported in err.
func NotesEqual(truth, predicted string, match config.NoteMatch) (bool, error) {
	if match == config.NoteMatchExact {
		return truth == predicted, nil
	}

	tpc, terr := theory.PitchClassOf(truth)
	ppc, perr := theory.PitchClassOf(predicted)
	if err := errors.Join(terr, perr); err != nil {
		return truth == predicted, err
	}
	return tpc == ppc, nil
}

// CompareSong scores one prediction. Keys must match exactly. Notes are
// compared position by position over the shorter of the two sequences;
// positions past that are not counted at all.
func CompareSong(song int, truth *records.Metadata, pred *records.Prediction, match config.NoteMatch) SongResult {
	result := SongResult{
		Song:         song,
		TrueKey:      truth.Key,
		PredictedKey: pred.Key,
	}

	result.TotalKeys = 1
	if truth.Key == pred.Key {
		result.CorrectKeys = 1
	}

	length := min(len(truth.Notes), len(pred.Notes))
	result.TotalNotes = length
	for i := 0; i < length; i++ {
		equal, err := NotesEqual(truth.Notes[i], pred.Notes[i], match)
		if err != nil {
			result.UnknownSymbols = append(result.UnknownSymbols, unknownSymbols(err)...)
		}
		if equal {
			result.CorrectNotes++
		}
	}

	return result
}

func unknownSymbols(err error) []string {
	errs := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	}

	var symbols []string
	for _, e := range errs {
		var unknown *theory.UnknownSymbolError
		if errors.As(e, &unknown) {
			symbols = append(symbols, unknown.Symbol)
		}
	}
	return symbols
}

// Report is the outcome of a batch evaluation
type Report struct {
	Metrics
	Songs   []SongResult `json:"songs"`
	Skipped []int        `json:"skipped"` // songs missing a record
	Failed  []int        `json:"failed"`  // songs with an unreadable record
}

// Evaluator compares every song of a dataset layout
type Evaluator struct {
	layout records.Layout
	match  config.NoteMatch
	logger logging.Logger
}

// NewEvaluator creates an evaluator over layout
func NewEvaluator(layout records.Layout, match config.NoteMatch) *Evaluator {
	return &Evaluator{
		layout: layout,
		match:  match,
		logger: logging.WithFields(logging.Fields{
			"component":  "evaluator",
			"note_match": match,
		}),
	}
}

// Evaluate compares songs in order. Songs with a missing metadata or
// prediction file are logged and left out of every total. A batch where no
// song could be compared returns the report and ErrNoComparableSongs.
// Records that exist but cannot be read are logged, listed in Failed and
// likewise left out.
func (e *Evaluator) Evaluate(ctx context.Context, songs []int) (*Report, error) {
	report := &Report{}

	for _, song := range songs {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		result, err := e.evaluateSong(song)
		var missing *records.MissingRecordError
		if errors.As(err, &missing) {
			e.logger.Warn("Missing record, skipping song", logging.Fields{
				"song": song,
				"kind": missing.Kind,
				"path": missing.Path,
			})
			report.Skipped = append(report.Skipped, song)
			continue
		}
		if err != nil {
			e.logger.Warn("Unreadable record, skipping song", logging.Fields{
				"song":  song,
				"error": err.Error(),
			})
			report.Failed = append(report.Failed, song)
			continue
		}

		if !result.KeyMatch() {
			e.logger.Info("Key mismatch", logging.Fields{
				"song":      song,
				"true":      result.TrueKey,
				"predicted": result.PredictedKey,
			})
		}
		if len(result.UnknownSymbols) > 0 {
			e.logger.Warn("Compared unknown note symbols verbatim", logging.Fields{
				"song":    song,
				"symbols": result.UnknownSymbols,
			})
		}

		report.Add(result.Metrics)
		report.Songs = append(report.Songs, result)
	}

	if report.TotalKeys == 0 {
		return report, ErrNoComparableSongs
	}
	return report, nil
}

func (e *Evaluator) evaluateSong(song int) (SongResult, error) {
	truth, err := e.layout.ReadTruth(song)
	if err != nil {
		return SongResult{}, err
	}
	pred, err := e.layout.ReadPrediction(song)
	if err != nil {
		return SongResult{}, err
	}
	return CompareSong(song, truth, pred, e.match), nil
}

// Summary renders the batch totals the way the evaluate command prints them
func (r *Report) Summary() string {
	keys := fmt.Sprintf("Correct keys: %d/%d", r.CorrectKeys, r.TotalKeys)
	if acc, err := r.KeyAccuracy(); err == nil {
		keys += fmt.Sprintf(" (%.2f%%)", acc*100)
	} else {
		keys += " (undefined)"
	}

	notes := fmt.Sprintf("Correct notes: %d/%d", r.CorrectNotes, r.TotalNotes)
	if acc, err := r.NoteAccuracy(); err == nil {
		notes += fmt.Sprintf(" (%.2f%%)", acc*100)
	} else {
		notes += " (undefined)"
	}

	return keys + "\n" + notes
}

// Indices returns 0..n-1
func Indices(n int) []int {
	out := make([]int, max(n, 0))
	for i := range out {
		out[i] = i
	}
	return out
}
