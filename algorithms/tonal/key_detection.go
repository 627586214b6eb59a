// Package tonal estimates the key of a transcribed melody.
package tonal

import (
	"fmt"

	"github.com/RyanBlaney/sonido-melodia/logging"
	"github.com/RyanBlaney/sonido-melodia/theory"
)

// KeyDetectionParams weights the score terms
type KeyDetectionParams struct {
	OutOfKeyPenalty float64 `json:"out_of_key_penalty"` // per out-of-key occurrence
	TonicBonus      float64 `json:"tonic_bonus"`        // per tonic occurrence, on top of its in-key credit
}

// DefaultKeyDetectionParams returns default parameters for key detection
func DefaultKeyDetectionParams() KeyDetectionParams {
	return KeyDetectionParams{
		OutOfKeyPenalty: 0.8,
		TonicBonus:      3,
	}
}

// KeyCandidate is the score of one key
type KeyCandidate struct {
	Key      string  `json:"key"`
	Score    float64 `json:"score"`
	InKey    int     `json:"in_key"`     // occurrences inside the scale
	OutOfKey int     `json:"out_of_key"` // occurrences outside the scale
	Tonic    int     `json:"tonic"`      // occurrences of the tonic
}

// KeyDetectionResult contains the chosen key and every candidate score
type KeyDetectionResult struct {
	Key   string  `json:"key"`
	Score float64 `json:"score"`

	// Candidates follow the key table order, which is also the tie-break order
	Candidates []KeyCandidate `json:"candidates"`

	// Histogram counts occurrences per pitch class, C first
	Histogram [12]int `json:"histogram"`

	NotesCounted int      `json:"notes_counted"`
	Skipped      []string `json:"skipped,omitempty"` // symbols that could not be parsed
}

// KeyDetector scores note sequences against a fixed table of major keys.
// It holds no mutable state and is safe for concurrent use.
type KeyDetector struct {
	table  *theory.KeyTable
	params KeyDetectionParams
	logger logging.Logger
}

// NewKeyDetector creates a key detector over table. A nil table means the
// twelve default major keys.
func NewKeyDetector(table *theory.KeyTable, params KeyDetectionParams) (*KeyDetector, error) {
	if table == nil {
		table = theory.DefaultKeyTable()
	}
	if params.OutOfKeyPenalty < 0 || params.TonicBonus < 0 {
		return nil, fmt.Errorf("key detection weights must not be negative: %+v", params)
	}

	return &KeyDetector{
		table:  table,
		params: params,
		logger: logging.WithFields(logging.Fields{
			"component": "key_detector",
		}),
	}, nil
}

// Histogram counts pitch classes in notes. Symbols with or without octave
// are accepted; unparseable symbols are returned separately.
func Histogram(notes []string) (counts [12]int, skipped []string) {
	for _, note := range notes {
		pc, err := theory.PitchClassOf(note)
		if err != nil {
			skipped = append(skipped, note)
			continue
		}
		counts[theory.PitchClassIndex(pc)]++
	}
	return counts, skipped
}

// DetectKey returns the highest scoring key for notes. The first key in
// table order wins ties, so an empty sequence yields the first key.
func (kd *KeyDetector) DetectKey(notes []string) KeyDetectionResult {
	counts, skipped := Histogram(notes)
	if len(skipped) > 0 {
		kd.logger.Warn("Skipping unknown note symbols", logging.Fields{
			"skipped": skipped,
		})
	}

	result := KeyDetectionResult{
		Candidates:   make([]KeyCandidate, kd.table.Len()),
		Histogram:    counts,
		NotesCounted: len(notes) - len(skipped),
		Skipped:      skipped,
	}

	best := -1
	for i, n := 0, kd.table.Len(); i < n; i++ {
		candidate := kd.score(kd.table.ScaleAt(i), counts)
		result.Candidates[i] = candidate

		if best < 0 || candidate.Score > result.Candidates[best].Score {
			best = i
		}
	}

	result.Key = result.Candidates[best].Key
	result.Score = result.Candidates[best].Score

	kd.logger.Debug("Key detected", logging.Fields{
		"key":   result.Key,
		"score": result.Score,
		"notes": result.NotesCounted,
	})

	return result
}

func (kd *KeyDetector) score(scale theory.Scale, counts [12]int) KeyCandidate {
	candidate := KeyCandidate{Key: scale.Key}

	inScale := [12]bool{}
	for _, pc := range scale.Notes {
		inScale[theory.PitchClassIndex(pc)] = true
	}

	for pc, count := range counts {
		if inScale[pc] {
			candidate.InKey += count
		} else {
			candidate.OutOfKey += count
		}
	}
	candidate.Tonic = counts[theory.PitchClassIndex(scale.Tonic())]

	candidate.Score = float64(candidate.InKey) -
		kd.params.OutOfKeyPenalty*float64(candidate.OutOfKey) +
		kd.params.TonicBonus*float64(candidate.Tonic)

	return candidate
}
