package evaluate

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/RyanBlaney/sonido-melodia/config"
	"github.com/RyanBlaney/sonido-melodia/logging"
	"github.com/RyanBlaney/sonido-melodia/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLayout(t *testing.T) records.Layout {
	t.Helper()
	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.SongsDir = filepath.Join(root, "songs")
	cfg.PredictionsDir = filepath.Join(root, "predictions")
	return records.NewLayout(cfg)
}

func TestCompareSongPrefixOnly(t *testing.T) {
	truth := &records.Metadata{Key: "C", BPM: 120, Notes: []string{"A4", "B4", "C4"}}
	pred := &records.Prediction{Key: "C", Notes: []string{"A4", "X4"}}

	for _, match := range []config.NoteMatch{config.NoteMatchExact, config.NoteMatchPitchClass} {
		t.Run(string(match), func(t *testing.T) {
			r := CompareSong(0, truth, pred, match)
			assert.Equal(t, 2, r.TotalNotes)
			assert.Equal(t, 1, r.CorrectNotes)

			acc, err := r.NoteAccuracy()
			require.NoError(t, err)
			assert.Equal(t, 0.5, acc)
			assert.True(t, r.KeyMatch())
		})
	}
}

func TestCompareSongKeyIsCaseSensitive(t *testing.T) {
	r := CompareSong(0,
		&records.Metadata{Key: "C#", BPM: 90},
		&records.Prediction{Key: "c#"},
		config.NoteMatchPitchClass)

	assert.False(t, r.KeyMatch())
	assert.Equal(t, 1, r.TotalKeys)
	assert.Equal(t, 0, r.TotalNotes)
}

// Ground truth carries octaves, stored predictions do not. This pins the
// comparison boundary: exact mode must see every note as wrong and
// pitch-class mode every note as right.
func TestOctaveNormalizationBoundary(t *testing.T) {
	truth := &records.Metadata{Key: "G", BPM: 100, Notes: []string{"G4", "A4", "B4", "C5", "D4"}}
	pred := &records.Prediction{Key: "G", Notes: []string{"G", "A", "B", "C", "D"}}

	exact := CompareSong(0, truth, pred, config.NoteMatchExact)
	assert.Equal(t, 0, exact.CorrectNotes)

	pc := CompareSong(0, truth, pred, config.NoteMatchPitchClass)
	assert.Equal(t, 5, pc.CorrectNotes)
	assert.Empty(t, pc.UnknownSymbols)
}

func TestNotesEqual(t *testing.T) {
	tests := []struct {
		truth, pred string
		match       config.NoteMatch
		want        bool
		wantErr     bool
	}{
		{"C4", "C", config.NoteMatchPitchClass, true, false},
		{"C5", "C4", config.NoteMatchPitchClass, true, false},
		{"C#4", "C", config.NoteMatchPitchClass, false, false},
		{"C4", "C", config.NoteMatchExact, false, false},
		{"X4", "X4", config.NoteMatchPitchClass, true, true},
		{"A4", "Bb", config.NoteMatchPitchClass, false, true},
	}

	for _, tt := range tests {
		got, err := NotesEqual(tt.truth, tt.pred, tt.match)
		assert.Equal(t, tt.want, got, "%s vs %s (%s)", tt.truth, tt.pred, tt.match)
		assert.Equal(t, tt.wantErr, err != nil, "%s vs %s (%s)", tt.truth, tt.pred, tt.match)
	}
}

func TestCompareSongCollectsUnknownSymbols(t *testing.T) {
	r := CompareSong(0,
		&records.Metadata{Key: "C", BPM: 90, Notes: []string{"Q1", "C4"}},
		&records.Prediction{Key: "C", Notes: []string{"Z", "C"}},
		config.NoteMatchPitchClass)

	assert.Equal(t, []string{"Q1", "Z"}, r.UnknownSymbols)
	assert.Equal(t, 1, r.CorrectNotes)
}

func TestMetricsEmptyDenominator(t *testing.T) {
	var m Metrics
	_, err := m.KeyAccuracy()
	assert.ErrorIs(t, err, ErrEmptyDenominator)
	_, err = m.NoteAccuracy()
	assert.ErrorIs(t, err, ErrEmptyDenominator)

	m.Add(Metrics{CorrectKeys: 1, TotalKeys: 2})
	acc, err := m.KeyAccuracy()
	require.NoError(t, err)
	assert.Equal(t, 0.5, acc)
	_, err = m.NoteAccuracy()
	assert.ErrorIs(t, err, ErrEmptyDenominator)
}

func TestEvaluateSkipsMissingRecords(t *testing.T) {
	l := testLayout(t)

	require.NoError(t, l.WriteMetadata(0, &records.Metadata{Key: "C", BPM: 120, Notes: []string{"C4", "D4", "E4"}}))
	require.NoError(t, l.WritePrediction(0, &records.Prediction{Key: "C", Notes: []string{"C", "D", "F"}}))

	// prediction missing
	require.NoError(t, l.WriteMetadata(1, &records.Metadata{Key: "G", BPM: 90, Notes: []string{"G4", "A4"}}))

	// metadata missing
	require.NoError(t, l.WritePrediction(2, &records.Prediction{Key: "D", Notes: []string{"D"}}))

	require.NoError(t, l.WriteMetadata(3, &records.Metadata{Key: "F", BPM: 100, Notes: []string{"F4", "G4"}}))
	require.NoError(t, l.WritePrediction(3, &records.Prediction{Key: "A#", Notes: []string{"F", "G", "A"}}))

	previous := logging.GetGlobalLogger()
	rec := logging.NewRecordingLogger()
	logging.SetGlobalLogger(rec)
	defer logging.SetGlobalLogger(previous)

	report, err := NewEvaluator(l, config.NoteMatchPitchClass).Evaluate(context.Background(), Indices(5))
	require.NoError(t, err)

	assert.Equal(t, Metrics{CorrectKeys: 1, TotalKeys: 2, CorrectNotes: 4, TotalNotes: 5}, report.Metrics)
	assert.Equal(t, []int{1, 2, 4}, report.Skipped)
	assert.Len(t, report.Songs, 2)

	assert.Len(t, rec.EntriesAt(logging.WarnLevel), 3)
	mismatches := 0
	for _, e := range rec.EntriesAt(logging.InfoLevel) {
		if e.Message == "Key mismatch" {
			mismatches++
			assert.Equal(t, 3, e.Fields["song"])
		}
	}
	assert.Equal(t, 1, mismatches)

	assert.Contains(t, report.Summary(), "Correct keys: 1/2 (50.00%)")
	assert.Contains(t, report.Summary(), "Correct notes: 4/5 (80.00%)")
}

func TestEvaluateNoComparableSongs(t *testing.T) {
	l := testLayout(t)

	report, err := NewEvaluator(l, config.NoteMatchPitchClass).Evaluate(context.Background(), Indices(3))
	assert.True(t, errors.Is(err, ErrNoComparableSongs))
	require.NotNil(t, report)
	assert.Equal(t, []int{0, 1, 2}, report.Skipped)
	assert.Contains(t, report.Summary(), "Correct keys: 0/0 (undefined)")
	assert.Contains(t, report.Summary(), "Correct notes: 0/0 (undefined)")
}

func TestEvaluateMissingSongLeavesTotalsUnchanged(t *testing.T) {
	l := testLayout(t)
	require.NoError(t, l.WriteMetadata(0, &records.Metadata{Key: "E", BPM: 120, Notes: []string{"E4", "F#4"}}))
	require.NoError(t, l.WritePrediction(0, &records.Prediction{Key: "E", Notes: []string{"E", "F#"}}))

	e := NewEvaluator(l, config.NoteMatchPitchClass)
	alone, err := e.Evaluate(context.Background(), []int{0})
	require.NoError(t, err)

	require.NoError(t, l.WriteMetadata(1, &records.Metadata{Key: "B", BPM: 120, Notes: []string{"B4"}}))
	withMissing, err := e.Evaluate(context.Background(), []int{0, 1})
	require.NoError(t, err)

	assert.Equal(t, alone.Metrics, withMissing.Metrics)
}

func TestEvaluateHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEvaluator(testLayout(t), config.NoteMatchExact).Evaluate(ctx, Indices(3))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvaluateContinuesPastUnreadableRecords(t *testing.T) {
	l := testLayout(t)

	// empty prediction file
	require.NoError(t, l.WriteMetadata(0, &records.Metadata{Key: "C", BPM: 120, Notes: []string{"C4", "D4"}}))
	require.NoError(t, records.WriteFileAtomic(l.PredictionPath(0), nil))

	require.NoError(t, l.WriteMetadata(1, &records.Metadata{Key: "G", BPM: 90, Notes: []string{"G4", "A4"}}))
	require.NoError(t, l.WritePrediction(1, &records.Prediction{Key: "G", Notes: []string{"G", "B"}}))

	// bpm is not needed for comparison
	require.NoError(t, records.WriteFileAtomic(l.MetadataPath(2), []byte("D\nfast\nD4\n")))
	require.NoError(t, l.WritePrediction(2, &records.Prediction{Key: "D", Notes: []string{"D"}}))

	// metadata without a key
	require.NoError(t, records.WriteFileAtomic(l.MetadataPath(3), []byte("\n100\nE4\n")))
	require.NoError(t, l.WritePrediction(3, &records.Prediction{Key: "E", Notes: []string{"E"}}))

	previous := logging.GetGlobalLogger()
	rec := logging.NewRecordingLogger()
	logging.SetGlobalLogger(rec)
	defer logging.SetGlobalLogger(previous)

	report, err := NewEvaluator(l, config.NoteMatchPitchClass).Evaluate(context.Background(), Indices(4))
	require.NoError(t, err)

	assert.Equal(t, []int{0, 3}, report.Failed)
	assert.Empty(t, report.Skipped)
	require.Len(t, report.Songs, 2)
	assert.Equal(t, 1, report.Songs[0].Song)
	assert.Equal(t, 2, report.Songs[1].Song)
	assert.Equal(t, Metrics{CorrectKeys: 2, TotalKeys: 2, CorrectNotes: 2, TotalNotes: 3}, report.Metrics)

	unreadable := 0
	for _, e := range rec.EntriesAt(logging.WarnLevel) {
		if e.Message == "Unreadable record, skipping song" {
			unreadable++
		}
	}
	assert.Equal(t, 2, unreadable)
}

func TestEvaluateOnlyUnreadableRecords(t *testing.T) {
	l := testLayout(t)
	require.NoError(t, l.WriteMetadata(0, &records.Metadata{Key: "C", BPM: 120, Notes: []string{"C4"}}))
	require.NoError(t, records.WriteFileAtomic(l.PredictionPath(0), []byte("\n")))

	report, err := NewEvaluator(l, config.NoteMatchPitchClass).Evaluate(context.Background(), []int{0})
	assert.ErrorIs(t, err, ErrNoComparableSongs)
	assert.Equal(t, []int{0}, report.Failed)
}

func TestIndices(t *testing.T) {
	assert.Equal(t, []int{0, 1, 2}, Indices(3))
	assert.Empty(t, Indices(0))
}
