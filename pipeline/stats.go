package pipeline

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-melodia/algorithms/common"
	"github.com/google/uuid"
)

// SongStats describes one transcribed song
type SongStats struct {
	Song          int
	Key           string
	Notes         int
	SkippedChunks int
	Elapsed       time.Duration
}

// TimePerNote is the song's elapsed time divided by its note count
func (s SongStats) TimePerNote() time.Duration {
	if s.Notes == 0 {
		return 0
	}
	return s.Elapsed / time.Duration(s.Notes)
}

// SongFailure records why a song could not be transcribed
type SongFailure struct {
	Song int
	Err  error
}

// RunStats collects the outcome of one Run. Songs and Failures are sorted
// by song index once the run finishes.
type RunStats struct {
	RunID    string
	Started  time.Time
	Elapsed  time.Duration
	Songs    []SongStats
	Failures []SongFailure

	// AvgTimePerNote is the mean of the per-song averages, zero-note songs
	// included
	AvgTimePerNote time.Duration
}

// NewRunStats starts an empty run with a fresh id
func NewRunStats() *RunStats {
	return &RunStats{
		RunID:   uuid.NewString(),
		Started: time.Now(),
	}
}

func (s *RunStats) addSong(song SongStats) {
	s.Songs = append(s.Songs, song)
}

func (s *RunStats) addFailure(song int, err error) {
	s.Failures = append(s.Failures, SongFailure{Song: song, Err: err})
}

func (s *RunStats) finish() {
	s.Elapsed = time.Since(s.Started)

	slices.SortFunc(s.Songs, func(a, b SongStats) int { return a.Song - b.Song })
	slices.SortFunc(s.Failures, func(a, b SongFailure) int { return a.Song - b.Song })

	// songs without notes count as zero
	perNote := make([]float64, 0, len(s.Songs))
	for _, song := range s.Songs {
		perNote = append(perNote, float64(song.TimePerNote()))
	}
	if len(perNote) > 0 {
		s.AvgTimePerNote = time.Duration(common.Mean(perNote))
	}
}

// Summary renders the run for the command line
func (s *RunStats) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s\n", s.RunID)
	fmt.Fprintf(&b, "Transcribed: %d songs, failed: %d\n", len(s.Songs), len(s.Failures))
	fmt.Fprintf(&b, "Overall average time per note: %.4f seconds\n", s.AvgTimePerNote.Seconds())
	for _, f := range s.Failures {
		fmt.Fprintf(&b, "  song_%d: %v\n", f.Song, f.Err)
	}
	return b.String()
}
