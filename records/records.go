// Package records reads and writes the per-song metadata and prediction
// files and knows the on-disk dataset layout.
package records

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/RyanBlaney/sonido-melodia/config"
	"github.com/google/uuid"
)

// MissingRecordError reports a song whose metadata or prediction file does
// not exist
type MissingRecordError struct {
	Song int
	Kind string // "metadata" or "prediction"
	Path string
	Err  error
}

func (e *MissingRecordError) Error() string {
	return fmt.Sprintf("missing %s for song_%d at %s", e.Kind, e.Song, e.Path)
}

func (e *MissingRecordError) Unwrap() error {
	return e.Err
}

// Metadata is the ground truth for one song
type Metadata struct {
	Key   string   `json:"key"`
	BPM   int      `json:"bpm"`
	Notes []string `json:"notes"`
}

// Prediction is the transcriber output for one song
type Prediction struct {
	Key   string   `json:"key"`
	Notes []string `json:"notes"`
}

// ParseMetadata reads three lines: key, integer bpm, space separated notes
func ParseMetadata(r io.Reader) (*Metadata, error) {
	return parseMetadata(r, true)
}

// ParseTruth reads metadata for comparison only. The bpm line is not
// validated; BPM is left at zero when it does not parse.
func ParseTruth(r io.Reader) (*Metadata, error) {
	return parseMetadata(r, false)
}

func parseMetadata(r io.Reader, strictBPM bool) (*Metadata, error) {
	lines, err := readLines(r, 3)
	if err != nil {
		return nil, err
	}

	if lines[0] == "" {
		return nil, fmt.Errorf("metadata has no key")
	}

	bpm, err := strconv.Atoi(lines[1])
	switch {
	case !strictBPM && (err != nil || bpm < 0):
		bpm = 0
	case err != nil:
		return nil, fmt.Errorf("metadata bpm %q: %w", lines[1], err)
	case bpm <= 0:
		return nil, fmt.Errorf("metadata bpm must be positive, got %d", bpm)
	}

	return &Metadata{
		Key:   lines[0],
		BPM:   bpm,
		Notes: strings.Fields(lines[2]),
	}, nil
}

// ParsePrediction reads two lines: key, space separated notes
func ParsePrediction(r io.Reader) (*Prediction, error) {
	lines, err := readLines(r, 2)
	if err != nil {
		return nil, err
	}

	if lines[0] == "" {
		return nil, fmt.Errorf("prediction has no key")
	}

	return &Prediction{
		Key:   lines[0],
		Notes: strings.Fields(lines[1]),
	}, nil
}

// readLines returns the first n lines trimmed, padding missing lines with ""
func readLines(r io.Reader, n int) ([]string, error) {
	lines := make([]string, n)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for i := 0; i < n && scanner.Scan(); i++ {
		lines[i] = strings.TrimSpace(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}
	return lines, nil
}

// Format renders m in the metadata file format
func (m *Metadata) Format() string {
	return fmt.Sprintf("%s\n%d\n%s\n", m.Key, m.BPM, strings.Join(m.Notes, " "))
}

// Format renders p in the prediction file format
func (p *Prediction) Format() string {
	return fmt.Sprintf("%s\n%s\n", p.Key, strings.Join(p.Notes, " "))
}

// WriteFileAtomic writes data to a uniquely named temp file beside path and
// renames it into place, removing the temp file on every failure
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.NewString()))
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

// Layout maps song indices to files under the songs and predictions roots
type Layout struct {
	SongsDir       string
	PredictionsDir string
	SongFile       string
	MetadataFile   string
	PredictionFile string
	MIDIFile       string
}

// NewLayout takes the directory and file names from cfg
func NewLayout(cfg *config.Config) Layout {
	return Layout{
		SongsDir:       cfg.SongsDir,
		PredictionsDir: cfg.PredictionsDir,
		SongFile:       cfg.Audio.SongFile,
		MetadataFile:   cfg.Audio.MetadataFile,
		PredictionFile: cfg.Evaluation.PredictionFile,
		MIDIFile:       cfg.Output.MIDIFile,
	}
}

// SongName is the directory name of song i
func SongName(i int) string {
	return "song_" + strconv.Itoa(i)
}

func (l Layout) SongDir(i int) string {
	return filepath.Join(l.SongsDir, SongName(i))
}

func (l Layout) SongPath(i int) string {
	return filepath.Join(l.SongDir(i), l.SongFile)
}

func (l Layout) MetadataPath(i int) string {
	return filepath.Join(l.SongDir(i), l.MetadataFile)
}

func (l Layout) PredictionPath(i int) string {
	return filepath.Join(l.PredictionsDir, SongName(i), l.PredictionFile)
}

func (l Layout) MIDIPath(i int) string {
	return filepath.Join(l.PredictionsDir, SongName(i), l.MIDIFile)
}

// ReadMetadata loads the ground truth of song i
func (l Layout) ReadMetadata(i int) (*Metadata, error) {
	path := l.MetadataPath(i)
	f, err := l.open(i, "metadata", path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := ParseMetadata(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ReadTruth loads the ground truth of song i without validating its bpm
func (l Layout) ReadTruth(i int) (*Metadata, error) {
	path := l.MetadataPath(i)
	f, err := l.open(i, "metadata", path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := ParseTruth(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ReadPrediction loads the stored prediction of song i
func (l Layout) ReadPrediction(i int) (*Prediction, error) {
	path := l.PredictionPath(i)
	f, err := l.open(i, "prediction", path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p, err := ParsePrediction(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

func (l Layout) open(song int, kind, path string) (*os.File, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &MissingRecordError{Song: song, Kind: kind, Path: path, Err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, nil
}

// WriteMetadata stores the ground truth of song i atomically
func (l Layout) WriteMetadata(i int, m *Metadata) error {
	return WriteFileAtomic(l.MetadataPath(i), []byte(m.Format()))
}

// WritePrediction stores the prediction of song i atomically
func (l Layout) WritePrediction(i int, p *Prediction) error {
	return WriteFileAtomic(l.PredictionPath(i), []byte(p.Format()))
}

// Songs lists the song indices present under SongsDir in ascending order
func (l Layout) Songs() ([]int, error) {
	entries, err := os.ReadDir(l.SongsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", l.SongsDir, err)
	}

	var songs []int
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		rest, ok := strings.CutPrefix(e.Name(), "song_")
		if !ok {
			continue
		}
		i, err := strconv.Atoi(rest)
		if err != nil || i < 0 {
			continue
		}
		songs = append(songs, i)
	}

	// ReadDir sorts by name, so song_10 precedes song_2
	slices.Sort(songs)
	return songs, nil
}
