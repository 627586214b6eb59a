package theory

import (
	"fmt"
	"slices"
)

// Scale is a diatonic scale: seven pitch classes, tonic first
type Scale struct {
	Key   string   `json:"key"`
	Notes []string `json:"notes"`
}

// Tonic returns the first degree of the scale
func (s Scale) Tonic() string {
	if len(s.Notes) == 0 {
		return ""
	}
	return s.Notes[0]
}

// Contains reports whether pitch class pc is in the scale
func (s Scale) Contains(pc string) bool {
	return slices.Contains(s.Notes, pc)
}

// Classifier label order. The index of a label is its class id in the
// trained model, so this order must never change.
var defaultVocabulary = []string{
	"A#4", "A4", "B4", "C#4", "C4", "C5",
	"D#4", "D4", "E4", "F#4", "F4", "G#4", "G4",
}

// Major scales in key-detection tie-break order
var defaultScales = []Scale{
	{Key: "C", Notes: []string{"C", "D", "E", "F", "G", "A", "B"}},
	{Key: "G", Notes: []string{"G", "A", "B", "C", "D", "E", "F#"}},
	{Key: "D", Notes: []string{"D", "E", "F#", "G", "A", "B", "C#"}},
	{Key: "A", Notes: []string{"A", "B", "C#", "D", "E", "F#", "G#"}},
	{Key: "E", Notes: []string{"E", "F#", "G#", "A", "B", "C#", "D#"}},
	{Key: "B", Notes: []string{"B", "C#", "D#", "E", "F#", "G#", "A#"}},
	{Key: "F#", Notes: []string{"F#", "G#", "A#", "B", "C#", "D#", "F"}},
	{Key: "C#", Notes: []string{"C#", "D#", "F", "F#", "G#", "A#", "C"}},
	{Key: "F", Notes: []string{"F", "G", "A", "A#", "C", "D", "E"}},
	{Key: "A#", Notes: []string{"A#", "C", "D", "D#", "F", "G", "A"}},
	{Key: "D#", Notes: []string{"D#", "F", "G", "G#", "A#", "C", "D"}},
	{Key: "G#", Notes: []string{"G#", "A#", "C", "C#", "D#", "F", "G"}},
}

// DefaultVocabularyLabels returns a copy of the built-in label order
func DefaultVocabularyLabels() []string {
	return slices.Clone(defaultVocabulary)
}

// DefaultScales returns a deep copy of the built-in major scales
func DefaultScales() []Scale {
	out := make([]Scale, len(defaultScales))
	for i, s := range defaultScales {
		out[i] = Scale{Key: s.Key, Notes: slices.Clone(s.Notes)}
	}
	return out
}

// Vocabulary is the ordered set of note labels a classifier can emit
type Vocabulary struct {
	labels []string
	index  map[string]int
}

// NewVocabulary validates labels and freezes their order
func NewVocabulary(labels []string) (*Vocabulary, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("vocabulary is empty")
	}

	index := make(map[string]int, len(labels))
	for i, label := range labels {
		if _, err := ParseNote(label); err != nil {
			return nil, fmt.Errorf("vocabulary label %d: %w", i, err)
		}
		if _, dup := index[label]; dup {
			return nil, fmt.Errorf("vocabulary label %q appears twice", label)
		}
		index[label] = i
	}

	return &Vocabulary{labels: slices.Clone(labels), index: index}, nil
}

// DefaultVocabulary returns the 13-note C4..C5 vocabulary
func DefaultVocabulary() *Vocabulary {
	v, err := NewVocabulary(defaultVocabulary)
	if err != nil {
		panic(err)
	}
	return v
}

// Len returns the number of labels
func (v *Vocabulary) Len() int {
	return len(v.labels)
}

// Labels returns a copy of the labels in class-id order
func (v *Vocabulary) Labels() []string {
	return slices.Clone(v.labels)
}

// Label maps a class id to its label
func (v *Vocabulary) Label(i int) (string, error) {
	if i < 0 || i >= len(v.labels) {
		return "", fmt.Errorf("class id %d out of range [0,%d)", i, len(v.labels))
	}
	return v.labels[i], nil
}

// Index maps a label to its class id
func (v *Vocabulary) Index(label string) (int, bool) {
	i, ok := v.index[label]
	return i, ok
}

// Contains reports whether label is in the vocabulary
func (v *Vocabulary) Contains(label string) bool {
	_, ok := v.index[label]
	return ok
}

// KeyTable is the ordered list of candidate keys. Its order is the
// tie-break order used by key detection.
type KeyTable struct {
	scales []Scale
	byKey  map[string]int
}

// NewKeyTable validates scales: seven distinct pitch classes each, tonic
// equal to the key symbol, no duplicate keys
func NewKeyTable(scales []Scale) (*KeyTable, error) {
	if len(scales) == 0 {
		return nil, fmt.Errorf("key table is empty")
	}

	t := &KeyTable{
		scales: make([]Scale, 0, len(scales)),
		byKey:  make(map[string]int, len(scales)),
	}

	for i, s := range scales {
		if len(s.Notes) != 7 {
			return nil, fmt.Errorf("scale %q has %d notes, want 7", s.Key, len(s.Notes))
		}
		if s.Tonic() != s.Key {
			return nil, fmt.Errorf("scale %q starts on %q, want its tonic first", s.Key, s.Tonic())
		}
		seen := make(map[string]bool, 7)
		for _, pc := range s.Notes {
			if PitchClassIndex(pc) < 0 {
				return nil, &UnknownSymbolError{Symbol: pc, Reason: fmt.Sprintf("in scale %q", s.Key)}
			}
			if seen[pc] {
				return nil, fmt.Errorf("scale %q repeats %q", s.Key, pc)
			}
			seen[pc] = true
		}
		if _, dup := t.byKey[s.Key]; dup {
			return nil, fmt.Errorf("key %q defined twice", s.Key)
		}
		t.byKey[s.Key] = i
		t.scales = append(t.scales, Scale{Key: s.Key, Notes: slices.Clone(s.Notes)})
	}

	return t, nil
}

// DefaultKeyTable returns the twelve major keys in their fixed order
func DefaultKeyTable() *KeyTable {
	t, err := NewKeyTable(defaultScales)
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the number of keys
func (t *KeyTable) Len() int {
	return len(t.scales)
}

// Scales returns the scales in tie-break order
func (t *KeyTable) Scales() []Scale {
	out := make([]Scale, len(t.scales))
	for i, s := range t.scales {
		out[i] = Scale{Key: s.Key, Notes: slices.Clone(s.Notes)}
	}
	return out
}

// Order returns the key symbols in tie-break order
func (t *KeyTable) Order() []string {
	out := make([]string, len(t.scales))
	for i, s := range t.scales {
		out[i] = s.Key
	}
	return out
}

// Scale looks up a key by symbol
func (t *KeyTable) Scale(key string) (Scale, bool) {
	i, ok := t.byKey[key]
	if !ok {
		return Scale{}, false
	}
	s := t.scales[i]
	return Scale{Key: s.Key, Notes: slices.Clone(s.Notes)}, true
}

// Contains reports whether key is one of the table's keys
func (t *KeyTable) Contains(key string) bool {
	_, ok := t.byKey[key]
	return ok
}

// ScaleAt returns the i-th scale without copying. Callers must not modify it.
func (t *KeyTable) ScaleAt(i int) Scale {
	return t.scales[i]
}

// Reorder returns a table with the same scales in the given tie-break order.
// order must name every key exactly once.
func (t *KeyTable) Reorder(order []string) (*KeyTable, error) {
	if len(order) != len(t.scales) {
		return nil, fmt.Errorf("key order names %d keys, table has %d", len(order), len(t.scales))
	}

	scales := make([]Scale, 0, len(order))
	for _, key := range order {
		s, ok := t.Scale(key)
		if !ok {
			return nil, fmt.Errorf("key order names unknown key %q", key)
		}
		scales = append(scales, s)
	}

	return NewKeyTable(scales)
}
