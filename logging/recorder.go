package logging

import (
	"context"
	"maps"
	"sync"
)

// Entry is a single captured log call
type Entry struct {
	Level   Level
	Message string
	Err     error
	Fields  Fields
}

// RecordingLogger keeps every entry in memory. Children created with
// WithFields append to the same entry list.
type RecordingLogger struct {
	store  *entryStore
	fields Fields
}

type entryStore struct {
	mu      sync.Mutex
	entries []Entry
	level   Level
}

// NewRecordingLogger creates a logger that records at DebugLevel and above
func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{
		store:  &entryStore{level: DebugLevel},
		fields: make(Fields),
	}
}

func (r *RecordingLogger) record(level Level, err error, msg string, fields ...Fields) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if level < r.store.level {
		return
	}

	all := make(Fields)
	maps.Copy(all, r.fields)
	for _, f := range fields {
		maps.Copy(all, f)
	}

	r.store.entries = append(r.store.entries, Entry{
		Level:   level,
		Message: msg,
		Err:     err,
		Fields:  all,
	})
}

func (r *RecordingLogger) Debug(msg string, fields ...Fields) {
	r.record(DebugLevel, nil, msg, fields...)
}

func (r *RecordingLogger) Info(msg string, fields ...Fields) {
	r.record(InfoLevel, nil, msg, fields...)
}

func (r *RecordingLogger) Warn(msg string, fields ...Fields) {
	r.record(WarnLevel, nil, msg, fields...)
}

func (r *RecordingLogger) Error(err error, msg string, fields ...Fields) {
	r.record(ErrorLevel, err, msg, fields...)
}

// Fatal records the entry without exiting
func (r *RecordingLogger) Fatal(err error, msg string, fields ...Fields) {
	r.record(FatalLevel, err, msg, fields...)
}

func (r *RecordingLogger) WithFields(fields Fields) Logger {
	merged := make(Fields)
	maps.Copy(merged, r.fields)
	maps.Copy(merged, fields)
	return &RecordingLogger{store: r.store, fields: merged}
}

func (r *RecordingLogger) WithContext(ctx context.Context) Logger {
	if fields, ok := FieldsFromContext(ctx); ok {
		return r.WithFields(fields)
	}
	return r
}

func (r *RecordingLogger) SetLevel(level Level) {
	r.store.mu.Lock()
	r.store.level = level
	r.store.mu.Unlock()
}

// Entries returns a snapshot of the recorded entries
func (r *RecordingLogger) Entries() []Entry {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	out := make([]Entry, len(r.store.entries))
	copy(out, r.store.entries)
	return out
}

// EntriesAt returns the recorded entries at exactly the given level
func (r *RecordingLogger) EntriesAt(level Level) []Entry {
	var out []Entry
	for _, e := range r.Entries() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}
