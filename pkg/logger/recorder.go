package logger

import (
	"context"
	"log/slog"
	"sync"
)

// Record is one captured log call.
type Record struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
	// Keys lists attribute keys in order, duplicates included.
	Keys []string
}

// Recorder is a slog.Handler that keeps every record in memory. Tests use
// it to assert on log output.
type Recorder struct {
	state *recorderState
	attrs []slog.Attr
	group string
}

type recorderState struct {
	mu      sync.Mutex
	records []Record
}

func NewRecorder() *Recorder {
	return &Recorder{state: &recorderState{}}
}

// Logger returns a logger writing to r.
func (r *Recorder) Logger() *slog.Logger {
	return slog.New(r)
}

func (r *Recorder) Enabled(context.Context, slog.Level) bool {
	return true
}

func (r *Recorder) Handle(_ context.Context, record slog.Record) error {
	attrs := make(map[string]any, len(r.attrs)+record.NumAttrs())
	keys := make([]string, 0, len(r.attrs)+record.NumAttrs())
	for _, a := range r.attrs {
		attrs[a.Key] = a.Value.Resolve().Any()
		keys = append(keys, a.Key)
	}
	record.Attrs(func(a slog.Attr) bool {
		key := a.Key
		if r.group != "" {
			key = r.group + "." + key
		}
		attrs[key] = a.Value.Resolve().Any()
		keys = append(keys, key)
		return true
	})

	r.state.mu.Lock()
	r.state.records = append(r.state.records, Record{Level: record.Level, Message: record.Message, Attrs: attrs, Keys: keys})
	r.state.mu.Unlock()
	return nil
}

func (r *Recorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *r
	next.attrs = append(append([]slog.Attr{}, r.attrs...), attrs...)
	return &next
}

func (r *Recorder) WithGroup(name string) slog.Handler {
	next := *r
	if next.group != "" {
		name = next.group + "." + name
	}
	next.group = name
	return &next
}

// Records returns a copy of everything captured so far.
func (r *Recorder) Records() []Record {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	return append([]Record(nil), r.state.records...)
}

// Count returns how many records at level match message.
func (r *Recorder) Count(level slog.Level, message string) int {
	n := 0
	for _, rec := range r.Records() {
		if rec.Level == level && rec.Message == message {
			n++
		}
	}
	return n
}
