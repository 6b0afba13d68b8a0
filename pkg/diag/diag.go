// Package diag aggregates repeated diagnostic messages by id.
//
// A Sink is an explicit object owned by whoever produces the diagnostics (a mesh build,
// a renderer) instead of a process-wide registry. Repeats of the same id only bump a
// counter and the last-seen time, so noisy sources do not flood the log.
package diag

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Level is the severity of a diagnostic.
type Level int8

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Entry is the aggregated state of one diagnostic id.
type Entry struct {
	ID        string
	Level     Level
	Message   string
	Count     int
	FirstSeen time.Time
	LastSeen  time.Time
}

// Sink collects diagnostics. A nil *Sink discards everything.
type Sink struct {
	mu      sync.Mutex
	entries map[string]*Entry
	log     *zap.Logger
	now     func() time.Time
}

// NewSink creates a sink. The first occurrence of every id is also written to log.
func NewSink(log *zap.Logger) *Sink {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sink{
		entries: make(map[string]*Entry),
		log:     log,
		now:     time.Now,
	}
}

// Report records one occurrence of id. The stored message is the latest one.
func (s *Sink) Report(level Level, id, message string) {
	if s == nil {
		return
	}
	now := s.now()

	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		e = &Entry{ID: id, FirstSeen: now}
		s.entries[id] = e
	}
	e.Count++
	e.LastSeen = now
	e.Message = message
	if level > e.Level {
		e.Level = level
	}
	s.mu.Unlock()

	if ok {
		return
	}
	fields := []zap.Field{zap.String("id", id)}
	switch level {
	case LevelError:
		s.log.Error(message, fields...)
	case LevelWarning:
		s.log.Warn(message, fields...)
	default:
		s.log.Info(message, fields...)
	}
}

// Lookup returns a copy of the entry for id.
func (s *Sink) Lookup(id string) (Entry, bool) {
	if s == nil {
		return Entry{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Snapshot returns copies of all entries sorted by id.
func (s *Sink) Snapshot() []Entry {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of distinct ids.
func (s *Sink) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Reset drops every entry.
func (s *Sink) Reset() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.entries = make(map[string]*Entry)
	s.mu.Unlock()
}
