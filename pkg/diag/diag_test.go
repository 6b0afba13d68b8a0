package diag

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSinkAggregates(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewSink(zap.New(core))

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	s.Report(LevelWarning, "bone.missing", "bone Hips has no node")
	s.Report(LevelWarning, "bone.missing", "bone Spine has no node")
	s.Report(LevelError, "bvh.failed", "bad bounds")

	e, ok := s.Lookup("bone.missing")
	if !ok {
		t.Fatal("expected entry for bone.missing")
	}
	if e.Count != 2 {
		t.Errorf("Count = %d, want 2", e.Count)
	}
	if e.Message != "bone Spine has no node" {
		t.Errorf("Message = %q, want latest message", e.Message)
	}
	if !e.LastSeen.After(e.FirstSeen) {
		t.Errorf("LastSeen %v should be after FirstSeen %v", e.LastSeen, e.FirstSeen)
	}

	// Only first occurrences are logged.
	if logs.Len() != 2 {
		t.Errorf("logged %d entries, want 2", logs.Len())
	}

	snap := s.Snapshot()
	if len(snap) != 2 || snap[0].ID != "bone.missing" || snap[1].ID != "bvh.failed" {
		t.Errorf("Snapshot order wrong: %+v", snap)
	}

	s.Reset()
	if s.Len() != 0 {
		t.Errorf("Len after Reset = %d", s.Len())
	}
}

func TestNilSink(t *testing.T) {
	var s *Sink
	s.Report(LevelError, "x", "y")
	if _, ok := s.Lookup("x"); ok {
		t.Error("nil sink should not store entries")
	}
	if s.Len() != 0 || s.Snapshot() != nil {
		t.Error("nil sink should be empty")
	}
}

func TestSinkConcurrentReports(t *testing.T) {
	s := NewSink(nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Report(LevelInfo, fmt.Sprintf("id%d", j%4), "msg")
			}
		}(i)
	}
	wg.Wait()

	total := 0
	for _, e := range s.Snapshot() {
		total += e.Count
	}
	if total != 800 {
		t.Errorf("total count = %d, want 800", total)
	}
}

func TestLevelString(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelInfo, "info"},
		{LevelWarning, "warning"},
		{LevelError, "error"},
		{Level(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}
