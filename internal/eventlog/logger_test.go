package eventlog

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLogAndReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	logger, err := NewLogger(path)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer logger.Close()

	if err := logger.LogLimit(LimitStart, 0.6, 0.2, 0.6, 0, ""); err != nil {
		t.Fatalf("LogLimit: %v", err)
	}
	if err := logger.LogLimit(LimitEnd, 0, 0.2, 0.6, 3*time.Second, ""); err != nil {
		t.Fatalf("LogLimit: %v", err)
	}
	if err := logger.LogCapture(CaptureLost, "monitor.0", "process exited"); err != nil {
		t.Fatalf("LogCapture: %v", err)
	}

	events, more, err := ReadLast(path, 10, 0)
	if err != nil {
		t.Fatalf("ReadLast: %v", err)
	}
	if more {
		t.Error("expected no more events")
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}

	// Newest first.
	if events[0].Type != CaptureLost {
		t.Errorf("events[0].Type = %v, want %v", events[0].Type, CaptureLost)
	}
	if events[2].Type != LimitStart {
		t.Errorf("events[2].Type = %v, want %v", events[2].Type, LimitStart)
	}
	if events[0].Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}

func TestReadLastPagination(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	logger, err := NewLogger(path)
	if err != nil {
		t.Fatal(err)
	}
	defer logger.Close()

	for range 5 {
		if err := logger.LogLimit(LimitStart, 0.5, 0.2, 0.5, 0, ""); err != nil {
			t.Fatal(err)
		}
	}

	events, more, err := ReadLast(path, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || !more {
		t.Errorf("page 1: got %d events, more=%v; want 2 events with more", len(events), more)
	}

	events, more, err = ReadLast(path, 2, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || more {
		t.Errorf("last page: got %d events, more=%v; want 1 event, no more", len(events), more)
	}
}

func TestReadLastMissingFile(t *testing.T) {
	events, more, err := ReadLast(filepath.Join(t.TempDir(), "absent.jsonl"), 10, 0)
	if err != nil {
		t.Fatalf("ReadLast on missing file: %v", err)
	}
	if len(events) != 0 || more {
		t.Errorf("got %d events, more=%v; want none", len(events), more)
	}
}
