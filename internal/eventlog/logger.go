// Package eventlog provides unified event logging for the limiter.
// It captures limiter transitions (limit_start, limit_end, override_start,
// override_end, degraded) and capture events (capture_lost,
// capture_restored) in a single JSON lines file.
package eventlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tame-app/tame/internal/util"
)

// EventType represents the type of event.
type EventType string

// Limiter event types.
const (
	LimitStart    EventType = "limit_start"
	LimitEnd      EventType = "limit_end"
	OverrideStart EventType = "override_start"
	OverrideEnd   EventType = "override_end"
	Degraded      EventType = "degraded"
)

// Capture event types.
const (
	CaptureLost     EventType = "capture_lost"
	CaptureRestored EventType = "capture_restored"
)

// Event represents a single log entry with type-specific details.
type Event struct {
	Timestamp time.Time `json:"ts"`
	Type      EventType `json:"type"`
	Message   string    `json:"msg,omitempty"`
	Details   any       `json:"details,omitempty"`
}

// LimitDetails contains limiter-specific event details.
type LimitDetails struct {
	Level      float64 `json:"level,omitempty"`       // loudness that triggered the event [0,1]
	Cap        float64 `json:"cap,omitempty"`         // cap in effect [0,1]
	Volume     float64 `json:"volume,omitempty"`      // OS volume at the event [0,1]
	DurationMs int64   `json:"duration_ms,omitempty"` // for limit_end: time spent limiting
	Error      string  `json:"error,omitempty"`       // for degraded: last actuator error
}

// CaptureDetails contains capture-specific event details.
type CaptureDetails struct {
	Device string `json:"device,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Logger writes events to a JSON lines file.
type Logger struct {
	mu       sync.Mutex
	filePath string
	file     *os.File
	encoder  *json.Encoder
}

// NewLogger creates a new event logger at the specified path.
func NewLogger(filePath string) (*Logger, error) {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, util.WrapError("create log directory", err)
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, util.WrapError("open log file", err)
	}

	return &Logger{
		filePath: filePath,
		file:     file,
		encoder:  json.NewEncoder(file),
	}, nil
}

// Log writes an event to the log file.
func (l *Logger) Log(event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	return l.encoder.Encode(event)
}

// LogLimit logs a limiter transition.
func (l *Logger) LogLimit(eventType EventType, level, capLevel, volume float64, duration time.Duration, errMsg string) error {
	msg := ""
	if eventType == LimitEnd && duration > 0 {
		msg = "volume limited for " + util.FormatDuration(duration.Milliseconds())
	}

	return l.Log(&Event{
		Timestamp: time.Now(),
		Type:      eventType,
		Message:   msg,
		Details: &LimitDetails{
			Level:      level,
			Cap:        capLevel,
			Volume:     volume,
			DurationMs: duration.Milliseconds(),
			Error:      errMsg,
		},
	})
}

// LogCapture logs a capture availability change.
func (l *Logger) LogCapture(eventType EventType, device, reason string) error {
	return l.Log(&Event{
		Timestamp: time.Now(),
		Type:      eventType,
		Details: &CaptureDetails{
			Device: device,
			Reason: reason,
		},
	})
}

// Close closes the log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Path returns the path to the log file.
func (l *Logger) Path() string {
	return l.filePath
}

// MaxReadLimit is the maximum number of events that can be read at once.
// This prevents excessive memory allocation from oversized requests.
const MaxReadLimit = 500

// ReadLast reads up to n events from the log file, newest first, starting
// from offset. The second return value reports whether more events remain.
func ReadLast(filePath string, n, offset int) ([]Event, bool, error) {
	if n > MaxReadLimit {
		n = MaxReadLimit
	}
	if n <= 0 {
		return []Event{}, false, nil
	}

	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []Event{}, false, nil
		}
		return nil, false, err
	}
	defer file.Close() //nolint:errcheck // Read-only operation, close error not critical

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, false, err
	}

	events := make([]Event, 0, n)
	skipped := 0
	remaining := 0
	for i := len(lines) - 1; i >= 0; i-- {
		var event Event
		if err := json.Unmarshal([]byte(lines[i]), &event); err != nil {
			continue // Skip malformed lines
		}

		if skipped < offset {
			skipped++
			continue
		}

		if len(events) >= n {
			remaining++
			break
		}
		events = append(events, event)
	}

	return events, remaining > 0, nil
}
