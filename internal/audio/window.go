package audio

import (
	"sync"
	"time"
)

// DefaultWindowDuration is the default duration the peak-hold window keeps
// a peak before letting it decay. Short enough that the limiter still reacts
// within a tick or two, long enough that a single clipped frame does not
// read as sustained loudness on its own.
const DefaultWindowDuration = 100 * time.Millisecond

// PeakWindow tracks the held peak over a short rolling window.
// It is safe for concurrent use.
type PeakWindow struct {
	mu       sync.Mutex
	held     float64
	heldAt   time.Time
	duration time.Duration
}

// NewPeakWindow creates a peak window with the default hold duration.
func NewPeakWindow() *PeakWindow {
	return &PeakWindow{duration: DefaultWindowDuration}
}

// Update feeds a new frame peak into the window and returns the held peak.
func (w *PeakWindow) Update(peak float64, now time.Time) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if peak >= w.held || now.Sub(w.heldAt) > w.duration {
		w.held = peak
		w.heldAt = now
	}
	return w.held
}

// Held returns the current held peak without feeding a new frame.
// Peaks older than the window duration read as zero.
func (w *PeakWindow) Held(now time.Time) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if now.Sub(w.heldAt) > w.duration {
		return 0
	}
	return w.held
}

// SetDuration updates the hold duration.
func (w *PeakWindow) SetDuration(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.duration = d
}

// Reset clears the held peak.
func (w *PeakWindow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.held = 0
	w.heldAt = time.Time{}
}
