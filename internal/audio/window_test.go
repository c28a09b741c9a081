package audio

import (
	"testing"
	"time"
)

func TestPeakWindowHoldsPeak(t *testing.T) {
	w := NewPeakWindow()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	w.Update(0.8, now)
	// A quieter frame inside the window must not pull the held peak down.
	w.Update(0.1, now.Add(20*time.Millisecond))

	if got := w.Held(now.Add(40 * time.Millisecond)); got != 0.8 {
		t.Errorf("Held = %v, want 0.8 inside hold window", got)
	}
}

func TestPeakWindowLouderFrameReplacesHeld(t *testing.T) {
	w := NewPeakWindow()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	w.Update(0.3, now)
	w.Update(0.9, now.Add(20*time.Millisecond))

	if got := w.Held(now.Add(30 * time.Millisecond)); got != 0.9 {
		t.Errorf("Held = %v, want 0.9", got)
	}
}

func TestPeakWindowExpires(t *testing.T) {
	w := NewPeakWindow()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	w.Update(0.8, now)

	if got := w.Held(now.Add(DefaultWindowDuration + time.Millisecond)); got != 0 {
		t.Errorf("Held = %v, want 0 after hold window expired", got)
	}
}

func TestPeakWindowDecaysToNewerQuietFrame(t *testing.T) {
	w := NewPeakWindow()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	w.Update(0.8, now)
	// Once the loud frame ages out, the next quiet frame takes over.
	later := now.Add(DefaultWindowDuration + 20*time.Millisecond)
	w.Update(0.1, later)

	if got := w.Held(later); got != 0.1 {
		t.Errorf("Held = %v, want 0.1 after old peak aged out", got)
	}
}

func TestPeakWindowReset(t *testing.T) {
	w := NewPeakWindow()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	w.Update(0.8, now)
	w.Reset()

	if got := w.Held(now); got != 0 {
		t.Errorf("Held = %v, want 0 after Reset", got)
	}
}
