package limiter

import (
	"testing"
	"time"

	"github.com/tame-app/tame/internal/config"
)

func stabConfig() config.StabilizerConfig {
	return config.StabilizerConfig{
		Enabled:         true,
		WindowMs:        config.DefaultStabilizerWindowMs,
		TriggerCount:    config.DefaultStabilizerTriggerCount,
		MaxLeewayDB:     config.DefaultStabilizerMaxLeewayDB,
		StepDB:          config.DefaultStabilizerStepDB,
		ChangeThreshold: config.DefaultStabilizerChangeThresh,
	}
}

// oscillate records n alternating large volume writes spaced 100ms apart,
// returning the time after the last write.
func oscillate(s *stabilizer, n int, start time.Time, cfg config.StabilizerConfig) time.Time {
	now := start
	for i := range n {
		v := 0.2
		if i%2 == 1 {
			v = 0.4
		}
		s.TrackWrite(v, now, cfg)
		now = now.Add(100 * time.Millisecond)
	}
	return now
}

func TestStabilizerWidensLeewayUnderOscillation(t *testing.T) {
	cfg := stabConfig()
	var s stabilizer
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	now := oscillate(&s, cfg.TriggerCount+1, start, cfg)

	got := s.LeewayDB(3, now, cfg)
	if got != 3+cfg.StepDB {
		t.Errorf("LeewayDB = %v, want %v after oscillation", got, 3+cfg.StepDB)
	}
}

func TestStabilizerStaysWithinMax(t *testing.T) {
	cfg := stabConfig()
	var s stabilizer
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for range 30 {
		now = oscillate(&s, cfg.TriggerCount+1, now, cfg)
		s.LeewayDB(3, now, cfg)
	}

	if got := s.LeewayDB(3, now, cfg); got > cfg.MaxLeewayDB {
		t.Errorf("LeewayDB = %v, want <= %v", got, cfg.MaxLeewayDB)
	}
}

func TestStabilizerDecaysWhenQuiet(t *testing.T) {
	cfg := stabConfig()
	var s stabilizer
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	now := oscillate(&s, cfg.TriggerCount+1, start, cfg)
	if got := s.LeewayDB(3, now, cfg); got <= 3 {
		t.Fatalf("LeewayDB = %v, expected widening first", got)
	}

	// A quiet stretch longer than the window unwinds the widening.
	window := time.Duration(cfg.WindowMs) * time.Millisecond
	for range 20 {
		now = now.Add(window + time.Second)
		s.LeewayDB(3, now, cfg)
	}

	if got := s.LeewayDB(3, now, cfg); got != 3 {
		t.Errorf("LeewayDB = %v, want base 3 after quiet period", got)
	}
}

func TestStabilizerIgnoresSmallWrites(t *testing.T) {
	cfg := stabConfig()
	var s stabilizer
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Release ramp steps are well under the change threshold.
	v := 0.2
	for range 20 {
		s.TrackWrite(v, now, cfg)
		v += 0.01
		now = now.Add(100 * time.Millisecond)
	}

	if got := s.LeewayDB(3, now, cfg); got != 3 {
		t.Errorf("LeewayDB = %v, want base 3 for sub-threshold writes", got)
	}
}

func TestStabilizerDisabledPassesThrough(t *testing.T) {
	cfg := stabConfig()
	var s stabilizer
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	now = oscillate(&s, cfg.TriggerCount+1, now, cfg)
	s.LeewayDB(3, now, cfg)

	cfg.Enabled = false
	if got := s.LeewayDB(3, now, cfg); got != 3 {
		t.Errorf("LeewayDB = %v, want base 3 when disabled", got)
	}
}
