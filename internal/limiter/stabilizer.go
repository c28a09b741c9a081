package limiter

import (
	"log/slog"
	"math"
	"time"

	"github.com/tame-app/tame/internal/config"
)

// stabilizer damps limiter oscillation. When the control loop rewrites the
// volume too often inside a sliding window, the effective leeway is widened
// step by step, which moves the attenuation target away from the hard cap
// and lets the loop settle. The widening decays once the loop goes quiet.
// Owned by the tick goroutine, no locking.
type stabilizer struct {
	lastVolume float64
	haveVolume bool

	changes    []time.Time
	extraDB    float64
	lastAdjust time.Time
}

// TrackWrite records a volume write at now. Writes that move the volume by
// less than the configured threshold are ignored.
func (s *stabilizer) TrackWrite(volume float64, now time.Time, cfg config.StabilizerConfig) {
	if !cfg.Enabled {
		return
	}

	if s.haveVolume && math.Abs(volume-s.lastVolume) >= cfg.ChangeThreshold {
		s.changes = append(s.changes, now)
	}
	s.lastVolume = volume
	s.haveVolume = true
}

// LeewayDB returns the effective leeway at now, widening or decaying as the
// recent write frequency demands. baseDB is the configured leeway.
func (s *stabilizer) LeewayDB(baseDB float64, now time.Time, cfg config.StabilizerConfig) float64 {
	if !cfg.Enabled {
		s.Reset()
		return baseDB
	}

	window := time.Duration(cfg.WindowMs) * time.Millisecond
	s.prune(now, window)

	if len(s.changes) >= cfg.TriggerCount {
		before := s.extraDB
		s.extraDB = math.Min(s.extraDB+cfg.StepDB, math.Max(cfg.MaxLeewayDB-baseDB, 0))
		s.changes = s.changes[:0]
		s.lastAdjust = now
		if s.extraDB != before {
			slog.Debug("stabilizer widened leeway",
				"extra_db", s.extraDB, "effective_db", baseDB+s.extraDB)
		}
	} else if s.extraDB > 0 && now.Sub(s.lastAdjust) > window {
		s.extraDB = math.Max(s.extraDB-cfg.StepDB, 0)
		s.lastAdjust = now
	}

	return baseDB + s.extraDB
}

// Reset discards all stabilizer state.
func (s *stabilizer) Reset() {
	s.changes = s.changes[:0]
	s.extraDB = 0
	s.haveVolume = false
}

func (s *stabilizer) prune(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(s.changes) && s.changes[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		s.changes = append(s.changes[:0], s.changes[i:]...)
	}
}
