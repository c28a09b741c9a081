package volume

import (
	"math"
	"sync"

	sysvolume "github.com/itchyny/volume-go"

	"github.com/tame-app/tame/internal/util"
)

// System controls the OS master output volume through the platform mixer.
// Writes are coalesced: setting a level that rounds to the last written
// percentage performs no OS call, so the control loop can write every tick
// without audible artifacts. Safe for concurrent use.
type System struct {
	mu          sync.Mutex
	lastPercent int // last written percentage, -1 when nothing written yet
}

// NewSystem returns a System actuator.
func NewSystem() *System {
	return &System{lastPercent: -1}
}

// Volume returns the current OS output volume as a scalar in [0,1].
func (s *System) Volume() (float64, error) {
	v, err := sysvolume.GetVolume()
	if err != nil {
		return 0, util.WrapError("read system volume", err)
	}
	return float64(v) / 100, nil
}

// SetVolume sets the OS output volume. The level is clamped to [0,1] and
// rounded to the mixer's integer percent resolution.
func (s *System) SetVolume(level float64) error {
	percent := int(math.Round(Clamp(level) * 100))

	s.mu.Lock()
	if percent == s.lastPercent {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := sysvolume.SetVolume(percent); err != nil {
		return util.WrapError("set system volume", err)
	}

	s.mu.Lock()
	s.lastPercent = percent
	s.mu.Unlock()
	return nil
}
