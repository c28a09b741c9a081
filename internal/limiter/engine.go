// Package limiter implements the volume control loop. Each tick it samples
// the system output loudness, compares it against the configured cap and,
// when the output stays too loud for the attack time, attenuates the OS
// volume. Once the output goes quiet the volume is ramped back to the
// baseline the user had set. Manual volume changes always win: they pause
// the loop for a cooldown and become the new baseline.
package limiter

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/tame-app/tame/internal/audio"
	"github.com/tame-app/tame/internal/config"
	"github.com/tame-app/tame/internal/volume"
)

// TickInterval is the control loop period. Loudness metering produces one
// observation per interval, so ticking faster gains nothing.
const TickInterval = 20 * time.Millisecond

const (
	// minAudibleLevel is the loudness below which the signal is treated as
	// silence regardless of the cap.
	minAudibleLevel = 0.001

	// minVolumeFloor keeps attenuation from muting the output entirely.
	minVolumeFloor = 0.01

	// targetEpsilon is the write resolution. Targets closer than this to the
	// last written volume are not written again.
	targetEpsilon = 0.005

	// maxActuatorFailures is how many consecutive mixer errors are tolerated
	// before the loop gives up and reports itself degraded.
	maxActuatorFailures = 10
)

// Sampler provides loudness observations of the system output.
type Sampler interface {
	// Sample returns the loudness at now. Implementations must not block;
	// when no measurement is available the sample reports no signal.
	Sample(now time.Time) audio.Sample
}

// Actuator reads and writes the OS output volume as a scalar in [0,1].
type Actuator interface {
	Volume() (float64, error)
	SetVolume(level float64) error
}

// Engine is the volume control loop state machine. Tick must be called from
// a single goroutine; Status is safe to call from any goroutine.
type Engine struct {
	cfg      *config.Config
	sampler  Sampler
	actuator Actuator
	onEvent  func(Event)

	stab stabilizer

	// Control state below is owned by the tick goroutine.
	state         State
	initialized   bool
	baseline      float64
	lastWritten   float64
	overrideUntil time.Time
	overFor       time.Duration // accumulated time above threshold
	lastOverAt    time.Time     // last tick the output was above threshold
	limitStart    time.Time
	lastTick      time.Time
	wasEnabled    bool

	failures  int // consecutive actuator errors
	degraded  bool
	lastError string

	mu     sync.Mutex
	status Status
}

// New creates an Engine. onEvent may be nil.
func New(cfg *config.Config, sampler Sampler, actuator Actuator, onEvent func(Event)) *Engine {
	return &Engine{
		cfg:        cfg,
		sampler:    sampler,
		actuator:   actuator,
		onEvent:    onEvent,
		state:      StateIdle,
		wasEnabled: true,
	}
}

// Status returns the latest published control loop snapshot.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Tick advances the control loop to now. Ticks are strictly serialized; the
// caller guarantees no two ticks overlap.
func (e *Engine) Tick(now time.Time) {
	snap := e.cfg.Snapshot()

	dt := now.Sub(e.lastTick)
	if e.lastTick.IsZero() || dt < 0 {
		dt = 0
	}
	e.lastTick = now

	if !snap.Enabled {
		e.enterDisabled()
		e.publish(now, &snap, e.lastWritten, audio.Sample{NoSignal: true})
		return
	}

	// Re-enabling clears a degraded condition and starts fresh; the mixer
	// may well be back.
	if !e.wasEnabled {
		e.degraded = false
		e.failures = 0
		e.lastError = ""
		e.initialized = false
	}
	e.wasEnabled = true

	if e.degraded {
		e.state = StateIdle
		e.publish(now, &snap, e.lastWritten, audio.Sample{NoSignal: true})
		return
	}

	current, err := e.actuator.Volume()
	if err != nil {
		e.actuatorFailure("read volume", err, now, &snap)
		e.publish(now, &snap, e.lastWritten, audio.Sample{NoSignal: true})
		return
	}

	if !e.initialized {
		// First tick after start or re-enable: adopt whatever the user has.
		e.initialized = true
		e.baseline = current
		e.lastWritten = current
		e.state = StateNormal
		slog.Info("limiter watching", "baseline", current, "cap", snap.Cap())
	}

	sample := e.sampler.Sample(now)

	// A volume we did not write is the user's. It becomes the new baseline
	// and pauses the loop for the cooldown.
	if volume.ManualChange(e.lastWritten, current) {
		e.handleManualChange(current, now, &snap)
		e.publish(now, &snap, current, sample)
		return
	}

	if e.state == StateOverride {
		if now.Before(e.overrideUntil) {
			e.publish(now, &snap, current, sample)
			return
		}
		e.state = StateNormal
		e.emit(Event{Type: EventOverrideEnd, At: now, Volume: current})
		slog.Info("manual override ended", "baseline", e.baseline)
	}

	e.control(now, dt, current, sample, &snap)
	e.publish(now, &snap, current, sample)
}

// control runs one attack/hold/release decision for an enabled, non-paused
// loop.
func (e *Engine) control(now time.Time, dt time.Duration, current float64, sample audio.Sample, snap *config.Snapshot) {
	capLevel := snap.Cap()

	// The meter sees the post-volume signal; dividing by the current volume
	// estimates how loud the source material is at full volume, so the
	// decision does not change just because we attenuated.
	raw := sample.Level
	if current > minVolumeFloor {
		raw = math.Min(sample.Level/current, 1)
	}
	potential := raw * e.baseline

	leewayDB := e.stab.LeewayDB(snap.LeewayDB, now, snap.Stabilizer)
	loud := !sample.NoSignal && raw > minAudibleLevel && potential > capLevel

	if loud {
		e.overFor += dt
		e.lastOverAt = now

		attack := time.Duration(snap.AttackMs) * time.Millisecond
		if e.overFor < attack {
			return
		}

		if e.state != StateLimiting {
			e.state = StateLimiting
			e.limitStart = now
			e.emit(Event{Type: EventLimitStart, At: now, Level: potential, Cap: capLevel, Volume: current})
			slog.Info("limiting", "level", potential, "cap", capLevel, "volume", current)
		}

		target := e.attenuationTarget(raw, potential, capLevel, leewayDB, snap)
		e.write(target, now, snap)
		return
	}

	e.overFor = 0

	if e.state != StateLimiting {
		return
	}

	// Quiet while limiting: wait out the hold, then ramp the volume back to
	// the baseline at the release rate.
	hold := time.Duration(snap.HoldMs) * time.Millisecond
	if now.Sub(e.lastOverAt) < hold {
		return
	}

	release := time.Duration(snap.ReleaseMs) * time.Millisecond
	rate := 1 / release.Seconds() // volume units per second
	target := math.Min(current+rate*dt.Seconds(), e.baseline)

	e.write(target, now, snap)

	if e.baseline-target <= targetEpsilon {
		e.state = StateNormal
		e.emit(Event{Type: EventLimitEnd, At: now, Volume: e.baseline, Duration: now.Sub(e.limitStart)})
		slog.Info("limiting ended", "duration", now.Sub(e.limitStart), "baseline", e.baseline)
	}
}

// attenuationTarget computes the volume that brings the output back under
// the cap. Inside the leeway band above the cap the target is blended
// between the baseline and the full correction, so small excursions get
// gentle nudges instead of hard cuts.
func (e *Engine) attenuationTarget(raw, potential, capLevel, leewayDB float64, snap *config.Snapshot) float64 {
	soft := capLevel * math.Pow(10, leewayDB/20)

	ratio := 1.0
	if soft > capLevel && potential < soft {
		ratio = (potential - capLevel) / (soft - capLevel)
	}

	corrected := capLevel / raw
	target := e.baseline*(1-ratio) + corrected*ratio

	// Sustained loudness gets pushed further down than the cap alone would,
	// ramping in so a single loud moment is not over-punished.
	if snap.Dampening > 1 {
		ramp := 1.0
		if snap.DampeningRampMs > 0 {
			attack := time.Duration(snap.AttackMs) * time.Millisecond
			rampDur := time.Duration(snap.DampeningRampMs) * time.Millisecond
			ramp = math.Min((e.overFor - attack).Seconds()/rampDur.Seconds(), 1)
			ramp = math.Max(ramp, 0)
		}
		target /= 1 + (snap.Dampening-1)*ramp
	}

	return math.Max(math.Min(target, 1), minVolumeFloor)
}

// write sets the OS volume unless the target is indistinguishable from the
// last write.
func (e *Engine) write(target float64, now time.Time, snap *config.Snapshot) {
	if math.Abs(target-e.lastWritten) <= targetEpsilon {
		return
	}

	if err := e.actuator.SetVolume(target); err != nil {
		e.actuatorFailure("write volume", err, now, snap)
		return
	}

	e.lastWritten = target
	e.failures = 0
	e.stab.TrackWrite(target, now, snap.Stabilizer)
}

func (e *Engine) handleManualChange(current float64, now time.Time, snap *config.Snapshot) {
	cooldown := time.Duration(snap.CooldownMs) * time.Millisecond

	starting := e.state != StateOverride
	if e.state == StateLimiting {
		e.emit(Event{Type: EventLimitEnd, At: now, Volume: current, Duration: now.Sub(e.limitStart)})
	}
	e.baseline = current
	e.lastWritten = current
	e.overrideUntil = now.Add(cooldown)
	e.overFor = 0
	e.state = StateOverride

	if starting {
		e.emit(Event{Type: EventOverrideStart, At: now, Volume: current, Cap: snap.Cap()})
		slog.Info("manual volume change, pausing", "volume", current, "cooldown", cooldown)
	}
}

func (e *Engine) enterDisabled() {
	if e.state != StateIdle {
		slog.Info("limiter disabled")
	}
	e.state = StateIdle
	e.overFor = 0
	e.degraded = false
	e.failures = 0
	e.lastError = ""
	e.initialized = false
	e.stab.Reset()
	e.wasEnabled = false
}

func (e *Engine) actuatorFailure(op string, err error, now time.Time, snap *config.Snapshot) {
	e.failures++
	e.lastError = err.Error()
	slog.Warn("volume actuator error", "op", op, "consecutive", e.failures, "error", err)

	if e.failures < maxActuatorFailures || e.degraded {
		return
	}

	// The mixer is gone. Stop touching it instead of hammering a broken
	// backend every 20ms; the condition clears when the limiter is toggled.
	e.degraded = true
	e.state = StateIdle
	e.emit(Event{Type: EventDegraded, At: now, Cap: snap.Cap(), Error: e.lastError})
	slog.Error("volume control degraded, limiter idle", "failures", e.failures, "error", err)
}

func (e *Engine) publish(now time.Time, snap *config.Snapshot, current float64, sample audio.Sample) {
	status := Status{
		State:    e.state,
		Enabled:  snap.Enabled,
		Volume:   current,
		Baseline: e.baseline,
		Level:    sample.Level,
		NoSignal: sample.NoSignal,
		Degraded: e.degraded,
		LeewayDB: snap.LeewayDB + e.stab.extraDB,
	}
	if e.degraded {
		status.LastError = e.lastError
	}
	if e.state == StateOverride {
		if remaining := e.overrideUntil.Sub(now); remaining > 0 {
			status.OverrideRemainingMs = remaining.Milliseconds()
		}
	}

	e.mu.Lock()
	e.status = status
	e.mu.Unlock()
}

func (e *Engine) emit(ev Event) {
	if e.onEvent != nil {
		e.onEvent(ev)
	}
}
