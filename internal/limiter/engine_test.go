package limiter

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/tame-app/tame/internal/audio"
	"github.com/tame-app/tame/internal/config"
)

type fakeActuator struct {
	volume    float64
	readErr   error
	writeErr  error
	readCalls int
	writes    []float64
}

func (f *fakeActuator) Volume() (float64, error) {
	f.readCalls++
	if f.readErr != nil {
		return 0, f.readErr
	}
	return f.volume, nil
}

func (f *fakeActuator) SetVolume(level float64) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.volume = level
	f.writes = append(f.writes, level)
	return nil
}

type fakeSampler struct {
	level    float64
	noSignal bool
}

func (f *fakeSampler) Sample(now time.Time) audio.Sample {
	return audio.Sample{Level: f.level, When: now, NoSignal: f.noSignal}
}

type harness struct {
	cfg    *config.Config
	act    *fakeActuator
	smp    *fakeSampler
	eng    *Engine
	now    time.Time
	events []Event
}

func newHarness(t *testing.T, startVolume float64) *harness {
	t.Helper()

	h := &harness{
		cfg: config.New(filepath.Join(t.TempDir(), "settings.json")),
		act: &fakeActuator{volume: startVolume},
		smp: &fakeSampler{},
		now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	h.eng = New(h.cfg, h.smp, h.act, func(ev Event) {
		h.events = append(h.events, ev)
	})
	return h
}

func (h *harness) tick() {
	h.now = h.now.Add(TickInterval)
	h.eng.Tick(h.now)
}

func (h *harness) tickN(n int) {
	for range n {
		h.tick()
	}
}

// ticksFor returns how many ticks cover the duration, rounded up.
func ticksFor(d time.Duration) int {
	return int((d + TickInterval - 1) / TickInterval)
}

func (h *harness) eventCount(typ EventType) int {
	n := 0
	for _, ev := range h.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func TestQuietOutputIsNeverTouched(t *testing.T) {
	h := newHarness(t, 0.6)
	h.smp.level = 0.05 // potential 0.05, well under the 0.2 cap

	h.tickN(100)

	if len(h.act.writes) != 0 {
		t.Fatalf("expected no volume writes for quiet output, got %v", h.act.writes)
	}
	if got := h.eng.Status().State; got != StateNormal {
		t.Errorf("state = %v, want %v", got, StateNormal)
	}
}

func TestSustainedLoudOutputIsAttenuated(t *testing.T) {
	h := newHarness(t, 0.6)
	h.tick() // adopt baseline

	h.smp.level = 0.9
	h.tickN(ticksFor(config.DefaultAttackMs*time.Millisecond) + 1)

	status := h.eng.Status()
	if status.State != StateLimiting {
		t.Fatalf("state = %v, want %v", status.State, StateLimiting)
	}
	if len(h.act.writes) == 0 {
		t.Fatal("expected an attenuation write")
	}
	if h.act.volume > 0.2+targetEpsilon {
		t.Errorf("volume = %v, want <= cap 0.2", h.act.volume)
	}
	if status.Baseline != 0.6 {
		t.Errorf("baseline = %v, want 0.6 preserved through limiting", status.Baseline)
	}
	if h.eventCount(EventLimitStart) != 1 {
		t.Errorf("limit_start events = %d, want 1", h.eventCount(EventLimitStart))
	}
}

func TestBriefSpikeBelowAttackIsIgnored(t *testing.T) {
	h := newHarness(t, 0.6)
	h.tick()

	// Two loud ticks (40ms) stay under the 50ms attack time.
	h.smp.level = 0.9
	h.tickN(2)
	h.smp.level = 0.0
	h.tickN(20)

	if len(h.act.writes) != 0 {
		t.Fatalf("expected no writes for a spike shorter than attack, got %v", h.act.writes)
	}
	if got := h.eng.Status().State; got != StateNormal {
		t.Errorf("state = %v, want %v", got, StateNormal)
	}
}

func TestReleaseRestoresBaselineMonotonically(t *testing.T) {
	h := newHarness(t, 0.6)
	h.tick()

	h.smp.level = 0.9
	h.tickN(ticksFor(config.DefaultAttackMs*time.Millisecond) + 1)
	if h.eng.Status().State != StateLimiting {
		t.Fatal("expected limiting before release")
	}
	attenuated := len(h.act.writes)

	h.smp.level = 0.0
	h.tickN(ticksFor(config.DefaultHoldMs*time.Millisecond) +
		ticksFor(config.DefaultReleaseMs*time.Millisecond) + 5)

	restores := h.act.writes[attenuated:]
	if len(restores) == 0 {
		t.Fatal("expected release writes")
	}
	prev := 0.0
	for i, v := range restores {
		if v <= prev {
			t.Fatalf("release write %d = %v, not strictly increasing after %v", i, v, prev)
		}
		if v > 0.6+targetEpsilon {
			t.Fatalf("release write %d = %v overshoots baseline 0.6", i, v)
		}
		prev = v
	}
	if h.act.volume < 0.6-targetEpsilon {
		t.Errorf("final volume = %v, want baseline 0.6", h.act.volume)
	}
	if got := h.eng.Status().State; got != StateNormal {
		t.Errorf("state = %v, want %v after release", got, StateNormal)
	}
	if h.eventCount(EventLimitEnd) != 1 {
		t.Errorf("limit_end events = %d, want 1", h.eventCount(EventLimitEnd))
	}
}

func TestReleaseWaitsOutHoldTime(t *testing.T) {
	h := newHarness(t, 0.6)
	h.tick()

	h.smp.level = 0.9
	h.tickN(ticksFor(config.DefaultAttackMs*time.Millisecond) + 1)
	attenuated := len(h.act.writes)

	// Quiet for less than the hold time: volume must not move yet.
	h.smp.level = 0.0
	h.tickN(ticksFor(config.DefaultHoldMs*time.Millisecond) - 2)

	if len(h.act.writes) != attenuated {
		t.Fatalf("expected no release writes inside hold window, got %v",
			h.act.writes[attenuated:])
	}
}

func TestManualChangeWinsImmediately(t *testing.T) {
	h := newHarness(t, 0.6)
	h.tick()

	h.smp.level = 0.9
	h.tickN(ticksFor(config.DefaultAttackMs*time.Millisecond) + 1)
	if h.eng.Status().State != StateLimiting {
		t.Fatal("expected limiting")
	}

	// The user grabs the volume mid-limiting.
	h.act.volume = 0.8
	writesBefore := len(h.act.writes)
	h.tick()

	status := h.eng.Status()
	if status.State != StateOverride {
		t.Fatalf("state = %v, want %v", status.State, StateOverride)
	}
	if status.Baseline != 0.8 {
		t.Errorf("baseline = %v, want 0.8 adopted from manual change", status.Baseline)
	}
	if h.eventCount(EventOverrideStart) != 1 {
		t.Errorf("override_start events = %d, want 1", h.eventCount(EventOverrideStart))
	}

	// Loud output during the cooldown must not be fought.
	h.tickN(ticksFor(config.DefaultCooldownMs*time.Millisecond) - 5)
	if len(h.act.writes) != writesBefore {
		t.Fatalf("expected no writes during override cooldown, got %v",
			h.act.writes[writesBefore:])
	}

	// After the cooldown the loop resumes against the new baseline.
	h.tickN(10 + ticksFor(config.DefaultAttackMs*time.Millisecond))
	if got := h.eng.Status().State; got != StateLimiting {
		t.Errorf("state = %v, want %v after cooldown with loud output", got, StateLimiting)
	}
	if h.eventCount(EventOverrideEnd) != 1 {
		t.Errorf("override_end events = %d, want 1", h.eventCount(EventOverrideEnd))
	}
}

func TestMixerRoundingIsNotAManualChange(t *testing.T) {
	h := newHarness(t, 0.6)
	h.tick()

	// The mixer reports one rounding step off from what was last known.
	h.act.volume = 0.605
	h.tickN(5)

	if got := h.eng.Status().State; got == StateOverride {
		t.Error("rounding-sized volume delta must not trigger an override")
	}
}

func TestNoSignalAssumesQuiet(t *testing.T) {
	h := newHarness(t, 0.6)
	h.tick()

	h.smp.level = 0.9
	h.tickN(ticksFor(config.DefaultAttackMs*time.Millisecond) + 1)
	if h.eng.Status().State != StateLimiting {
		t.Fatal("expected limiting")
	}

	// Capture dies. The loop treats it as silence: release proceeds and the
	// baseline survives.
	h.smp.noSignal = true
	h.smp.level = 0.9 // stale value must be ignored
	h.tickN(ticksFor(config.DefaultHoldMs*time.Millisecond) +
		ticksFor(config.DefaultReleaseMs*time.Millisecond) + 5)

	status := h.eng.Status()
	if status.State != StateNormal {
		t.Errorf("state = %v, want %v", status.State, StateNormal)
	}
	if status.Baseline != 0.6 {
		t.Errorf("baseline = %v, want 0.6 unchanged by signal loss", status.Baseline)
	}
	if !status.NoSignal {
		t.Error("status should report no signal")
	}
}

func TestConsecutiveWriteFailuresDegrade(t *testing.T) {
	h := newHarness(t, 0.6)
	h.tick()

	// Every attenuation attempt fails; after enough consecutive failures
	// the loop must give up instead of hammering the mixer forever.
	h.act.writeErr = errors.New("mixer unavailable")
	h.smp.level = 0.9
	h.tickN(ticksFor(config.DefaultAttackMs*time.Millisecond) + maxActuatorFailures + 5)

	status := h.eng.Status()
	if !status.Degraded {
		t.Fatal("expected degraded status after repeated write failures")
	}
	if status.State != StateIdle {
		t.Errorf("state = %v, want %v", status.State, StateIdle)
	}
	if status.LastError == "" {
		t.Error("expected last error to be surfaced")
	}
	if h.eventCount(EventDegraded) != 1 {
		t.Errorf("degraded events = %d, want 1", h.eventCount(EventDegraded))
	}

	// Degraded means hands off the mixer entirely.
	reads := h.act.readCalls
	h.tickN(10)
	if h.act.readCalls != reads {
		t.Errorf("degraded loop still touched the mixer: %d extra reads", h.act.readCalls-reads)
	}
}

func TestToggleClearsDegraded(t *testing.T) {
	h := newHarness(t, 0.6)
	h.tick()

	h.smp.level = 0.9
	h.act.writeErr = errors.New("mixer unavailable")
	h.tickN(ticksFor(config.DefaultAttackMs*time.Millisecond) + maxActuatorFailures + 2)
	if !h.eng.Status().Degraded {
		t.Fatal("expected degraded")
	}

	if err := h.cfg.SetEnabled(false); err != nil {
		t.Fatal(err)
	}
	h.tick()
	if err := h.cfg.SetEnabled(true); err != nil {
		t.Fatal(err)
	}
	h.act.writeErr = nil
	h.smp.level = 0.0
	h.tickN(5)

	status := h.eng.Status()
	if status.Degraded {
		t.Error("toggling the limiter should clear the degraded condition")
	}
	if status.State != StateNormal {
		t.Errorf("state = %v, want %v", status.State, StateNormal)
	}
}

func TestDisableMidLimitingLeavesVolume(t *testing.T) {
	h := newHarness(t, 0.6)
	h.tick()

	h.smp.level = 0.9
	h.tickN(ticksFor(config.DefaultAttackMs*time.Millisecond) + 1)
	attenuated := h.act.volume
	if attenuated >= 0.6 {
		t.Fatal("expected attenuation before disable")
	}

	if err := h.cfg.SetEnabled(false); err != nil {
		t.Fatal(err)
	}
	h.tickN(20)

	if h.act.volume != attenuated {
		t.Errorf("volume = %v, want %v untouched after disable", h.act.volume, attenuated)
	}
	if got := h.eng.Status().State; got != StateIdle {
		t.Errorf("state = %v, want %v", got, StateIdle)
	}
}

func TestCapChangeAppliesNextTick(t *testing.T) {
	h := newHarness(t, 0.6)
	h.tick()

	h.smp.level = 0.9
	h.tickN(ticksFor(config.DefaultAttackMs*time.Millisecond) + 1)
	if h.eng.Status().State != StateLimiting {
		t.Fatal("expected limiting")
	}

	// Raising the cap above the potential loudness ends the loud condition.
	if err := h.cfg.SetCapPercent(80); err != nil {
		t.Fatal(err)
	}
	h.tickN(ticksFor(config.DefaultHoldMs*time.Millisecond) +
		ticksFor(config.DefaultReleaseMs*time.Millisecond) + 5)

	if got := h.eng.Status().State; got != StateNormal {
		t.Errorf("state = %v, want %v after cap raise", got, StateNormal)
	}
	if h.act.volume < 0.6-targetEpsilon {
		t.Errorf("volume = %v, want restored to baseline 0.6", h.act.volume)
	}
}

func TestAttenuationNeverMutes(t *testing.T) {
	h := newHarness(t, 0.6)
	h.tick()

	// Pathological dampening pushes the target toward zero; the floor holds.
	if err := h.cfg.SetTuning(config.LimiterConfig{
		CapPercent: 1, AttackMs: 20, HoldMs: 150, ReleaseMs: 500,
		CooldownMs: 2000, LeewayDB: 0, Dampening: 5, DampeningRampMs: 0,
	}); err != nil {
		t.Fatal(err)
	}

	h.smp.level = 1.0
	h.tickN(10)

	for _, v := range h.act.writes {
		if v < minVolumeFloor {
			t.Fatalf("write %v below the mute floor %v", v, minVolumeFloor)
		}
	}
}
