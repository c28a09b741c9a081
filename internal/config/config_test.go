package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	cfg := New(path)

	if err := cfg.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to be created: %v", err)
	}

	snap := cfg.Snapshot()
	if !snap.Enabled {
		t.Error("expected limiter enabled by default")
	}
	if snap.CapPercent != DefaultCapPercent {
		t.Errorf("CapPercent = %v, want %v", snap.CapPercent, DefaultCapPercent)
	}
	if snap.AttackMs != DefaultAttackMs {
		t.Errorf("AttackMs = %v, want %v", snap.AttackMs, DefaultAttackMs)
	}
	if snap.WebPort != DefaultWebPort {
		t.Errorf("WebPort = %v, want %v", snap.WebPort, DefaultWebPort)
	}
}

func TestLoadCorruptFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := New(path)
	if err := cfg.Load(); err != nil {
		t.Fatalf("Load on corrupt file should not fail, got: %v", err)
	}

	snap := cfg.Snapshot()
	if snap.CapPercent != DefaultCapPercent {
		t.Errorf("CapPercent = %v, want default %v", snap.CapPercent, DefaultCapPercent)
	}
	if snap.ReleaseMs != DefaultReleaseMs {
		t.Errorf("ReleaseMs = %v, want default %v", snap.ReleaseMs, DefaultReleaseMs)
	}
}

func TestLoadClampsOutOfRangeValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	data := `{"limiter": {"enabled": true, "cap_percent": 250, "leeway_db": 40, "release_ms": 5}}`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := New(path)
	if err := cfg.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	snap := cfg.Snapshot()
	if snap.CapPercent != MaxCapPercent {
		t.Errorf("CapPercent = %v, want clamped to %v", snap.CapPercent, MaxCapPercent)
	}
	if snap.LeewayDB != MaxLeewayDB {
		t.Errorf("LeewayDB = %v, want clamped to %v", snap.LeewayDB, MaxLeewayDB)
	}
	if snap.ReleaseMs != 50 {
		t.Errorf("ReleaseMs = %v, want clamped to 50", snap.ReleaseMs)
	}
}

func TestSettingsPersistAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	cfg := New(path)
	if err := cfg.Load(); err != nil {
		t.Fatal(err)
	}

	if err := cfg.SetCapPercent(35); err != nil {
		t.Fatalf("SetCapPercent: %v", err)
	}
	if err := cfg.SetEnabled(false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	if err := cfg.SetCaptureDevice("alsa_output.monitor"); err != nil {
		t.Fatalf("SetCaptureDevice: %v", err)
	}

	reloaded := New(path)
	if err := reloaded.Load(); err != nil {
		t.Fatal(err)
	}

	snap := reloaded.Snapshot()
	if snap.CapPercent != 35 {
		t.Errorf("CapPercent = %v, want 35", snap.CapPercent)
	}
	if snap.Enabled {
		t.Error("expected limiter to stay disabled after reload")
	}
	if snap.CaptureDevice != "alsa_output.monitor" {
		t.Errorf("CaptureDevice = %q", snap.CaptureDevice)
	}
}

func TestSnapshotCapScalar(t *testing.T) {
	snap := Snapshot{CapPercent: 20}
	if got := snap.Cap(); got != 0.2 {
		t.Errorf("Cap() = %v, want 0.2", got)
	}
}
