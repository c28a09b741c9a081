// Package config provides application configuration management.
package config

import (
	"cmp"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/tame-app/tame/internal/util"
)

// Configuration defaults are used when values are not specified.
const (
	DefaultWebPort         = 8642
	DefaultCapPercent      = 20.0
	DefaultAttackMs        = 50
	DefaultHoldMs          = 150
	DefaultReleaseMs       = 500
	DefaultCooldownMs      = 2000
	DefaultLeewayDB        = 3.0
	DefaultDampening       = 1.0
	DefaultDampeningRampMs = 0

	DefaultStabilizerWindowMs     = 5000
	DefaultStabilizerTriggerCount = 5
	DefaultStabilizerMaxLeewayDB  = 12.0
	DefaultStabilizerStepDB       = 1.0
	DefaultStabilizerChangeThresh = 0.05
)

// Valid ranges for tunable limiter settings. Values outside these bounds are
// clamped on load rather than rejected, so a hand-edited file can never keep
// the limiter from starting.
const (
	MinCapPercent = 1.0
	MaxCapPercent = 100.0
	MaxLeewayDB   = 12.0
	MaxDampening  = 5.0
)

// SystemConfig holds system-level settings that require restart.
type SystemConfig struct {
	FFmpegPath string `json:"ffmpeg_path"` // Path to FFmpeg binary (empty = use PATH)
	Port       int    `json:"port"`        // HTTP server port (localhost only)
	Autostart  bool   `json:"autostart"`   // Start with the limiter enabled
}

// LimiterConfig holds the volume cap and response timing parameters.
type LimiterConfig struct {
	Enabled         bool    `json:"enabled"`           // Limiter active
	CapPercent      float64 `json:"cap_percent"`       // Maximum allowed loudness, percent of full scale
	AttackMs        int64   `json:"attack_ms"`         // Sustained-loud time before attenuating
	HoldMs          int64   `json:"hold_ms"`           // Quiet time before release starts
	ReleaseMs       int64   `json:"release_ms"`        // Time constant for volume restore
	CooldownMs      int64   `json:"cooldown_ms"`       // Pause after a manual volume change
	LeewayDB        float64 `json:"leeway_db"`         // Soft-knee width above the cap
	Dampening       float64 `json:"dampening"`         // Extra attenuation factor for sustained loudness
	DampeningRampMs int64   `json:"dampening_ramp_ms"` // Time to reach full dampening
}

// StabilizerConfig holds the oscillation damper settings. When the limiter
// changes volume too often inside the window, leeway is widened temporarily.
type StabilizerConfig struct {
	Enabled         bool    `json:"enabled"`
	WindowMs        int64   `json:"window_ms"`        // Sliding window for counting changes
	TriggerCount    int     `json:"trigger_count"`    // Changes inside the window that trigger widening
	MaxLeewayDB     float64 `json:"max_leeway_db"`    // Upper bound for widened leeway
	StepDB          float64 `json:"step_db"`          // Widening step per trigger
	ChangeThreshold float64 `json:"change_threshold"` // Minimum volume delta counted as a change
}

// AudioConfig holds audio capture device settings.
type AudioConfig struct {
	CaptureDevice string `json:"capture_device"` // Loopback capture device identifier (empty = platform default)
}

// WebhookConfig holds webhook notification settings.
type WebhookConfig struct {
	URL string `json:"url"` // Webhook URL for degraded-state alerts
}

// LogConfig holds event log settings.
type LogConfig struct {
	Path string `json:"path"` // Event log file path (JSON lines)
}

// NotificationsConfig holds all notification channel settings.
type NotificationsConfig struct {
	Webhook WebhookConfig `json:"webhook"`
	Log     LogConfig     `json:"log"`
}

// Config holds all application configuration. It is safe for concurrent use.
type Config struct {
	System        SystemConfig        `json:"system"`
	Limiter       LimiterConfig       `json:"limiter"`
	Stabilizer    StabilizerConfig    `json:"stabilizer"`
	Audio         AudioConfig         `json:"audio"`
	Notifications NotificationsConfig `json:"notifications"`

	mu       sync.RWMutex
	filePath string
}

// DefaultPath returns the per-user settings file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", util.WrapError("resolve user config directory", err)
	}
	return filepath.Join(dir, "tame", "settings.json"), nil
}

// New creates a new Config with default values.
func New(filePath string) *Config {
	return &Config{
		System: SystemConfig{
			Port: DefaultWebPort,
		},
		Limiter: LimiterConfig{
			Enabled:         true,
			CapPercent:      DefaultCapPercent,
			AttackMs:        DefaultAttackMs,
			HoldMs:          DefaultHoldMs,
			ReleaseMs:       DefaultReleaseMs,
			CooldownMs:      DefaultCooldownMs,
			LeewayDB:        DefaultLeewayDB,
			Dampening:       DefaultDampening,
			DampeningRampMs: DefaultDampeningRampMs,
		},
		Stabilizer: StabilizerConfig{
			WindowMs:        DefaultStabilizerWindowMs,
			TriggerCount:    DefaultStabilizerTriggerCount,
			MaxLeewayDB:     DefaultStabilizerMaxLeewayDB,
			StepDB:          DefaultStabilizerStepDB,
			ChangeThreshold: DefaultStabilizerChangeThresh,
		},
		filePath: filePath,
	}
}

// Load reads config from file, creating a default if none exists. A file that
// cannot be parsed is treated as absent: the defaults stay in effect and the
// broken file is left on disk for the user to inspect. Load never fails on
// bad content, only on I/O errors while creating the default file.
func (c *Config) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.filePath)
	if os.IsNotExist(err) {
		return c.saveLocked()
	}
	if err != nil {
		return util.WrapError("read config", err)
	}

	if err := json.Unmarshal(data, c); err != nil {
		slog.Warn("config file is corrupt, using defaults", "path", c.filePath, "error", err)
		fresh := New(c.filePath)
		c.System = fresh.System
		c.Limiter = fresh.Limiter
		c.Stabilizer = fresh.Stabilizer
		c.Audio = fresh.Audio
		c.Notifications = fresh.Notifications
		return nil
	}

	c.applyDefaults()
	c.clampLocked()

	return nil
}

// applyDefaults sets default values for zero-value fields.
func (c *Config) applyDefaults() {
	c.System.Port = cmp.Or(c.System.Port, DefaultWebPort)

	c.Limiter.CapPercent = cmp.Or(c.Limiter.CapPercent, DefaultCapPercent)
	c.Limiter.AttackMs = cmp.Or(c.Limiter.AttackMs, int64(DefaultAttackMs))
	c.Limiter.ReleaseMs = cmp.Or(c.Limiter.ReleaseMs, int64(DefaultReleaseMs))
	c.Limiter.CooldownMs = cmp.Or(c.Limiter.CooldownMs, int64(DefaultCooldownMs))
	c.Limiter.Dampening = cmp.Or(c.Limiter.Dampening, DefaultDampening)

	c.Stabilizer.WindowMs = cmp.Or(c.Stabilizer.WindowMs, int64(DefaultStabilizerWindowMs))
	c.Stabilizer.TriggerCount = cmp.Or(c.Stabilizer.TriggerCount, DefaultStabilizerTriggerCount)
	c.Stabilizer.MaxLeewayDB = cmp.Or(c.Stabilizer.MaxLeewayDB, DefaultStabilizerMaxLeewayDB)
	c.Stabilizer.StepDB = cmp.Or(c.Stabilizer.StepDB, DefaultStabilizerStepDB)
	c.Stabilizer.ChangeThreshold = cmp.Or(c.Stabilizer.ChangeThreshold, DefaultStabilizerChangeThresh)
}

// clampLocked bounds tunable values to their valid ranges. Caller must hold c.mu.
func (c *Config) clampLocked() {
	c.Limiter.CapPercent = clampFloat(c.Limiter.CapPercent, MinCapPercent, MaxCapPercent)
	c.Limiter.AttackMs = clampInt(c.Limiter.AttackMs, 1, 1000)
	c.Limiter.HoldMs = clampInt(c.Limiter.HoldMs, 0, 2000)
	c.Limiter.ReleaseMs = clampInt(c.Limiter.ReleaseMs, 50, 10000)
	c.Limiter.CooldownMs = clampInt(c.Limiter.CooldownMs, 500, 10000)
	c.Limiter.LeewayDB = clampFloat(c.Limiter.LeewayDB, 0, MaxLeewayDB)
	c.Limiter.Dampening = clampFloat(c.Limiter.Dampening, 1, MaxDampening)
	c.Limiter.DampeningRampMs = clampInt(c.Limiter.DampeningRampMs, 0, 5000)

	c.Stabilizer.WindowMs = clampInt(c.Stabilizer.WindowMs, 1000, 60000)
	c.Stabilizer.MaxLeewayDB = clampFloat(c.Stabilizer.MaxLeewayDB, 0, MaxLeewayDB)
	c.Stabilizer.ChangeThreshold = clampFloat(c.Stabilizer.ChangeThreshold, 0.01, 0.5)
}

func clampFloat(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}

func clampInt(v, lo, hi int64) int64 {
	return min(max(v, lo), hi)
}

// saveLocked persists configuration. Caller must hold c.mu.
func (c *Config) saveLocked() error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return util.WrapError("marshal config", err)
	}

	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return util.WrapError("create config directory", err)
	}

	if err := os.WriteFile(c.filePath, data, 0o600); err != nil {
		return util.WrapError("write config", err)
	}

	return nil
}

// --- Getters for individual settings ---

// CaptureDevice returns the configured loopback capture device.
func (c *Config) CaptureDevice() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Audio.CaptureDevice
}

// GetFFmpegPath returns the configured FFmpeg binary path.
func (c *Config) GetFFmpegPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.System.FFmpegPath
}

// --- Setters for individual settings ---

// SetEnabled toggles the limiter and saves the configuration.
func (c *Config) SetEnabled(enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Limiter.Enabled = enabled
	return c.saveLocked()
}

// SetCapPercent updates the volume cap and saves the configuration.
func (c *Config) SetCapPercent(percent float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Limiter.CapPercent = clampFloat(percent, MinCapPercent, MaxCapPercent)
	return c.saveLocked()
}

// SetAutostart updates the autostart flag and saves the configuration.
func (c *Config) SetAutostart(autostart bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.System.Autostart = autostart
	return c.saveLocked()
}

// SetCaptureDevice updates the capture device and saves the configuration.
func (c *Config) SetCaptureDevice(device string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Audio.CaptureDevice = device
	return c.saveLocked()
}

// SetWebhookURL updates the webhook URL and saves the configuration.
func (c *Config) SetWebhookURL(url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Notifications.Webhook.URL = url
	return c.saveLocked()
}

// SetLogPath updates the event log path and saves the configuration. An
// empty path disables the event log.
func (c *Config) SetLogPath(path string) error {
	if path != "" {
		if err := util.ValidatePath("log path", path); err != nil {
			return err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Notifications.Log.Path = path
	return c.saveLocked()
}

// SetTuning updates all limiter timing parameters at once and saves.
func (c *Config) SetTuning(t LimiterConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	enabled := c.Limiter.Enabled
	c.Limiter = t
	c.Limiter.Enabled = enabled
	c.clampLocked()
	return c.saveLocked()
}

// SetStabilizer replaces the stabilizer settings and saves.
func (c *Config) SetStabilizer(s StabilizerConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Stabilizer = s
	c.clampLocked()
	return c.saveLocked()
}

// --- Snapshot for atomic reads ---

// Snapshot is a point-in-time copy of configuration values.
type Snapshot struct {
	// System
	WebPort    int
	FFmpegPath string
	Autostart  bool

	// Limiter
	Enabled         bool
	CapPercent      float64
	AttackMs        int64
	HoldMs          int64
	ReleaseMs       int64
	CooldownMs      int64
	LeewayDB        float64
	Dampening       float64
	DampeningRampMs int64

	// Stabilizer
	Stabilizer StabilizerConfig

	// Audio
	CaptureDevice string

	// Notifications
	WebhookURL   string
	EventLogPath string
}

// Snapshot returns a point-in-time copy of all configuration values.
func (c *Config) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		WebPort:    c.System.Port,
		FFmpegPath: c.System.FFmpegPath,
		Autostart:  c.System.Autostart,

		Enabled:         c.Limiter.Enabled,
		CapPercent:      c.Limiter.CapPercent,
		AttackMs:        c.Limiter.AttackMs,
		HoldMs:          c.Limiter.HoldMs,
		ReleaseMs:       c.Limiter.ReleaseMs,
		CooldownMs:      c.Limiter.CooldownMs,
		LeewayDB:        c.Limiter.LeewayDB,
		Dampening:       c.Limiter.Dampening,
		DampeningRampMs: c.Limiter.DampeningRampMs,

		Stabilizer: c.Stabilizer,

		CaptureDevice: c.Audio.CaptureDevice,

		WebhookURL:   c.Notifications.Webhook.URL,
		EventLogPath: c.Notifications.Log.Path,
	}
}

// Cap returns the volume cap as a scalar in [0,1].
func (s *Snapshot) Cap() float64 {
	return s.CapPercent / 100
}

// HasWebhook reports whether a webhook URL is configured.
func (s *Snapshot) HasWebhook() bool {
	return s.WebhookURL != ""
}
