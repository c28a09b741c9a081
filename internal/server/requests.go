package server

// Request types for WebSocket commands with validation tags.
// These types define the expected input for each command and use
// go-playground/validator struct tags for automatic validation.

// --- Limiter settings ---

// LimiterUpdateRequest is the request body for limiter/update.
type LimiterUpdateRequest struct {
	Enabled    *bool    `json:"enabled"`
	CapPercent *float64 `json:"cap_percent" validate:"omitempty,gte=1,lte=100"`
}

// TuningUpdateRequest is the request body for limiter/tuning.
type TuningUpdateRequest struct {
	AttackMs        *int64   `json:"attack_ms" validate:"omitempty,gte=1,lte=1000"`
	HoldMs          *int64   `json:"hold_ms" validate:"omitempty,gte=0,lte=2000"`
	ReleaseMs       *int64   `json:"release_ms" validate:"omitempty,gte=50,lte=10000"`
	CooldownMs      *int64   `json:"cooldown_ms" validate:"omitempty,gte=500,lte=10000"`
	LeewayDB        *float64 `json:"leeway_db" validate:"omitempty,gte=0,lte=12"`
	Dampening       *float64 `json:"dampening" validate:"omitempty,gte=1,lte=5"`
	DampeningRampMs *int64   `json:"dampening_ramp_ms" validate:"omitempty,gte=0,lte=5000"`
}

// StabilizerUpdateRequest is the request body for limiter/stabilizer.
type StabilizerUpdateRequest struct {
	Enabled         *bool    `json:"enabled"`
	WindowMs        *int64   `json:"window_ms" validate:"omitempty,gte=1000,lte=60000"`
	TriggerCount    *int     `json:"trigger_count" validate:"omitempty,gte=2,lte=50"`
	MaxLeewayDB     *float64 `json:"max_leeway_db" validate:"omitempty,gte=0,lte=12"`
	StepDB          *float64 `json:"step_db" validate:"omitempty,gt=0,lte=6"`
	ChangeThreshold *float64 `json:"change_threshold" validate:"omitempty,gte=0.01,lte=0.5"`
}

// --- Audio settings ---

// AudioUpdateRequest is the request body for audio/update.
type AudioUpdateRequest struct {
	Device string `json:"device" validate:"omitempty,max=256"`
}

// --- System settings ---

// SystemUpdateRequest is the request body for system/update.
type SystemUpdateRequest struct {
	Autostart *bool `json:"autostart"`
}

// --- Notification settings ---

// WebhookUpdateRequest is the request body for notifications/webhook/update.
type WebhookUpdateRequest struct {
	URL string `json:"url" validate:"omitempty,url,max=2048"`
}

// LogUpdateRequest is the request body for notifications/log/update.
type LogUpdateRequest struct {
	Path string `json:"path" validate:"omitempty,max=4096"`
}

// --- Event log ---

// EventsGetRequest is the request body for events/get.
type EventsGetRequest struct {
	Limit  int `json:"limit" validate:"omitempty,gte=1,lte=500"`
	Offset int `json:"offset" validate:"omitempty,gte=0"`
}
