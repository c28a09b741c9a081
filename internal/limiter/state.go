package limiter

import "time"

// State identifies the control loop state.
type State string

const (
	// StateIdle means the limiter is disabled or degraded and never writes
	// the volume.
	StateIdle State = "idle"

	// StateNormal means the limiter is watching but output is within the cap.
	StateNormal State = "normal"

	// StateLimiting means the limiter is actively attenuating or restoring
	// the volume.
	StateLimiting State = "limiting"

	// StateOverride means a manual volume change paused the limiter for the
	// cooldown period.
	StateOverride State = "override"
)

// Status is a point-in-time snapshot of the control loop.
type Status struct {
	State    State   `json:"state"`
	Enabled  bool    `json:"enabled"`
	Volume   float64 `json:"volume"`   // current OS volume [0,1]
	Baseline float64 `json:"baseline"` // resting volume restored after limiting [0,1]
	Level    float64 `json:"level"`    // estimated output loudness [0,1]
	NoSignal bool    `json:"no_signal"`
	Degraded bool    `json:"degraded"`
	LeewayDB float64 `json:"leeway_db"` // effective leeway, including stabilizer widening

	LastError           string `json:"last_error,omitempty"`
	OverrideRemainingMs int64  `json:"override_remaining_ms,omitempty"`
}

// EventType identifies a control loop event.
type EventType string

const (
	EventLimitStart    EventType = "limit_start"
	EventLimitEnd      EventType = "limit_end"
	EventOverrideStart EventType = "override_start"
	EventOverrideEnd   EventType = "override_end"
	EventDegraded      EventType = "degraded"
)

// Event describes a control loop transition worth recording.
type Event struct {
	Type     EventType     `json:"type"`
	At       time.Time     `json:"at"`
	Level    float64       `json:"level,omitempty"`    // loudness that triggered the event
	Cap      float64       `json:"cap,omitempty"`      // cap in effect [0,1]
	Volume   float64       `json:"volume,omitempty"`   // OS volume at the event
	Duration time.Duration `json:"duration,omitempty"` // for limit_end: time spent limiting
	Error    string        `json:"error,omitempty"`    // for degraded: last actuator error
}
