package server

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/tame-app/tame/internal/audio"
	"github.com/tame-app/tame/internal/config"
	"github.com/tame-app/tame/internal/eventlog"
	"github.com/tame-app/tame/internal/limiter"
	"github.com/tame-app/tame/internal/notify"
)

// DefaultEventLimit is how many events an events/get without a limit returns.
const DefaultEventLimit = 100

// WSCommand is a command received from a WebSocket client.
type WSCommand struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// CommandHandler processes WebSocket commands.
type CommandHandler struct {
	cfg    *config.Config
	engine *limiter.Engine

	// applyDevice is invoked after the capture device setting changes so the
	// owner can restart capture on the new device.
	applyDevice func(device string)
}

// NewCommandHandler creates a new command handler. applyDevice may be nil.
func NewCommandHandler(cfg *config.Config, engine *limiter.Engine, applyDevice func(device string)) *CommandHandler {
	return &CommandHandler{
		cfg:         cfg,
		engine:      engine,
		applyDevice: applyDevice,
	}
}

// Handle processes a WebSocket command and performs the requested action.
// Commands use slash-style format: namespace/action (e.g., "limiter/update").
func (h *CommandHandler) Handle(cmd WSCommand, send chan<- any, triggerStatusUpdate func()) {
	parts := strings.SplitN(cmd.Type, "/", 3)
	namespace := parts[0]
	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}
	subaction := ""
	if len(parts) > 2 {
		subaction = parts[2]
	}

	switch namespace {
	case "limiter":
		h.handleLimiter(action, cmd, send)
	case "audio":
		h.handleAudio(action, cmd, send)
	case "notifications":
		h.handleNotifications(action, subaction, cmd, send)
	case "system":
		h.handleSystem(action, cmd, send)
	case "events":
		h.handleEvents(action, cmd, send)
	case "config":
		h.handleConfig(action, send)
	case "status":
		h.handleStatus(action)
	default:
		slog.Warn("unknown WebSocket command", "type", cmd.Type)
	}

	triggerStatusUpdate()
}

// --- Limiter handlers ---

func (h *CommandHandler) handleLimiter(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "update":
		h.handleLimiterUpdate(cmd, send)
	case "tuning":
		h.handleTuningUpdate(cmd, send)
	case "stabilizer":
		h.handleStabilizerUpdate(cmd, send)
	case "get":
		h.handleLimiterGet(send)
	default:
		slog.Warn("unknown limiter action", "action", action)
	}
}

func (h *CommandHandler) handleLimiterUpdate(cmd WSCommand, send chan<- any) {
	HandleCommand(cmd, send, func(req *LimiterUpdateRequest) error {
		if req.CapPercent != nil {
			slog.Info("limiter/update: changing cap", "cap_percent", *req.CapPercent)
			if err := h.cfg.SetCapPercent(*req.CapPercent); err != nil {
				return err
			}
		}
		if req.Enabled != nil {
			slog.Info("limiter/update: toggling limiter", "enabled", *req.Enabled)
			if err := h.cfg.SetEnabled(*req.Enabled); err != nil {
				return err
			}
		}
		return nil
	})
}

func (h *CommandHandler) handleTuningUpdate(cmd WSCommand, send chan<- any) {
	HandleCommand(cmd, send, func(req *TuningUpdateRequest) error {
		snap := h.cfg.Snapshot()
		tuning := config.LimiterConfig{
			CapPercent:      snap.CapPercent,
			AttackMs:        snap.AttackMs,
			HoldMs:          snap.HoldMs,
			ReleaseMs:       snap.ReleaseMs,
			CooldownMs:      snap.CooldownMs,
			LeewayDB:        snap.LeewayDB,
			Dampening:       snap.Dampening,
			DampeningRampMs: snap.DampeningRampMs,
		}

		if req.AttackMs != nil {
			tuning.AttackMs = *req.AttackMs
		}
		if req.HoldMs != nil {
			tuning.HoldMs = *req.HoldMs
		}
		if req.ReleaseMs != nil {
			tuning.ReleaseMs = *req.ReleaseMs
		}
		if req.CooldownMs != nil {
			tuning.CooldownMs = *req.CooldownMs
		}
		if req.LeewayDB != nil {
			tuning.LeewayDB = *req.LeewayDB
		}
		if req.Dampening != nil {
			tuning.Dampening = *req.Dampening
		}
		if req.DampeningRampMs != nil {
			tuning.DampeningRampMs = *req.DampeningRampMs
		}

		return h.cfg.SetTuning(tuning)
	})
}

func (h *CommandHandler) handleStabilizerUpdate(cmd WSCommand, send chan<- any) {
	HandleCommand(cmd, send, func(req *StabilizerUpdateRequest) error {
		snap := h.cfg.Snapshot()
		stab := snap.Stabilizer

		if req.Enabled != nil {
			stab.Enabled = *req.Enabled
		}
		if req.WindowMs != nil {
			stab.WindowMs = *req.WindowMs
		}
		if req.TriggerCount != nil {
			stab.TriggerCount = *req.TriggerCount
		}
		if req.MaxLeewayDB != nil {
			stab.MaxLeewayDB = *req.MaxLeewayDB
		}
		if req.StepDB != nil {
			stab.StepDB = *req.StepDB
		}
		if req.ChangeThreshold != nil {
			stab.ChangeThreshold = *req.ChangeThreshold
		}

		return h.cfg.SetStabilizer(stab)
	})
}

func (h *CommandHandler) handleLimiterGet(send chan<- any) {
	snap := h.cfg.Snapshot()
	SendSuccess(send, "limiter/get", map[string]any{
		"status":            h.engine.Status(),
		"enabled":           snap.Enabled,
		"cap_percent":       snap.CapPercent,
		"attack_ms":         snap.AttackMs,
		"hold_ms":           snap.HoldMs,
		"release_ms":        snap.ReleaseMs,
		"cooldown_ms":       snap.CooldownMs,
		"leeway_db":         snap.LeewayDB,
		"dampening":         snap.Dampening,
		"dampening_ramp_ms": snap.DampeningRampMs,
		"stabilizer":        snap.Stabilizer,
	})
}

// --- Audio handlers ---

func (h *CommandHandler) handleAudio(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "update":
		h.handleAudioUpdate(cmd, send)
	case "get":
		h.handleAudioGet(send)
	case "devices":
		h.handleAudioDevices(cmd, send)
	default:
		slog.Warn("unknown audio action", "action", action)
	}
}

func (h *CommandHandler) handleAudioUpdate(cmd WSCommand, send chan<- any) {
	HandleCommand(cmd, send, func(req *AudioUpdateRequest) error {
		slog.Info("audio/update: changing capture device", "device", req.Device)
		if err := h.cfg.SetCaptureDevice(req.Device); err != nil {
			return err
		}
		if h.applyDevice != nil {
			h.applyDevice(req.Device)
		}
		return nil
	})
}

func (h *CommandHandler) handleAudioGet(send chan<- any) {
	SendSuccess(send, "audio/get", map[string]any{
		"device": h.cfg.CaptureDevice(),
	})
}

func (h *CommandHandler) handleAudioDevices(cmd WSCommand, send chan<- any) {
	// Device listing shells out to the platform tools, so run it off the
	// event loop.
	HandleActionAsync(cmd, send, func() (any, error) {
		return map[string]any{"devices": audio.ListDevices()}, nil
	})
}

// --- Notification handlers ---

func (h *CommandHandler) handleNotifications(action, subaction string, cmd WSCommand, send chan<- any) {
	switch action {
	case "webhook":
		switch subaction {
		case "update":
			h.handleWebhookUpdate(cmd, send)
		case "test":
			h.handleWebhookTest(send)
		case "get":
			h.handleWebhookGet(send)
		default:
			slog.Warn("unknown webhook action", "subaction", subaction)
		}
	case "log":
		switch subaction {
		case "update":
			h.handleLogUpdate(cmd, send)
		case "get":
			h.handleLogGet(send)
		default:
			slog.Warn("unknown log action", "subaction", subaction)
		}
	default:
		slog.Warn("unknown notifications action", "action", action)
	}
}

func (h *CommandHandler) handleWebhookUpdate(cmd WSCommand, send chan<- any) {
	HandleCommand(cmd, send, func(req *WebhookUpdateRequest) error {
		return h.cfg.SetWebhookURL(req.URL)
	})
}

func (h *CommandHandler) handleWebhookTest(send chan<- any) {
	snap := h.cfg.Snapshot()
	HandleActionAsync(WSCommand{Type: "notifications/webhook/test"}, send, func() (any, error) {
		return nil, notify.SendTestWebhook(snap.WebhookURL)
	})
}

func (h *CommandHandler) handleWebhookGet(send chan<- any) {
	SendSuccess(send, "notifications/webhook/get", map[string]any{
		"url": h.cfg.Snapshot().WebhookURL,
	})
}

func (h *CommandHandler) handleLogUpdate(cmd WSCommand, send chan<- any) {
	HandleCommand(cmd, send, func(req *LogUpdateRequest) error {
		return h.cfg.SetLogPath(req.Path)
	})
}

func (h *CommandHandler) handleLogGet(send chan<- any) {
	SendSuccess(send, "notifications/log/get", map[string]any{
		"path": h.cfg.Snapshot().EventLogPath,
	})
}

// --- System handlers ---

func (h *CommandHandler) handleSystem(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "update":
		HandleCommand(cmd, send, func(req *SystemUpdateRequest) error {
			if req.Autostart != nil {
				return h.cfg.SetAutostart(*req.Autostart)
			}
			return nil
		})
	default:
		slog.Warn("unknown system action", "action", action)
	}
}

// --- Event log handlers ---

func (h *CommandHandler) handleEvents(action string, cmd WSCommand, send chan<- any) {
	if action != "get" {
		slog.Warn("unknown events action", "action", action)
		return
	}

	var req EventsGetRequest
	if !DecodeAndValidate(cmd, send, &req) {
		return
	}
	if req.Limit == 0 {
		req.Limit = DefaultEventLimit
	}

	path := h.cfg.Snapshot().EventLogPath
	HandleActionAsync(cmd, send, func() (any, error) {
		events, more, err := eventlog.ReadLast(path, req.Limit, req.Offset)
		if err != nil {
			return nil, err
		}
		return map[string]any{"events": events, "has_more": more}, nil
	})
}

// --- Config / status handlers ---

func (h *CommandHandler) handleConfig(action string, send chan<- any) {
	if action != "get" {
		slog.Warn("unknown config action", "action", action)
		return
	}

	snap := h.cfg.Snapshot()
	SendSuccess(send, "config/get", map[string]any{
		"port":        snap.WebPort,
		"ffmpeg_path": snap.FFmpegPath,
		"autostart":   snap.Autostart,
		"device":      snap.CaptureDevice,
		"webhook_url": snap.WebhookURL,
		"log_path":    snap.EventLogPath,
	})
}

func (h *CommandHandler) handleStatus(action string) {
	switch action {
	case "get":
		// Status is sent automatically; an explicit get just triggers the
		// immediate update after Handle returns.
	default:
		slog.Warn("unknown status action", "action", action)
	}
}
