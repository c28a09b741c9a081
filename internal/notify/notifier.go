package notify

import (
	"log/slog"
	"sync"

	"github.com/tame-app/tame/internal/config"
	"github.com/tame-app/tame/internal/eventlog"
	"github.com/tame-app/tame/internal/limiter"
	"github.com/tame-app/tame/internal/util"
)

// Notifier fans limiter and capture events out to the event log and the
// configured webhook. Webhook delivery runs in its own goroutine so the
// control loop is never blocked by a slow endpoint. The event log follows
// the configured path, reopening when the setting changes.
type Notifier struct {
	cfg *config.Config

	// mu protects the logger and once-per-episode flags below
	mu           sync.Mutex
	logger       *eventlog.Logger
	loggerPath   string
	degradedSent bool
	captureSent  bool
}

// New returns a Notifier.
func New(cfg *config.Config) *Notifier {
	return &Notifier{cfg: cfg}
}

// Close releases the event log file, if open.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closeLoggerLocked()
}

// HandleEvent processes a control loop event.
func (n *Notifier) HandleEvent(ev limiter.Event) {
	snap := n.cfg.Snapshot()
	n.logEvent(ev, &snap)

	switch ev.Type {
	case limiter.EventDegraded:
		n.trySend(&n.degradedSent, &snap, func() error {
			return SendDegradedWebhook(snap.WebhookURL, snap.CapPercent, ev.Error)
		}, "Degraded webhook")
	case limiter.EventLimitStart, limiter.EventOverrideStart:
		// The loop is acting again, so a future degradation is a new episode.
		n.mu.Lock()
		n.degradedSent = false
		n.mu.Unlock()
	}
}

// HandleCapture processes a capture availability change.
func (n *Notifier) HandleCapture(available bool, device, reason string) {
	snap := n.cfg.Snapshot()

	if logger := n.loggerFor(snap.EventLogPath); logger != nil {
		typ := eventlog.CaptureLost
		if available {
			typ = eventlog.CaptureRestored
		}
		util.LogNotifyResult(
			func() error { return logger.LogCapture(typ, device, reason) },
			"Capture event log",
		)
	}

	if available {
		n.mu.Lock()
		n.captureSent = false
		n.mu.Unlock()
		return
	}

	n.trySend(&n.captureSent, &snap, func() error {
		return SendCaptureLostWebhook(snap.WebhookURL, device, reason)
	}, "Capture webhook")
}

// trySend runs sender in a goroutine unless this episode already notified.
func (n *Notifier) trySend(sent *bool, snap *config.Snapshot, sender func() error, what string) {
	n.mu.Lock()
	shouldSend := !*sent && snap.HasWebhook()
	if shouldSend {
		*sent = true
	}
	n.mu.Unlock()

	if shouldSend {
		go util.LogNotifyResult(sender, what)
	}
}

func (n *Notifier) logEvent(ev limiter.Event, snap *config.Snapshot) {
	logger := n.loggerFor(snap.EventLogPath)
	if logger == nil {
		return
	}

	typ, ok := eventTypes[ev.Type]
	if !ok {
		return
	}

	util.LogNotifyResult(
		func() error { return logger.LogLimit(typ, ev.Level, ev.Cap, ev.Volume, ev.Duration, ev.Error) },
		"Limiter event log",
	)
}

// loggerFor returns an event logger for the configured path, reopening it
// when the setting changed. Returns nil when no path is configured or the
// file cannot be opened.
func (n *Notifier) loggerFor(path string) *eventlog.Logger {
	n.mu.Lock()
	defer n.mu.Unlock()

	if path == n.loggerPath {
		return n.logger
	}

	n.closeLoggerLocked()
	n.loggerPath = path
	if path == "" {
		return nil
	}

	logger, err := eventlog.NewLogger(path)
	if err != nil {
		slog.Error("failed to open event log", "path", path, "error", err)
		return nil
	}
	n.logger = logger
	return logger
}

func (n *Notifier) closeLoggerLocked() {
	if n.logger != nil {
		if err := n.logger.Close(); err != nil {
			slog.Debug("event log close error", "error", err)
		}
		n.logger = nil
	}
	n.loggerPath = ""
}

var eventTypes = map[limiter.EventType]eventlog.EventType{
	limiter.EventLimitStart:    eventlog.LimitStart,
	limiter.EventLimitEnd:      eventlog.LimitEnd,
	limiter.EventOverrideStart: eventlog.OverrideStart,
	limiter.EventOverrideEnd:   eventlog.OverrideEnd,
	limiter.EventDegraded:      eventlog.Degraded,
}
