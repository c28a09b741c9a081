package main

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tame-app/tame/internal/audio"
	"github.com/tame-app/tame/internal/config"
	"github.com/tame-app/tame/internal/limiter"
	"github.com/tame-app/tame/internal/server"
)

var indexTmpl = template.Must(template.New("index").Parse(indexHTML))

type indexData struct {
	Version string
	Year    int
}

// WSStatusResponse is the periodic status message pushed to clients.
type WSStatusResponse struct {
	Type            string                  `json:"type"`
	Limiter         limiter.Status          `json:"limiter"`
	CapPercent      float64                 `json:"cap_percent"`
	AttackMs        int64                   `json:"attack_ms"`
	HoldMs          int64                   `json:"hold_ms"`
	ReleaseMs       int64                   `json:"release_ms"`
	CooldownMs      int64                   `json:"cooldown_ms"`
	LeewayDB        float64                 `json:"leeway_db"`
	Dampening       float64                 `json:"dampening"`
	DampeningRampMs int64                   `json:"dampening_ramp_ms"`
	Stabilizer      config.StabilizerConfig `json:"stabilizer"`
	Device          string                  `json:"device"`
	WebhookURL      string                  `json:"webhook_url"`
	EventLogPath    string                  `json:"event_log_path"`
	FFmpegAvailable bool                    `json:"ffmpeg_available"`
	Platform        string                  `json:"platform"`
	Version         VersionInfo             `json:"version"`
}

// WSLevelsResponse carries meter readings for the VU display.
type WSLevelsResponse struct {
	Type   string  `json:"type"`
	Peak   float64 `json:"peak"`
	RMS    float64 `json:"rms"`
	Volume float64 `json:"volume"`
}

// Server is the localhost HTTP server providing the limiter web interface.
type Server struct {
	config          *config.Config
	engine          *limiter.Engine
	monitor         *audio.Monitor
	commands        *server.CommandHandler
	version         *VersionChecker
	ffmpegAvailable bool
}

// NewServer returns a new Server wired to the given control loop.
func NewServer(cfg *config.Config, engine *limiter.Engine, monitor *audio.Monitor, ffmpegAvailable bool) *Server {
	return &Server{
		config:          cfg,
		engine:          engine,
		monitor:         monitor,
		commands:        server.NewCommandHandler(cfg, engine, monitor.SetDevice),
		version:         NewVersionChecker(),
		ffmpegAvailable: ffmpegAvailable,
	}
}

// handleWebSocket handles bidirectional WebSocket communication for
// real-time updates.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := server.UpgradeConnection(w, r)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	// Buffered send channel for thread-safe writes. Only the writer
	// goroutine touches the connection.
	send := make(chan any, 16)
	done := make(chan struct{})
	statusUpdate := make(chan struct{}, 1)

	go s.runWebSocketWriter(conn, send)
	go s.runWebSocketReader(conn, send, done, statusUpdate)

	s.runWebSocketEventLoop(send, done, statusUpdate)
}

// runWebSocketWriter writes messages from the send channel to the connection.
func (s *Server) runWebSocketWriter(conn *websocket.Conn, send <-chan any) {
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Debug("WebSocket close error", "error", err)
		}
	}()
	for msg := range send {
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// runWebSocketReader reads commands from the connection and dispatches them.
func (s *Server) runWebSocketReader(conn *websocket.Conn, send chan<- any, done, statusUpdate chan<- struct{}) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in WebSocket reader", "panic", r)
		}
		close(done)
	}()

	for {
		var cmd server.WSCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		s.commands.Handle(cmd, send, func() {
			select {
			case statusUpdate <- struct{}{}:
			default:
			}
		})
	}
}

// runWebSocketEventLoop handles periodic status and level updates.
func (s *Server) runWebSocketEventLoop(send chan any, done, statusUpdate <-chan struct{}) {
	levelsTicker := time.NewTicker(100 * time.Millisecond) // 10 fps for the meter
	statusTicker := time.NewTicker(3 * time.Second)
	defer levelsTicker.Stop()
	defer statusTicker.Stop()

	trySend := func(msg any) bool {
		select {
		case send <- msg:
			return true
		case <-done:
			return false
		}
	}

	if !trySend(s.buildWSStatus()) {
		close(send)
		return
	}

	for {
		select {
		case <-done:
			close(send)
			return
		case <-statusUpdate:
			if !trySend(s.buildWSStatus()) {
				close(send)
				return
			}
		case <-levelsTicker.C:
			if !trySend(s.buildWSLevels()) {
				close(send)
				return
			}
		case <-statusTicker.C:
			if !trySend(s.buildWSStatus()) {
				close(send)
				return
			}
		}
	}
}

// buildWSStatus returns the current WebSocket status response.
func (s *Server) buildWSStatus() WSStatusResponse {
	snap := s.config.Snapshot()

	return WSStatusResponse{
		Type:            "status",
		Limiter:         s.engine.Status(),
		CapPercent:      snap.CapPercent,
		AttackMs:        snap.AttackMs,
		HoldMs:          snap.HoldMs,
		ReleaseMs:       snap.ReleaseMs,
		CooldownMs:      snap.CooldownMs,
		LeewayDB:        snap.LeewayDB,
		Dampening:       snap.Dampening,
		DampeningRampMs: snap.DampeningRampMs,
		Stabilizer:      snap.Stabilizer,
		Device:          snap.CaptureDevice,
		WebhookURL:      snap.WebhookURL,
		EventLogPath:    snap.EventLogPath,
		FFmpegAvailable: s.ffmpegAvailable,
		Platform:        runtime.GOOS,
		Version:         s.version.Info(),
	}
}

// buildWSLevels returns the current meter reading response.
func (s *Server) buildWSLevels() WSLevelsResponse {
	levels := s.monitor.Levels()
	return WSLevelsResponse{
		Type:   "levels",
		Peak:   levels.Peak,
		RMS:    levels.RMS,
		Volume: s.engine.Status().Volume,
	}
}

// SetupRoutes returns an [http.Handler] configured with all routes.
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/", s.handleIndex)
	return securityHeaders(mux)
}

// securityHeaders returns middleware that wraps handlers with security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// handleIndex serves the single-page interface.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	if err := indexTmpl.Execute(w, indexData{
		Version: Version,
		Year:    time.Now().Year(),
	}); err != nil {
		slog.Error("failed to write index.html", "error", err)
	}
}

// Start begins the HTTP server on localhost only. The interface controls the
// OS volume, so it is never exposed beyond the local machine.
// Returns an *http.Server that can be used for graceful shutdown.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf("127.0.0.1:%d", s.config.Snapshot().WebPort)
	slog.Info("starting web server", "addr", addr)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.SetupRoutes(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	return srv
}
