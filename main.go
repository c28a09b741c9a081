// Package main provides tame, a background service that keeps the system
// output volume under a configured cap. It meters the OS loopback signal,
// attenuates the volume when the output stays too loud, restores it when
// things calm down, and always yields to manual volume changes.
//
// Usage:
//
//	tame [-config path/to/settings.json]
//
// If -config is not specified, settings live in the per-user config
// directory (e.g. ~/.config/tame/settings.json).
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/tame-app/tame/internal/audio"
	"github.com/tame-app/tame/internal/config"
	"github.com/tame-app/tame/internal/limiter"
	"github.com/tame-app/tame/internal/notify"
	"github.com/tame-app/tame/internal/util"
	"github.com/tame-app/tame/internal/volume"
)

func main() {
	configPath := flag.String("config", "", "Path to settings file (default: per-user config directory)")
	showVersion := flag.Bool("version", false, "Print version information and exit")
	flag.Parse()

	if *showVersion {
		slog.Info("version info", "version", Version, "commit", Commit, "build_time", BuildTime)
		return
	}

	if *configPath == "" {
		path, err := config.DefaultPath()
		if err != nil {
			slog.Error("failed to resolve settings path", "error", err)
			os.Exit(1)
		}
		*configPath = path
	}

	slog.Info("using settings file", "path", *configPath)

	cfg := config.New(*configPath)
	if err := cfg.Load(); err != nil {
		slog.Error("failed to load settings", "error", err)
		os.Exit(1)
	}

	// Check FFmpeg availability. Without it there is no loudness metering,
	// so the limiter only ever sees silence and stays quiet.
	ffmpegPath := util.ResolveFFmpegPath(cfg.GetFFmpegPath())
	ffmpegAvailable := ffmpegPath != ""
	if !ffmpegAvailable {
		slog.Warn("FFmpeg not found - loudness metering disabled",
			"configured_path", cfg.GetFFmpegPath())
	} else {
		slog.Info("FFmpeg found", "path", ffmpegPath)
	}

	notifier := notify.New(cfg)

	monitor := audio.NewMonitor(cfg.CaptureDevice(), ffmpegPath)
	monitor.OnStateChange(func(available bool, reason string) {
		notifier.HandleCapture(available, monitor.Device(), reason)
	})

	engine := limiter.New(cfg, monitor, volume.NewSystem(), notifier.HandleEvent)
	runner := limiter.NewRunner(engine, limiter.TickInterval)

	srv := NewServer(cfg, engine, monitor, ffmpegAvailable)

	if ffmpegAvailable {
		monitor.Start()
	}
	runner.Start()

	httpServer := srv.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, util.ShutdownSignals()...)
	<-sigChan

	slog.Info("shutting down")

	srv.version.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// The runner finishes the tick in flight, so the volume is never left
	// mid-write.
	runner.Stop()
	monitor.Stop()
	notifier.Close()

	slog.Info("shutdown complete")
}
