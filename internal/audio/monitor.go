package audio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/tame-app/tame/internal/util"
)

const (
	// frameDuration is the metering frame length. One level measurement is
	// produced per frame, matching the control loop tick.
	frameDuration = 20 * time.Millisecond

	// frameBytes is the size of one S16LE frame at the capture format.
	frameBytes = SampleRate * Channels * 2 * int(frameDuration/time.Millisecond) / 1000

	// staleAfter is how long the monitor may go without a frame before
	// samples report no signal.
	staleAfter = 500 * time.Millisecond

	captureRetryInitial = 500 * time.Millisecond
	captureRetryMax     = 30 * time.Second
)

// Monitor captures the system output signal and meters its loudness.
// The capture subprocess is restarted with exponential backoff when it
// exits; while no capture is running, samples report no signal rather
// than blocking. Safe for concurrent use.
type Monitor struct {
	ffmpegPath string
	window     *PeakWindow

	mu          sync.Mutex
	device      string
	captureStop context.CancelFunc // stops the running capture process only
	levels      Levels
	lastFrame   time.Time

	// onStateChange, if set, is called when capture is lost or restored.
	onStateChange func(available bool, reason string)

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor returns a Monitor for the given capture device. An empty
// device selects the platform default monitor source.
func NewMonitor(device, ffmpegPath string) *Monitor {
	return &Monitor{
		device:     device,
		ffmpegPath: ffmpegPath,
		window:     NewPeakWindow(),
	}
}

// OnStateChange registers a callback invoked when the capture subprocess
// is lost or restored. Must be called before Start.
func (m *Monitor) OnStateChange(fn func(available bool, reason string)) {
	m.onStateChange = fn
}

// SetDevice switches to a different capture device. A running capture
// process is stopped; the supervisor restarts it on the new device.
func (m *Monitor) SetDevice(device string) {
	m.mu.Lock()
	if device == m.device {
		m.mu.Unlock()
		return
	}
	m.device = device
	stop := m.captureStop
	m.mu.Unlock()

	slog.Info("capture device changed", "device", device)
	if stop != nil {
		stop()
	}
}

// Device returns the current capture device.
func (m *Monitor) Device() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.device
}

// Start launches the capture loop. It returns immediately; capture failures
// are retried in the background.
func (m *Monitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(ctx)
}

// Stop terminates the capture loop and waits for it to exit.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}

// Sample returns the current loudness observation. If no capture frame has
// arrived recently the sample reports no signal; it never blocks.
func (m *Monitor) Sample(now time.Time) Sample {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastFrame.IsZero() || now.Sub(m.lastFrame) > staleAfter {
		return Sample{When: now, NoSignal: true}
	}

	return Sample{
		Level: m.window.Held(now),
		RMS:   m.levels.RMS,
		When:  now,
	}
}

// Levels returns the most recent raw frame levels for display.
func (m *Monitor) Levels() Levels {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels
}

// run supervises the capture subprocess, restarting it with backoff.
func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	backoff := util.NewBackoff(captureRetryInitial, captureRetryMax)
	available := false

	for {
		err := m.captureOnce(ctx, func() {
			if !available {
				available = true
				backoff.Reset()
				slog.Info("audio capture started", "device", m.Device())
				m.notify(true, "")
			}
		})

		if ctx.Err() != nil {
			return
		}

		reason := "capture process exited"
		if err != nil {
			reason = err.Error()
		}
		if available {
			available = false
			slog.Warn("audio capture lost", "device", m.Device(), "error", err)
			m.notify(false, reason)
		}

		select {
		case <-time.After(backoff.Next()):
		case <-ctx.Done():
			return
		}
	}
}

// captureOnce runs one capture subprocess until it exits, feeding frames
// into the meter. onFrame is invoked after the first complete frame.
func (m *Monitor) captureOnce(ctx context.Context, onFrame func()) error {
	command, args, err := BuildCaptureCommand(m.Device(), m.ffmpegPath)
	if err != nil {
		return err
	}

	capCtx, capCancel := context.WithCancel(ctx)
	defer capCancel()
	m.mu.Lock()
	m.captureStop = capCancel
	m.mu.Unlock()

	cmd := exec.CommandContext(capCtx, command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return util.WrapError("open capture stdout", err)
	}

	if err := cmd.Start(); err != nil {
		return util.WrapError("start capture process", err)
	}

	buf := make([]byte, frameBytes)
	var data LevelData

	for {
		if _, err := io.ReadFull(stdout, buf); err != nil {
			waitErr := cmd.Wait()
			if capCtx.Err() != nil {
				return nil
			}
			if last := util.ExtractLastError(stderr.String()); last != "" {
				return errors.New(last)
			}
			if waitErr != nil {
				return waitErr
			}
			return err
		}

		data.Reset()
		ProcessSamples(buf, len(buf), &data)
		levels := CalculateLevels(&data)

		now := time.Now()
		m.window.Update(levels.Peak, now)

		m.mu.Lock()
		m.levels = levels
		m.lastFrame = now
		m.mu.Unlock()

		onFrame()
	}
}

func (m *Monitor) notify(available bool, reason string) {
	if m.onStateChange != nil {
		m.onStateChange(available, reason)
	}
}
