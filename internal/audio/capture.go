package audio

// CaptureConfig defines platform-specific loopback capture configuration.
type CaptureConfig struct {
	// Command is the executable name (e.g., "ffmpeg").
	Command string

	// DefaultDevice is used when no device is configured.
	DefaultDevice string

	// UsesFFmpeg indicates if this platform captures through FFmpeg.
	UsesFFmpeg bool

	// BuildArgs returns the command arguments for capturing the output
	// monitor device as raw PCM on stdout.
	BuildArgs func(device string) []string

	// Devices returns the available monitor/loopback devices.
	Devices func() []Device
}

// BuildCaptureCommand returns the command and arguments for capturing the
// system output signal. If device is empty, the platform default or the
// first detected monitor device is used. The ffmpegPath parameter overrides
// the binary location on platforms that capture through FFmpeg.
func BuildCaptureCommand(device, ffmpegPath string) (cmd string, args []string, err error) {
	cfg := getPlatformConfig()

	if device == "" {
		device = cfg.DefaultDevice
	}

	// Auto-detect if still empty (Windows has no safe default).
	if device == "" {
		devices := cfg.Devices()
		if len(devices) == 0 {
			return "", nil, ErrNoCaptureDevice
		}
		device = devices[0].ID
	}

	command := cfg.Command
	if cfg.UsesFFmpeg && ffmpegPath != "" {
		command = ffmpegPath
	}

	return command, cfg.BuildArgs(device), nil
}

// ListDevices returns available loopback capture devices for the current platform.
func ListDevices() []Device {
	return getPlatformConfig().Devices()
}
