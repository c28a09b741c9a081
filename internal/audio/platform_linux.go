//go:build linux

package audio

import (
	"regexp"
	"strings"
)

func getPlatformConfig() CaptureConfig {
	return CaptureConfig{
		Command: "ffmpeg",
		// PulseAudio/PipeWire resolve this to the monitor of the
		// current default output sink.
		DefaultDevice: "@DEFAULT_MONITOR@",
		UsesFFmpeg:    true,
		BuildArgs:     buildLinuxArgs,
		Devices:       listLinuxDevices,
	}
}

func buildLinuxArgs(device string) []string {
	return buildFFmpegCaptureArgs("pulse", device)
}

func listLinuxDevices() []Device {
	return parseDeviceList(DeviceListConfig{
		Command: []string{"pactl", "list", "short", "sources"},
		// Lines look like: 57  alsa_output.pci-0000.analog-stereo.monitor  PipeWire  s32le 2ch 48000Hz  IDLE
		DevicePattern: regexp.MustCompile(`^\d+\s+(\S+\.monitor)\s`),
		ParseDevice: func(matches []string) *Device {
			if len(matches) < 2 {
				return nil
			}
			id := matches[1]
			return &Device{
				ID:   id,
				Name: strings.TrimSuffix(id, ".monitor"),
			}
		},
		FallbackDevices: []Device{
			{ID: "@DEFAULT_MONITOR@", Name: "Default output (monitor)"},
		},
	})
}
