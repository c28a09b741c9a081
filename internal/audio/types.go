package audio

import (
	"errors"
	"time"
)

// ErrNoCaptureDevice is returned when no loopback capture device is available.
var ErrNoCaptureDevice = errors.New("no audio capture device found")

// Sample is a single loudness observation of the system output.
type Sample struct {
	// Level is the peak output level normalized to [0,1], smoothed by the
	// peak-hold window.
	Level float64 `json:"level"`
	// RMS is the average output level normalized to [0,1].
	RMS float64 `json:"rms"`
	// When is the capture timestamp.
	When time.Time `json:"-"`
	// NoSignal reports that no capture data was available for this sample.
	// The limiter treats a no-signal sample as silence.
	NoSignal bool `json:"no_signal,omitzero"`
}

// Device represents an available loopback/monitor capture device.
type Device struct {
	// ID is the device identifier passed to the capture command.
	ID string `json:"id"`
	// Name is the device display name.
	Name string `json:"name"`
}
