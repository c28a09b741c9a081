// Package audio meters the loudness of the system's audio output by
// capturing the output monitor (loopback) device and reducing the PCM
// stream to normalized peak and RMS levels.
package audio

import (
	"encoding/binary"
	"math"
)

const (
	// SampleRate is the capture sample rate in Hz.
	SampleRate = 48000
	// Channels is the capture channel count.
	Channels = 2
	// MaxSampleValue is the maximum absolute value for 16-bit signed audio.
	MaxSampleValue = 32768.0
)

// LevelData holds raw sample accumulator data for one metering frame.
type LevelData struct {
	SumSquares  float64
	Peak        float64
	SampleCount int
}

// ProcessSamples processes S16LE stereo PCM data and accumulates level data.
// Channels are folded together; the limiter only needs a single scalar.
func ProcessSamples(buf []byte, n int, data *LevelData) {
	for i := 0; i+3 < n; i += 4 {
		left := float64(int16(binary.LittleEndian.Uint16(buf[i:])))
		right := float64(int16(binary.LittleEndian.Uint16(buf[i+2:])))

		data.SumSquares += left*left + right*right

		if abs := math.Abs(left); abs > data.Peak {
			data.Peak = abs
		}
		if abs := math.Abs(right); abs > data.Peak {
			data.Peak = abs
		}

		data.SampleCount += 2
	}
}

// Levels contains calculated audio levels normalized to [0,1].
type Levels struct {
	RMS  float64
	Peak float64
}

// CalculateLevels computes normalized RMS and peak levels from accumulated
// sample data. An empty frame yields zero levels.
func CalculateLevels(data *LevelData) Levels {
	if data.SampleCount == 0 {
		return Levels{}
	}

	rms := math.Sqrt(data.SumSquares/float64(data.SampleCount)) / MaxSampleValue

	return Levels{
		RMS:  min(rms, 1.0),
		Peak: min(data.Peak/MaxSampleValue, 1.0),
	}
}

// Reset resets accumulators for the next metering frame.
func (d *LevelData) Reset() {
	d.SampleCount = 0
	d.SumSquares = 0
	d.Peak = 0
}
