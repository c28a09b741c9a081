package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

// frame builds an S16LE stereo buffer with every sample set to value.
func frame(value int16, samples int) []byte {
	buf := make([]byte, samples*4)
	for i := 0; i < len(buf); i += 2 {
		binary.LittleEndian.PutUint16(buf[i:], uint16(value))
	}
	return buf
}

func TestProcessSamplesSilence(t *testing.T) {
	buf := frame(0, 100)
	var data LevelData
	ProcessSamples(buf, len(buf), &data)

	levels := CalculateLevels(&data)
	if levels.Peak != 0 || levels.RMS != 0 {
		t.Errorf("silence metered as peak=%v rms=%v, want 0", levels.Peak, levels.RMS)
	}
}

func TestProcessSamplesFullScale(t *testing.T) {
	buf := frame(math.MinInt16, 100) // -32768 is the loudest 16-bit sample
	var data LevelData
	ProcessSamples(buf, len(buf), &data)

	levels := CalculateLevels(&data)
	if levels.Peak != 1.0 {
		t.Errorf("full-scale peak = %v, want 1.0", levels.Peak)
	}
	if levels.RMS != 1.0 {
		t.Errorf("full-scale rms = %v, want 1.0", levels.RMS)
	}
}

func TestProcessSamplesHalfScale(t *testing.T) {
	buf := frame(16384, 100)
	var data LevelData
	ProcessSamples(buf, len(buf), &data)

	levels := CalculateLevels(&data)
	want := 16384.0 / MaxSampleValue
	if math.Abs(levels.Peak-want) > 1e-9 {
		t.Errorf("peak = %v, want %v", levels.Peak, want)
	}
	if math.Abs(levels.RMS-want) > 1e-9 {
		t.Errorf("rms = %v, want %v (constant signal has rms == peak)", levels.RMS, want)
	}
}

func TestProcessSamplesPeakTracksLoudestChannel(t *testing.T) {
	// Left channel quiet, right channel loud.
	buf := make([]byte, 40)
	for i := 0; i < len(buf); i += 4 {
		binary.LittleEndian.PutUint16(buf[i:], uint16(int16(100)))
		binary.LittleEndian.PutUint16(buf[i+2:], uint16(int16(20000)))
	}

	var data LevelData
	ProcessSamples(buf, len(buf), &data)

	levels := CalculateLevels(&data)
	want := 20000.0 / MaxSampleValue
	if math.Abs(levels.Peak-want) > 1e-9 {
		t.Errorf("peak = %v, want %v from loudest channel", levels.Peak, want)
	}
}

func TestProcessSamplesAccumulatesAcrossCalls(t *testing.T) {
	var data LevelData
	quiet := frame(1000, 50)
	loud := frame(30000, 50)

	ProcessSamples(quiet, len(quiet), &data)
	ProcessSamples(loud, len(loud), &data)

	levels := CalculateLevels(&data)
	want := 30000.0 / MaxSampleValue
	if math.Abs(levels.Peak-want) > 1e-9 {
		t.Errorf("peak = %v, want %v held across calls", levels.Peak, want)
	}

	data.Reset()
	if levels := CalculateLevels(&data); levels.Peak != 0 {
		t.Errorf("peak after Reset = %v, want 0", levels.Peak)
	}
}

func TestCalculateLevelsEmptyFrame(t *testing.T) {
	var data LevelData
	if levels := CalculateLevels(&data); levels != (Levels{}) {
		t.Errorf("empty frame = %+v, want zero levels", levels)
	}
}
