package audio

import (
	"fmt"
	"math"
	"strings"
)

// LevelMeter computes a loudness level for one analysis frame.
// Samples are normalised to [-1, 1] and interleaved by channel.
// The returned value is compared against Params.SilenceThreshDB, so meters
// report in dBFS or an equivalent scale where lower means quieter.
type LevelMeter interface {
	Level(samples []float64) float64
}

// RMSMeter reports the RMS level of a frame in dBFS across all channels.
// Digital silence yields negative infinity.
type RMSMeter struct{}

// Level implements LevelMeter.
func (RMSMeter) Level(samples []float64) float64 {
	if len(samples) == 0 {
		return math.Inf(-1)
	}
	var sumSquares float64
	for _, v := range samples {
		sumSquares += v * v
	}
	return toDBFS(math.Sqrt(sumSquares / float64(len(samples))))
}

// PeakMeter reports the absolute peak of a frame in dBFS across all channels.
type PeakMeter struct{}

// Level implements LevelMeter.
func (PeakMeter) Level(samples []float64) float64 {
	var peak float64
	for _, v := range samples {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return toDBFS(peak)
}

// MeterByName returns the meter registered under name ("rms" or "peak").
func MeterByName(name string) (LevelMeter, error) {
	switch strings.ToLower(name) {
	case "", "rms":
		return RMSMeter{}, nil
	case "peak":
		return PeakMeter{}, nil
	default:
		return nil, fmt.Errorf("unknown level meter %q", name)
	}
}

func toDBFS(amplitude float64) float64 {
	if amplitude <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(amplitude)
}

// fullScale returns the magnitude used to normalise samples of the given bit depth.
func fullScale(bitDepth int) float64 {
	return float64(int64(1) << (bitDepth - 1))
}

// Verify interface implementations at compile time.
var (
	_ LevelMeter = RMSMeter{}
	_ LevelMeter = PeakMeter{}
)
