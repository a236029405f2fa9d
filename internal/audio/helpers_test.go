package audio

import (
	"math"
)

const testRate = 8000

// part describes a piece of a synthetic test signal.
type part struct {
	ms        int
	amplitude float64 // 0 for digital silence
}

func tone(ms int) part    { return part{ms: ms, amplitude: 0.5} }
func silence(ms int) part { return part{ms: ms} }

// buildSignal concatenates 440 Hz tones and silences into a 16-bit signal.
func buildSignal(channels int, parts ...part) *Signal {
	var samples []int
	n := 0
	for _, p := range parts {
		frames := p.ms * testRate / 1000
		for i := 0; i < frames; i++ {
			v := int(p.amplitude * 32767 * math.Sin(2*math.Pi*440*float64(n)/testRate))
			for c := 0; c < channels; c++ {
				samples = append(samples, v)
			}
			n++
		}
	}
	return &Signal{
		SampleRate: testRate,
		Channels:   channels,
		BitDepth:   16,
		Samples:    samples,
	}
}

func frames(ms int) int {
	return ms * testRate / 1000
}
