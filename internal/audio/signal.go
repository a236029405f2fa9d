// Package audio provides the silence segmenter: level metering, silence window
// detection, clip planning and clip persistence over linear PCM signals.
package audio

import (
	"fmt"
	"time"
)

// Signal is a linear PCM audio signal. Samples are interleaved by channel.
// A Signal is treated as immutable once produced by an extractor.
type Signal struct {
	// SampleRate is the number of sample frames per second.
	SampleRate int
	// Channels is the number of interleaved channels.
	Channels int
	// BitDepth is the bit depth of each sample (16 for extracted audio).
	BitDepth int
	// Samples holds interleaved sample values in the signed range of BitDepth.
	Samples []int
}

// Frames returns the number of sample frames (one sample per channel).
func (s *Signal) Frames() int {
	if s.Channels <= 0 {
		return 0
	}
	return len(s.Samples) / s.Channels
}

// Duration returns the total length of the signal.
func (s *Signal) Duration() time.Duration {
	return s.Offset(s.Frames())
}

// Offset converts a frame position into a time offset.
func (s *Signal) Offset(frame int) time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(frame) * int64(time.Second) / int64(s.SampleRate))
}

// FramesFor converts a millisecond count into a number of frames, rounding down.
func (s *Signal) FramesFor(ms int) int {
	return int(int64(ms) * int64(s.SampleRate) / 1000)
}

// Slice returns the interleaved samples of the frame range [start, end).
// The returned slice shares memory with the signal and must not be modified.
func (s *Signal) Slice(start, end int) []int {
	return s.Samples[start*s.Channels : end*s.Channels]
}

func (s *Signal) validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil signal", ErrInvalidSignal)
	}
	if s.SampleRate <= 0 || s.Channels <= 0 || s.BitDepth <= 0 {
		return fmt.Errorf("%w: rate=%d channels=%d bit_depth=%d",
			ErrInvalidSignal, s.SampleRate, s.Channels, s.BitDepth)
	}
	if len(s.Samples)%s.Channels != 0 {
		return fmt.Errorf("%w: %d samples not divisible by %d channels",
			ErrInvalidSignal, len(s.Samples), s.Channels)
	}
	return nil
}

// Span is a half-open range of sample frames [Start, End).
type Span struct {
	Start int
	End   int
}

// Len returns the number of frames in the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// SilenceWindow is a span where the level stays at or below the silence
// threshold for at least the minimum silence duration.
type SilenceWindow struct {
	Span
}

// Clip is a contiguous, padded part of a signal that is exported on its own.
type Clip struct {
	// Span is the padded frame range written to the clip artifact.
	Span
	// Index is the 0-based position of the clip in temporal order.
	Index int
	// Voiced is the unpadded range between the surrounding silence windows.
	Voiced Span
	// Name is the output identifier, {prefix}_{index}.
	Name string
	// Path is set once the clip artifact has been written.
	Path string
}

// StartMs returns the padded start of the clip in milliseconds.
func (c Clip) StartMs(sampleRate int) int64 {
	return int64(c.Start) * 1000 / int64(sampleRate)
}

// EndMs returns the padded end of the clip in milliseconds.
func (c Clip) EndMs(sampleRate int) int64 {
	return int64(c.End) * 1000 / int64(sampleRate)
}
