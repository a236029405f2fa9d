package audio

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Static errors for segmentation.
var (
	// ErrInvalidParams is returned when segmentation parameters or output settings are invalid.
	ErrInvalidParams = errors.New("invalid segmentation parameters")
	// ErrInvalidSignal is returned when a signal has an unusable format.
	ErrInvalidSignal = errors.New("invalid audio signal")
)

// Params configures silence detection and clip padding.
type Params struct {
	// MinSilenceMs is the minimum duration in milliseconds a quiet run must last
	// to count as a silence window.
	// Default: 420 milliseconds.
	MinSilenceMs int `json:"min_silence_ms" validate:"gt=0"`

	// SilenceThreshDB is the level in dBFS at or below which a frame is silent.
	// More negative values require quieter audio.
	// Default: -40 dBFS.
	SilenceThreshDB float64 `json:"silence_thresh_db" validate:"lte=0"`

	// KeepSilenceMs is the silence kept on each side of a clip.
	// Default: 250 milliseconds.
	KeepSilenceMs int `json:"keep_silence_ms" validate:"gte=0"`

	// FrameMs is the analysis granularity used by the level meter.
	// Default: 10 milliseconds.
	FrameMs int `json:"frame_ms" validate:"gt=0,lte=1000"`
}

// DefaultParams returns the default segmentation parameters.
func DefaultParams() Params {
	return Params{
		MinSilenceMs:    420,
		SilenceThreshDB: -40,
		KeepSilenceMs:   250,
		FrameMs:         10,
	}
}

var validate = validator.New()

// Validate checks the parameters and returns an error wrapping ErrInvalidParams.
func (p Params) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	return nil
}

// DetectSilence scans the signal frame by frame and returns the silence windows
// in temporal order. A window is a run of analysis frames whose level is at or
// below p.SilenceThreshDB lasting at least p.MinSilenceMs.
// Params are assumed valid.
func DetectSilence(sig *Signal, p Params, meter LevelMeter) []SilenceWindow {
	total := sig.Frames()
	frameLen := max(1, sig.FramesFor(p.FrameMs))
	scale := fullScale(sig.BitDepth)
	buf := make([]float64, frameLen*sig.Channels)

	minFrames := int64(p.MinSilenceMs) * int64(sig.SampleRate)
	var windows []SilenceWindow
	runStart := -1

	closeRun := func(end int) {
		if runStart >= 0 && int64(end-runStart)*1000 >= minFrames {
			windows = append(windows, SilenceWindow{Span{Start: runStart, End: end}})
		}
		runStart = -1
	}

	for start := 0; start < total; start += frameLen {
		end := min(start+frameLen, total)
		raw := sig.Slice(start, end)
		for i, v := range raw {
			buf[i] = float64(v) / scale
		}

		if meter.Level(buf[:len(raw)]) <= p.SilenceThreshDB {
			if runStart < 0 {
				runStart = start
			}
			continue
		}
		closeRun(start)
	}
	closeRun(total)

	return windows
}

// Plan turns silence windows into padded clips over a signal of total frames.
//
// Each voiced span between windows is padded by keep frames on both sides.
// When the silence S between two spans is shorter than 2*keep, it is split at
// its midpoint: the earlier clip gets floor(S/2) and the later one the rest,
// so padded ranges abut but never overlap. Leading and trailing silence give
// up to keep frames to the adjacent clip. Names are left empty.
func Plan(windows []SilenceWindow, total, keep int) []Clip {
	voiced := voicedSpans(windows, total)
	clips := make([]Clip, 0, len(voiced))

	for i, v := range voiced {
		var before, after int
		if i == 0 {
			before = v.Start
		} else {
			gap := v.Start - voiced[i-1].End
			before = gap - gap/2
		}
		if i == len(voiced)-1 {
			after = total - v.End
		} else {
			after = (voiced[i+1].Start - v.End) / 2
		}

		clips = append(clips, Clip{
			Span:   Span{Start: v.Start - min(keep, before), End: v.End + min(keep, after)},
			Index:  i,
			Voiced: v,
		})
	}

	return clips
}

// voicedSpans returns the complement of the windows within [0, total).
func voicedSpans(windows []SilenceWindow, total int) []Span {
	var spans []Span
	cursor := 0
	for _, w := range windows {
		if w.Start > cursor {
			spans = append(spans, Span{Start: cursor, End: min(w.Start, total)})
		}
		cursor = max(cursor, w.End)
	}
	if cursor < total {
		spans = append(spans, Span{Start: cursor, End: total})
	}
	return spans
}

// Boundaries validates p and computes the silence windows and padded clips for
// sig without writing anything. The result is deterministic for a given input.
func Boundaries(sig *Signal, p Params, meter LevelMeter) ([]SilenceWindow, []Clip, error) {
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	if err := sig.validate(); err != nil {
		return nil, nil, err
	}
	if meter == nil {
		meter = RMSMeter{}
	}

	windows := DetectSilence(sig, p, meter)
	clips := Plan(windows, sig.Frames(), sig.FramesFor(p.KeepSilenceMs))
	return windows, clips, nil
}
