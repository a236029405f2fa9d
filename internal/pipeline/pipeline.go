// Package pipeline runs audio extraction followed by silence segmentation.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/maauso/silencesplit/internal/audio"
	"github.com/maauso/silencesplit/internal/media"
)

// Options configures a pipeline run. Every run receives its own options,
// so concurrent runs with different settings do not interfere.
type Options struct {
	// OutputDir receives the intermediate track and the clips.
	OutputDir string
	// Prefix names the artifacts: {Prefix}_full.wav and {Prefix}_{index}.wav.
	Prefix string
	// Params configures silence detection and padding.
	Params audio.Params
	// OnExtracted, if set, is called once the intermediate track is decoded,
	// before segmentation starts.
	OnExtracted func(*audio.Signal)
	// OnClip, if set, is called after each clip is written.
	OnClip func(audio.Clip)
}

// Result summarizes a pipeline run.
type Result struct {
	// AudioPath is the intermediate full-length track.
	AudioPath  string
	SampleRate int
	Channels   int
	Duration   time.Duration
	Windows    []audio.SilenceWindow
	Clips      []audio.Clip
}

// Pipeline extracts audio from media and segments it into clips.
type Pipeline struct {
	extractor media.Extractor
	segmenter *audio.Segmenter
	logger    *slog.Logger
}

// New creates a Pipeline.
func New(extractor media.Extractor, segmenter *audio.Segmenter, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		extractor: extractor,
		segmenter: segmenter,
		logger:    logger,
	}
}

// AudioPath returns the path of the intermediate track for opts.
func AudioPath(opts Options) string {
	return filepath.Join(opts.OutputDir, opts.Prefix+"_full"+audio.ClipExt)
}

// Run extracts the audio of mediaPath into the intermediate track and then
// segments it. Extraction errors abort before segmentation starts; the
// context is checked between the two stages.
//
// On a segmentation failure the returned Result lists the clips that were
// written, together with a *audio.SegmentationError.
func (p *Pipeline) Run(ctx context.Context, mediaPath string, opts Options) (*Result, error) {
	if err := validate(opts); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(opts.OutputDir, 0750); err != nil {
		return nil, &media.ExtractionError{Source: mediaPath, Err: fmt.Errorf("create output directory: %w", err)}
	}

	audioPath := AudioPath(opts)
	start := time.Now()

	sig, err := p.extractor.Extract(ctx, mediaPath, audioPath)
	if err != nil {
		return nil, err
	}

	p.logger.Info("extraction finished",
		slog.String("audio_path", audioPath),
		slog.Duration("elapsed", time.Since(start)),
	)

	if err := ctx.Err(); err != nil {
		return &Result{AudioPath: audioPath}, fmt.Errorf("aborted before segmentation: %w", err)
	}

	return p.segment(ctx, sig, audioPath, opts)
}

// Resume segments an existing intermediate track without the original media.
func (p *Pipeline) Resume(ctx context.Context, audioPath string, opts Options) (*Result, error) {
	if err := validate(opts); err != nil {
		return nil, err
	}

	sig, err := audio.ReadWAV(audioPath)
	if err != nil {
		return nil, &audio.SegmentationError{ClipIndex: -1, Err: fmt.Errorf("load intermediate audio: %w", err)}
	}

	return p.segment(ctx, sig, audioPath, opts)
}

// validate rejects configuration errors before any artifact is touched.
func validate(opts Options) error {
	if err := opts.Params.Validate(); err != nil {
		return &audio.SegmentationError{ClipIndex: -1, Err: err}
	}
	if err := (audio.Output{Dir: opts.OutputDir, Prefix: opts.Prefix}).Validate(); err != nil {
		return &audio.SegmentationError{ClipIndex: -1, Err: err}
	}
	return nil
}

func (p *Pipeline) segment(ctx context.Context, sig *audio.Signal, audioPath string, opts Options) (*Result, error) {
	if opts.OnExtracted != nil {
		opts.OnExtracted(sig)
	}

	res := &Result{
		AudioPath:  audioPath,
		SampleRate: sig.SampleRate,
		Channels:   sig.Channels,
		Duration:   sig.Duration(),
	}

	segRes, err := p.segmenter.Segment(ctx, sig, opts.Params, audio.Output{
		Dir:    opts.OutputDir,
		Prefix: opts.Prefix,
		OnClip: opts.OnClip,
	})
	if segRes != nil {
		res.Windows = segRes.Windows
		res.Clips = segRes.Clips
	}
	if err != nil {
		return res, err
	}

	p.logger.Info("segmentation finished",
		slog.String("output_dir", opts.OutputDir),
		slog.String("prefix", opts.Prefix),
		slog.Int("clips", len(res.Clips)),
		slog.Int("silence_windows", len(res.Windows)),
	)

	return res, nil
}
