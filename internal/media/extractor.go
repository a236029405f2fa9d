// Package media extracts a linear PCM audio track from media files.
// It delegates demuxing and decoding to ffprobe and ffmpeg.
package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/maauso/silencesplit/internal/audio"
)

// Static errors for extraction.
var (
	// ErrNoAudioTrack is returned when the media source has no audio stream.
	ErrNoAudioTrack = errors.New("media source has no audio track")
	// ErrSourceNotFound is returned when the media source does not exist.
	ErrSourceNotFound = errors.New("media source not found")
)

// ExtractionError reports a failed extraction. No usable output file is left
// behind when it is returned.
type ExtractionError struct {
	Source string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction: %s: %v", e.Source, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Extractor produces the audio signal of a media source and persists it as a
// WAV file at dst.
type Extractor interface {
	// Extract decodes the first audio track of source at its native sample
	// rate and channel layout. On success dst holds the complete track.
	Extract(ctx context.Context, source, dst string) (*audio.Signal, error)
}

// AudioStream describes an audio stream reported by ffprobe.
type AudioStream struct {
	Index      int
	Codec      string
	SampleRate int
	Channels   int
}

// FFmpegExtractor implements Extractor using the ffprobe and ffmpeg CLIs.
type FFmpegExtractor struct {
	ffmpegPath  string
	ffprobePath string
	runner      CommandRunner
	logger      *slog.Logger
}

// ExtractorOption configures an FFmpegExtractor.
type ExtractorOption func(*FFmpegExtractor)

// WithFFmpegPath sets a custom ffmpeg executable path.
func WithFFmpegPath(path string) ExtractorOption {
	return func(e *FFmpegExtractor) {
		if path != "" {
			e.ffmpegPath = path
		}
	}
}

// WithFFprobePath sets a custom ffprobe executable path.
func WithFFprobePath(path string) ExtractorOption {
	return func(e *FFmpegExtractor) {
		if path != "" {
			e.ffprobePath = path
		}
	}
}

// WithCommandRunner sets the runner used for external commands (for testing).
func WithCommandRunner(r CommandRunner) ExtractorOption {
	return func(e *FFmpegExtractor) {
		e.runner = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ExtractorOption {
	return func(e *FFmpegExtractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewFFmpegExtractor creates a new FFmpegExtractor.
// Binaries default to "ffmpeg" and "ffprobe" found in PATH.
func NewFFmpegExtractor(opts ...ExtractorOption) *FFmpegExtractor {
	e := &FFmpegExtractor{
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
		runner:      ExecRunner{},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract implements Extractor.
//
// The track is decoded to 16-bit PCM into dst+".part", read back to build the
// signal and only then renamed to dst. Any failure removes both files.
func (e *FFmpegExtractor) Extract(ctx context.Context, source, dst string) (*audio.Signal, error) {
	fail := func(err error) (*audio.Signal, error) {
		return nil, &ExtractionError{Source: source, Err: err}
	}

	if _, err := os.Stat(source); err != nil {
		if os.IsNotExist(err) {
			return fail(fmt.Errorf("%w: %s", ErrSourceNotFound, source))
		}
		return fail(fmt.Errorf("stat source: %w", err))
	}

	streams, err := e.Probe(ctx, source)
	if err != nil {
		return fail(err)
	}
	if len(streams) == 0 {
		return fail(ErrNoAudioTrack)
	}
	track := streams[0]

	// A previous run's output must not pass for this run's result.
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return fail(fmt.Errorf("remove stale output: %w", err))
	}

	part := dst + ".part"
	defer func() { _ = os.Remove(part) }()

	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-map", "0:a:0", // First audio stream
		"-vn",
		"-c:a", "pcm_s16le", // Lossless 16-bit PCM, native rate and layout
		"-f", "wav",
		part,
	}
	if _, err := e.runner.Run(ctx, e.ffmpegPath, args...); err != nil {
		return fail(fmt.Errorf("decode audio: %w", err))
	}

	sig, err := audio.ReadWAV(part)
	if err != nil {
		return fail(fmt.Errorf("read decoded audio: %w", err))
	}

	if err := os.Rename(part, dst); err != nil {
		return fail(fmt.Errorf("persist audio: %w", err))
	}

	e.logger.Info("extracted audio",
		slog.String("source", source),
		slog.String("path", dst),
		slog.String("codec", track.Codec),
		slog.Int("sample_rate", sig.SampleRate),
		slog.Int("channels", sig.Channels),
		slog.Duration("duration", sig.Duration()),
	)

	return sig, nil
}

// ffprobeOutput is the subset of ffprobe's JSON output used here.
type ffprobeOutput struct {
	Streams []struct {
		Index      int    `json:"index"`
		CodecName  string `json:"codec_name"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
}

// Probe lists the audio streams of a media file.
func (e *FFmpegExtractor) Probe(ctx context.Context, source string) ([]AudioStream, error) {
	out, err := e.runner.Run(ctx, e.ffprobePath,
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "stream=index,codec_name,sample_rate,channels",
		"-of", "json",
		source,
	)
	if err != nil {
		return nil, fmt.Errorf("probe media: %w", err)
	}

	return parseProbeOutput(out)
}

func parseProbeOutput(out []byte) ([]AudioStream, error) {
	var parsed ffprobeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	streams := make([]AudioStream, 0, len(parsed.Streams))
	for _, s := range parsed.Streams {
		var rate int
		if s.SampleRate != "" {
			var err error
			if rate, err = strconv.Atoi(s.SampleRate); err != nil {
				return nil, fmt.Errorf("parse sample rate of stream %d: %w", s.Index, err)
			}
		}
		streams = append(streams, AudioStream{
			Index:      s.Index,
			Codec:      s.CodecName,
			SampleRate: rate,
			Channels:   s.Channels,
		})
	}
	return streams, nil
}

// Verify interface implementation at compile time.
var _ Extractor = (*FFmpegExtractor)(nil)
