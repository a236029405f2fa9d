package audio

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ClipExt is the file extension of clip artifacts.
const ClipExt = ".wav"

// SegmentationError reports a failed segmentation. Clips written before the
// failure stay on disk; ClipIndex identifies the clip that failed and no later
// clip was attempted.
type SegmentationError struct {
	// ClipIndex is the index of the failing clip, or -1 when the failure
	// happened before any clip was attempted.
	ClipIndex int
	// Written is the number of clips successfully written.
	Written int
	Err     error
}

func (e *SegmentationError) Error() string {
	if e.ClipIndex < 0 {
		return fmt.Sprintf("segmentation: %v", e.Err)
	}
	return fmt.Sprintf("segmentation: clip %d failed (%d written): %v", e.ClipIndex, e.Written, e.Err)
}

func (e *SegmentationError) Unwrap() error {
	return e.Err
}

// ClipWriter persists the frames of span as an independent audio artifact at path.
type ClipWriter interface {
	WriteClip(ctx context.Context, path string, sig *Signal, span Span) error
}

// WAVClipWriter writes clips as PCM WAV files using the signal's format.
// Files are written to a temporary name and renamed, so an artifact is
// either complete or absent.
type WAVClipWriter struct{}

// WriteClip implements ClipWriter.
func (WAVClipWriter) WriteClip(_ context.Context, path string, sig *Signal, span Span) error {
	return writeWAVSpan(path, sig, span)
}

// Output describes where and how clips are written.
type Output struct {
	// Dir is the directory clip artifacts are written to. It is created if missing.
	Dir string
	// Prefix names clips as {Prefix}_{index}. It must not contain path separators.
	Prefix string
	// OnClip, if set, is called after each clip is written.
	OnClip func(Clip)
}

// ClipName returns the output identifier for the clip at index.
func ClipName(prefix string, index int) string {
	return prefix + "_" + strconv.Itoa(index)
}

// Validate checks that the output directory and prefix are usable.
func (o Output) Validate() error {
	if o.Dir == "" {
		return fmt.Errorf("%w: output directory is required", ErrInvalidParams)
	}
	if o.Prefix == "" {
		return fmt.Errorf("%w: file prefix is required", ErrInvalidParams)
	}
	if strings.ContainsAny(o.Prefix, `/\`) || o.Prefix == "." || o.Prefix == ".." {
		return fmt.Errorf("%w: file prefix %q must be a plain name", ErrInvalidParams, o.Prefix)
	}
	return nil
}

// Result is the outcome of a segmentation.
type Result struct {
	// Windows are the detected silence windows.
	Windows []SilenceWindow
	// Clips are the clips written, in index order.
	Clips []Clip
}

// Segmenter cuts signals into clips at silence and writes each clip.
type Segmenter struct {
	meter  LevelMeter
	writer ClipWriter
	logger *slog.Logger
}

// Option configures a Segmenter.
type Option func(*Segmenter)

// WithLevelMeter sets the loudness metric used for silence detection.
func WithLevelMeter(m LevelMeter) Option {
	return func(s *Segmenter) {
		if m != nil {
			s.meter = m
		}
	}
}

// WithClipWriter sets how clip artifacts are persisted.
func WithClipWriter(w ClipWriter) Option {
	return func(s *Segmenter) {
		if w != nil {
			s.writer = w
		}
	}
}

// WithLogger sets the logger used for per-clip progress notices.
func WithLogger(l *slog.Logger) Option {
	return func(s *Segmenter) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSegmenter creates a Segmenter using RMS levels and WAV clip files by default.
func NewSegmenter(opts ...Option) *Segmenter {
	s := &Segmenter{
		meter:  RMSMeter{},
		writer: WAVClipWriter{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Segment detects silence in sig, plans padded clips and writes them in
// temporal order to out.Dir as {prefix}_{index}.wav.
//
// Writing stops at the first failure. The returned Result then holds the clips
// already written and the error is a *SegmentationError carrying the failing
// index. Invalid parameters fail before anything is written.
func (s *Segmenter) Segment(ctx context.Context, sig *Signal, p Params, out Output) (*Result, error) {
	if err := out.Validate(); err != nil {
		return nil, &SegmentationError{ClipIndex: -1, Err: err}
	}

	windows, planned, err := Boundaries(sig, p, s.meter)
	if err != nil {
		return nil, &SegmentationError{ClipIndex: -1, Err: err}
	}

	s.logger.Debug("silence detected",
		slog.Int("windows", len(windows)),
		slog.Int("clips", len(planned)),
		slog.Duration("duration", sig.Duration()),
	)

	result := &Result{
		Windows: windows,
		Clips:   make([]Clip, 0, len(planned)),
	}
	if err := s.removeStale(out); err != nil {
		return result, &SegmentationError{ClipIndex: -1, Err: err}
	}
	if len(planned) == 0 {
		return result, nil
	}

	if err := os.MkdirAll(out.Dir, 0750); err != nil {
		return result, &SegmentationError{ClipIndex: -1, Err: fmt.Errorf("create output directory: %w", err)}
	}

	for _, clip := range planned {
		if err := ctx.Err(); err != nil {
			return result, &SegmentationError{ClipIndex: clip.Index, Written: len(result.Clips), Err: err}
		}

		clip.Name = ClipName(out.Prefix, clip.Index)
		path := filepath.Join(out.Dir, clip.Name+ClipExt)

		if err := s.writer.WriteClip(ctx, path, sig, clip.Span); err != nil {
			s.logger.Error("failed to export clip",
				slog.Int("index", clip.Index),
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			return result, &SegmentationError{
				ClipIndex: clip.Index,
				Written:   len(result.Clips),
				Err:       fmt.Errorf("write %s: %w", path, err),
			}
		}

		clip.Path = path
		result.Clips = append(result.Clips, clip)

		s.logger.Info("exported clip",
			slog.String("path", path),
			slog.Int("index", clip.Index),
			slog.Duration("start", sig.Offset(clip.Start)),
			slog.Duration("end", sig.Offset(clip.End)),
		)
		if out.OnClip != nil {
			out.OnClip(clip)
		}
	}

	return result, nil
}

// removeStale deletes clips left in out.Dir by an earlier pass with the same prefix.
func (s *Segmenter) removeStale(out Output) error {
	stale, err := ListClips(out.Dir, out.Prefix)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("list existing clips: %w", err)
	}
	for _, path := range stale {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove stale clip: %w", err)
		}
	}
	if len(stale) > 0 {
		s.logger.Debug("removed stale clips", slog.Int("count", len(stale)), slog.String("dir", out.Dir))
	}
	return nil
}

// ListClips lists the clip files for prefix in dir, ordered by index.
func ListClips(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	type indexed struct {
		index int
		path  string
	}
	var found []indexed
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix+"_") || !strings.HasSuffix(name, ClipExt) {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, prefix+"_"), ClipExt))
		if err != nil || idx < 0 {
			continue
		}
		found = append(found, indexed{index: idx, path: filepath.Join(dir, name)})
	}

	sort.Slice(found, func(i, j int) bool { return found[i].index < found[j].index })

	clips := make([]string, len(found))
	for i, f := range found {
		clips[i] = f.path
	}
	return clips, nil
}

// Verify interface implementation at compile time.
var _ ClipWriter = WAVClipWriter{}
