// Package fetch resolves media locators to local files, downloading remote
// videos with yt-dlp.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/maauso/silencesplit/internal/media"
)

// Static errors for fetching.
var (
	// ErrUnsupportedLocator is returned when a locator is neither an existing
	// local file nor an http(s) URL.
	ErrUnsupportedLocator = errors.New("unsupported media locator")
	// ErrNoOutput is returned when yt-dlp does not report a downloaded file.
	ErrNoOutput = errors.New("downloader reported no output file")
)

// DefaultMaxHeight is the preferred maximum video height in pixels.
const DefaultMaxHeight = 1080

// Fetcher turns a locator into a local, decodable media file.
type Fetcher interface {
	// Fetch returns the path of a local media file for locator.
	// Remote media is downloaded into dir. The local result reports whether
	// the returned path is the caller's own file rather than a download.
	Fetch(ctx context.Context, locator, dir string) (path string, local bool, err error)
}

// YtDlpFetcher implements Fetcher using the yt-dlp CLI.
type YtDlpFetcher struct {
	binPath   string
	maxHeight int
	runner    media.CommandRunner
	logger    *slog.Logger
}

// Option configures a YtDlpFetcher.
type Option func(*YtDlpFetcher)

// WithBinaryPath sets a custom yt-dlp executable path.
func WithBinaryPath(path string) Option {
	return func(f *YtDlpFetcher) {
		if path != "" {
			f.binPath = path
		}
	}
}

// WithMaxHeight sets the preferred maximum video height.
func WithMaxHeight(h int) Option {
	return func(f *YtDlpFetcher) {
		if h > 0 {
			f.maxHeight = h
		}
	}
}

// WithCommandRunner sets the runner used to invoke yt-dlp (for testing).
func WithCommandRunner(r media.CommandRunner) Option {
	return func(f *YtDlpFetcher) {
		f.runner = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *YtDlpFetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewYtDlpFetcher creates a new YtDlpFetcher.
// If no path is configured, it defaults to "yt-dlp" (found in PATH).
func NewYtDlpFetcher(opts ...Option) *YtDlpFetcher {
	f := &YtDlpFetcher{
		binPath:   "yt-dlp",
		maxHeight: DefaultMaxHeight,
		runner:    media.ExecRunner{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch implements Fetcher.
func (f *YtDlpFetcher) Fetch(ctx context.Context, locator, dir string) (string, bool, error) {
	if IsRemote(locator) {
		path, err := f.download(ctx, locator, dir)
		return path, false, err
	}

	info, err := os.Stat(locator)
	if err != nil || info.IsDir() {
		return "", false, fmt.Errorf("%w: %s", ErrUnsupportedLocator, locator)
	}
	return locator, true, nil
}

func (f *YtDlpFetcher) download(ctx context.Context, locator, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("create download directory: %w", err)
	}

	f.logger.Info("downloading media",
		slog.String("url", locator),
		slog.Int("max_height", f.maxHeight),
	)

	out, err := f.runner.Run(ctx, f.binPath, f.args(locator, dir)...)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", locator, err)
	}

	path := lastLine(string(out))
	if path == "" {
		return "", fmt.Errorf("download %s: %w", locator, ErrNoOutput)
	}

	f.logger.Info("download completed", slog.String("path", path))
	return path, nil
}

// args builds the yt-dlp invocation: best mp4 video up to maxHeight merged
// with m4a audio, falling back to progressively looser mp4 formats.
func (f *YtDlpFetcher) args(locator, dir string) []string {
	h := strconv.Itoa(f.maxHeight)
	format := fmt.Sprintf(
		"bestvideo[ext=mp4][height<=%[1]s]+bestaudio[ext=m4a]/best[ext=mp4][height<=%[1]s]/best[ext=mp4]/best", h)

	return []string{
		"--format", format,
		"--merge-output-format", "mp4",
		"--output", filepath.Join(dir, "%(title)s.%(ext)s"),
		"--restrict-filenames",
		"--no-playlist",
		"--no-progress",
		"--quiet",
		"--no-warnings",
		"--print", "after_move:filepath",
		locator,
	}
}

// IsRemote reports whether locator is an http(s) URL.
func IsRemote(locator string) bool {
	u, err := url.Parse(locator)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// Verify interface implementation at compile time.
var _ Fetcher = (*YtDlpFetcher)(nil)
