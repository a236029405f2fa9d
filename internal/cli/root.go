// Package cli implements the silencesplit command line.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/maauso/silencesplit/internal/audio"
	"github.com/maauso/silencesplit/internal/config"
)

// app carries state shared by the subcommands.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	// Flags shared by run and segment.
	prefix          string
	outDir          string
	minSilenceMs    int
	silenceThreshDB float64
	keepSilenceMs   int
	frameMs         int
	meter           string
	jsonOutput      bool
}

// NewRootCommand builds the silencesplit command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "silencesplit",
		Short: "Split the audio of a video into clips at silence",
		Long: `silencesplit extracts the audio track of a video, detects pauses and
writes each stretch of speech as its own WAV clip.

Artifacts:
  {out}/{prefix}_full.wav      the extracted track
  {out}/{prefix}_{index}.wav   one clip per voiced region, zero-based

Defaults for every option come from the environment (MIN_SILENCE_MS,
SILENCE_THRESH_DB, KEEP_SILENCE_MS, FRAME_MS, LEVEL_METER, OUTPUT_DIR).

Example:
  silencesplit run --source "https://www.youtube.com/watch?v=..." --prefix talk
  silencesplit segment --input clips/talk_full.wav --prefix talk --min-silence-ms 700`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = cfg.NewLogger()
			slog.SetDefault(a.logger)
			return nil
		},
	}

	root.AddCommand(newRunCommand(a), newSegmentCommand(a))
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

func (a *app) addSplitFlags(cmd *cobra.Command) {
	d := audio.DefaultParams()
	f := cmd.Flags()
	f.StringVar(&a.prefix, "prefix", "clip", "Name prefix for the artifacts")
	f.StringVar(&a.outDir, "out", "", "Output directory (default OUTPUT_DIR)")
	f.IntVar(&a.minSilenceMs, "min-silence-ms", d.MinSilenceMs, "Minimum pause length in ms that splits speech")
	f.Float64Var(&a.silenceThreshDB, "silence-thresh-db", d.SilenceThreshDB, "Level in dBFS at or below which audio is silent")
	f.IntVar(&a.keepSilenceMs, "keep-silence-ms", d.KeepSilenceMs, "Silence in ms kept around each clip")
	f.IntVar(&a.frameMs, "frame-ms", d.FrameMs, "Analysis frame length in ms")
	f.StringVar(&a.meter, "meter", "", "Loudness metric: rms or peak (default LEVEL_METER)")
	f.BoolVar(&a.jsonOutput, "json", false, "Print the result as JSON")
}

// params merges explicitly set flags over the configured defaults.
func (a *app) params(cmd *cobra.Command) audio.Params {
	p := a.cfg.SplitParams()
	f := cmd.Flags()
	if f.Changed("min-silence-ms") {
		p.MinSilenceMs = a.minSilenceMs
	}
	if f.Changed("silence-thresh-db") {
		p.SilenceThreshDB = a.silenceThreshDB
	}
	if f.Changed("keep-silence-ms") {
		p.KeepSilenceMs = a.keepSilenceMs
	}
	if f.Changed("frame-ms") {
		p.FrameMs = a.frameMs
	}
	return p
}

// pipelineConfig returns the configuration with the meter flag applied.
func (a *app) pipelineConfig() *config.Config {
	cfg := *a.cfg
	if a.meter != "" {
		cfg.LevelMeter = a.meter
	}
	return &cfg
}

func (a *app) output(def string) string {
	if a.outDir != "" {
		return a.outDir
	}
	return def
}
