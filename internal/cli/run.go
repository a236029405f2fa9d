package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/maauso/silencesplit/internal/bootstrap"
	"github.com/maauso/silencesplit/internal/job/id"
	"github.com/maauso/silencesplit/internal/pipeline"
	"github.com/maauso/silencesplit/internal/storage"
)

func newRunCommand(a *app) *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch a video, extract its audio and split it at silence",
		Long: `Fetch the media at --source (a local file or an http(s) URL downloaded
with yt-dlp), extract its audio to {out}/{prefix}_full.wav and write one clip
per voiced region.

Example:
  silencesplit run --source talk.mp4 --prefix talk --out ./clips`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, source)
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Media file path or URL (required)")
	_ = cmd.MarkFlagRequired("source")
	a.addSplitFlags(cmd)
	return cmd
}

func (a *app) run(cmd *cobra.Command, source string) error {
	ctx := cmd.Context()
	cfg := a.pipelineConfig()

	p, err := bootstrap.NewPipeline(cfg, a.logger)
	if err != nil {
		return err
	}

	store, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return err
	}
	workDir, err := store.WorkDir(ctx, id.Generate())
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Cleanup(context.WithoutCancel(ctx), []string{workDir}); err != nil {
			a.logger.Warn("failed to remove work directory", slog.String("error", err.Error()))
		}
	}()

	mediaPath, _, err := bootstrap.NewFetcher(cfg, a.logger).Fetch(ctx, source, workDir)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", source, err)
	}

	res, err := p.Run(ctx, mediaPath, pipeline.Options{
		OutputDir: a.output(cfg.OutputDir),
		Prefix:    a.prefix,
		Params:    a.params(cmd),
	})
	if res != nil {
		if perr := a.printResult(cmd.OutOrStdout(), res); perr != nil {
			return perr
		}
	}
	return err
}
