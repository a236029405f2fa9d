package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/maauso/silencesplit/internal/bootstrap"
	"github.com/maauso/silencesplit/internal/pipeline"
)

func newSegmentCommand(a *app) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "segment",
		Short: "Split an existing WAV track at silence",
		Long: `Segment a WAV track produced by a previous run, without fetching or
extracting again. Clips are written next to the input unless --out is set.

Example:
  silencesplit segment --input clips/talk_full.wav --prefix talk --keep-silence-ms 100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.segment(cmd, input)
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "Path to a PCM WAV file (required)")
	_ = cmd.MarkFlagRequired("input")
	a.addSplitFlags(cmd)
	return cmd
}

func (a *app) segment(cmd *cobra.Command, input string) error {
	p, err := bootstrap.NewPipeline(a.pipelineConfig(), a.logger)
	if err != nil {
		return err
	}

	res, err := p.Resume(cmd.Context(), input, pipeline.Options{
		OutputDir: a.output(filepath.Dir(input)),
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
