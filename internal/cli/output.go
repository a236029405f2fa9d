package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/maauso/silencesplit/internal/pipeline"
)

type clipSummary struct {
	Index   int    `json:"index"`
	Path    string `json:"path"`
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
}

type resultSummary struct {
	AudioPath  string        `json:"audio_path"`
	SampleRate int           `json:"sample_rate"`
	DurationMs int64         `json:"duration_ms"`
	Silences   int           `json:"silences"`
	Clips      []clipSummary `json:"clips"`
}

func summarize(res *pipeline.Result) resultSummary {
	s := resultSummary{
		AudioPath:  res.AudioPath,
		SampleRate: res.SampleRate,
		DurationMs: res.Duration.Milliseconds(),
		Silences:   len(res.Windows),
		Clips:      make([]clipSummary, 0, len(res.Clips)),
	}
	for _, c := range res.Clips {
		s.Clips = append(s.Clips, clipSummary{
			Index:   c.Index,
			Path:    c.Path,
			StartMs: c.StartMs(res.SampleRate),
			EndMs:   c.EndMs(res.SampleRate),
		})
	}
	return s
}

func (a *app) printResult(w io.Writer, res *pipeline.Result) error {
	s := summarize(res)
	if a.jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tSTART_MS\tEND_MS\tPATH")
	for _, c := range s.Clips {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\n", c.Index, c.StartMs, c.EndMs, c.Path)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d clips, %d silences, %dms of audio in %s\n",
		len(s.Clips), s.Silences, s.DurationMs, s.AudioPath)
	return err
}
