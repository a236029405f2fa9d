package cli

import (
	"bytes"
	"encoding/json"
	"math"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/silencesplit/internal/audio"
	"github.com/maauso/silencesplit/internal/config"
)

const rate = 8000

// writeSpeech writes tone/silence alternations (ms) as a mono WAV.
func writeSpeech(t *testing.T, path string, parts ...int) {
	t.Helper()
	var samples []int
	for i, ms := range parts {
		for j := 0; j < ms*rate/1000; j++ {
			v := 0
			if i%2 == 0 {
				v = int(0.5 * 32767 * math.Sin(2*math.Pi*440*float64(j)/rate))
			}
			samples = append(samples, v)
		}
	}
	require.NoError(t, audio.WriteWAV(path, &audio.Signal{SampleRate: rate, Channels: 1, BitDepth: 16, Samples: samples}))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("TEMP_DIR", t.TempDir())

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSegmentCommand(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "talk_full.wav")
	writeSpeech(t, input, 1000, 600, 1000, 600, 1000)

	out, err := execute(t, "segment", "--input", input, "--prefix", "talk", "--json")
	require.NoError(t, err)

	var res resultSummary
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, rate, res.SampleRate)
	assert.Equal(t, 2, res.Silences)
	require.Len(t, res.Clips, 3)
	assert.Equal(t, filepath.Join(dir, "talk_0.wav"), res.Clips[0].Path)
	assert.Equal(t, int64(0), res.Clips[0].StartMs)
	assert.Equal(t, int64(1250), res.Clips[0].EndMs)

	clips, err := audio.ListClips(dir, "talk")
	require.NoError(t, err)
	assert.Len(t, clips, 3)
}

func TestSegmentCommand_FlagsOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.wav")
	writeSpeech(t, input, 1000, 600, 1000)
	out := filepath.Join(dir, "clips")

	t.Setenv("MIN_SILENCE_MS", "100")
	_, err := execute(t, "segment", "--input", input, "--prefix", "x", "--out", out, "--min-silence-ms", "800")
	require.NoError(t, err)

	clips, err := audio.ListClips(out, "x")
	require.NoError(t, err)
	assert.Len(t, clips, 1, "a 600ms pause does not split at 800ms")
}

func TestSegmentCommand_TextOutput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.wav")
	writeSpeech(t, input, 1000, 600, 1000)

	out, err := execute(t, "segment", "--input", input, "--prefix", "ep")
	require.NoError(t, err)
	assert.Contains(t, out, "INDEX")
	assert.Contains(t, out, filepath.Join(dir, "ep_1.wav"))
	assert.Contains(t, out, "2 clips, 1 silences")
}

func TestSegmentCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.wav")
	writeSpeech(t, input, 1000)

	_, err := execute(t, "segment", "--input", input, "--min-silence-ms", "0")
	assert.ErrorIs(t, err, audio.ErrInvalidParams)

	_, err = execute(t, "segment", "--input", input, "--meter", "lufs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "level meter")

	_, err = execute(t, "segment", "--input", filepath.Join(dir, "missing.wav"))
	var segErr *audio.SegmentationError
	require.ErrorAs(t, err, &segErr)
	assert.Equal(t, -1, segErr.ClipIndex)

	_, err = execute(t, "segment")
	assert.Error(t, err, "--input is required")
}

func TestRunCommand_RequiresSource(t *testing.T) {
	_, err := execute(t, "run")
	assert.Error(t, err)
}

func TestRunCommand_UnsupportedLocator(t *testing.T) {
	_, err := execute(t, "run", "--source", filepath.Join(t.TempDir(), "nope.mp4"), "--out", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported media locator")
}

func TestRunCommand_RealFFmpeg(t *testing.T) {
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not found in PATH, skipping test", bin)
		}
	}

	dir := t.TempDir()
	source := filepath.Join(dir, "source.wav")
	writeSpeech(t, source, 1000, 600, 1000)
	out := filepath.Join(dir, "out")

	_, err := execute(t, "run", "--source", source, "--prefix", "talk", "--out", out)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(out, "talk_full.wav"))
	clips, err := audio.ListClips(out, "talk")
	require.NoError(t, err)
	assert.Len(t, clips, 2)
}

func TestParamsMerge(t *testing.T) {
	a := &app{cfg: &config.Config{MinSilenceMs: 500, SilenceThreshDB: -45, KeepSilenceMs: 200, FrameMs: 20}}
	cmd := &cobra.Command{}
	a.addSplitFlags(cmd)

	assert.Equal(t, audio.Params{MinSilenceMs: 500, SilenceThreshDB: -45, KeepSilenceMs: 200, FrameMs: 20}, a.params(cmd))

	require.NoError(t, cmd.Flags().Set("keep-silence-ms", "0"))
	require.NoError(t, cmd.Flags().Set("silence-thresh-db", "-30"))
	assert.Equal(t, audio.Params{MinSilenceMs: 500, SilenceThreshDB: -30, KeepSilenceMs: 0, FrameMs: 20}, a.params(cmd))

	require.NoError(t, cmd.Flags().Set("meter", "peak"))
	assert.Equal(t, "peak", a.pipelineConfig().LevelMeter)
	assert.Empty(t, a.cfg.LevelMeter, "the loaded configuration is not modified")
}
