package job

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/silencesplit/internal/audio"
)

const (
	timeout = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func TestNew(t *testing.T) {
	job := New()

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, StatusInQueue, job.Status)
	assert.Equal(t, StageQueued, job.Stage)
	assert.Equal(t, -1, job.FailedClip)
	assert.Equal(t, audio.DefaultParams(), job.Params)
	assert.NotNil(t, job.Clips)
	assert.False(t, job.CreatedAt.IsZero())
	assert.Equal(t, "test-job-123", NewWithID("test-job-123").ID)
}

func TestJob_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		wantErr bool
	}{
		{"IN_QUEUE to RUNNING", StatusInQueue, StatusRunning, false},
		{"IN_QUEUE to CANCELLED", StatusInQueue, StatusCancelled, false},
		{"RUNNING to COMPLETED", StatusRunning, StatusCompleted, false},
		{"RUNNING to FAILED", StatusRunning, StatusFailed, false},
		{"RUNNING to CANCELLED", StatusRunning, StatusCancelled, false},
		{"IN_QUEUE to COMPLETED", StatusInQueue, StatusCompleted, true},
		{"IN_QUEUE to FAILED", StatusInQueue, StatusFailed, true},
		{"COMPLETED to RUNNING", StatusCompleted, StatusRunning, true},
		{"FAILED to RUNNING", StatusFailed, StatusRunning, true},
		{"CANCELLED to RUNNING", StatusCancelled, StatusRunning, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewWithID("j")
			job.Status = tt.from

			err := job.TransitionTo(tt.to)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, tt.from, job.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, job.Status)
		})
	}
}

func TestJob_Lifecycle(t *testing.T) {
	job := New()

	require.NoError(t, job.Start())
	assert.False(t, job.StartedAt.IsZero())
	assert.False(t, job.IsTerminal())

	require.NoError(t, job.Complete())
	assert.Equal(t, StageDone, job.Stage)
	assert.Equal(t, 100, job.Progress)
	assert.True(t, job.IsTerminal())
	assert.False(t, job.CompletedAt.IsZero())
}

func TestJob_FailAt(t *testing.T) {
	job := New()
	require.NoError(t, job.Start())

	require.NoError(t, job.FailAt("disk full", 3))
	assert.Equal(t, StatusFailed, job.GetStatus())
	assert.Equal(t, "disk full", job.Error)
	assert.Equal(t, 3, job.FailedClip)

	assert.ErrorIs(t, job.Fail("again"), ErrInvalidTransition)
	assert.Equal(t, "disk full", job.Error)
}

func TestJob_Progress(t *testing.T) {
	job := New()

	job.SetStage(StageExtracting, 30)
	assert.Equal(t, 30, job.Progress)
	assert.Equal(t, StageExtracting, job.Stage)

	job.UpdateProgress(20)
	assert.Equal(t, 30, job.Progress, "progress never goes back")

	job.UpdateProgress(150)
	assert.Equal(t, 100, job.Progress)
}

func TestJob_Clips(t *testing.T) {
	job := New()
	job.SetAudio("/out/talk_full.wav", 8000)

	job.AddClip(audio.Clip{Index: 0, Span: audio.Span{Start: 0, End: 4000}, Name: "talk_0", Path: "/out/talk_0.wav"})
	job.AddClip(audio.Clip{Index: 1, Span: audio.Span{Start: 6000, End: 12000}, Name: "talk_1", Path: "/out/talk_1.wav"})
	job.SetClipURL(1, "https://bucket/talk_1.wav")
	job.SetClipURL(9, "ignored")

	clips := job.ClipsSnapshot()
	require.Len(t, clips, 2)
	assert.Equal(t, ClipRecord{Index: 0, Name: "talk_0", Path: "/out/talk_0.wav", StartMs: 0, EndMs: 500}, clips[0])
	assert.Equal(t, int64(750), clips[1].StartMs)
	assert.Equal(t, int64(1500), clips[1].EndMs)
	assert.Equal(t, "https://bucket/talk_1.wav", clips[1].URL)

	clips[0].Name = "mutated"
	assert.Equal(t, "talk_0", job.ClipsSnapshot()[0].Name)
}

func TestJob_Clone(t *testing.T) {
	job := New()
	job.Source = "talk.mp4"
	job.SetAudio("/out/a.wav", 8000)
	job.AddClip(audio.Clip{Index: 0, Name: "a_0"})

	clone := job.Clone()
	assert.Equal(t, job.ID, clone.ID)
	assert.Equal(t, job.Source, clone.Source)
	assert.Equal(t, job.Clips, clone.Clips)

	clone.Clips[0].Name = "changed"
	assert.Equal(t, "a_0", job.Clips[0].Name)
}

func TestJob_ConcurrentAccess(t *testing.T) {
	job := New()
	job.SetAudio("/out/a.wav", 8000)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			job.AddClip(audio.Clip{Index: i})
			job.UpdateProgress(i)
		}(i)
		go func() {
			defer wg.Done()
			_ = job.Clone()
			_ = job.GetStatus()
		}()
	}
	wg.Wait()

	assert.Len(t, job.ClipsSnapshot(), 50)
	assert.Equal(t, 49, job.Progress)
}
