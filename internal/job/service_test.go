package job

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/silencesplit/internal/audio"
	"github.com/maauso/silencesplit/internal/pipeline"
	"github.com/maauso/silencesplit/internal/storage"
)

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, locator, dir string) (string, bool, error) {
	args := m.Called(ctx, locator, dir)
	return args.String(0), args.Bool(1), args.Error(2)
}

// fakeSplitter reports a signal of frames at rate, then emits clips through
// the callbacks, stopping with err after the clips if set.
type fakeSplitter struct {
	rate   int
	frames int
	clips  []audio.Clip
	err    error
	block  chan struct{}
	opts   pipeline.Options
}

func (f *fakeSplitter) Run(ctx context.Context, mediaPath string, opts pipeline.Options) (*pipeline.Result, error) {
	f.opts = opts
	res := &pipeline.Result{AudioPath: pipeline.AudioPath(opts), SampleRate: f.rate}

	if opts.OnExtracted != nil {
		opts.OnExtracted(&audio.Signal{SampleRate: f.rate, Channels: 1, BitDepth: 16, Samples: make([]int, f.frames)})
	}
	for _, c := range f.clips {
		if f.block != nil {
			<-f.block
		}
		if err := ctx.Err(); err != nil {
			return res, &audio.SegmentationError{ClipIndex: c.Index, Written: len(res.Clips), Err: err}
		}
		c.Name = audio.ClipName(opts.Prefix, c.Index)
		c.Path = filepath.Join(opts.OutputDir, c.Name+audio.ClipExt)
		res.Clips = append(res.Clips, c)
		if opts.OnClip != nil {
			opts.OnClip(c)
		}
	}
	return res, f.err
}

type mockPublisher struct {
	*storage.LocalStorage
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, key, path string) (string, error) {
	args := m.Called(ctx, key, path)
	return args.String(0), args.Error(1)
}

func twoClips() []audio.Clip {
	return []audio.Clip{
		{Index: 0, Span: audio.Span{Start: 0, End: 8000}},
		{Index: 1, Span: audio.Span{Start: 12000, End: 16000}},
	}
}

type fixture struct {
	svc      *Service
	repo     *MemoryRepository
	fetcher  *mockFetcher
	splitter *fakeSplitter
	store    *mockPublisher
	out      string
}

func newFixture(t *testing.T, s3 bool) *fixture {
	t.Helper()
	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	f := &fixture{
		repo:     NewMemoryRepository(),
		fetcher:  &mockFetcher{},
		splitter: &fakeSplitter{rate: 8000, frames: 16000, clips: twoClips()},
		store:    &mockPublisher{LocalStorage: local},
		out:      t.TempDir(),
	}
	f.svc = NewService(f.repo, f.fetcher, f.splitter, f.store, ServiceConfig{
		OutputRoot: f.out,
		Defaults:   audio.DefaultParams(),
		S3Enabled:  s3,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return f
}

func TestService_CreateJob(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	job, err := f.svc.CreateJob(ctx, SplitInput{Source: "talk.mp4"})
	require.NoError(t, err)
	assert.Equal(t, StatusInQueue, job.Status)
	assert.Equal(t, DefaultPrefix, job.Prefix)
	assert.Equal(t, audio.DefaultParams(), job.Params)

	saved, err := f.svc.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "talk.mp4", saved.Source)

	custom := audio.Params{MinSilenceMs: 700, SilenceThreshDB: -50, KeepSilenceMs: 100, FrameMs: 5}
	job, err = f.svc.CreateJob(ctx, SplitInput{Source: "talk.mp4", Prefix: "ep1", Params: &custom})
	require.NoError(t, err)
	assert.Equal(t, custom, job.Params)
	assert.Equal(t, "ep1", job.Prefix)

	jobs, err := f.svc.ListJobs(ctx)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}

func TestService_CreateJob_Invalid(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.CreateJob(ctx, SplitInput{})
	assert.ErrorIs(t, err, ErrSourceRequired)

	_, err = f.svc.CreateJob(ctx, SplitInput{Source: "x.mp4", PushToS3: true})
	assert.ErrorIs(t, err, ErrS3Disabled)

	_, err = f.svc.CreateJob(ctx, SplitInput{Source: "x.mp4", Params: &audio.Params{FrameMs: 10}})
	assert.ErrorIs(t, err, audio.ErrInvalidParams)

	_, err = f.svc.CreateJob(ctx, SplitInput{Source: "x.mp4", Prefix: "a/b"})
	assert.ErrorIs(t, err, audio.ErrInvalidParams)

	jobs, _ := f.svc.ListJobs(ctx)
	assert.Empty(t, jobs)
}

func TestService_Process_Success(t *testing.T) {
	f := newFixture(t, false)
	f.fetcher.On("Fetch", mock.Anything, "talk.mp4", mock.Anything).Return("talk.mp4", true, nil)

	job, err := f.svc.Process(context.Background(), SplitInput{Source: "talk.mp4", Prefix: "talk"})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, StageDone, job.Stage)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, -1, job.FailedClip)
	assert.Equal(t, filepath.Join(f.out, job.ID), job.OutputDir)
	assert.Equal(t, filepath.Join(f.out, job.ID, "talk_full.wav"), job.AudioPath)
	assert.Equal(t, 8000, job.SampleRate)
	assert.False(t, job.StartedAt.IsZero())
	assert.False(t, job.CompletedAt.IsZero())

	require.Len(t, job.Clips, 2)
	assert.Equal(t, ClipRecord{
		Index: 1, Name: "talk_1", Path: filepath.Join(f.out, job.ID, "talk_1.wav"), StartMs: 1500, EndMs: 2000,
	}, job.Clips[1])

	assert.Equal(t, filepath.Join(f.out, job.ID), f.splitter.opts.OutputDir)
	f.store.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	f.fetcher.AssertExpectations(t)

	assert.NoDirExists(t, filepath.Join(f.store.TempDir(), job.ID), "work directory is removed")
}

func TestService_Process_PublishesClips(t *testing.T) {
	f := newFixture(t, true)
	f.fetcher.On("Fetch", mock.Anything, "https://example.com/v", mock.Anything).
		Return("/work/video.mp4", false, nil)
	f.store.On("Publish", mock.Anything, mock.Anything, mock.Anything).
		Return("https://bucket/clip.wav", nil).Twice()

	job, err := f.svc.Process(context.Background(), SplitInput{
		Source: "https://example.com/v", Prefix: "talk", PushToS3: true,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, job.Status)

	f.store.AssertCalled(t, "Publish", mock.Anything, job.ID+"/talk_0.wav", filepath.Join(f.out, job.ID, "talk_0.wav"))
	f.store.AssertCalled(t, "Publish", mock.Anything, job.ID+"/talk_1.wav", filepath.Join(f.out, job.ID, "talk_1.wav"))
	for _, c := range job.Clips {
		assert.Equal(t, "https://bucket/clip.wav", c.URL)
	}
}

func TestService_Process_PublishFailure(t *testing.T) {
	f := newFixture(t, true)
	f.fetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return("v.mp4", true, nil)
	f.store.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("access denied"))

	job, err := f.svc.Process(context.Background(), SplitInput{Source: "v.mp4", PushToS3: true})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Contains(t, job.Error, "publish clip 0")
	assert.Equal(t, -1, job.FailedClip)
	assert.Len(t, job.Clips, 2, "written clips stay recorded")
}

func TestService_Process_FetchFailure(t *testing.T) {
	f := newFixture(t, false)
	f.fetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything).
		Return("", false, errors.New("unsupported media locator"))

	job, err := f.svc.Process(context.Background(), SplitInput{Source: "ftp://x"})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, StageFetching, job.Stage)
	assert.Contains(t, job.Error, "fetch ftp://x")
	assert.Empty(t, job.Clips)
}

func TestService_Process_PartialSegmentation(t *testing.T) {
	f := newFixture(t, false)
	f.fetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return("v.mp4", true, nil)
	f.splitter.clips = twoClips()[:1]
	f.splitter.err = &audio.SegmentationError{ClipIndex: 1, Written: 1, Err: errors.New("disk full")}

	job, err := f.svc.Process(context.Background(), SplitInput{Source: "v.mp4"})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, 1, job.FailedClip)
	assert.Contains(t, job.Error, "disk full")
	require.Len(t, job.Clips, 1)
	assert.Equal(t, 0, job.Clips[0].Index)
}

func TestService_CancelJob(t *testing.T) {
	t.Run("queued job", func(t *testing.T) {
		f := newFixture(t, false)
		ctx := context.Background()

		job, err := f.svc.CreateJob(ctx, SplitInput{Source: "v.mp4"})
		require.NoError(t, err)
		require.NoError(t, f.svc.CancelJob(ctx, job.ID))

		saved, _ := f.svc.GetJob(ctx, job.ID)
		assert.Equal(t, StatusCancelled, saved.Status)

		err = f.svc.ProcessExistingJob(ctx, job.ID)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.ErrorIs(t, f.svc.CancelJob(ctx, job.ID), ErrInvalidTransition)
	})

	t.Run("running job keeps written clips", func(t *testing.T) {
		f := newFixture(t, false)
		ctx := context.Background()
		f.fetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return("v.mp4", true, nil)
		f.splitter.block = make(chan struct{})

		job, err := f.svc.CreateJob(ctx, SplitInput{Source: "v.mp4"})
		require.NoError(t, err)

		done := make(chan error, 1)
		go func() { done <- f.svc.ProcessExistingJob(ctx, job.ID) }()

		f.splitter.block <- struct{}{}
		require.Eventually(t, func() bool {
			saved, _ := f.svc.GetJob(ctx, job.ID)
			return len(saved.Clips) == 1
		}, timeout, tick)

		require.NoError(t, f.svc.CancelJob(ctx, job.ID))
		f.splitter.block <- struct{}{}
		require.NoError(t, <-done)

		saved, _ := f.svc.GetJob(ctx, job.ID)
		assert.Equal(t, StatusCancelled, saved.Status)
		assert.Len(t, saved.Clips, 1)
	})

	t.Run("cancel racing with start always wins", func(t *testing.T) {
		for i := 0; i < 50; i++ {
			f := newFixture(t, false)
			ctx := context.Background()
			f.fetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return("v.mp4", true, nil)
			f.splitter.block = make(chan struct{})

			job, err := f.svc.CreateJob(ctx, SplitInput{Source: "v.mp4"})
			require.NoError(t, err)

			done := make(chan error, 1)
			go func() { done <- f.svc.ProcessExistingJob(ctx, job.ID) }()

			require.NoError(t, f.svc.CancelJob(ctx, job.ID))
			close(f.splitter.block)
			if err := <-done; err != nil {
				assert.ErrorIs(t, err, ErrInvalidTransition)
			}

			saved, err := f.svc.GetJob(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, StatusCancelled, saved.Status)
		}
	})

	t.Run("unknown job", func(t *testing.T) {
		f := newFixture(t, false)
		assert.ErrorIs(t, f.svc.CancelJob(context.Background(), "job-1"), ErrJobNotFound)
	})
}
