package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/maauso/silencesplit/internal/audio"
	"github.com/maauso/silencesplit/internal/fetch"
	"github.com/maauso/silencesplit/internal/pipeline"
	"github.com/maauso/silencesplit/internal/storage"
)

// Static errors for the job service.
var (
	// ErrS3Disabled is returned when a job asks for publishing but no bucket is configured.
	ErrS3Disabled = errors.New("push_to_s3 requested but S3 is not configured")
	// ErrSourceRequired is returned when a job has no media locator.
	ErrSourceRequired = errors.New("source is required")
)

// Splitter runs extraction and segmentation for one media file.
type Splitter interface {
	Run(ctx context.Context, mediaPath string, opts pipeline.Options) (*pipeline.Result, error)
}

// SplitInput contains the input parameters for a split job.
type SplitInput struct {
	// Source is a local media path or an http(s) URL.
	Source string
	// Prefix names the clips. Defaults to "clip".
	Prefix string
	// Params overrides the service defaults when set.
	Params *audio.Params
	// PushToS3 uploads every clip to S3 after segmentation.
	PushToS3 bool
}

// DefaultPrefix is used when a job does not name its clips.
const DefaultPrefix = "clip"

// Progress checkpoints per stage.
const (
	progressFetched   = 10
	progressExtracted = 30
	progressSegmented = 90
)

// ServiceConfig holds the service settings.
type ServiceConfig struct {
	// OutputRoot receives one directory of clips per job.
	OutputRoot string
	// Defaults are the segmentation parameters for jobs without overrides.
	Defaults audio.Params
	// S3Enabled reports whether jobs may publish clips.
	S3Enabled bool
}

// Service creates and runs split jobs.
//
// A job is processed in stages: the source is fetched into a per-job work
// directory, the pipeline writes the intermediate track and the clips into
// OutputRoot/{jobID}, clips are optionally published as {jobID}/{name}.wav
// and downloaded media is removed.
type Service struct {
	repo     Repository
	fetcher  fetch.Fetcher
	splitter Splitter
	store    storage.Storage
	cfg      ServiceConfig
	logger   *slog.Logger

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// NewService creates a new Service.
func NewService(
	repo Repository,
	fetcher fetch.Fetcher,
	splitter Splitter,
	store storage.Storage,
	cfg ServiceConfig,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		fetcher:  fetcher,
		splitter: splitter,
		store:    store,
		cfg:      cfg,
		logger:   logger,
		running:  make(map[string]context.CancelFunc),
	}
}

// CreateJob validates input and persists a new IN_QUEUE job.
func (s *Service) CreateJob(ctx context.Context, input SplitInput) (*Job, error) {
	if input.Source == "" {
		return nil, ErrSourceRequired
	}
	if input.PushToS3 && !s.cfg.S3Enabled {
		return nil, ErrS3Disabled
	}

	params := s.cfg.Defaults
	if input.Params != nil {
		params = *input.Params
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	prefix := input.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if err := (audio.Output{Dir: s.cfg.OutputRoot, Prefix: prefix}).Validate(); err != nil {
		return nil, err
	}

	job := New()
	job.Source = input.Source
	job.Prefix = prefix
	job.Params = params
	job.PushToS3 = input.PushToS3

	s.logger.Info("creating new job",
		slog.String("job_id", job.ID),
		slog.String("source", input.Source),
		slog.String("prefix", prefix),
		slog.Bool("push_to_s3", input.PushToS3),
	)

	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	return job, nil
}

// GetJob retrieves a job by ID.
func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// ListJobs returns all jobs, oldest first.
func (s *Service) ListJobs(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// Process creates a job and runs it to completion.
func (s *Service) Process(ctx context.Context, input SplitInput) (*Job, error) {
	job, err := s.CreateJob(ctx, input)
	if err != nil {
		return nil, err
	}
	if err := s.ProcessExistingJob(ctx, job.ID); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, job.ID)
}

// CancelJob cancels a queued or running job. A running job stops before
// its next clip; clips already written are kept.
func (s *Service) CancelJob(ctx context.Context, id string) error {
	// Held until the save so a worker cannot start the job in between.
	s.mu.Lock()
	defer s.mu.Unlock()

	if cancel, running := s.running[id]; running {
		s.logger.Info("cancelling running job", slog.String("job_id", id))
		cancel()
		return nil
	}

	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := job.Cancel(); err != nil {
		return err
	}
	return s.repo.Save(ctx, job)
}

// ProcessExistingJob runs a job previously created with CreateJob. Processing
// failures are recorded on the job; the returned error only reports jobs that
// could not be loaded, started or saved.
func (s *Service) ProcessExistingJob(ctx context.Context, id string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	job, err := s.start(ctx, id, cancel)
	if err != nil {
		return err
	}
	defer func() {
		s.mu.Lock()
		delete(s.running, id)
		s.mu.Unlock()
	}()

	// Job state must be persisted even after ctx is cancelled.
	saveCtx := context.WithoutCancel(ctx)

	logger := s.logger.With(slog.String("job_id", id))
	logger.Info("job started", slog.String("source", job.Source))

	runErr := s.run(ctx, job, logger)

	switch {
	case runErr == nil:
		if err := job.Complete(); err != nil {
			return err
		}
		logger.Info("job completed", slog.Int("clips", len(job.ClipsSnapshot())))
	case errors.Is(runErr, context.Canceled):
		if err := job.Cancel(); err != nil {
			return err
		}
		logger.Warn("job cancelled", slog.Int("clips", len(job.ClipsSnapshot())))
	default:
		clipIndex := -1
		var segErr *audio.SegmentationError
		if errors.As(runErr, &segErr) {
			clipIndex = segErr.ClipIndex
		}
		if err := job.FailAt(runErr.Error(), clipIndex); err != nil {
			return err
		}
		logger.Error("job failed",
			slog.String("error", runErr.Error()),
			slog.Int("failed_clip", clipIndex),
		)
	}

	return s.repo.Save(saveCtx, job)
}

// start moves a queued job to RUNNING and registers its cancel func under the
// same lock CancelJob takes.
func (s *Service) start(ctx context.Context, id string, cancel context.CancelFunc) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := job.Start(); err != nil {
		return nil, fmt.Errorf("start job %s: %w", id, err)
	}
	if err := s.repo.Save(context.WithoutCancel(ctx), job); err != nil {
		return nil, err
	}
	s.running[id] = cancel
	return job, nil
}

func (s *Service) run(ctx context.Context, job *Job, logger *slog.Logger) error {
	job.SetStage(StageFetching, 0)
	s.save(ctx, job, logger)

	workDir, err := s.store.WorkDir(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("prepare work directory: %w", err)
	}
	defer func() {
		if err := s.store.Cleanup(context.WithoutCancel(ctx), []string{workDir}); err != nil {
			logger.Warn("failed to clean up work directory", slog.String("error", err.Error()))
		}
	}()

	mediaPath, _, err := s.fetcher.Fetch(ctx, job.Source, workDir)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", job.Source, err)
	}

	outputDir := filepath.Join(s.cfg.OutputRoot, job.ID)
	job.SetMedia(mediaPath, outputDir)
	job.SetStage(StageExtracting, progressFetched)
	s.save(ctx, job, logger)

	var totalFrames int
	res, err := s.splitter.Run(ctx, mediaPath, pipeline.Options{
		OutputDir: outputDir,
		Prefix:    job.Prefix,
		Params:    job.Params,
		OnExtracted: func(sig *audio.Signal) {
			totalFrames = sig.Frames()
			job.SetAudio(pipeline.AudioPath(pipeline.Options{OutputDir: outputDir, Prefix: job.Prefix}), sig.SampleRate)
			job.SetStage(StageSegmenting, progressExtracted)
			s.save(ctx, job, logger)
		},
		OnClip: func(c audio.Clip) {
			job.AddClip(c)
			if totalFrames > 0 {
				job.UpdateProgress(progressExtracted + (progressSegmented-progressExtracted)*c.End/totalFrames)
			}
			s.save(ctx, job, logger)
		},
	})
	if err != nil {
		return err
	}
	job.SetStage(StageSegmenting, progressSegmented)

	if job.PushToS3 && len(res.Clips) > 0 {
		job.SetStage(StagePublishing, progressSegmented)
		s.save(ctx, job, logger)
		if err := s.publish(ctx, job, res.Clips); err != nil {
			return err
		}
	}

	return nil
}

func (s *Service) publish(ctx context.Context, job *Job, clips []audio.Clip) error {
	for i, c := range clips {
		if err := ctx.Err(); err != nil {
			return err
		}

		key := job.ID + "/" + c.Name + audio.ClipExt
		url, err := s.store.Publish(ctx, key, c.Path)
		if err != nil {
			return fmt.Errorf("publish clip %d: %w", c.Index, err)
		}
		job.SetClipURL(c.Index, url)
		job.UpdateProgress(progressSegmented + (100-progressSegmented)*(i+1)/len(clips) - 1)
	}
	return nil
}

// save persists intermediate progress; failures are logged, not fatal.
func (s *Service) save(ctx context.Context, job *Job, logger *slog.Logger) {
	if err := s.repo.Save(context.WithoutCancel(ctx), job); err != nil {
		logger.Warn("failed to save job progress", slog.String("error", err.Error()))
	}
}
