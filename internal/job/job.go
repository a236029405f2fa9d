// Package job provides the Job aggregate for split jobs: a media source cut
// into clips at silence, optionally published to S3. It includes the state
// machine, the repository port and the service that runs jobs.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/maauso/silencesplit/internal/audio"
	"github.com/maauso/silencesplit/internal/job/id"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusInQueue indicates the job is waiting to be processed.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates the job is being processed.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the job finished successfully.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the job encountered an error during execution.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the job was cancelled on request.
	StatusCancelled Status = "CANCELLED"
)

// Stage is the step a running job is in.
type Stage string

const (
	StageQueued     Stage = "queued"
	StageFetching   Stage = "fetching"
	StageExtracting Stage = "extracting"
	StageSegmenting Stage = "segmenting"
	StagePublishing Stage = "publishing"
	StageDone       Stage = "done"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusCancelled},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

func canTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ClipRecord describes one clip produced by a job.
type ClipRecord struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Path    string `json:"path"`
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
	// URL is set once the clip is published.
	URL string `json:"url,omitempty"`
}

// Job is a split job aggregate.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Status is the current job state.
	Status Status
	// Stage is the step the job is in.
	Stage Stage
	// Source is the media locator: a local path or an http(s) URL.
	Source string
	// Prefix names the clips as {Prefix}_{index}.wav.
	Prefix string
	// Params are the segmentation parameters for this job.
	Params audio.Params
	// Progress is the percentage of completion (0-100).
	Progress int
	// Error contains any error message if the job failed.
	Error string
	// FailedClip is the index of the clip that failed to write, or -1.
	FailedClip int
	// MediaPath is the local media file the audio was extracted from.
	MediaPath string
	// AudioPath is the intermediate full-length track.
	AudioPath string
	// OutputDir holds the intermediate track and the clips.
	OutputDir string
	// SampleRate of the extracted track, 0 before extraction.
	SampleRate int
	// Clips are the clips written so far, in index order.
	Clips []ClipRecord
	// PushToS3 indicates whether clips are uploaded to S3.
	PushToS3 bool
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial IN_QUEUE status.
func New() *Job {
	return NewWithID(id.Generate())
}

// NewWithID creates a new Job with the specified ID and initial IN_QUEUE status.
func NewWithID(jobID string) *Job {
	now := time.Now()
	return &Job{
		ID:         jobID,
		Status:     StatusInQueue,
		Stage:      StageQueued,
		Params:     audio.DefaultParams(),
		FailedClip: -1,
		Clips:      make([]ClipRecord, 0),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transitionLocked(status)
}

func (j *Job) transitionLocked(status Status) error {
	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed, StatusCancelled:
		j.CompletedAt = j.UpdatedAt
	}
	return nil
}

// Start transitions the job from IN_QUEUE to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED and sets progress to 100.
func (j *Job) Complete() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StatusCompleted); err != nil {
		return err
	}
	j.Stage = StageDone
	j.Progress = 100
	return nil
}

// Fail transitions the job to FAILED with an error message.
func (j *Job) Fail(errMsg string) error {
	return j.FailAt(errMsg, -1)
}

// FailAt transitions the job to FAILED, recording the failing clip index.
func (j *Job) FailAt(errMsg string, clipIndex int) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StatusFailed); err != nil {
		return err
	}
	j.Error = errMsg
	j.FailedClip = clipIndex
	return nil
}

// Cancel transitions the job to CANCELLED.
func (j *Job) Cancel() error {
	return j.TransitionTo(StatusCancelled)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetStage moves the job to stage with the given progress.
// Progress never decreases and is clamped to 0-100.
func (j *Job) SetStage(stage Stage, progress int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Stage = stage
	j.setProgressLocked(progress)
}

// UpdateProgress sets the progress percentage (0-100).
func (j *Job) UpdateProgress(progress int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.setProgressLocked(progress)
}

func (j *Job) setProgressLocked(progress int) {
	progress = max(0, min(progress, 100))
	if progress > j.Progress {
		j.Progress = progress
	}
	j.UpdatedAt = time.Now()
}

// SetMedia records the local media file and the output location.
func (j *Job) SetMedia(mediaPath, outputDir string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.MediaPath = mediaPath
	j.OutputDir = outputDir
	j.UpdatedAt = time.Now()
}

// SetAudio records the intermediate track and its sample rate.
func (j *Job) SetAudio(audioPath string, sampleRate int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.AudioPath = audioPath
	j.SampleRate = sampleRate
	j.UpdatedAt = time.Now()
}

// AddClip appends a written clip. The sample rate must have been set.
func (j *Job) AddClip(c audio.Clip) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Clips = append(j.Clips, ClipRecord{
		Index:   c.Index,
		Name:    c.Name,
		Path:    c.Path,
		StartMs: c.StartMs(j.SampleRate),
		EndMs:   c.EndMs(j.SampleRate),
	})
	j.UpdatedAt = time.Now()
}

// SetClipURL records the published URL of the clip at index.
func (j *Job) SetClipURL(index int, url string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := range j.Clips {
		if j.Clips[i].Index == index {
			j.Clips[i].URL = url
			j.UpdatedAt = time.Now()
			return
		}
	}
}

// ClipsSnapshot returns a copy of the clip records.
func (j *Job) ClipsSnapshot() []ClipRecord {
	j.mu.RLock()
	defer j.mu.RUnlock()
	clips := make([]ClipRecord, len(j.Clips))
	copy(clips, j.Clips)
	return clips
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted ||
		j.Status == StatusFailed ||
		j.Status == StatusCancelled
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	clips := make([]ClipRecord, len(j.Clips))
	copy(clips, j.Clips)

	return &Job{
		ID:          j.ID,
		Status:      j.Status,
		Stage:       j.Stage,
		Source:      j.Source,
		Prefix:      j.Prefix,
		Params:      j.Params,
		Progress:    j.Progress,
		Error:       j.Error,
		FailedClip:  j.FailedClip,
		MediaPath:   j.MediaPath,
		AudioPath:   j.AudioPath,
		OutputDir:   j.OutputDir,
		SampleRate:  j.SampleRate,
		Clips:       clips,
		PushToS3:    j.PushToS3,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}
