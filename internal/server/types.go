// Package server provides the HTTP API for split jobs.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/maauso/silencesplit/internal/audio"
	"github.com/maauso/silencesplit/internal/job"
)

// SplitParams overrides individual segmentation parameters.
// Omitted fields keep the server defaults.
type SplitParams struct {
	MinSilenceMs    *int     `json:"min_silence_ms,omitempty" validate:"omitempty,gt=0"`
	SilenceThreshDB *float64 `json:"silence_thresh_db,omitempty" validate:"omitempty,lte=0"`
	KeepSilenceMs   *int     `json:"keep_silence_ms,omitempty" validate:"omitempty,gte=0"`
	FrameMs         *int     `json:"frame_ms,omitempty" validate:"omitempty,gt=0,lte=1000"`
}

// apply returns base with the set fields of p.
func (p *SplitParams) apply(base audio.Params) audio.Params {
	if p == nil {
		return base
	}
	if p.MinSilenceMs != nil {
		base.MinSilenceMs = *p.MinSilenceMs
	}
	if p.SilenceThreshDB != nil {
		base.SilenceThreshDB = *p.SilenceThreshDB
	}
	if p.KeepSilenceMs != nil {
		base.KeepSilenceMs = *p.KeepSilenceMs
	}
	if p.FrameMs != nil {
		base.FrameMs = *p.FrameMs
	}
	return base
}

// CreateJobRequest is the HTTP request body for creating a new job.
type CreateJobRequest struct {
	// Source is a media URL or a path readable by the server.
	Source string `json:"source" validate:"required,max=2048"`
	// Prefix names the clips as {prefix}_{index}.wav.
	Prefix string `json:"prefix,omitempty" validate:"omitempty,max=128"`
	// Params overrides the default segmentation parameters.
	Params *SplitParams `json:"params,omitempty"`
	// PushToS3 indicates whether to upload the clips to S3.
	PushToS3 bool `json:"push_to_s3"`
}

// CreateJobResponse is the HTTP response after creating a job.
type CreateJobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	ID       string       `json:"id"`
	Status   string       `json:"status"`
	Stage    string       `json:"stage"`
	Progress int          `json:"progress"`
	Source   string       `json:"source"`
	Prefix   string       `json:"prefix"`
	Params   audio.Params `json:"params"`
	Error    string       `json:"error,omitempty"`
	// FailedClip is the index of the clip that could not be written.
	FailedClip *int             `json:"failed_clip,omitempty"`
	AudioPath  string           `json:"audio_path,omitempty"`
	Clips      []job.ClipRecord `json:"clips"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// ListJobsResponse is the HTTP response for listing jobs.
type ListJobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

func newJobResponse(j *job.Job) JobResponse {
	resp := JobResponse{
		ID:        j.ID,
		Status:    string(j.Status),
		Stage:     string(j.Stage),
		Progress:  j.Progress,
		Source:    j.Source,
		Prefix:    j.Prefix,
		Params:    j.Params,
		Error:     j.Error,
		AudioPath: j.AudioPath,
		Clips:     j.Clips,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
	if resp.Clips == nil {
		resp.Clips = []job.ClipRecord{}
	}
	if j.FailedClip >= 0 {
		idx := j.FailedClip
		resp.FailedClip = &idx
	}
	return resp
}
