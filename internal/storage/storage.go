// Package storage manages job working directories and publishes finished
// clips. LocalStorage keeps everything on disk; S3Storage adds uploads to an
// S3 bucket or S3-compatible endpoint.
package storage

import (
	"context"
)

// Storage defines scratch space for jobs and the optional clip publisher.
type Storage interface {
	// WorkDir creates and returns a fresh working directory for name.
	WorkDir(ctx context.Context, name string) (string, error)

	// Cleanup removes the given files or directories.
	// It continues even if some paths fail to delete.
	Cleanup(ctx context.Context, paths []string) error

	// Publish uploads the file at path under key and returns its URL.
	// Returns ErrS3NotConfigured if no bucket is configured.
	Publish(ctx context.Context, key, path string) (url string, err error)
}
