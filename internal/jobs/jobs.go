// Package jobs defines the transcription job model and the injected store
// interface the web service persists jobs through. The core pipeline never
// touches a job store; jobs belong entirely to the service layer.
package jobs

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates no job exists for the given key.
var ErrNotFound = errors.New("job not found")

// Status is a job's lifecycle state.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Job is one tracked pipeline run.
type Job struct {
	ID          string    `json:"id"`
	SourcePath  string    `json:"source_path"`
	SourceHash  string    `json:"source_hash"`
	Status      Status    `json:"status"`
	ChunksDone  int       `json:"chunks_done"`
	ChunksTotal int       `json:"chunks_total"`
	Transcript  string    `json:"transcript,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store persists jobs by id. Implementations must be safe for concurrent
// use: the service layer reads from request handlers while job goroutines
// write progress.
type Store interface {
	// Put inserts or replaces a job.
	Put(ctx context.Context, job Job) error

	// Get returns the job with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (Job, error)

	// GetByHash returns the most recent job for a source content hash,
	// or ErrNotFound. Used to dedup re-submissions of identical files.
	GetByHash(ctx context.Context, hash string) (Job, error)

	// Delete removes a job. Deleting a missing job is not an error.
	Delete(ctx context.Context, id string) error

	// List returns all jobs, newest first.
	List(ctx context.Context) ([]Job, error)
}
