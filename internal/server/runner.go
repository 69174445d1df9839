package server

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/alnah/go-scribe/internal/jobs"
	"github.com/alnah/go-scribe/internal/pipeline"
)

// PipelineFactory builds a pipeline whose chunk progress is reported
// through the given callback. Each job gets its own pipeline instance so
// progress streams never interleave.
type PipelineFactory func(progress pipeline.ProgressFunc) (*pipeline.Pipeline, error)

// Runner executes one pipeline run per job on its own goroutine and keeps
// the job store and progress broker in sync.
type Runner struct {
	store       jobs.Store
	newPipeline PipelineFactory
	broker      *Broker
	logger      *zap.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewRunner creates a Runner.
func NewRunner(store jobs.Store, factory PipelineFactory, broker *Broker, logger *zap.Logger) *Runner {
	return &Runner{
		store:       store,
		newPipeline: factory,
		broker:      broker,
		logger:      logger,
		cancels:     make(map[string]context.CancelFunc),
	}
}

// Start launches the pipeline for a queued job. The caller passes a context
// scoped to the job's lifetime, not to a single request; the pipeline honors
// cancellation at chunk boundaries.
func (r *Runner) Start(ctx context.Context, job jobs.Job, opts pipeline.Options) {
	runCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancels[job.ID] = cancel
	r.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			r.mu.Lock()
			delete(r.cancels, job.ID)
			r.mu.Unlock()
		}()
		r.run(runCtx, job, opts)
	}()
}

// Cancel requests cancellation of a running job. Returns false when the
// job is not running.
func (r *Runner) Cancel(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cancel, ok := r.cancels[jobID]
	if ok {
		cancel()
	}
	return ok
}

// run drives one job from running to done or failed.
func (r *Runner) run(ctx context.Context, job jobs.Job, opts pipeline.Options) {
	job.Status = jobs.StatusRunning
	r.persist(ctx, &job)

	p, err := r.newPipeline(func(done, total int) {
		job.ChunksDone = done
		job.ChunksTotal = total
		r.persist(ctx, &job)
	})
	if err != nil {
		r.fail(ctx, &job, err)
		return
	}

	transcript, err := p.Run(ctx, job.SourcePath, opts)
	if err != nil {
		r.fail(ctx, &job, err)
		return
	}

	job.Status = jobs.StatusDone
	job.Transcript = transcript
	r.persist(ctx, &job)
	r.logger.Info("job finished",
		zap.String("job_id", job.ID),
		zap.Int("chunks", job.ChunksTotal),
	)
}

// fail marks a job failed with the underlying error message.
func (r *Runner) fail(ctx context.Context, job *jobs.Job, err error) {
	r.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
	job.Status = jobs.StatusFailed
	job.Error = err.Error()
	r.persist(ctx, job)
}

// persist writes the job state and publishes a progress event.
// Store errors are logged, not propagated: the pipeline result matters
// more than a transient persistence hiccup.
func (r *Runner) persist(ctx context.Context, job *jobs.Job) {
	job.UpdatedAt = time.Now()
	// Persist with a background-derived context so a canceled job still
	// records its terminal state.
	if err := r.store.Put(context.WithoutCancel(ctx), *job); err != nil {
		r.logger.Warn("failed to persist job", zap.String("job_id", job.ID), zap.Error(err))
	}
	r.broker.Publish(Event{
		JobID:  job.ID,
		Status: job.Status,
		Done:   job.ChunksDone,
		Total:  job.ChunksTotal,
		Error:  job.Error,
	})
}
