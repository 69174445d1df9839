package pipeline

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// transcribeChunksParallel transcribes chunks concurrently with a bounded
// number of in-flight engine calls.
//
// Two invariants survive the parallelism: parts are concatenated in index
// order regardless of completion order, and each chunk is deleted only
// after its own transcription succeeded. Progress counts completions, so
// done/total may arrive out of index order.
func (p *Pipeline) transcribeChunksParallel(ctx context.Context, chunks []string, chunkSeconds float64, keepChunks bool) (string, error) {
	parts := make([]string, len(chunks))

	var mu sync.Mutex
	completed := 0

	// Semaphore channel for concurrency control.
	sem := make(chan struct{}, p.parallel)

	g, ctx := errgroup.WithContext(ctx)

	for i, chunkPath := range chunks {
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			defer func() { <-sem }()

			text, err := p.transcribeChunk(ctx, chunkPath, i, float64(i)*chunkSeconds, keepChunks)
			if err != nil {
				return err
			}
			parts[i] = text

			mu.Lock()
			completed++
			done := completed
			mu.Unlock()
			p.reportProgress(done, len(chunks))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return "", err
	}

	return strings.Join(parts, " "), nil
}
