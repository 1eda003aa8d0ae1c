// Package indexing extracts searchable text from finished files in the
// background.
package indexing

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/foxhound/internal/logging"
)

// Indexer processes one file.
type Indexer interface {
	Index(ctx context.Context, fileID int64) error
}

// Queue feeds file ids to a fixed pool of workers. Enqueue never blocks:
// when the buffer is full the id is dropped and the file stays queued.
type Queue struct {
	indexer Indexer
	workers int
	logger  logging.Logger

	mu     sync.RWMutex
	jobs   chan int64
	closed bool
}

func NewQueue(ix Indexer, workers, buffer int, logger logging.Logger) *Queue {
	if workers < 1 {
		workers = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	return &Queue{
		indexer: ix,
		workers: workers,
		logger:  logger.With("module", "indexing"),
		jobs:    make(chan int64, buffer),
	}
}

func (q *Queue) Enqueue(fileID int64) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.logger.Warn(context.Background(), "indexing queue closed, job dropped", "file_id", fileID)
		return
	}
	select {
	case q.jobs <- fileID:
	default:
		q.logger.Warn(context.Background(), "indexing queue full, job dropped", "file_id", fileID)
	}
}

// Run starts the workers and blocks until ctx is done. Jobs already queued
// are drained before Run returns.
func (q *Queue) Run(ctx context.Context) error {
	workCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i := 0; i < q.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range q.jobs {
				if err := q.indexer.Index(workCtx, id); err != nil {
					q.logger.Error(workCtx, "indexing failed", "file_id", id, "error", err)
				}
			}
		}()
	}

	<-ctx.Done()

	q.mu.Lock()
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	wg.Wait()
	return nil
}
