package worker

import (
	"context"
	"errors"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"dupebot/internal/pkg/logger"
	"dupebot/internal/pkg/models"
	"dupebot/internal/pkg/processor"
	"dupebot/internal/pkg/queue"
)

// Manages a pool of workers that process queued events in parallel
type WorkerPool struct {
	numWorkers int
	queue      *queue.Queue
	processor  processor.Processor
	wg         conc.WaitGroup
}

// Creates a new worker pool with the specified number of workers
func NewWorkerPool(numWorkers int, queue *queue.Queue, processor processor.Processor) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return &WorkerPool{
		numWorkers: numWorkers,
		queue:      queue,
		processor:  processor,
	}
}

// Launches the worker goroutines
func (wp *WorkerPool) Start(ctx context.Context) {
	logger.Log.Info("Starting worker pool", zap.Int("workers", wp.numWorkers))

	for i := 0; i < wp.numWorkers; i++ {
		id := i
		wp.wg.Go(func() { wp.runWorker(ctx, id) })
	}
}

// Blocks until all workers have finished
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// Number of workers in the pool.
func (wp *WorkerPool) Size() int {
	return wp.numWorkers
}

// The main loop for each worker goroutine. Drains the queue, then sleeps
// until the queue signals new items or ctx ends.
func (wp *WorkerPool) runWorker(ctx context.Context, id int) {
	logger.Log.Info("Worker started", zap.Int("worker_id", id))

	for {
		if ctx.Err() != nil {
			logger.Log.Info("Worker received stop signal", zap.Int("worker_id", id))
			return
		}

		event, err := wp.queue.Remove()
		if errors.Is(err, queue.ErrQueueEmpty) {
			select {
			case <-ctx.Done():
				logger.Log.Info("Worker received stop signal", zap.Int("worker_id", id))
				return
			case <-wp.queue.Ready():
			}
			continue
		}
		// Inserts coalesce into one signal; wake the next idle worker.
		if !wp.queue.IsEmpty() {
			wp.queue.Signal()
		}
		wp.handle(ctx, id, event)
	}
}

func (wp *WorkerPool) handle(ctx context.Context, id int, event models.Event) {
	var err error
	switch event.Kind {
	case models.EventMessageCreate:
		err = wp.processor.ProcessMessage(ctx, event.Message)
	case models.EventMessageDelete:
		err = wp.processor.ProcessDeletion(ctx, event.Deletion)
	default:
		logger.Log.Warn("Unknown event kind", zap.Int("worker_id", id), zap.String("kind", string(event.Kind)))
		return
	}

	if err != nil {
		logger.Log.Warn("Failed to process event",
			zap.Int("worker_id", id),
			zap.String("kind", string(event.Kind)),
			zap.String("key", event.Key()),
			zap.Error(err))
		return
	}
	logger.Log.Debug("Processed event",
		zap.Int("worker_id", id),
		zap.String("key", event.Key()))
}
