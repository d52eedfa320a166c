package administrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"dupebot/internal/pkg/config"
	"dupebot/internal/pkg/deduplicator"
	"dupebot/internal/pkg/gate"
	"dupebot/internal/pkg/logger"
	"dupebot/internal/pkg/models"
	"dupebot/internal/pkg/processor"
	"dupebot/internal/pkg/processor/linkfilter"
	"dupebot/internal/pkg/queue"
	"dupebot/internal/pkg/worker"
)

// Administrator interface
type Administrator interface {
	EnqueueEvent(ctx context.Context, event models.Event) error
	DispatchActivation(activation gate.Activation) bool
	Start(ctx context.Context)
	StartService(ctx context.Context, port string) error
	Stop()
	QueueDepth() int
	WorkerCount() int
	OpenGates() int
	StartTime() time.Time
}

// The chat operations the pipeline needs: sending notices for the
// processor, deleting and acknowledging for the gates.
type Platform interface {
	processor.Notifier
	gate.Messenger
}

// Implementation of the Administrator interface
type administrator struct {
	store      deduper.Store
	queue      *queue.Queue
	gates      *gate.Registry
	processor  processor.Processor
	workerPool *worker.WorkerPool
	startTime  time.Time
}

// Creates a new instance of an Administrator with a config, connecting to
// Redis on the way.
func New(config *config.Config, platform Platform) (Administrator, error) {
	store, err := deduper.NewRedisStore(config)
	if err != nil {
		return nil, fmt.Errorf("create fingerprint store: %w", err)
	}
	admin, err := NewWithStore(config, store, platform)
	if err != nil {
		store.Close()
		return nil, err
	}
	return admin, nil
}

// Creates an Administrator on top of an existing store.
func NewWithStore(config *config.Config, store deduper.Store, platform Platform) (Administrator, error) {
	eventQueue, err := queue.CreateQueue(config.QueueCapacity)
	if err != nil {
		return nil, fmt.Errorf("create event queue: %w", err)
	}

	gates := gate.NewRegistry(platform, config.NoticeTimeout, config.NoticeDisableOnTimeout)
	filter := linkfilter.NewLinkFilter(config.IgnoredPatterns())
	proc := processor.NewProcessor(store, filter, platform, gates, config.Scope, config.NoticeFooter)
	wp := worker.NewWorkerPool(config.NumWorkers, eventQueue, proc)

	logger.Log.Info("Pipeline configured",
		zap.String("scope", config.Scope),
		zap.Duration("retention", config.Retention),
		zap.Duration("notice_timeout", config.NoticeTimeout),
		zap.Int("queue_capacity", config.QueueCapacity),
		zap.Int("workers", wp.Size()))

	return &administrator{
		store:      store,
		queue:      eventQueue,
		gates:      gates,
		processor:  proc,
		workerPool: wp,
		startTime:  time.Now(),
	}, nil
}

func (admin *administrator) EnqueueEvent(ctx context.Context, event models.Event) error {
	// This quickly returns so the gateway handler can move on
	return admin.queue.Insert(event)
}

func (admin *administrator) DispatchActivation(activation gate.Activation) bool {
	return admin.gates.Dispatch(activation)
}

// Starts the worker pool. Workers and open gates stop when ctx ends.
func (admin *administrator) Start(ctx context.Context) {
	admin.workerPool.Start(ctx)
}

// Waits for workers and gates to finish, then releases the store. The
// context given to Start must be cancelled first.
func (admin *administrator) Stop() {
	logger.Log.Info("Beginning shutdown sequence")

	// Stop accepting new events
	admin.queue.Close()

	logger.Log.Info("Waiting for worker pool to finish", zap.Int("pending_events", admin.queue.Length()))
	admin.workerPool.Wait()

	logger.Log.Info("Waiting for open notices to close", zap.Int("open_gates", admin.gates.Len()))
	admin.gates.Wait()

	if err := admin.store.Close(); err != nil {
		logger.Log.Warn("Failed to close fingerprint store", zap.Error(err))
	}

	logger.Log.Info("Administrator stopped gracefully")
}

// Returns the current queue depth for health checks
func (admin *administrator) QueueDepth() int {
	return admin.queue.Length()
}

// Returns the number of workers for health checks
func (admin *administrator) WorkerCount() int {
	return admin.workerPool.Size()
}

// Returns the number of notices still accepting button presses
func (admin *administrator) OpenGates() int {
	return admin.gates.Len()
}

// Returns when the service was started for health checks
func (admin *administrator) StartTime() time.Time {
	return admin.startTime
}
