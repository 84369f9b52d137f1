// Package worker runs the background pipeline. Workers lease messages from
// the durable queue, process OCR and LLM extraction jobs, and ack or nack
// with a backoff. Delivery is at-least-once, so every handler is idempotent.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/docrouter-ai/docrouter-api/internal/models"
	"github.com/docrouter-ai/docrouter-api/internal/repository"
)

// reapInterval is how often expired leases are restored to ready.
const reapInterval = 30 * time.Second

// Handler processes one leased message and is responsible for acking or
// nacking it.
type Handler interface {
	Process(ctx context.Context, msg *models.QueueMessage) error
}

// Config holds worker pool configuration.
type Config struct {
	PollInterval  time.Duration
	LeaseDuration time.Duration
	Concurrency   int
}

// Worker drives a pool of goroutines over the ocr and llm queues.
type Worker struct {
	queue         repository.QueueRepository
	handlers      map[string]Handler
	pollInterval  time.Duration
	leaseDuration time.Duration
	concurrency   int
	stop          chan struct{}
	wg            sync.WaitGroup
	active        atomic.Int64
	logger        *slog.Logger
}

// Busy reports whether any handler is mid-message. Used to hold off idle
// shutdown while jobs are in flight.
func (w *Worker) Busy() bool {
	return w.active.Load() > 0
}

// New creates a new worker pool dispatching to the given per-queue handlers.
func New(queue repository.QueueRepository, handlers map[string]Handler, cfg Config, logger *slog.Logger) *Worker {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.LeaseDuration == 0 {
		cfg.LeaseDuration = 5 * time.Minute
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		queue:         queue,
		handlers:      handlers,
		pollInterval:  cfg.PollInterval,
		leaseDuration: cfg.LeaseDuration,
		concurrency:   cfg.Concurrency,
		stop:          make(chan struct{}),
		logger:        logger.With("component", "worker"),
	}
}

// Start begins processing jobs.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("starting", "concurrency", w.concurrency)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.runWorker(ctx, i)
	}

	w.wg.Add(1)
	go w.runReaper(ctx)
}

// Stop gracefully stops the worker pool, waiting for in-flight jobs.
func (w *Worker) Stop() {
	w.logger.Info("stopping")
	close(w.stop)
	w.wg.Wait()
	w.logger.Info("stopped")
}

func (w *Worker) runWorker(ctx context.Context, workerID int) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Drain every queue before sleeping again.
			for w.processNext(ctx, workerID) {
				select {
				case <-w.stop:
					return
				case <-ctx.Done():
					return
				default:
				}
			}
		}
	}
}

// processNext leases and processes at most one message. Returns true when a
// message was found on any queue.
func (w *Worker) processNext(ctx context.Context, workerID int) bool {
	found := false
	for queue, handler := range w.handlers {
		msg, err := w.queue.Lease(ctx, queue, workerName(workerID), w.leaseDuration)
		if err != nil {
			w.logger.Error("failed to lease message", "queue", queue, "worker_id", workerID, "error", err)
			continue
		}
		if msg == nil {
			continue
		}
		found = true

		w.logger.Debug("processing message",
			"queue", queue, "worker_id", workerID, "msg_id", msg.ID, "attempts", msg.Attempts)
		w.active.Add(1)
		if err := handler.Process(ctx, msg); err != nil {
			w.logger.Error("handler failed",
				"queue", queue, "msg_id", msg.ID, "error", err)
		}
		w.active.Add(-1)
	}
	return found
}

func (w *Worker) runReaper(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.queue.ReapExpired(ctx)
			if err != nil {
				w.logger.Error("failed to reap expired leases", "error", err)
				continue
			}
			if n > 0 {
				w.logger.Warn("restored expired leases", "count", n)
			}
		}
	}
}

func workerName(id int) string {
	return fmt.Sprintf("worker-%d", id)
}
