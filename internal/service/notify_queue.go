package service

import (
	"context"
	"errors"
	"ocf/verifybot/internal/apperr"
	"ocf/verifybot/internal/metrics"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	ErrQueueFull   = errors.New("notification queue full")
	ErrQueueClosed = errors.New("notification queue closed")
)

// NotifyQueue fans completed links out to every notifier from a small
// worker pool. Nothing is retried.
type NotifyQueue struct {
	notices   chan LinkNotice
	notifiers []Notifier
	workers   int
	timeout   time.Duration
	running   atomic.Int32

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewNotifyQueue initializes a queue that holds at most size notices
// waiting for a worker
func NewNotifyQueue(workers, size int, timeout time.Duration, notifiers ...Notifier) *NotifyQueue {
	if workers <= 0 {
		workers = 1
	}

	zap.L().Debug("Initializing notification queue",
		zap.Int("workers", workers),
		zap.Int("size", size),
		zap.Int("notifiers", len(notifiers)))

	return &NotifyQueue{
		notices:   make(chan LinkNotice, size),
		notifiers: notifiers,
		workers:   workers,
		timeout:   timeout,
	}
}

func (q *NotifyQueue) StartWorkerPool() {
	for range q.workers {
		q.wg.Add(1)
		go q.worker()
	}
}

func (q *NotifyQueue) worker() {
	defer q.wg.Done()

	for n := range q.notices {
		q.deliver(n)
		q.running.Add(-1)
	}
}

func (q *NotifyQueue) deliver(n LinkNotice) {
	for _, nt := range q.notifiers {
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		err := nt.Notify(ctx, n)
		cancel()

		if err != nil {
			metrics.NotificationFailures.WithLabelValues(nt.Name()).Inc()
			zap.L().Warn("Failed to announce completed link",
				zap.Uint("token_id", n.TokenID),
				zap.String("subject_id", n.SubjectID),
				zap.Error(&apperr.NotificationError{Sink: nt.Name(), Err: err}))
			continue
		}

		zap.L().Debug("Announced completed link", zap.String("sink", nt.Name()), zap.Uint("token_id", n.TokenID))
	}
}

// Announce never blocks. The ctx of the caller isn't used for delivery,
// which outlives the request.
func (q *NotifyQueue) Announce(_ context.Context, n LinkNotice) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.running.Add(1)

	select {
	case q.notices <- n:
		return nil
	default:
		q.running.Add(-1)
		return ErrQueueFull
	}
}

// Pending reports notices accepted but not yet delivered.
func (q *NotifyQueue) Pending() int32 {
	return q.running.Load()
}

// Close stops accepting notices and waits for the workers to drain.
func (q *NotifyQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.notices)
	q.mu.Unlock()

	q.wg.Wait()
}
