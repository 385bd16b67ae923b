package notifications

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	queueDepth  = 256
	taskTimeout = 30 * time.Second
)

type task struct {
	kind string
	run  func(context.Context) error
}

// Queue hands cascade work off the request path: handlers enqueue and return,
// a worker executes each task with a bounded deadline so a stuck insert can
// never hang the triggering request. Task failures are logged, never
// surfaced — notifications are best-effort, the triggering domain action is
// not.
type Queue struct {
	notifier *Notifier
	log      *zap.Logger
	tasks    chan task
	wg       sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewQueue starts a queue with a single worker. A single worker keeps sibling
// rollup updates for different events from contending; per-recipient
// concurrency lives inside the Notifier.
func NewQueue(notifier *Notifier, log *zap.Logger) *Queue {
	q := &Queue{
		notifier: notifier,
		log:      log,
		tasks:    make(chan task, queueDepth),
	}
	go q.worker()
	return q
}

func (q *Queue) worker() {
	for t := range q.tasks {
		ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
		if err := t.run(ctx); err != nil {
			q.log.Error("notification cascade task failed",
				zap.String("task", t.kind),
				zap.Error(err))
		}
		cancel()
		q.wg.Done()
	}
}

// enqueue holds the lock across the channel send so Close cannot close the
// channel underneath an in-flight send. After Close, tasks are dropped with
// a warning instead of panicking.
func (q *Queue) enqueue(t task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.log.Warn("dropping cascade task enqueued after shutdown",
			zap.String("task", t.kind))
		return
	}
	q.wg.Add(1)
	q.tasks <- t
}

// AttendanceRecorded enqueues the fan-out for a recorded attendance event.
func (q *Queue) AttendanceRecorded(eventID uint) {
	q.enqueue(task{
		kind: "attendance_fanout",
		run: func(ctx context.Context) error {
			return q.notifier.AttendanceRecorded(ctx, eventID)
		},
	})
}

// NotificationRead enqueues the acknowledgment rollup for a read notification.
func (q *Queue) NotificationRead(notificationID, readerID uint) {
	q.enqueue(task{
		kind: "acknowledgment_rollup",
		run: func(ctx context.Context) error {
			return q.notifier.NotificationRead(ctx, notificationID, readerID)
		},
	})
}

// Wait blocks until all enqueued tasks have finished. Used by shutdown and
// by tests.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// Close stops accepting tasks, drains the queue, and stops the worker.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	q.wg.Wait()
	close(q.tasks)
}
