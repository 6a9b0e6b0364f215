package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrQueueClosed is returned by Wait once the queue has been closed.
var ErrQueueClosed = errors.New("session: queue closed")

// Task is a unit of deferred work. Its context is cancelled when the queue closes.
type Task func(ctx context.Context)

// Queue runs tasks one at a time, in the order they were deferred, on its own
// goroutine. The goroutine only exists while tasks are pending: Defer starts it
// and it exits once the queue drains, so an idle queue costs no goroutine.
//
// Defer never blocks and never runs the task on the caller's goroutine, so it
// is safe to call while holding locks that the task itself will need. That is
// exactly the situation inside an identity provider callback.
type Queue struct {
	logger *slog.Logger

	mu      sync.Mutex
	tasks   []Task
	running bool
	closed  bool

	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewQueue returns an empty queue. Call Close to release it.
func NewQueue(logger *slog.Logger) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		logger: logger,
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Defer schedules task to run after every previously deferred task.
// It reports false when the queue is already closed and the task was dropped.
func (q *Queue) Defer(task Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.tasks = append(q.tasks, task)
	if !q.running {
		q.running = true
		q.wg.Add(1)
		go q.worker()
	}
	return true
}

// Wait blocks until every task deferred before the call has run.
func (q *Queue) Wait(ctx context.Context) error {
	reached := make(chan struct{})
	if !q.Defer(func(context.Context) { close(reached) }) {
		return ErrQueueClosed
	}

	select {
	case <-reached:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return ErrQueueClosed
	}
}

// Close stops the worker. Tasks that have not started yet are dropped, and a
// running task sees its context cancelled. Close waits for the worker to exit
// and may be called more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.tasks = nil
	q.mu.Unlock()

	q.cancel()
	close(q.done)
	q.wg.Wait()
}

func (q *Queue) worker() {
	defer q.wg.Done()

	for {
		task, ok := q.next()
		if !ok {
			return
		}
		q.run(task)
	}
}

// next pops the oldest task. When there is none it marks the worker stopped
// under the same lock, so a concurrent Defer starts a fresh one.
func (q *Queue) next() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || len(q.tasks) == 0 {
		q.running = false
		return nil, false
	}
	task := q.tasks[0]
	q.tasks[0] = nil
	q.tasks = q.tasks[1:]
	return task, true
}

// run executes one task. A panicking task is logged and does not stop the worker.
func (q *Queue) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("deferred task panicked", slog.String("panic", fmt.Sprint(r)))
		}
	}()
	task(q.ctx)
}
