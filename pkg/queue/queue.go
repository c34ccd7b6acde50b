// Package queue serializes calls to the model provider.
//
// Tasks run one at a time in arrival order. After a task finishes the queue
// waits a fixed delay before dispatching the next one, so bursts of callers
// are spread out instead of tripping the provider's rate limiter.
package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultDelay is the pause between consecutive dispatches.
const DefaultDelay = 6 * time.Second

// Result is the outcome of one task.
type Result struct {
	Value any
	Err   error
}

type task struct {
	ctx  context.Context
	fn   func(context.Context) (any, error)
	done chan Result
}

// Queue is a FIFO of deferred tasks drained by a single goroutine.
type Queue struct {
	delay  time.Duration
	logger *zap.Logger

	mu       sync.Mutex
	tasks    []*task
	draining bool

	dispatched atomic.Int64
}

// New creates a Queue. A negative delay is treated as zero.
func New(delay time.Duration, logger *zap.Logger) *Queue {
	if delay < 0 {
		delay = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{delay: delay, logger: logger.Named("queue")}
}

// Enqueue appends fn and returns a channel that receives its result once.
// fn runs with ctx; a task whose ctx is already done when it reaches the
// head of the queue is skipped and reports ctx.Err().
func (q *Queue) Enqueue(ctx context.Context, fn func(context.Context) (any, error)) <-chan Result {
	t := &task{ctx: ctx, fn: fn, done: make(chan Result, 1)}

	q.mu.Lock()
	q.tasks = append(q.tasks, t)
	start := !q.draining
	q.draining = true
	pending := len(q.tasks)
	q.mu.Unlock()

	q.logger.Debug("task queued", zap.Int("pending", pending))
	if start {
		go q.drain()
	}
	return t.done
}

// Pending reports the number of tasks waiting for dispatch.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Dispatched reports how many tasks have been started.
func (q *Queue) Dispatched() int64 {
	return q.dispatched.Load()
}

// Delay reports the pause between dispatches.
func (q *Queue) Delay() time.Duration {
	return q.delay
}

func (q *Queue) drain() {
	for {
		q.mu.Lock()
		t := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		ran := q.run(t)

		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.draining = false
			q.tasks = nil
			q.mu.Unlock()
			return
		}
		q.mu.Unlock()

		if ran && q.delay > 0 {
			timer := time.NewTimer(q.delay)
			<-timer.C
		}
	}
}

// run executes t and reports whether it was dispatched.
func (q *Queue) run(t *task) bool {
	if err := t.ctx.Err(); err != nil {
		t.done <- Result{Err: err}
		return false
	}

	q.dispatched.Add(1)
	start := time.Now()
	v, err := q.call(t)
	q.logger.Debug("task finished", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
	t.done <- Result{Value: v, Err: err}
	return true
}

func (q *Queue) call(t *task) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("task panicked", zap.Any("panic", r))
			err = fmt.Errorf("queued task panicked: %v", r)
		}
	}()
	return t.fn(t.ctx)
}

// Do runs fn on q and waits for its result. If ctx is cancelled while
// waiting, Do returns ctx.Err(); a task that has already started still holds
// its slot until it returns.
func Do[T any](ctx context.Context, q *Queue, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	done := q.Enqueue(ctx, func(ctx context.Context) (any, error) {
		v, err := fn(ctx)
		return v, err
	})

	select {
	case r := <-done:
		if r.Err != nil {
			return zero, r.Err
		}
		v, ok := r.Value.(T)
		if !ok && r.Value != nil {
			return zero, fmt.Errorf("queued task returned %T", r.Value)
		}
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
