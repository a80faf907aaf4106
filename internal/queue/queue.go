// Package queue provides a bounded FIFO drained by a single worker goroutine.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var (
	// ErrQueueFull is returned when the queue is at capacity.
	ErrQueueFull = errors.New("queue is full")
	// ErrQueueClosed is returned when attempting to enqueue to a closed queue.
	ErrQueueClosed = errors.New("queue is closed")
)

// Handler is called by the worker for each item, in enqueue order.
type Handler[T any] func(ctx context.Context, item T) error

// Queue is a bounded queue with a single worker.
type Queue[T any] struct {
	mu        sync.Mutex
	items     []T
	capacity  int
	logger    *slog.Logger
	closed    bool
	handler   Handler[T]
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	stopCh    chan struct{}
	enqueueCh chan struct{}
}

// New creates a queue holding at most capacity pending items.
func New[T any](capacity int, handler Handler[T], logger *slog.Logger) *Queue[T] {
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue[T]{
		items:     make([]T, 0, capacity),
		capacity:  capacity,
		logger:    logger,
		handler:   handler,
		ctx:       ctx,
		cancel:    cancel,
		stopCh:    make(chan struct{}),
		enqueueCh: make(chan struct{}, 1),
	}
}

// Enqueue adds an item without blocking.
func (q *Queue[T]) Enqueue(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	if len(q.items) >= q.capacity {
		return ErrQueueFull
	}

	q.items = append(q.items, item)

	// Signal the worker
	select {
	case q.enqueueCh <- struct{}{}:
	default:
	}

	return nil
}

// Len returns the number of pending items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Start begins the worker goroutine.
func (q *Queue[T]) Start() {
	q.wg.Add(1)
	go q.worker()
}

// Stop rejects new items, lets the worker finish the pending ones and waits
// for it to exit.
func (q *Queue[T]) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	close(q.stopCh)
	q.wg.Wait()
	q.cancel()
}

// Abort is like Stop but cancels the item in progress and drops the rest.
func (q *Queue[T]) Abort() {
	q.mu.Lock()
	q.items = q.items[:0]
	q.mu.Unlock()
	q.cancel()
	q.Stop()
}

func (q *Queue[T]) worker() {
	defer q.wg.Done()

	for {
		if item, ok := q.dequeue(); ok {
			q.process(item)
			continue
		}

		select {
		case <-q.stopCh:
			for {
				item, ok := q.dequeue()
				if !ok {
					return
				}
				q.process(item)
			}
		case <-q.enqueueCh:
		}
	}
}

func (q *Queue[T]) dequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return item, true
}

func (q *Queue[T]) process(item T) {
	if err := q.handler(q.ctx, item); err != nil {
		if errors.Is(err, context.Canceled) {
			q.logger.Debug("queue item cancelled")
		} else {
			q.logger.Error("queue item failed", "error", err)
		}
	}
}
