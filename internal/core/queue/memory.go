package queue

import (
	"context"
	"sync"
	"sync/atomic"
)

// MemoryQueue is a buffered-channel queue for single-process runs and tests.
// Tasks do not survive a restart.
type MemoryQueue struct {
	tasks chan Task
	// open counts tasks enqueued and not yet acked or dead-lettered.
	open atomic.Int64

	mu     sync.Mutex
	dead   []Task
	closed bool
	done   chan struct{}
}

var (
	_ Queue            = (*MemoryQueue)(nil)
	_ DeadLetterReader = (*MemoryQueue)(nil)
)

func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 64
	}
	return &MemoryQueue{tasks: make(chan Task, size), done: make(chan struct{})}
}

// Enqueue blocks while the buffer is full.
func (q *MemoryQueue) Enqueue(ctx context.Context, t Task) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}
	q.open.Add(1)
	select {
	case q.tasks <- t:
		return nil
	case <-q.done:
		q.open.Add(-1)
		return ErrClosed
	case <-ctx.Done():
		q.open.Add(-1)
		return ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (Task, error) {
	select {
	case t := <-q.tasks:
		return t, nil
	case <-q.done:
		return Task{}, ErrClosed
	case <-ctx.Done():
		return Task{}, ctx.Err()
	}
}

func (q *MemoryQueue) Ack(context.Context, Task) error {
	q.open.Add(-1)
	return nil
}

func (q *MemoryQueue) Retry(ctx context.Context, t Task, cause error) error {
	t.Attempt++
	if cause != nil {
		t.LastError = cause.Error()
	}
	err := q.Enqueue(ctx, t)
	q.open.Add(-1)
	return err
}

func (q *MemoryQueue) DeadLetter(_ context.Context, t Task, cause error) error {
	if cause != nil {
		t.LastError = cause.Error()
	}
	q.mu.Lock()
	q.dead = append(q.dead, t)
	q.mu.Unlock()
	q.open.Add(-1)
	return nil
}

// Dead returns a copy of the dead-lettered tasks.
func (q *MemoryQueue) Dead() []Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Task(nil), q.dead...)
}

func (q *MemoryQueue) DeadLetters(_ context.Context, limit int64) ([]Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Task, 0, min(int64(len(q.dead)), max(limit, 0)))
	for i := len(q.dead) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		out = append(out, q.dead[i])
	}
	return out, nil
}

// Len is the number of tasks waiting.
func (q *MemoryQueue) Len() int { return len(q.tasks) }

// Outstanding is the number of tasks waiting or being worked on.
func (q *MemoryQueue) Outstanding() int { return int(q.open.Load()) }

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
	return nil
}
