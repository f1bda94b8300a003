// Package queue carries background work between the API, the scheduler and
// the worker pool.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Kind selects the handler for a task.
type Kind string

const (
	KindDaily         Kind = "daily"
	KindIngest        Kind = "ingest"
	KindMatchUser     Kind = "match_user"
	KindProcessResume Kind = "process_resume"
)

// Task is one unit of background work.
type Task struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	UserID     string    `json:"user_id,omitempty"`
	ResumeID   string    `json:"resume_id,omitempty"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	LastError  string    `json:"last_error,omitempty"`

	// raw is the encoded form a backend dequeued, used to acknowledge it.
	raw []byte
}

func NewTask(kind Kind) Task {
	return Task{ID: uuid.NewString(), Kind: kind, EnqueuedAt: time.Now().UTC()}
}

func MatchUserTask(userID string) Task {
	t := NewTask(KindMatchUser)
	t.UserID = userID
	return t
}

func ProcessResumeTask(resumeID string) Task {
	t := NewTask(KindProcessResume)
	t.ResumeID = resumeID
	return t
}

// Queue is an at-least-once task queue.
type Queue interface {
	Enqueue(ctx context.Context, t Task) error
	// Dequeue blocks until a task is available or ctx is done.
	Dequeue(ctx context.Context) (Task, error)
	Ack(ctx context.Context, t Task) error
	// Retry acknowledges t and enqueues it again with Attempt incremented.
	Retry(ctx context.Context, t Task, cause error) error
	// DeadLetter acknowledges t and parks it for inspection.
	DeadLetter(ctx context.Context, t Task, cause error) error
	Close() error
}

// Reclaimer is implemented by queues that can return tasks orphaned by a
// crashed worker to the pending list.
type Reclaimer interface {
	Reclaim(ctx context.Context) (int, error)
}

// DeadLetterReader is implemented by queues that can list parked tasks.
type DeadLetterReader interface {
	// DeadLetters returns up to limit parked tasks, newest first.
	DeadLetters(ctx context.Context, limit int64) ([]Task, error)
}

// ErrClosed is returned by a queue after Close.
var ErrClosed = errors.New("queue closed")

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
