// Package orchestrator chains ingestion and per-user matching and connects
// both to the task queue.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/markdave123-py/jobmatch/internal/core/queue"
	"github.com/markdave123-py/jobmatch/internal/logger"
)

type Ingester interface {
	Run(ctx context.Context) (int, error)
}

type Matcher interface {
	MatchForUser(ctx context.Context, userID string, topK int, lookback time.Duration) (int, error)
}

type ResumeProcessor interface {
	Process(ctx context.Context, resumeID string) error
}

type UserLister interface {
	ListActiveUserIDs(ctx context.Context) ([]string, error)
}

type Config struct {
	TopK     int
	Lookback time.Duration
}

// Orchestrator runs the daily flow: ingest, then one match task per user.
type Orchestrator struct {
	ingest    Ingester
	matcher   Matcher
	processor ResumeProcessor
	users     UserLister
	q         queue.Queue
	cfg       Config
}

func New(ingest Ingester, matcher Matcher, processor ResumeProcessor, users UserLister, q queue.Queue, cfg Config) *Orchestrator {
	if cfg.TopK <= 0 {
		cfg.TopK = 1
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = 24 * time.Hour
	}
	return &Orchestrator{ingest: ingest, matcher: matcher, processor: processor, users: users, q: q, cfg: cfg}
}

// RunDaily ingests and, only if ingestion succeeded, enqueues a match_user
// task for every active user. It does not wait for those tasks.
func (o *Orchestrator) RunDaily(ctx context.Context) error {
	ctx = logger.SetComponent(ctx, "orchestrator")
	log := logger.FromContext(ctx)

	stored, err := o.ingest.Run(ctx)
	if err != nil {
		return fmt.Errorf("daily: ingestion: %w", err)
	}

	users, err := o.users.ListActiveUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("daily: list users: %w", err)
	}
	queued := 0
	for _, id := range users {
		if err := o.q.Enqueue(ctx, queue.MatchUserTask(id)); err != nil {
			log.WithField(logger.FieldUserID, id).WithError(err).Error("match task not enqueued")
			continue
		}
		queued++
	}
	log.WithFields(logger.Fields{"new_jobs": stored, "users": len(users), "queued": queued}).Info("daily run dispatched")
	return nil
}

// TriggerDaily enqueues a daily task.
func (o *Orchestrator) TriggerDaily(ctx context.Context) (queue.Task, error) {
	return o.enqueue(ctx, queue.NewTask(queue.KindDaily))
}

// TriggerIngest enqueues an ingestion-only task.
func (o *Orchestrator) TriggerIngest(ctx context.Context) (queue.Task, error) {
	return o.enqueue(ctx, queue.NewTask(queue.KindIngest))
}

// TriggerProcess enqueues processing for an uploaded resume.
func (o *Orchestrator) TriggerProcess(ctx context.Context, resumeID string) (queue.Task, error) {
	return o.enqueue(ctx, queue.ProcessResumeTask(resumeID))
}

func (o *Orchestrator) enqueue(ctx context.Context, t queue.Task) (queue.Task, error) {
	if err := o.q.Enqueue(ctx, t); err != nil {
		return queue.Task{}, fmt.Errorf("enqueue %s: %w", t.Kind, err)
	}
	return t, nil
}

// Register installs the task handlers on w.
func (o *Orchestrator) Register(w *queue.Worker) {
	w.Handle(queue.KindDaily, func(ctx context.Context, _ queue.Task) error {
		return o.RunDaily(ctx)
	})
	w.Handle(queue.KindIngest, func(ctx context.Context, _ queue.Task) error {
		_, err := o.ingest.Run(ctx)
		return err
	})
	w.Handle(queue.KindMatchUser, func(ctx context.Context, t queue.Task) error {
		if t.UserID == "" {
			return queue.Permanent(fmt.Errorf("match_user task %s has no user", t.ID))
		}
		ctx = logger.SetUserID(ctx, t.UserID)
		_, err := o.matcher.MatchForUser(ctx, t.UserID, o.cfg.TopK, o.cfg.Lookback)
		return err
	})
	// Resume processing is never retried; the resume records the failure.
	w.Handle(queue.KindProcessResume, func(ctx context.Context, t queue.Task) error {
		if t.ResumeID == "" {
			return queue.Permanent(fmt.Errorf("process_resume task %s has no resume", t.ID))
		}
		return queue.Permanent(o.processor.Process(ctx, t.ResumeID))
	})
}
