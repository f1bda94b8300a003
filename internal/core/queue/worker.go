package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/markdave123-py/jobmatch/internal/logger"
)

// Handler runs one task. Returning an error wrapped with Permanent skips the
// remaining attempts.
type Handler func(ctx context.Context, t Task) error

type WorkerConfig struct {
	// MaxAttempts counts the first run. Values below 1 mean 1.
	MaxAttempts int
	// TaskTimeout bounds a single handler call. Zero means no limit.
	TaskTimeout time.Duration
}

// Worker pulls tasks off a Queue and dispatches them by kind.
type Worker struct {
	q        Queue
	cfg      WorkerConfig
	handlers map[Kind]Handler
	wg       sync.WaitGroup
}

func NewWorker(q Queue, cfg WorkerConfig) *Worker {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Worker{q: q, cfg: cfg, handlers: make(map[Kind]Handler)}
}

// Handle registers h for kind. Register handlers before Start.
func (w *Worker) Handle(kind Kind, h Handler) {
	w.handlers[kind] = h
}

// Start launches numWorkers goroutines that run until ctx is done or the
// queue is closed. Orphaned tasks are reclaimed first when the queue
// supports it.
func (w *Worker) Start(ctx context.Context, numWorkers int) {
	log := logger.FromContext(ctx).WithField(logger.FieldComponent, "worker")
	if r, ok := w.q.(Reclaimer); ok {
		n, err := r.Reclaim(ctx)
		if err != nil {
			log.WithError(err).Warn("reclaim failed")
		} else if n > 0 {
			log.WithField(logger.FieldCount, n).Info("reclaimed orphaned tasks")
		}
	}

	if numWorkers < 1 {
		numWorkers = 1
	}
	for i := 1; i <= numWorkers; i++ {
		w.wg.Add(1)
		go func(id int) {
			defer w.wg.Done()
			w.loop(ctx, id)
		}(i)
	}
	log.WithField(logger.FieldCount, numWorkers).Info("workers started")
}

// Wait blocks until every worker goroutine has returned.
func (w *Worker) Wait() { w.wg.Wait() }

func (w *Worker) loop(ctx context.Context, id int) {
	log := logger.FromContext(ctx).WithFields(logger.Fields{logger.FieldComponent: "worker", "worker": id})
	for {
		t, err := w.q.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) || ctx.Err() != nil {
				log.Debug("worker shutting down")
				return
			}
			log.WithError(err).Warn("dequeue failed")
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		w.Process(ctx, t)
	}
}

// Process runs t and acknowledges, retries or dead-letters it.
func (w *Worker) Process(ctx context.Context, t Task) {
	tctx := logger.WithFields(ctx, logger.Fields{
		logger.FieldTaskID:   t.ID,
		logger.FieldTaskKind: string(t.Kind),
		logger.FieldAttempt:  t.Attempt + 1,
	})
	log := logger.FromContext(tctx)
	start := time.Now()

	err := w.run(tctx, t)
	log = log.WithField(logger.FieldDurationMs, time.Since(start).Milliseconds())

	switch {
	case err == nil:
		if aerr := w.q.Ack(ctx, t); aerr != nil {
			log.WithError(aerr).Warn("ack failed")
		}
		log.Info("task done")
	case IsPermanent(err) || t.Attempt+1 >= w.cfg.MaxAttempts:
		log.WithError(err).Error("task failed; dead-lettering")
		if derr := w.q.DeadLetter(ctx, t, err); derr != nil {
			log.WithError(derr).Error("dead-letter failed")
		}
	default:
		log.WithError(err).Warn("task failed; retrying")
		if rerr := w.q.Retry(ctx, t, err); rerr != nil {
			log.WithError(rerr).Error("retry enqueue failed")
		}
	}
}

func (w *Worker) run(ctx context.Context, t Task) (err error) {
	h, ok := w.handlers[t.Kind]
	if !ok {
		return Permanent(fmt.Errorf("no handler for task kind %q", t.Kind))
	}
	if w.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.TaskTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = Permanent(fmt.Errorf("handler panic: %v", r))
		}
	}()
	return h(ctx, t)
}
