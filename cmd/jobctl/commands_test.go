package main

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/markdave123-py/jobmatch/internal/core/queue"
)

func TestWaitIdleWaitsForFanOut(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// A buffer smaller than the fan-out: the parent task blocks on Enqueue
	// until other workers make room.
	mq := queue.NewMemoryQueue(4)
	w := queue.NewWorker(mq, queue.WorkerConfig{MaxAttempts: 2})

	const users = 50
	var matched, flaky atomic.Int32
	w.Handle(queue.KindDaily, func(ctx context.Context, _ queue.Task) error {
		for i := 0; i < users; i++ {
			if err := mq.Enqueue(ctx, queue.MatchUserTask("u")); err != nil {
				return err
			}
		}
		return nil
	})
	w.Handle(queue.KindMatchUser, func(context.Context, queue.Task) error {
		if flaky.Add(1) == 1 {
			return errors.New("transient")
		}
		matched.Add(1)
		return nil
	})

	wctx, stop := context.WithCancel(ctx)
	w.Start(wctx, 3)
	if err := mq.Enqueue(ctx, queue.NewTask(queue.KindDaily)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	err := waitIdle(ctx, mq, 5*time.Millisecond)
	stop()
	w.Wait()

	if err != nil {
		t.Fatalf("waitIdle: %v", err)
	}
	if got := matched.Load(); got != users {
		t.Errorf("matched %d users, want %d", got, users)
	}
	if mq.Outstanding() != 0 || len(mq.Dead()) != 0 {
		t.Errorf("outstanding=%d dead=%d", mq.Outstanding(), len(mq.Dead()))
	}
}

func TestWaitIdleHonoursContext(t *testing.T) {
	mq := queue.NewMemoryQueue(1)
	if err := mq.Enqueue(context.Background(), queue.NewTask(queue.KindIngest)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := waitIdle(ctx, mq, time.Millisecond); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{"ingest": true, "daily": true, "match": true, "process": true, "backfill-embeddings": true, "dead-letters": true}
	for _, c := range rootCmd.Commands() {
		delete(want, c.Name())
	}
	if len(want) != 0 {
		t.Errorf("missing commands: %v", want)
	}
	if matchCmd.Flags().Lookup("user") == nil {
		t.Error("match has no --user flag")
	}
	if processCmd.Flags().Lookup("resume") == nil {
		t.Error("process has no --resume flag")
	}
}

func TestPrintDeadLetters(t *testing.T) {
	ctx := context.Background()
	mq := queue.NewMemoryQueue(4)
	var out strings.Builder
	if err := printDeadLetters(ctx, &out, mq, 10); err != nil {
		t.Fatalf("printDeadLetters: %v", err)
	}
	if !strings.Contains(out.String(), "no dead-lettered tasks") {
		t.Errorf("empty output = %q", out.String())
	}

	for _, id := range []string{"r1", "r2", "r3"} {
		task := queue.ProcessResumeTask(id)
		if err := mq.Enqueue(ctx, task); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		got, err := mq.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue: %v", err)
		}
		if err := mq.DeadLetter(ctx, got, errors.New("boom "+id)); err != nil {
			t.Fatalf("DeadLetter: %v", err)
		}
	}

	out.Reset()
	if err := printDeadLetters(ctx, &out, mq, 2); err != nil {
		t.Fatalf("printDeadLetters: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), out.String())
	}
	if !strings.Contains(lines[0], "r3") || !strings.Contains(lines[0], "boom r3") || !strings.Contains(lines[1], "r2") {
		t.Errorf("want newest first, got:\n%s", out.String())
	}
}
