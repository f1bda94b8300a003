package queue

import (
	"context"
	"os"
	"testing"
)

// Runs against a real Redis when JOBMATCH_TEST_REDIS_URL is set.
func TestRedisQueueRoundTrip(t *testing.T) {
	url := os.Getenv("JOBMATCH_TEST_REDIS_URL")
	if url == "" {
		t.Skip("JOBMATCH_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	rdb, err := NewRedisClient(ctx, url)
	if err != nil {
		t.Fatalf("NewRedisClient: %v", err)
	}
	name := "jobmatch:test:" + t.Name()
	q := NewRedisQueue(rdb, name)
	t.Cleanup(func() {
		rdb.Del(ctx, q.pending, q.processing, q.dead)
		_ = q.Close()
	})

	if err := q.Enqueue(ctx, ProcessResumeTask("r1")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	got, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if got.ResumeID != "r1" {
		t.Errorf("got %+v", got)
	}

	// An unacknowledged task is reclaimed.
	if n, err := q.Reclaim(ctx); err != nil || n != 1 {
		t.Fatalf("Reclaim = (%d, %v), want (1, nil)", n, err)
	}
	again, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if err := q.Retry(ctx, again, nil); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	retried, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if retried.Attempt != 1 {
		t.Errorf("attempt = %d, want 1", retried.Attempt)
	}
	if err := q.DeadLetter(ctx, retried, nil); err != nil {
		t.Fatalf("DeadLetter: %v", err)
	}
	dead, err := q.DeadLetters(ctx, 10)
	if err != nil || len(dead) != 1 {
		t.Fatalf("DeadLetters = (%v, %v)", dead, err)
	}
	if n := rdb.LLen(ctx, q.processing).Val(); n != 0 {
		t.Errorf("processing list has %d entries, want 0", n)
	}
}
