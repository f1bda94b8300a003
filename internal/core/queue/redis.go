package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const blockTimeout = 5 * time.Second

// RedisQueue is a reliable queue on Redis lists. Dequeue moves a task into a
// processing list with BLMOVE; Ack removes it from there. Tasks left in the
// processing list by a crashed worker are returned by Reclaim.
type RedisQueue struct {
	rdb        *redis.Client
	pending    string
	processing string
	dead       string
}

var (
	_ Queue     = (*RedisQueue)(nil)
	_ Reclaimer = (*RedisQueue)(nil)

	_ DeadLetterReader = (*RedisQueue)(nil)
)

// NewRedisClient parses redisURL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// NewRedisQueue uses name as the key prefix for its three lists.
func NewRedisQueue(rdb *redis.Client, name string) *RedisQueue {
	return &RedisQueue{
		rdb:        rdb,
		pending:    name,
		processing: name + ":processing",
		dead:       name + ":dead",
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, t Task) error {
	b, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.pending, b).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", t.Kind, err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (Task, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Task{}, err
		}
		raw, err := q.rdb.BLMove(ctx, q.pending, q.processing, "RIGHT", "LEFT", blockTimeout).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if errors.Is(err, redis.ErrClosed) {
			return Task{}, ErrClosed
		}
		if err != nil {
			if ctx.Err() != nil {
				return Task{}, ctx.Err()
			}
			return Task{}, fmt.Errorf("dequeue: %w", err)
		}

		var t Task
		if err := json.Unmarshal(raw, &t); err != nil {
			// Unreadable payloads go straight to the dead list.
			_, _ = q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
				p.LRem(ctx, q.processing, 1, raw)
				p.LPush(ctx, q.dead, raw)
				return nil
			})
			continue
		}
		t.raw = raw
		return t, nil
	}
}

func (q *RedisQueue) Ack(ctx context.Context, t Task) error {
	if err := q.rdb.LRem(ctx, q.processing, 1, t.raw).Err(); err != nil {
		return fmt.Errorf("ack %s: %w", t.ID, err)
	}
	return nil
}

func (q *RedisQueue) Retry(ctx context.Context, t Task, cause error) error {
	next := t
	next.Attempt++
	if cause != nil {
		next.LastError = cause.Error()
	}
	return q.moveTo(ctx, q.pending, t, next)
}

func (q *RedisQueue) DeadLetter(ctx context.Context, t Task, cause error) error {
	parked := t
	if cause != nil {
		parked.LastError = cause.Error()
	}
	return q.moveTo(ctx, q.dead, t, parked)
}

// moveTo atomically drops the dequeued copy of t and pushes next onto list.
func (q *RedisQueue) moveTo(ctx context.Context, list string, t, next Task) error {
	b, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	_, err = q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LRem(ctx, q.processing, 1, t.raw)
		p.LPush(ctx, list, b)
		return nil
	})
	if err != nil {
		return fmt.Errorf("move %s to %s: %w", t.ID, list, err)
	}
	return nil
}

// Reclaim moves every task in the processing list back to pending. Call it
// before any worker of this queue starts.
func (q *RedisQueue) Reclaim(ctx context.Context) (int, error) {
	n := 0
	for {
		err := q.rdb.LMove(ctx, q.processing, q.pending, "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("reclaim: %w", err)
		}
		n++
	}
}

// DeadLetters returns up to limit parked tasks, newest first.
func (q *RedisQueue) DeadLetters(ctx context.Context, limit int64) ([]Task, error) {
	raws, err := q.rdb.LRange(ctx, q.dead, 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Task, 0, len(raws))
	for _, r := range raws {
		var t Task
		if json.Unmarshal([]byte(r), &t) == nil {
			out = append(out, t)
		}
	}
	return out, nil
}

func (q *RedisQueue) Close() error { return q.rdb.Close() }
