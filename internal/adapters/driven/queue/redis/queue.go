// Package redis implements driven.TaskQueue on a Redis stream with a
// consumer group. Delayed and retried tasks wait in a sorted set until due.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
	"github.com/laws-africa/peachjam/internal/logger"
)

// Ensure Queue implements the interface.
var _ driven.TaskQueue = (*Queue)(nil)

const (
	// DefaultPrefix namespaces the queue keys.
	DefaultPrefix = "peachjam:tasks"

	// DefaultClaimIdle is how long a delivered task may stay unacknowledged
	// before another consumer reclaims it.
	DefaultClaimIdle = 30 * time.Minute

	// promoteBatch caps the delayed tasks moved to the stream per dequeue.
	promoteBatch = 100

	taskField = "task"
)

// releaseLatest clears the latest-signature marker only if it still points
// at the finished task.
var releaseLatest = redis.NewScript(`
if redis.call("HGET", KEYS[1], ARGV[1]) == ARGV[2] then
  return redis.call("HDEL", KEYS[1], ARGV[1])
end
return 0
`)

// Option configures a Queue.
type Option func(*Queue)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(q *Queue) {
		if prefix != "" {
			q.prefix = prefix
		}
	}
}

// WithConsumer sets the consumer name within the group.
func WithConsumer(name string) Option {
	return func(q *Queue) {
		if name != "" {
			q.consumer = name
		}
	}
}

// WithClaimIdle sets the idle time after which unacknowledged tasks are reclaimed.
func WithClaimIdle(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.claimIdle = d
		}
	}
}

// Queue is a durable task queue backed by Redis.
type Queue struct {
	client    *redis.Client
	prefix    string
	consumer  string
	claimIdle time.Duration
	now       func() time.Time

	mu       sync.Mutex
	inflight map[string]string // task id -> stream entry id
}

// New creates a queue over client and ensures its consumer group exists.
func New(ctx context.Context, client *redis.Client, opts ...Option) (*Queue, error) {
	q := &Queue{
		client:    client,
		prefix:    DefaultPrefix,
		consumer:  "worker-" + uuid.NewString()[:8],
		claimIdle: DefaultClaimIdle,
		now:       time.Now,
		inflight:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(q)
	}
	if err := client.XGroupCreateMkStream(ctx, q.stream(), q.group(), "0").Err(); err != nil {
		if !strings.Contains(err.Error(), "BUSYGROUP") {
			return nil, fmt.Errorf("xgroup create: %w", err)
		}
	}
	return q, nil
}

// Dial connects to the Redis server at url, e.g. "redis://localhost:6379/0".
func Dial(ctx context.Context, url string, opts ...Option) (*Queue, error) {
	o, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	client := redis.NewClient(o)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(ctx, client, opts...)
}

func (q *Queue) stream() string  { return q.prefix + ":stream" }
func (q *Queue) group() string   { return q.prefix + ":workers" }
func (q *Queue) delayed() string { return q.prefix + ":delayed" }
func (q *Queue) latest() string  { return q.prefix + ":latest" }

// Enqueue adds a task. With RemoveExisting, earlier pending tasks with the
// same signature are superseded and skipped when dequeued.
func (q *Queue) Enqueue(ctx context.Context, task domain.Task, opts domain.TaskOptions) (string, error) {
	now := q.now().UTC()
	task.ID = uuid.NewString()
	task.CreatedAt = now
	task.RunAt = now.Add(opts.Delay)

	raw, err := json.Marshal(task)
	if err != nil {
		return "", fmt.Errorf("encoding task: %w", err)
	}

	_, err = q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if opts.RemoveExisting {
			p.HSet(ctx, q.latest(), task.Signature, task.ID)
		}
		if opts.Delay > 0 {
			p.ZAdd(ctx, q.delayed(), redis.Z{Score: float64(task.RunAt.UnixMilli()), Member: raw})
		} else {
			p.XAdd(ctx, &redis.XAddArgs{Stream: q.stream(), Values: map[string]interface{}{taskField: raw}})
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", task.Name, err)
	}
	return task.ID, nil
}

// Dequeue returns the next due task, waiting up to wait for one to arrive.
func (q *Queue) Dequeue(ctx context.Context, wait time.Duration) (*domain.Task, error) {
	if err := q.promote(ctx); err != nil {
		return nil, err
	}

	for {
		msg, err := q.claim(ctx)
		if err != nil {
			return nil, err
		}
		if msg == nil {
			msg, err = q.read(ctx, wait)
			if err != nil || msg == nil {
				return nil, err
			}
		}

		task, err := decode(msg)
		if err != nil {
			logger.Warn("task queue: dropping undecodable entry %s: %v", msg.ID, err)
			if err := q.remove(ctx, msg.ID); err != nil {
				return nil, err
			}
			continue
		}

		superseded, err := q.superseded(ctx, task)
		if err != nil {
			return nil, err
		}
		if superseded {
			logger.Debug("task queue: skipping superseded %s %s", task.Name, task.ID)
			if err := q.remove(ctx, msg.ID); err != nil {
				return nil, err
			}
			continue
		}

		q.mu.Lock()
		q.inflight[task.ID] = msg.ID
		q.mu.Unlock()
		return task, nil
	}
}

// promote moves due delayed tasks onto the stream.
func (q *Queue) promote(ctx context.Context) error {
	due, err := q.client.ZRangeByScore(ctx, q.delayed(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprint(q.now().UnixMilli()),
		Count: promoteBatch,
	}).Result()
	if err != nil {
		return fmt.Errorf("zrangebyscore: %w", err)
	}
	for _, member := range due {
		removed, err := q.client.ZRem(ctx, q.delayed(), member).Result()
		if err != nil {
			return fmt.Errorf("zrem: %w", err)
		}
		if removed == 0 {
			// another consumer promoted it
			continue
		}
		err = q.client.XAdd(ctx, &redis.XAddArgs{
			Stream: q.stream(),
			Values: map[string]interface{}{taskField: member},
		}).Err()
		if err != nil {
			return fmt.Errorf("xadd: %w", err)
		}
	}
	return nil
}

// claim takes over one entry left unacknowledged by a dead consumer.
func (q *Queue) claim(ctx context.Context) (*redis.XMessage, error) {
	msgs, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream(),
		Group:    q.group(),
		Consumer: q.consumer,
		MinIdle:  q.claimIdle,
		Start:    "0-0",
		Count:    1,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("xautoclaim: %w", err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return &msgs[0], nil
}

func (q *Queue) read(ctx context.Context, wait time.Duration) (*redis.XMessage, error) {
	block := wait
	if block <= 0 {
		block = -1
	}
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group(),
		Consumer: q.consumer,
		Streams:  []string{q.stream(), ">"},
		Count:    1,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}
	for _, st := range streams {
		if len(st.Messages) > 0 {
			return &st.Messages[0], nil
		}
	}
	return nil, nil
}

func decode(msg *redis.XMessage) (*domain.Task, error) {
	raw, ok := msg.Values[taskField].(string)
	if !ok {
		return nil, errors.New("missing task field")
	}
	var task domain.Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// superseded reports whether a newer task with the same signature was enqueued.
func (q *Queue) superseded(ctx context.Context, task *domain.Task) (bool, error) {
	latest, err := q.client.HGet(ctx, q.latest(), task.Signature).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("hget: %w", err)
	}
	return latest != task.ID, nil
}

// remove acknowledges and deletes a stream entry.
func (q *Queue) remove(ctx context.Context, entryID string) error {
	_, err := q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.XAck(ctx, q.stream(), q.group(), entryID)
		p.XDel(ctx, q.stream(), entryID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}

func (q *Queue) takeInflight(task *domain.Task) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	entryID, ok := q.inflight[task.ID]
	if !ok {
		return "", fmt.Errorf("task %s: %w", task.ID, domain.ErrNotFound)
	}
	delete(q.inflight, task.ID)
	return entryID, nil
}

// Ack marks a dequeued task as done.
func (q *Queue) Ack(ctx context.Context, task *domain.Task) error {
	entryID, err := q.takeInflight(task)
	if err != nil {
		return err
	}
	if err := q.remove(ctx, entryID); err != nil {
		return err
	}
	if err := releaseLatest.Run(ctx, q.client, []string{q.latest()}, task.Signature, task.ID).Err(); err != nil {
		return fmt.Errorf("release signature: %w", err)
	}
	return nil
}

// Retry re-schedules a dequeued task after delay.
func (q *Queue) Retry(ctx context.Context, task *domain.Task, delay time.Duration) error {
	entryID, err := q.takeInflight(task)
	if err != nil {
		return err
	}
	task.Attempt++
	task.RunAt = q.now().UTC().Add(delay)
	raw, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encoding task: %w", err)
	}
	_, err = q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAdd(ctx, q.delayed(), redis.Z{Score: float64(task.RunAt.UnixMilli()), Member: raw})
		p.XAck(ctx, q.stream(), q.group(), entryID)
		p.XDel(ctx, q.stream(), entryID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("retry %s: %w", task.Name, err)
	}
	return nil
}

// Pending returns the number of queued, delayed and in-flight tasks.
func (q *Queue) Pending(ctx context.Context) (int, error) {
	var streamLen, delayedLen *redis.IntCmd
	_, err := q.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		streamLen = p.XLen(ctx, q.stream())
		delayedLen = p.ZCard(ctx, q.delayed())
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("pending: %w", err)
	}
	return int(streamLen.Val() + delayedLen.Val()), nil
}

// Close closes the Redis client.
func (q *Queue) Close() error {
	return q.client.Close()
}
