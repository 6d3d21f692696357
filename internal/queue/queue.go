package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"support-mail-ingest/internal/models"

	"github.com/redis/go-redis/v9"
)

// Suffix of the Redis list holding items that exceeded their retry budget.
const deadLetterSuffix = ":dead"

// EmailQueue is a durable FIFO work queue backed by a Redis list. Raw
// emails are wrapped in a versioned QueueItem envelope and serialized as
// JSON; Redis provides atomicity for push/pop and survives process
// restarts.
type EmailQueue struct {
	rdb  *redis.Client
	name string
}

// New creates an EmailQueue over the given Redis client using the named list.
func New(rdb *redis.Client, name string) *EmailQueue {
	return &EmailQueue{rdb: rdb, name: name}
}

// Enqueue wraps the email in a fresh envelope and appends it to the queue tail.
func (q *EmailQueue) Enqueue(ctx context.Context, email models.RawEmail) error {
	item := models.QueueItem{Version: models.QueueItemVersion, Email: email}
	return q.push(ctx, q.name, &item)
}

// Requeue puts a failed item back on the queue tail, keeping its envelope
// (attempt count, last error) as set by the caller.
func (q *EmailQueue) Requeue(ctx context.Context, item *models.QueueItem) error {
	return q.push(ctx, q.name, item)
}

// DeadLetter moves an item that exceeded its retry budget onto the
// dead-letter list for operator inspection.
func (q *EmailQueue) DeadLetter(ctx context.Context, item *models.QueueItem) error {
	return q.push(ctx, q.name+deadLetterSuffix, item)
}

func (q *EmailQueue) push(ctx context.Context, key string, item *models.QueueItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("serializing queue item: %w", err)
	}
	if err := q.rdb.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("pushing to %s: %w", key, err)
	}
	return nil
}

// Dequeue pops the queue head, or returns nil when the queue is empty.
func (q *EmailQueue) Dequeue(ctx context.Context) (*models.QueueItem, error) {
	data, err := q.rdb.LPop(ctx, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("popping from %s: %w", q.name, err)
	}
	return decodeItem(data)
}

// DequeueWait blocks up to timeout for the queue head, returning nil when
// nothing arrived. This is what the worker loop uses instead of spinning
// on Dequeue.
func (q *EmailQueue) DequeueWait(ctx context.Context, timeout time.Duration) (*models.QueueItem, error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("blocking pop from %s: %w", q.name, err)
	}
	// BLPOP replies [key, value].
	if len(res) < 2 {
		return nil, fmt.Errorf("unexpected BLPOP reply of %d elements", len(res))
	}
	return decodeItem(res[1])
}

func decodeItem(data string) (*models.QueueItem, error) {
	var item models.QueueItem
	if err := json.Unmarshal([]byte(data), &item); err != nil {
		return nil, fmt.Errorf("deserializing queue item: %w", err)
	}
	return &item, nil
}

// Len returns the number of unprocessed items on the queue.
func (q *EmailQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.rdb.LLen(ctx, q.name).Result()
	if err != nil {
		return 0, fmt.Errorf("reading length of %s: %w", q.name, err)
	}
	return n, nil
}

// IsEmpty backs the poller's backpressure gate. The gate is soft: a race
// between this check and a later enqueue is acceptable.
func (q *EmailQueue) IsEmpty(ctx context.Context) (bool, error) {
	n, err := q.Len(ctx)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// Set stores an auxiliary key/value pair in the queue backend.
func (q *EmailQueue) Set(ctx context.Context, key, value string) error {
	return q.rdb.Set(ctx, key, value, 0).Err()
}

// Get retrieves an auxiliary value, or "" if the key is unset.
func (q *EmailQueue) Get(ctx context.Context, key string) (string, error) {
	val, err := q.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}
