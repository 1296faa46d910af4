package worker

// dlq.go: jobs that exhaust their attempts are parked in dlq:{queue} for
// manual inspection and replay.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	DLQPrefix = "dlq:"

	defaultReplayLimit = 100
)

// DLQClient is the part of *redis.Client that inspects and drains the DLQ.
type DLQClient interface {
	QueueClient
	RPop(ctx context.Context, key string) *redis.StringCmd
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
}

// DLQEntry wraps a failed job with what is needed to replay it.
type DLQEntry struct {
	OriginalQueue string          `json:"original_queue"`
	JobType       string          `json:"job_type"`
	Payload       json.RawMessage `json:"payload"`
	Reason        string          `json:"reason"`
	FailedAt      time.Time       `json:"failed_at"`
	Attempts      int             `json:"attempts"`
}

// SendToDLQ parks a job in the dead letter queue of its source queue.
func SendToDLQ(ctx context.Context, rdb QueueClient, queue string, job Job, reason string) error {
	entry := DLQEntry{
		OriginalQueue: queue,
		JobType:       job.Type,
		Payload:       job.Payload,
		Reason:        reason,
		FailedAt:      time.Now().UTC(),
		Attempts:      job.Attempts,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("dlq: marshal entry: %w", err)
	}
	key := DLQPrefix + queue
	if err := rdb.LPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("dlq: push to %s: %w", key, err)
	}

	log.Warn().
		Str("queue", queue).
		Str("job_type", job.Type).
		Str("reason", reason).
		Int("attempts", job.Attempts).
		Msg("dlq: job moved to dead letter queue")
	return nil
}

// DLQLength returns the number of parked entries for a queue.
func DLQLength(ctx context.Context, rdb DLQClient, queue string) (int64, error) {
	return rdb.LLen(ctx, DLQPrefix+queue).Result()
}

// ReplayDLQ moves up to limit of the oldest parked entries back onto the
// queue they failed on, with a fresh attempt budget. It stops at the first
// entry it cannot decode or requeue and puts that entry back at the tail,
// so it stays the oldest parked entry.
func ReplayDLQ(ctx context.Context, rdb DLQClient, queue string, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultReplayLimit
	}
	key := DLQPrefix + queue
	replayed := 0
	for replayed < limit {
		raw, err := rdb.RPop(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return replayed, fmt.Errorf("dlq: pop %s: %w", key, err)
		}

		var entry DLQEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return replayed, restore(ctx, rdb, key, raw, fmt.Errorf("dlq: undecodable entry in %s: %w", key, err))
		}
		target := entry.OriginalQueue
		if target == "" {
			target = queue
		}
		data, err := json.Marshal(Job{Type: entry.JobType, Payload: entry.Payload})
		if err != nil {
			return replayed, restore(ctx, rdb, key, raw, fmt.Errorf("dlq: marshal job: %w", err))
		}
		if err := rdb.LPush(context.WithoutCancel(ctx), target, data).Err(); err != nil {
			return replayed, restore(ctx, rdb, key, raw, fmt.Errorf("dlq: requeue to %s: %w", target, err))
		}
		replayed++
	}

	if replayed > 0 {
		log.Info().Str("queue", queue).Int("replayed", replayed).Msg("dlq: entries requeued")
	}
	return replayed, nil
}

// restore puts a popped entry back where RPop took it from. If that also
// fails the entry is logged in full so it can be re-parked by hand.
func restore(ctx context.Context, rdb DLQClient, key, raw string, cause error) error {
	if err := rdb.RPush(context.WithoutCancel(ctx), key, raw).Err(); err != nil {
		log.Error().Err(err).Str("key", key).Str("entry", raw).Msg("dlq: entry lost during replay")
		return errors.Join(cause, fmt.Errorf("dlq: restore to %s: %w", key, err))
	}
	return cause
}
