package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── In-memory QueueClient stub ───────────────────────────────────────────────

type stubQueue struct {
	mu    sync.Mutex
	lists map[string][]string
	// pushErr fails LPush for the listed keys.
	pushErr map[string]error
}

var _ DLQClient = (*stubQueue)(nil)

func newStubQueue() *stubQueue { return &stubQueue{lists: make(map[string][]string)} }

func (q *stubQueue) LPush(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.pushErr[key]; err != nil {
		return redis.NewIntResult(0, err)
	}
	for _, v := range values {
		q.lists[key] = append([]string{asString(v)}, q.lists[key]...)
	}
	return redis.NewIntResult(int64(len(q.lists[key])), nil)
}

func (q *stubQueue) RPush(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, v := range values {
		q.lists[key] = append(q.lists[key], asString(v))
	}
	return redis.NewIntResult(int64(len(q.lists[key])), nil)
}

func asString(v interface{}) string {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case string:
		return x
	}
	return ""
}

func (q *stubQueue) BRPop(ctx context.Context, _ time.Duration, keys ...string) *redis.StringSliceCmd {
	q.mu.Lock()
	for _, k := range keys {
		if l := q.lists[k]; len(l) > 0 {
			v := l[len(l)-1]
			q.lists[k] = l[:len(l)-1]
			q.mu.Unlock()
			return redis.NewStringSliceResult([]string{k, v}, nil)
		}
	}
	q.mu.Unlock()
	select {
	case <-ctx.Done():
		return redis.NewStringSliceResult(nil, ctx.Err())
	case <-time.After(5 * time.Millisecond):
		return redis.NewStringSliceResult(nil, redis.Nil)
	}
}

func (q *stubQueue) RPop(_ context.Context, key string) *redis.StringCmd {
	q.mu.Lock()
	defer q.mu.Unlock()
	l := q.lists[key]
	if len(l) == 0 {
		return redis.NewStringResult("", redis.Nil)
	}
	v := l[len(l)-1]
	q.lists[key] = l[:len(l)-1]
	return redis.NewStringResult(v, nil)
}

func (q *stubQueue) LLen(_ context.Context, key string) *redis.IntCmd {
	q.mu.Lock()
	defer q.mu.Unlock()
	return redis.NewIntResult(int64(len(q.lists[key])), nil)
}

func (q *stubQueue) list(key string) []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.lists[key]...)
}

func noBackoff(int) time.Duration { return 0 }

// ── Tests ────────────────────────────────────────────────────────────────────

func TestDispatcher_EnqueuesOrderExpiredJob(t *testing.T) {
	q := newStubQueue()
	require.NoError(t, NewDispatcher(q).NotifyExpired(context.Background(), "order-9"))

	items := q.list(QueueOrderExpired)
	require.Len(t, items, 1)
	var job Job
	require.NoError(t, json.Unmarshal([]byte(items[0]), &job))
	assert.Equal(t, JobOrderExpired, job.Type)
	assert.Zero(t, job.Attempts)
	assert.JSONEq(t, `{"order_id":"order-9"}`, string(job.Payload))
}

func TestPool_DeliversThroughHandler(t *testing.T) {
	q := newStubQueue()
	notifier := &stubNotifier{}
	ctx, cancel := context.WithCancel(context.Background())

	pool := StartWorkerPool(ctx, PoolConfig{
		RDB:      q,
		Handlers: map[string]Handler{JobOrderExpired: OrderExpiredHandler(notifier, time.Second)},
		Workers:  2,
	})
	d := NewDispatcher(q)
	require.NoError(t, d.NotifyExpired(ctx, "o1"))
	require.NoError(t, d.NotifyExpired(ctx, "o2"))

	require.Eventually(t, func() bool { return len(notifier.calls()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	pool.Wait()
	assert.ElementsMatch(t, []string{"o1", "o2"}, notifier.calls())
}

func TestPool_RetriesThenParksInDLQ(t *testing.T) {
	q := newStubQueue()
	var attempts int32
	p := &Pool{cfg: PoolConfig{
		RDB: q,
		Handlers: map[string]Handler{JobOrderExpired: func(context.Context, Job) error {
			atomic.AddInt32(&attempts, 1)
			return errors.New("order service returned 503")
		}},
		MaxAttempts: 3,
		Backoff:     noBackoff,
	}}
	ctx := context.Background()
	require.NoError(t, NewDispatcher(q).NotifyExpired(ctx, "o1"))

	for i := 0; i < 3; i++ {
		res, err := q.BRPop(ctx, 0, QueueOrderExpired).Result()
		require.NoError(t, err, "attempt %d", i+1)
		p.process(ctx, res[0], res[1])
	}

	assert.EqualValues(t, 3, attempts)
	assert.Empty(t, q.list(QueueOrderExpired))
	dlq := q.list(DLQPrefix + QueueOrderExpired)
	require.Len(t, dlq, 1)

	var entry DLQEntry
	require.NoError(t, json.Unmarshal([]byte(dlq[0]), &entry))
	assert.Equal(t, QueueOrderExpired, entry.OriginalQueue)
	assert.Equal(t, 3, entry.Attempts)
	assert.Contains(t, entry.Reason, "503")
	assert.JSONEq(t, `{"order_id":"o1"}`, string(entry.Payload))
}

func TestPool_UnknownAndMalformedJobsGoToDLQ(t *testing.T) {
	q := newStubQueue()
	p := &Pool{cfg: PoolConfig{RDB: q, Handlers: map[string]Handler{}, MaxAttempts: 1, Backoff: noBackoff}}
	ctx := context.Background()

	p.process(ctx, QueueOrderExpired, `{"type":"mystery","payload":{}}`)
	p.process(ctx, QueueOrderExpired, `not json`)
	p.process(ctx, QueueOrderExpired, "\xff{")

	parked := q.list(DLQPrefix + QueueOrderExpired)
	require.Len(t, parked, 3)
	var entry DLQEntry
	require.NoError(t, json.Unmarshal([]byte(parked[0]), &entry))
	assert.Equal(t, "unknown", entry.JobType)
	var original string
	require.NoError(t, json.Unmarshal(entry.Payload, &original))
	assert.Equal(t, "\ufffd{", original)
}

func TestLinearBackoff(t *testing.T) {
	assert.Equal(t, time.Second, linearBackoff(1))
	assert.Equal(t, 4*time.Second, linearBackoff(4))
	assert.Equal(t, maxBackoff, linearBackoff(1000))
}

func TestReplayDLQ_RequeuesWithFreshAttempts(t *testing.T) {
	q := newStubQueue()
	ctx := context.Background()
	for _, id := range []string{"o1", "o2", "o3"} {
		payload, _ := json.Marshal(orderExpiredPayload{OrderID: id})
		require.NoError(t, SendToDLQ(ctx, q, QueueOrderExpired, Job{Type: JobOrderExpired, Payload: payload, Attempts: 5}, "503"))
	}

	n, err := ReplayDLQ(ctx, q, QueueOrderExpired, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, err := DLQLength(ctx, q, QueueOrderExpired)
	require.NoError(t, err)
	assert.EqualValues(t, 1, left)

	// oldest parked entries go back first
	items := q.list(QueueOrderExpired)
	require.Len(t, items, 2)
	var job Job
	require.NoError(t, json.Unmarshal([]byte(items[1]), &job))
	assert.Equal(t, JobOrderExpired, job.Type)
	assert.Zero(t, job.Attempts)
	assert.JSONEq(t, `{"order_id":"o1"}`, string(job.Payload))

	n, err = ReplayDLQ(ctx, q, QueueOrderExpired, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReplayDLQ_KeepsEntryWhenRequeueFails(t *testing.T) {
	q := newStubQueue()
	ctx := context.Background()
	require.NoError(t, SendToDLQ(ctx, q, QueueOrderExpired, Job{Type: "first", Payload: json.RawMessage(`{}`)}, "x"))
	require.NoError(t, SendToDLQ(ctx, q, QueueOrderExpired, Job{Type: "second", Payload: json.RawMessage(`{}`)}, "x"))
	before := q.list(DLQPrefix + QueueOrderExpired)
	q.pushErr = map[string]error{QueueOrderExpired: errors.New("connection reset")}

	n, err := ReplayDLQ(ctx, q, QueueOrderExpired, 10)
	assert.ErrorContains(t, err, "connection reset")
	assert.Zero(t, n)
	assert.Equal(t, before, q.list(DLQPrefix+QueueOrderExpired))
	assert.Empty(t, q.list(QueueOrderExpired))

	q.pushErr = nil
	n, err = ReplayDLQ(ctx, q, QueueOrderExpired, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, q.list(DLQPrefix+QueueOrderExpired))
}

func TestReplayDLQ_StopsOnUndecodableEntry(t *testing.T) {
	q := newStubQueue()
	ctx := context.Background()
	q.LPush(ctx, DLQPrefix+QueueOrderExpired, "not json")

	n, err := ReplayDLQ(ctx, q, QueueOrderExpired, 10)
	assert.Error(t, err)
	assert.Zero(t, n)
	assert.Len(t, q.list(DLQPrefix+QueueOrderExpired), 1)
}
