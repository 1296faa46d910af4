package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"stockreserve/internal/metrics"
	"stockreserve/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueOrderExpired = "jobs:order_expired"
	JobOrderExpired   = "order_expired"

	popTimeout     = 5 * time.Second
	maxBackoff     = 30 * time.Second
	defaultWorkers = 4
	defaultRetries = 5
)

// QueueClient is the part of *redis.Client the queue uses.
type QueueClient interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

// Job is the envelope stored in Redis lists.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

type orderExpiredPayload struct {
	OrderID string `json:"order_id"`
}

// Handler delivers one job. A returned error schedules a retry.
type Handler func(ctx context.Context, job Job) error

// Dispatcher is the queued OrderNotifier: NotifyExpired only enqueues, the
// pool delivers.
type Dispatcher struct {
	rdb QueueClient
}

var _ service.OrderNotifier = (*Dispatcher)(nil)

func NewDispatcher(rdb QueueClient) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

func (d *Dispatcher) NotifyExpired(ctx context.Context, orderID string) error {
	return d.enqueue(ctx, QueueOrderExpired, JobOrderExpired, orderExpiredPayload{OrderID: orderID})
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(Job{Type: jobType, Payload: data})
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// OrderExpiredHandler delivers order_expired jobs through notifier, each
// attempt bounded by timeout.
func OrderExpiredHandler(notifier service.OrderNotifier, timeout time.Duration) Handler {
	return func(ctx context.Context, job Job) error {
		var p orderExpiredPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return notifier.NotifyExpired(ctx, p.OrderID)
	}
}

// PoolConfig wires the worker pool. Handlers maps job types to handlers;
// Metrics is optional.
type PoolConfig struct {
	RDB         QueueClient
	Queues      []string
	Handlers    map[string]Handler
	Workers     int
	MaxAttempts int
	Metrics     *metrics.Metrics
	// Backoff returns the pause before a failed job is re-enqueued.
	Backoff func(attempt int) time.Duration
}

type Pool struct {
	cfg PoolConfig
	wg  sync.WaitGroup
}

// StartWorkerPool launches cfg.Workers goroutines blocked on BRPOP. They
// exit when ctx is cancelled; Wait blocks until they have.
func StartWorkerPool(ctx context.Context, cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultRetries
	}
	if len(cfg.Queues) == 0 {
		cfg.Queues = []string{QueueOrderExpired}
	}
	if cfg.Backoff == nil {
		cfg.Backoff = linearBackoff
	}
	p := &Pool{cfg: cfg}
	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
	log.Info().Int("workers", cfg.Workers).Strs("queues", cfg.Queues).Msg("worker pool started")
	return p
}

func (p *Pool) Wait() { p.wg.Wait() }

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			log.Info().Int("worker", id).Msg("worker shutting down")
			return
		default:
		}

		result, err := p.cfg.RDB.BRPop(ctx, popTimeout, p.cfg.Queues...).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				log.Error().Err(err).Int("worker", id).Msg("worker: pop failed")
				sleep(ctx, time.Second)
			}
			continue
		}
		if len(result) < 2 {
			continue
		}
		p.process(ctx, result[0], result[1])
	}
}

func (p *Pool) process(ctx context.Context, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("worker: malformed job")
		payload, _ := json.Marshal(raw)
		p.park(ctx, queue, Job{Type: "unknown", Payload: payload}, "malformed job: "+err.Error())
		return
	}
	handler, ok := p.cfg.Handlers[job.Type]
	if !ok {
		p.park(ctx, queue, job, "no handler for job type "+job.Type)
		return
	}

	err := handler(ctx, job)
	if err == nil {
		p.cfg.Metrics.Notification("worker", "ok")
		return
	}
	job.Attempts++
	p.cfg.Metrics.Notification("worker", "error")
	if job.Attempts >= p.cfg.MaxAttempts {
		p.park(ctx, queue, job, err.Error())
		return
	}

	log.Warn().Err(err).Str("queue", queue).Int("attempt", job.Attempts).Msg("worker: job failed, retrying")
	sleep(ctx, p.cfg.Backoff(job.Attempts))
	encoded, mErr := json.Marshal(job)
	if mErr != nil {
		p.park(ctx, queue, job, mErr.Error())
		return
	}
	// re-enqueue even during shutdown so the job is not lost
	if pErr := p.cfg.RDB.LPush(context.WithoutCancel(ctx), queue, encoded).Err(); pErr != nil {
		log.Error().Err(pErr).Str("queue", queue).Msg("worker: re-enqueue failed")
	}
}

func (p *Pool) park(ctx context.Context, queue string, job Job, reason string) {
	if err := SendToDLQ(context.WithoutCancel(ctx), p.cfg.RDB, queue, job, reason); err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("worker: job dropped")
	}
}

func linearBackoff(attempt int) time.Duration {
	d := time.Duration(attempt) * time.Second
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
