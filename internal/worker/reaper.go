package worker

// reaper.go
// Background goroutine that periodically releases stock held by PENDING
// reservations whose deadline passed, then tells the order service about
// each one. Notification is fire-and-forget: its failure never fails a run.

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stockreserve/internal/metrics"
	"stockreserve/internal/model"
	"stockreserve/internal/service"

	"github.com/rs/zerolog/log"
)

const (
	defaultReaperInterval = 2 * time.Minute
	defaultReaperBatch    = 500
	defaultNotifyTimeout  = 5 * time.Second
)

// Expirer is the engine side of a sweep.
type Expirer interface {
	ExpireOverdue(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error)
}

// ReaperConfig holds the reaper's dependencies. Notifier, Metrics and Now
// are optional.
type ReaperConfig struct {
	Engine        Expirer
	Notifier      service.OrderNotifier
	Metrics       *metrics.Metrics
	Interval      time.Duration
	BatchSize     int
	NotifyTimeout time.Duration
	Now           func() time.Time
}

type Reaper struct {
	cfg ReaperConfig

	mu       sync.Mutex
	cancel   context.CancelFunc
	loop     sync.WaitGroup
	inFlight sync.WaitGroup
}

func NewReaper(cfg ReaperConfig) *Reaper {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultReaperInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultReaperBatch
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = defaultNotifyTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Reaper{cfg: cfg}
}

// Start launches the ticker loop. Calling Start on a running reaper does
// nothing.
func (r *Reaper) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)

	r.loop.Add(1)
	go func() {
		defer r.loop.Done()
		ticker := time.NewTicker(r.cfg.Interval)
		defer ticker.Stop()

		log.Info().Dur("interval", r.cfg.Interval).Int("batch_size", r.cfg.BatchSize).Msg("reaper: started")
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("reaper: shutting down")
				return
			case <-ticker.C:
				// a failed tick is retried on the next one
				if _, err := r.RunOnce(ctx); err != nil {
					log.Error().Err(err).Msg("reaper: sweep failed")
				}
			}
		}
	}()
}

// Stop halts the loop and waits for it and for in-flight notifications.
func (r *Reaper) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.loop.Wait()
	r.inFlight.Wait()
}

// RunOnce performs one sweep and returns the number of reservations it
// expired. Notifications are started but not awaited.
func (r *Reaper) RunOnce(ctx context.Context) (int, error) {
	expired, err := r.cfg.Engine.ExpireOverdue(ctx, r.cfg.Now(), r.cfg.BatchSize)
	if err != nil {
		r.cfg.Metrics.ReaperRun("error", 0, 0)
		return 0, fmt.Errorf("reaper: expire overdue: %w", err)
	}
	if len(expired) == 0 {
		r.cfg.Metrics.ReaperRun("idle", 0, 0)
		return 0, nil
	}

	units := 0
	for _, res := range expired {
		units += res.Quantity
	}
	r.cfg.Metrics.ReaperRun("expired", len(expired), units)
	log.Info().Int("count", len(expired)).Int("units", units).Msg("reaper: reservations expired")

	for _, res := range expired {
		r.notify(res)
	}
	return len(expired), nil
}

func (r *Reaper) notify(res model.Reservation) {
	if r.cfg.Notifier == nil {
		return
	}
	r.inFlight.Add(1)
	go func() {
		defer r.inFlight.Done()
		// detached from the sweep: a shutdown must not abort a delivery
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.NotifyTimeout)
		defer cancel()

		if err := r.cfg.Notifier.NotifyExpired(ctx, res.OrderID); err != nil {
			r.cfg.Metrics.Notification("reaper", "error")
			log.Warn().Err(err).
				Str("order_id", res.OrderID).
				Str("reservation_id", res.ID.String()).
				Msg("reaper: order notification failed")
			return
		}
		r.cfg.Metrics.Notification("reaper", "ok")
	}()
}
