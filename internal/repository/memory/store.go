// Package memory is a process-local backend for the ledger and the
// reservation store. Transactions are serialized and roll back by
// restoring a snapshot, which gives the same isolation a single-writer
// database would.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"stockreserve/internal/model"
	"stockreserve/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrCheckViolation mirrors the non-negative CHECK constraints of the
	// SQL schema.
	ErrCheckViolation = errors.New("memory: counter would become negative")
	// ErrOutOfRange mirrors the INTEGER column range.
	ErrOutOfRange = errors.New("memory: value out of integer range")
)

type Store struct {
	txMu sync.Mutex

	mu           sync.RWMutex
	stocks       map[string]*model.StockRecord
	reservations map[uuid.UUID]*model.Reservation
	movements    []model.StockMovement
}

func NewStore() *Store {
	return &Store{
		stocks:       make(map[string]*model.StockRecord),
		reservations: make(map[uuid.UUID]*model.Reservation),
	}
}

var (
	_ repository.Transactor              = (*Store)(nil)
	_ repository.StockRepository         = (*stockRepo)(nil)
	_ repository.ReservationRepository   = (*reservationRepo)(nil)
	_ repository.StockMovementRepository = (*movementRepo)(nil)
)

func (s *Store) Stocks() repository.StockRepository             { return &stockRepo{s} }
func (s *Store) Reservations() repository.ReservationRepository { return &reservationRepo{s} }
func (s *Store) Movements() repository.StockMovementRepository  { return &movementRepo{s} }

// WithinTx runs fn with exclusive write access. fn receives a nil *gorm.DB;
// the repositories of this package ignore it.
func (s *Store) WithinTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(nil); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	stocks       map[string]model.StockRecord
	reservations map[uuid.UUID]model.Reservation
	movements    int
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := snapshot{
		stocks:       make(map[string]model.StockRecord, len(s.stocks)),
		reservations: make(map[uuid.UUID]model.Reservation, len(s.reservations)),
		movements:    len(s.movements),
	}
	for k, v := range s.stocks {
		snap.stocks[k] = *v
	}
	for k, v := range s.reservations {
		snap.reservations[k] = *v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stocks = make(map[string]*model.StockRecord, len(snap.stocks))
	for k, v := range snap.stocks {
		rec := v
		s.stocks[k] = &rec
	}
	s.reservations = make(map[uuid.UUID]*model.Reservation, len(snap.reservations))
	for k, v := range snap.reservations {
		res := v
		s.reservations[k] = &res
	}
	s.movements = s.movements[:snap.movements]
}

// ── Stock ledger ─────────────────────────────────────────────────────────────

type stockRepo struct{ s *Store }

func (r *stockRepo) Get(_ context.Context, sku string) (*model.StockRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rec, ok := r.s.stocks[sku]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrProductNotFound, sku)
	}
	out := *rec
	return &out, nil
}

func (r *stockRepo) BulkGet(_ context.Context, skus []string) (map[string]*model.StockRecord, error) {
	return r.bulk(skus), nil
}

func (r *stockRepo) BulkGetForUpdate(_ *gorm.DB, skus []string) (map[string]*model.StockRecord, error) {
	return r.bulk(skus), nil
}

func (r *stockRepo) bulk(skus []string) map[string]*model.StockRecord {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make(map[string]*model.StockRecord, len(skus))
	for _, sku := range skus {
		if rec, ok := r.s.stocks[sku]; ok {
			c := *rec
			out[sku] = &c
		}
	}
	return out
}

func (r *stockRepo) ApplyDeltaTx(_ *gorm.DB, sku string, availableDelta, committedDelta int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.stocks[sku]
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrProductNotFound, sku)
	}
	available, okA := addInRange(rec.Available, availableDelta)
	committed, okC := addInRange(rec.Committed, committedDelta)
	if !okA || !okC {
		return fmt.Errorf("%w: sku %s", ErrOutOfRange, sku)
	}
	if available < 0 || committed < 0 {
		return fmt.Errorf("%w: sku %s", ErrCheckViolation, sku)
	}
	rec.Available = available
	rec.Committed = committed
	rec.UpdatedAt = time.Now()
	return nil
}

func (r *stockRepo) UpsertTx(_ *gorm.DB, sku string, quantity int) (*model.StockRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now()
	rec, ok := r.s.stocks[sku]
	if !ok {
		rec = &model.StockRecord{SKU: sku, CreatedAt: now}
	}
	available, okA := addInRange(rec.Available, quantity)
	committed, okC := addInRange(rec.Committed, quantity)
	if !okA || !okC {
		return nil, fmt.Errorf("%w: sku %s", ErrOutOfRange, sku)
	}
	r.s.stocks[sku] = rec
	rec.Available = available
	rec.Committed = committed
	rec.UpdatedAt = now
	out := *rec
	return &out, nil
}

// ── Reservations ─────────────────────────────────────────────────────────────

type reservationRepo struct{ s *Store }

func (r *reservationRepo) CreateAllTx(_ *gorm.DB, rs []model.Reservation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, res := range rs {
		if _, ok := r.s.stocks[res.SKU]; !ok {
			return fmt.Errorf("%w: %s", model.ErrProductNotFound, res.SKU)
		}
		if res.Quantity > model.MaxQuantity {
			return fmt.Errorf("%w: reservation quantity %d", ErrOutOfRange, res.Quantity)
		}
		if _, dup := r.s.reservations[res.ID]; dup {
			return fmt.Errorf("memory: duplicate reservation id %s", res.ID)
		}
	}
	for _, res := range rs {
		c := res
		r.s.reservations[res.ID] = &c
	}
	return nil
}

func (r *reservationRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Reservation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	res, ok := r.s.reservations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrReservationNotFound, id)
	}
	out := *res
	return &out, nil
}

func (r *reservationRepo) FindByOrderID(_ context.Context, orderID string) ([]model.Reservation, error) {
	return r.byOrder(orderID), nil
}

func (r *reservationRepo) FindByOrderIDForUpdate(_ *gorm.DB, orderID string) ([]model.Reservation, error) {
	return r.byOrder(orderID), nil
}

func (r *reservationRepo) byOrder(orderID string) []model.Reservation {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []model.Reservation
	for _, res := range r.s.reservations {
		if res.OrderID == orderID {
			out = append(out, *res)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (r *reservationRepo) FindExpiredPendingForUpdate(_ *gorm.DB, now time.Time, limit int) ([]model.Reservation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []model.Reservation
	for _, res := range r.s.reservations {
		if res.Status == model.StatusPending && res.ExpiresAt.Before(now) {
			out = append(out, *res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *reservationRepo) SaveStatusTx(_ *gorm.DB, rs []model.Reservation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now()
	for _, res := range rs {
		stored, ok := r.s.reservations[res.ID]
		if !ok {
			return fmt.Errorf("%w: %s", model.ErrReservationNotFound, res.ID)
		}
		stored.Status = res.Status
		stored.UpdatedAt = now
	}
	return nil
}

// ── Movements ────────────────────────────────────────────────────────────────

type movementRepo struct{ s *Store }

func (r *movementRepo) CreateAllTx(_ *gorm.DB, ms []model.StockMovement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range ms {
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
		r.s.movements = append(r.s.movements, m)
	}
	return nil
}

func (r *movementRepo) List(_ context.Context, filter repository.StockMovementFilter) ([]model.StockMovement, int64, error) {
	filter = filter.Normalize()
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var matched []model.StockMovement
	// newest first
	for i := len(r.s.movements) - 1; i >= 0; i-- {
		m := r.s.movements[i]
		if filter.SKU != "" && m.SKU != filter.SKU {
			continue
		}
		if filter.Kind != "" && m.Kind != filter.Kind {
			continue
		}
		matched = append(matched, m)
	}
	total := int64(len(matched))
	start := (filter.Page - 1) * filter.Limit
	if start >= len(matched) {
		return []model.StockMovement{}, total, nil
	}
	end := start + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

// addInRange returns a+b and whether it stays within the INTEGER column
// range. a is a stored counter, so once b is in range the sum cannot wrap.
func addInRange(a, b int) (int, bool) {
	if b > model.MaxQuantity || b < -model.MaxQuantity {
		return 0, false
	}
	sum := a + b
	return sum, sum <= model.MaxQuantity && sum >= -model.MaxQuantity
}
