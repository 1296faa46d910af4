package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"stockreserve/internal/dto"
	"stockreserve/internal/metrics"
	"stockreserve/internal/model"
	"stockreserve/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ReservationService is the only writer of the stock ledger and the
// reservation store. Every mutating method runs in one transaction.
type ReservationService interface {
	Reserve(ctx context.Context, orderID string, items []model.ReserveItem) error
	Cancel(ctx context.Context, orderID string) error
	Confirm(ctx context.Context, orderID string) error

	// ExpireOverdue moves up to limit PENDING reservations whose deadline
	// is before now to EXPIRED and returns their quantity to available.
	// It returns the rows it expired.
	ExpireOverdue(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error)

	GetStock(ctx context.Context, sku string) (*dto.StockResponse, error)
	// GetStocks reads several SKUs in one query; unknown ones are listed
	// in Missing rather than failing the call.
	GetStocks(ctx context.Context, skus []string) (*dto.StockListResponse, error)
	GetReservation(ctx context.Context, id uuid.UUID) (*dto.ReservationResponse, error)
	LoadStock(ctx context.Context, sku string, quantity int) (*dto.StockResponse, error)
	ListReservations(ctx context.Context, orderID string) ([]dto.ReservationResponse, error)
	ListMovements(ctx context.Context, filter repository.StockMovementFilter) (*dto.StockMovementListResponse, error)
}

// StockCache is the optional read-through cache in front of GetStock.
type StockCache interface {
	Get(ctx context.Context, sku string) (*dto.StockResponse, bool)
	Set(ctx context.Context, stock *dto.StockResponse)
	Invalidate(ctx context.Context, skus ...string)
}

// ReservationDeps wires a ReservationService. Cache, Metrics and Now are
// optional.
type ReservationDeps struct {
	Tx           repository.Transactor
	Stock        repository.StockRepository
	Reservations repository.ReservationRepository
	Movements    repository.StockMovementRepository
	Cache        StockCache
	Metrics      *metrics.Metrics
	TTL          time.Duration
	Now          func() time.Time
}

const (
	defaultReservationTTL = 15 * time.Minute
	defaultExpireBatch    = 500
)

type reservationService struct {
	tx           repository.Transactor
	stock        repository.StockRepository
	reservations repository.ReservationRepository
	movements    repository.StockMovementRepository
	cache        StockCache
	metrics      *metrics.Metrics
	ttl          time.Duration
	now          func() time.Time

	// cacheGen advances on every invalidation; GetStock only fills the
	// cache when no write landed during its read.
	cacheGen atomic.Uint64
}

func NewReservationService(d ReservationDeps) ReservationService {
	s := &reservationService{
		tx:           d.Tx,
		stock:        d.Stock,
		reservations: d.Reservations,
		movements:    d.Movements,
		cache:        d.Cache,
		metrics:      d.Metrics,
		ttl:          d.TTL,
		now:          d.Now,
	}
	if s.ttl <= 0 {
		s.ttl = defaultReservationTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// ── Reserve ───────────────────────────────────────────────────────────────────
// 1. Validate input and sum quantities per sku (duplicates allowed)
// 2. BEGIN TX: lock stock rows in sku order, check existence and availability
// 3. Debit available per sku, insert one PENDING row per line, audit
// 4. COMMIT, then invalidate cached stock

func (s *reservationService) Reserve(ctx context.Context, orderID string, items []model.ReserveItem) (err error) {
	defer s.observe("reserve", time.Now(), &err)

	if strings.TrimSpace(orderID) == "" || len(items) == 0 {
		return model.ErrEmptyOrder
	}
	wanted := make(map[string]int, len(items))
	for _, it := range items {
		if it.Quantity <= 0 || it.Quantity > model.MaxQuantity {
			return fmt.Errorf("%w: sku %s quantity %d", model.ErrInvalidQuantity, it.SKU, it.Quantity)
		}
		if wanted[it.SKU] > model.MaxQuantity-it.Quantity {
			return fmt.Errorf("%w: sku %s total quantity exceeds %d", model.ErrInvalidQuantity, it.SKU, model.MaxQuantity)
		}
		wanted[it.SKU] += it.Quantity
	}
	skus := sortedKeys(wanted)
	now := s.now()

	err = s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		stocks, err := s.stock.BulkGetForUpdate(tx, skus)
		if err != nil {
			return err
		}
		if missing := missingSKUs(skus, stocks); len(missing) > 0 {
			return fmt.Errorf("%w: %s", model.ErrProductNotFound, strings.Join(missing, ", "))
		}
		for _, sku := range skus {
			if avail := stocks[sku].Available; wanted[sku] > avail {
				return fmt.Errorf("%w: sku %s requested %d, available %d", model.ErrOutOfStock, sku, wanted[sku], avail)
			}
		}

		movements := make([]model.StockMovement, 0, len(skus))
		for _, sku := range skus {
			if err := s.stock.ApplyDeltaTx(tx, sku, -wanted[sku], 0); err != nil {
				return err
			}
			movements = append(movements, newMovement(sku, model.MovementReserve, -wanted[sku], 0, orderID, now))
		}

		rows := make([]model.Reservation, 0, len(items))
		for _, it := range items {
			rows = append(rows, model.Reservation{
				ID:        uuid.New(),
				SKU:       it.SKU,
				OrderID:   orderID,
				Quantity:  it.Quantity,
				Status:    model.StatusPending,
				ExpiresAt: now.Add(s.ttl),
				CreatedAt: now,
				UpdatedAt: now,
			})
		}
		if err := s.reservations.CreateAllTx(tx, rows); err != nil {
			return err
		}
		return s.movements.CreateAllTx(tx, movements)
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, skus)
	log.Info().Str("order_id", orderID).Int("lines", len(items)).Msg("reservation: reserved")
	return nil
}

// ── Cancel ────────────────────────────────────────────────────────────────────
// CONFIRMED or FINALIZED anywhere in the order blocks the cancel. An order
// that is already fully cancelled is a no-op. PENDING rows give their
// quantity back; EXPIRED rows were already released by the reaper and are
// only relabelled.

func (s *reservationService) Cancel(ctx context.Context, orderID string) (err error) {
	defer s.observe("cancel", time.Now(), &err)

	var touched []string
	err = s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.reservations.FindByOrderIDForUpdate(tx, orderID)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return fmt.Errorf("%w: order %s", model.ErrReservationNotFound, orderID)
		}
		for _, r := range rows {
			if !r.Status.Cancellable() {
				return fmt.Errorf("%w: order %s has a %s reservation", model.ErrReservationCannotBeCancelled, orderID, r.Status)
			}
		}
		if allInStatus(rows, model.StatusCancelled) {
			return nil
		}

		release := make(map[string]int)
		for _, r := range rows {
			if r.Status == model.StatusPending {
				release[r.SKU] += r.Quantity
			}
		}
		touched = sortedKeys(release)
		if err := s.credit(tx, touched, release, model.MovementCancel, orderID); err != nil {
			return err
		}

		for i := range rows {
			rows[i].Status = model.StatusCancelled
		}
		return s.reservations.SaveStatusTx(tx, rows)
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, touched)
	log.Info().Str("order_id", orderID).Msg("reservation: cancelled")
	return nil
}

// ── Confirm ───────────────────────────────────────────────────────────────────
// Every row must be PENDING, unless every row is already CONFIRMED (no-op).
// Confirming deducts the reserved quantity from committed stock.

func (s *reservationService) Confirm(ctx context.Context, orderID string) (err error) {
	defer s.observe("confirm", time.Now(), &err)

	err = s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.reservations.FindByOrderIDForUpdate(tx, orderID)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return fmt.Errorf("%w: order %s", model.ErrReservationNotFound, orderID)
		}
		if allInStatus(rows, model.StatusConfirmed) {
			return nil
		}
		for _, r := range rows {
			if r.Status != model.StatusPending {
				return fmt.Errorf("%w: order %s has a %s reservation", model.ErrInvalidReservationState, orderID, r.Status)
			}
		}

		deduct := make(map[string]int)
		for _, r := range rows {
			deduct[r.SKU] += r.Quantity
		}
		skus := sortedKeys(deduct)
		stocks, err := s.stock.BulkGetForUpdate(tx, skus)
		if err != nil {
			return err
		}
		now := s.now()
		movements := make([]model.StockMovement, 0, len(skus))
		for _, sku := range skus {
			rec, ok := stocks[sku]
			if !ok {
				return fmt.Errorf("%w: %s", model.ErrProductNotFound, sku)
			}
			if rec.Committed < deduct[sku] {
				return fmt.Errorf("%w: sku %s committed %d, cannot deduct %d", model.ErrOutOfStock, sku, rec.Committed, deduct[sku])
			}
			if err := s.stock.ApplyDeltaTx(tx, sku, 0, -deduct[sku]); err != nil {
				return err
			}
			movements = append(movements, newMovement(sku, model.MovementConfirm, 0, -deduct[sku], orderID, now))
		}

		for i := range rows {
			rows[i].Status = model.StatusConfirmed
		}
		if err := s.reservations.SaveStatusTx(tx, rows); err != nil {
			return err
		}
		return s.movements.CreateAllTx(tx, movements)
	})
	if err != nil {
		return err
	}

	log.Info().Str("order_id", orderID).Msg("reservation: confirmed")
	return nil
}

// ── ExpireOverdue ─────────────────────────────────────────────────────────────

func (s *reservationService) ExpireOverdue(ctx context.Context, now time.Time, limit int) (expired []model.Reservation, err error) {
	defer s.observe("expire", time.Now(), &err)

	if limit <= 0 {
		limit = defaultExpireBatch
	}
	var touched []string
	err = s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.reservations.FindExpiredPendingForUpdate(tx, now, limit)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		release := make(map[string]int)
		for _, r := range rows {
			release[r.SKU] += r.Quantity
		}
		touched = sortedKeys(release)
		if err := s.credit(tx, touched, release, model.MovementExpire, ""); err != nil {
			return err
		}

		for i := range rows {
			rows[i].Status = model.StatusExpired
		}
		if err := s.reservations.SaveStatusTx(tx, rows); err != nil {
			return err
		}
		expired = rows
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, touched)
	return expired, nil
}

// credit locks the stock rows of skus and returns release[sku] to
// available, writing one movement per sku.
func (s *reservationService) credit(tx *gorm.DB, skus []string, release map[string]int, kind model.MovementKind, orderID string) error {
	if len(skus) == 0 {
		return nil
	}
	stocks, err := s.stock.BulkGetForUpdate(tx, skus)
	if err != nil {
		return err
	}
	now := s.now()
	movements := make([]model.StockMovement, 0, len(skus))
	for _, sku := range skus {
		if _, ok := stocks[sku]; !ok {
			return fmt.Errorf("%w: %s", model.ErrProductNotFound, sku)
		}
		if err := s.stock.ApplyDeltaTx(tx, sku, release[sku], 0); err != nil {
			return err
		}
		movements = append(movements, newMovement(sku, kind, release[sku], 0, orderID, now))
	}
	return s.movements.CreateAllTx(tx, movements)
}

// ── Queries and stock load ────────────────────────────────────────────────────

// GetStock is a snapshot read. Within one process a read that overlaps a
// write never repopulates the cache; across replicas a stale entry can
// still live for one STOCK_CACHE_TTL.
func (s *reservationService) GetStock(ctx context.Context, sku string) (*dto.StockResponse, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, sku); ok {
			return cached, nil
		}
	}
	gen := s.cacheGen.Load()
	rec, err := s.stock.Get(ctx, sku)
	if err != nil {
		return nil, err
	}
	resp := &dto.StockResponse{SKU: rec.SKU, Available: rec.Available}
	if s.cache != nil && s.cacheGen.Load() == gen {
		s.cache.Set(ctx, resp)
	}
	return resp, nil
}

func (s *reservationService) GetStocks(ctx context.Context, skus []string) (*dto.StockListResponse, error) {
	unique := make(map[string]int, len(skus))
	for _, sku := range skus {
		if sku = strings.TrimSpace(sku); sku != "" {
			unique[sku] = 0
		}
	}
	keys := sortedKeys(unique)
	recs, err := s.stock.BulkGet(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := &dto.StockListResponse{Data: make([]dto.StockResponse, 0, len(recs)), Missing: []string{}}
	for _, sku := range keys {
		if rec, ok := recs[sku]; ok {
			out.Data = append(out.Data, dto.StockResponse{SKU: rec.SKU, Available: rec.Available})
		} else {
			out.Missing = append(out.Missing, sku)
		}
	}
	return out, nil
}

func (s *reservationService) GetReservation(ctx context.Context, id uuid.UUID) (*dto.ReservationResponse, error) {
	r, err := s.reservations.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := reservationResponse(*r)
	return &resp, nil
}

func (s *reservationService) LoadStock(ctx context.Context, sku string, quantity int) (resp *dto.StockResponse, err error) {
	defer s.observe("load", time.Now(), &err)

	if strings.TrimSpace(sku) == "" {
		return nil, fmt.Errorf("%w: sku is required", model.ErrInvalidQuantity)
	}
	if quantity <= 0 || quantity > model.MaxQuantity {
		return nil, fmt.Errorf("%w: sku %s quantity %d", model.ErrInvalidQuantity, sku, quantity)
	}

	err = s.tx.WithinTx(ctx, func(tx *gorm.DB) error {
		current, err := s.stock.BulkGetForUpdate(tx, []string{sku})
		if err != nil {
			return err
		}
		if cur, ok := current[sku]; ok && max(cur.Available, cur.Committed) > model.MaxQuantity-quantity {
			return fmt.Errorf("%w: sku %s restock of %d exceeds %d", model.ErrInvalidQuantity, sku, quantity, model.MaxQuantity)
		}
		rec, err := s.stock.UpsertTx(tx, sku, quantity)
		if err != nil {
			return err
		}
		resp = &dto.StockResponse{SKU: rec.SKU, Available: rec.Available}
		return s.movements.CreateAllTx(tx, []model.StockMovement{
			newMovement(sku, model.MovementLoad, quantity, quantity, "", s.now()),
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, []string{sku})
	log.Info().Str("sku", sku).Int("quantity", quantity).Msg("stock: loaded")
	return resp, nil
}

func (s *reservationService) ListReservations(ctx context.Context, orderID string) ([]dto.ReservationResponse, error) {
	rows, err := s.reservations.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ReservationResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, reservationResponse(r))
	}
	return out, nil
}

func reservationResponse(r model.Reservation) dto.ReservationResponse {
	return dto.ReservationResponse{
		ID:        r.ID.String(),
		SKU:       r.SKU,
		OrderID:   r.OrderID,
		Quantity:  r.Quantity,
		Status:    string(r.Status),
		ExpiresAt: r.ExpiresAt.UTC().Format(time.RFC3339),
		CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *reservationService) ListMovements(ctx context.Context, filter repository.StockMovementFilter) (*dto.StockMovementListResponse, error) {
	filter = filter.Normalize()
	rows, total, err := s.movements.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	data := make([]dto.StockMovementResponse, 0, len(rows))
	for _, m := range rows {
		data = append(data, dto.StockMovementResponse{
			ID:             m.ID.String(),
			SKU:            m.SKU,
			Kind:           string(m.Kind),
			AvailableDelta: m.AvailableDelta,
			CommittedDelta: m.CommittedDelta,
			OrderID:        m.OrderID,
			CreatedAt:      m.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return &dto.StockMovementListResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func (s *reservationService) invalidate(ctx context.Context, skus []string) {
	if s.cache == nil || len(skus) == 0 {
		return
	}
	s.cacheGen.Add(1)
	s.cache.Invalidate(ctx, skus...)
}

func (s *reservationService) observe(op string, start time.Time, err *error) {
	s.metrics.ObserveOperation(op, Outcome(*err), time.Since(start))
}

// Outcome is the metrics label for the result of an engine call.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrProductNotFound), errors.Is(err, model.ErrReservationNotFound):
		return "not_found"
	case errors.Is(err, model.ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, model.ErrReservationCannotBeCancelled), errors.Is(err, model.ErrInvalidReservationState):
		return "conflict"
	case errors.Is(err, model.ErrInvalidQuantity), errors.Is(err, model.ErrEmptyOrder):
		return "invalid"
	default:
		return "error"
	}
}

func newMovement(sku string, kind model.MovementKind, availableDelta, committedDelta int, orderID string, at time.Time) model.StockMovement {
	m := model.StockMovement{
		ID:             uuid.New(),
		SKU:            sku,
		Kind:           kind,
		AvailableDelta: availableDelta,
		CommittedDelta: committedDelta,
		CreatedAt:      at,
	}
	if orderID != "" {
		m.OrderID = &orderID
	}
	return m
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func missingSKUs(skus []string, found map[string]*model.StockRecord) []string {
	var missing []string
	for _, sku := range skus {
		if _, ok := found[sku]; !ok {
			missing = append(missing, sku)
		}
	}
	return missing
}

func allInStatus(rows []model.Reservation, st model.ReservationStatus) bool {
	for _, r := range rows {
		if r.Status != st {
			return false
		}
	}
	return true
}
