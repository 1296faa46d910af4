package service_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"stockreserve/internal/dto"
	"stockreserve/internal/model"
	"stockreserve/internal/repository"
	"stockreserve/internal/repository/memory"
	"stockreserve/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Fixtures ─────────────────────────────────────────────────────────────────

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type stubCache struct {
	mu          sync.Mutex
	entries     map[string]dto.StockResponse
	invalidated []string
	hits        int
}

var _ service.StockCache = (*stubCache)(nil)

func newStubCache() *stubCache { return &stubCache{entries: make(map[string]dto.StockResponse)} }

func (c *stubCache) Get(_ context.Context, sku string) (*dto.StockResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[sku]
	if ok {
		c.hits++
	}
	return &v, ok
}

func (c *stubCache) Set(_ context.Context, s *dto.StockResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[s.SKU] = *s
}

func (c *stubCache) Invalidate(_ context.Context, skus ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sku := range skus {
		delete(c.entries, sku)
		c.invalidated = append(c.invalidated, sku)
	}
}

const ttl = 15 * time.Minute

type engine struct {
	svc   service.ReservationService
	store *memory.Store
	clock *fakeClock
	cache *stubCache
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	store := memory.NewStore()
	clock := newFakeClock()
	cache := newStubCache()
	svc := service.NewReservationService(service.ReservationDeps{
		Tx:           store,
		Stock:        store.Stocks(),
		Reservations: store.Reservations(),
		Movements:    store.Movements(),
		Cache:        cache,
		TTL:          ttl,
		Now:          clock.Now,
	})
	return &engine{svc: svc, store: store, clock: clock, cache: cache}
}

func (e *engine) load(t *testing.T, sku string, qty int) {
	t.Helper()
	_, err := e.svc.LoadStock(context.Background(), sku, qty)
	require.NoError(t, err)
}

func (e *engine) stock(t *testing.T, sku string) model.StockRecord {
	t.Helper()
	rec, err := e.store.Stocks().Get(context.Background(), sku)
	require.NoError(t, err)
	return *rec
}

func (e *engine) rows(t *testing.T, orderID string) []model.Reservation {
	t.Helper()
	rs, err := e.store.Reservations().FindByOrderID(context.Background(), orderID)
	require.NoError(t, err)
	return rs
}

func items(pairs ...interface{}) []model.ReserveItem {
	var out []model.ReserveItem
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, model.ReserveItem{SKU: pairs[i].(string), Quantity: pairs[i+1].(int)})
	}
	return out
}

// ── Reserve ──────────────────────────────────────────────────────────────────

func TestReserve_DebitsAvailableAndCreatesPending(t *testing.T) {
	e := newEngine(t)
	e.load(t, "A", 10)

	require.NoError(t, e.svc.Reserve(context.Background(), "order1", items("A", 4)))

	rec := e.stock(t, "A")
	assert.Equal(t, 6, rec.Available)
	assert.Equal(t, 10, rec.Committed, "reserve never touches committed")

	rs := e.rows(t, "order1")
	require.Len(t, rs, 1)
	assert.Equal(t, model.StatusPending, rs[0].Status)
	assert.Equal(t, 4, rs[0].Quantity)
	assert.Equal(t, e.clock.Now().Add(ttl), rs[0].ExpiresAt)
}

func TestReserve_OutOfStockLeavesLedgerUntouched(t *testing.T) {
	e := newEngine(t)
	e.load(t, "A", 10)
	require.NoError(t, e.svc.Reserve(context.Background(), "order1", items("A", 4)))

	err := e.svc.Reserve(context.Background(), "order2", items("A", 20))
	require.ErrorIs(t, err, model.ErrOutOfStock)
	assert.Equal(t, 6, e.stock(t, "A").Available)
	assert.Empty(t, e.rows(t, "order2"))
}

func TestReserve_AllOrNothingAcrossSKUs(t *testing.T) {
	e := newEngine(t)
	e.load(t, "A", 10)
	e.load(t, "B", 1)

	err := e.svc.Reserve(context.Background(), "order1", items("A", 5, "B", 2))
	require.ErrorIs(t, err, model.ErrOutOfStock)
	assert.ErrorContains(t, err, "sku B")

	assert.Equal(t, 10, e.stock(t, "A").Available)
	assert.Equal(t, 1, e.stock(t, "B").Available)
	assert.Empty(t, e.rows(t, "order1"))
}

func TestReserve_UnknownSKU(t *testing.T) {
	e := newEngine(t)
	e.load(t, "A", 10)

	err := e.svc.Reserve(context.Background(), "order1", items("A", 1, "GHOST", 1))
	require.ErrorIs(t, err, model.ErrProductNotFound)
	assert.ErrorContains(t, err, "GHOST")
	assert.Equal(t, 10, e.stock(t, "A").Available)
}

func TestReserve_DuplicateSKUsAreSummed(t *testing.T) {
	e := newEngine(t)
	e.load(t, "A", 5)

	err := e.svc.Reserve(context.Background(), "order1", items("A", 3, "A", 3))
	require.ErrorIs(t, err, model.ErrOutOfStock)

	require.NoError(t, e.svc.Reserve(context.Background(), "order1", items("A", 3, "A", 2)))
	assert.Equal(t, 0, e.stock(t, "A").Available)
	assert.Len(t, e.rows(t, "order1"), 2, "one row per line item")
}

func TestReserve_InvalidInput(t *testing.T) {
	e := newEngine(t)
	e.load(t, "A", 5)
	ctx := context.Background()

	assert.ErrorIs(t, e.svc.Reserve(ctx, "", items("A", 1)), model.ErrEmptyOrder)
	assert.ErrorIs(t, e.svc.Reserve(ctx, "order1", nil), model.ErrEmptyOrder)
	assert.ErrorIs(t, e.svc.Reserve(ctx, "order1", items("A", 0)), model.ErrInvalidQuantity)
	assert.ErrorIs(t, e.svc.Reserve(ctx, "order1", items("A", -2)), model.ErrInvalidQuantity)
	assert.Equal(t, 5, e.stock(t, "A").Available)
}

func TestReserve_QuantityOverflowIsRejected(t *testing.T) {
	e := newEngine(t)
	e.load(t, "A", 10)
	ctx := context.Background()

	// two huge lines for the same sku must not wrap into a negative total
	err := e.svc.Reserve(ctx, "order1", items("A", math.MaxInt, "A", math.MaxInt))
	assert.ErrorIs(t, err, model.ErrInvalidQuantity)

	err = e.svc.Reserve(ctx, "order1", items("A", model.MaxQuantity, "A", 1))
	assert.ErrorIs(t, err, model.ErrInvalidQuantity)

	err = e.svc.Reserve(ctx, "order1", items("A", model.MaxQuantity+1))
	assert.ErrorIs(t, err, model.ErrInvalidQuantity)

	// a single line at the cap is valid input, just more than is on hand
	err = e.svc.Reserve(ctx, "order1", items("A", model.MaxQuantity))
	assert.ErrorIs(t, err, model.ErrOutOfStock)

	assert.Equal(t, 10, e.stock(t, "A").Available)
	assert.Empty(t, e.rows(t, "order1"))
}

func TestReserve_ConcurrentCallersNeverOvercommit(t *testing.T) {
	e := newEngine(t)
	e.load(t, "HOT", 20)

	var ok, oos int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := e.svc.Reserve(context.Background(), fmt.Sprintf("order-%d", i), items("HOT", 1))
			switch {
			case err == nil:
				atomic.AddInt64(&ok, 1)
			case errors.Is(err, model.ErrOutOfStock):
				atomic.AddInt64(&oos, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 20, ok)
	assert.EqualValues(t, 30, oos)
	assert.Equal(t, 0, e.stock(t, "HOT").Available)
}

// ── Confirm ──────────────────────────────────────────────────────────────────

func TestConfirm_DeductsCommittedAndBlocksCancel(t *testing.T) {
	e := newEngine(t)
	e.load(t, "A", 10)
	ctx := context.Background()
	require.NoError(t, e.svc.Reserve(ctx, "order1", items("A", 4)))

	require.NoError(t, e.svc.Confirm(ctx, "order1"))
	rec := e.stock(t, "A")
	assert.Equal(t, 6, rec.Available)
	assert.Equal(t, 6, rec.Committed)
	assert.Equal(t, model.StatusConfirmed, e.rows(t, "order1")[0].Status)

	err := e.svc.Cancel(ctx, "order1")
	assert.ErrorIs(t, err, model.ErrReservationCannotBeCancelled)
}

func TestConfirm_IsIdempotent(t *testing.T) {
	e := newEngine(t)
	e.load(t, "A", 10)
	ctx := context.Background()
	require.NoError(t, e.svc.Reserve(ctx, "order1", items("A", 4)))

	require.NoError(t, e.svc.Confirm(ctx, "order1"))
	require.NoError(t, e.svc.Confirm(ctx, "order1"))
	assert.Equal(t, 6, e.stock(t, "A").Committed, "second confirm must not deduct again")
}

func TestConfirm_NotFound(t *testing.T) {
	e := newEngine(t)
	assert.ErrorIs(t, e.svc.Confirm(context.Background(), "nobody"), model.ErrReservationNotFound)
}

func TestConfirm_RejectsCancelledAndExpired(t *testing.T) {
	e := newEngine(t)
	e.load(t, "A", 10)
	ctx := context.Background()

	require.NoError(t, e.svc.Reserve(ctx, "cancelled", items("A", 1)))
	require.NoError(t, e.svc.Cancel(ctx, "cancelled"))
	assert.ErrorIs(t, e.svc.Confirm(ctx, "cancelled"), model.ErrInvalidReservationState)

	require.NoError(t, e.svc.Reserve(ctx, "late", items("A", 1)))
	e.clock.Advance(ttl + time.Second)
	_, err := e.svc.ExpireOverdue(ctx, e.clock.Now(), 100)
	require.NoError(t, err)
	assert.ErrorIs(t, e.svc.Confirm(ctx, "late"), model.ErrInvalidReservationState)
}

func TestConfirm_RefusesToDriveCommittedNegative(t *testing.T) {
	e := newEngine(t)
	e.load(t, "A", 5)
	ctx := context.Background()
	require.NoError(t, e.svc.Reserve(ctx, "order1", items("A", 4)))
	// simulate shrinkage recorded outside the engine
	require.NoError(t, e.store.Stocks().ApplyDeltaTx(nil, "A", 0, -3))

	err := e.svc.Confirm(ctx, "order1")
	require.ErrorIs(t, err, model.ErrOutOfStock)
	assert.Equal(t, 2, e.stock(t, "A").Committed)
	assert.Equal(t, model.StatusPending, e.rows(t, "order1")[0].Status)
}

// ── Cancel ───────────────────────────────────────────────────────────────────

func TestCancel_ReturnsPendingQuantity(t *testing.T) {
	e := newEngine(t)
	e.load(t, "A", 10)
	e.load(t, "B", 3)
	ctx := context.Background()
	require.NoError(t, e.svc.Reserve(ctx, "order1", items("A", 4, "B", 3, "A", 1)))

	require.NoError(t, e.svc.Cancel(ctx, "order1"))
	assert.Equal(t, 10, e.stock(t, "A").Available)
	assert.Equal(t, 3, e.stock(t, "B").Available)
	for _, r := range e.rows(t, "order1") {
		assert.Equal(t, model.StatusCancelled, r.Status)
	}
}

func TestCancel_IsIdempotent(t *testing.T) {
	e := newEngine(t)
	e.load(t, "A", 10)
	ctx := context.Background()
	require.NoError(t, e.svc.Reserve(ctx, "order1", items("A", 4)))

	require.NoError(t, e.svc.Cancel(ctx, "order1"))
	require.NoError(t, e.svc.Cancel(ctx, "order1"))
	assert.Equal(t, 10, e.stock(t, "A").Available)
}

func TestCancel_NotFound(t *testing.T) {
	e := newEngine(t)
	assert.ErrorIs(t, e.svc.Cancel(context.Background(), "nobody"), model.ErrReservationNotFound)
}

func TestCancel_FinalizedBlocksWholeOrder(t *testing.T) {
	e := newEngine(t)
	e.load(t, "A", 10)
	ctx := context.Background()
	require.NoError(t, e.svc.Reserve(ctx, "order1", items("A", 2, "A", 3)))

	rs := e.rows(t, "order1")
	rs[0].Status = model.StatusFinalized
	require.NoError(t, e.store.Reservations().SaveStatusTx(nil, rs[:1]))

	assert.ErrorIs(t, e.svc.Cancel(ctx, "order1"), model.ErrReservationCannotBeCancelled)
	assert.Equal(t, 5, e.stock(t, "A").Available)
}

func TestCancel_AfterExpiryReleasesOnlyOnce(t *testing.T) {
	e := newEngine(t)
	e.load(t, "A", 10)
	ctx := context.Background()
	require.NoError(t, e.svc.Reserve(ctx, "order1", items("A", 4)))

	e.clock.Advance(ttl + time.Minute)
	expired, err := e.svc.ExpireOverdue(ctx, e.clock.Now(), 100)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, 10, e.stock(t, "A").Available)

	require.NoError(t, e.svc.Cancel(ctx, "order1"))
	assert.Equal(t, 10, e.stock(t, "A").Available, "expired quantity must not be credited twice")
	assert.Equal(t, model.StatusCancelled, e.rows(t, "order1")[0].Status)
}

// ── ExpireOverdue ────────────────────────────────────────────────────────────

func TestExpireOverdue_ReleasesOnlyPastDeadline(t *testing.T) {
	e := newEngine(t)
	e.load(t, "A", 10)
	ctx := context.Background()
	require.NoError(t, e.svc.Reserve(ctx, "early", items("A", 3)))
	e.clock.Advance(10 * time.Minute)
	require.NoError(t, e.svc.Reserve(ctx, "late", items("A", 2)))
	require.NoError(t, e.svc.Reserve(ctx, "confirmed", items("A", 1)))
	require.NoError(t, e.svc.Confirm(ctx, "confirmed"))

	e.clock.Advance(6 * time.Minute) // early is 16m old, late 6m
	expired, err := e.svc.ExpireOverdue(ctx, e.clock.Now(), 100)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "early", expired[0].OrderID)
	assert.Equal(t, model.StatusExpired, expired[0].Status)

	assert.Equal(t, 7, e.stock(t, "A").Available)
	assert.Equal(t, model.StatusPending, e.rows(t, "late")[0].Status)
	assert.Equal(t, model.StatusConfirmed, e.rows(t, "confirmed")[0].Status)

	again, err := e.svc.ExpireOverdue(ctx, e.clock.Now(), 100)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestExpireOverdue_RespectsBatchLimit(t *testing.T) {
	e := newEngine(t)
	e.load(t, "A", 10)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, e.svc.Reserve(ctx, fmt.Sprintf("o%d", i), items("A", 1)))
	}
	e.clock.Advance(ttl + time.Second)

	first, err := e.svc.ExpireOverdue(ctx, e.clock.Now(), 3)
	require.NoError(t, err)
	assert.Len(t, first, 3)
	rest, err := e.svc.ExpireOverdue(ctx, e.clock.Now(), 3)
	require.NoError(t, err)
	assert.Len(t, rest, 2)
	assert.Equal(t, 10, e.stock(t, "A").Available)
}

// ── Conservation ─────────────────────────────────────────────────────────────

func TestLedgerConservation(t *testing.T) {
	e := newEngine(t)
	e.load(t, "A", 50)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		order := fmt.Sprintf("o%d", i)
		require.NoError(t, e.svc.Reserve(ctx, order, items("A", i%4+1)))
		switch i % 4 {
		case 0:
			require.NoError(t, e.svc.Confirm(ctx, order))
		case 1:
			require.NoError(t, e.svc.Cancel(ctx, order))
		}
	}
	e.clock.Advance(ttl + time.Second)
	_, err := e.svc.ExpireOverdue(ctx, e.clock.Now(), 100)
	require.NoError(t, err)

	var pending, confirmed int
	for i := 0; i < 12; i++ {
		for _, r := range e.rows(t, fmt.Sprintf("o%d", i)) {
			switch r.Status {
			case model.StatusPending:
				pending += r.Quantity
			case model.StatusConfirmed:
				confirmed += r.Quantity
			}
		}
	}
	rec := e.stock(t, "A")
	assert.Equal(t, 50, rec.Available+pending+confirmed)
	assert.Equal(t, 50-confirmed, rec.Committed)
	assert.GreaterOrEqual(t, rec.Available, 0)

	// the audit trail sums to the current counters
	list, err := e.svc.ListMovements(ctx, repository.StockMovementFilter{SKU: "A", Limit: 500})
	require.NoError(t, err)
	var avail, committed int
	for _, m := range list.Data {
		avail += m.AvailableDelta
		committed += m.CommittedDelta
	}
	assert.Equal(t, rec.Available, avail)
	assert.Equal(t, rec.Committed, committed)
}

// ── Queries, stock load and cache ────────────────────────────────────────────

func TestGetStock_CacheAsideAndInvalidation(t *testing.T) {
	e := newEngine(t)
	e.load(t, "A", 10)
	ctx := context.Background()

	first, err := e.svc.GetStock(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 10, first.Available)
	_, err = e.svc.GetStock(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 1, e.cache.hits)

	require.NoError(t, e.svc.Reserve(ctx, "order1", items("A", 4)))
	assert.Contains(t, e.cache.invalidated, "A")

	after, err := e.svc.GetStock(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 6, after.Available)
}

// racingStock runs onGet once, after the read and before GetStock decides
// whether to fill the cache.
type racingStock struct {
	repository.StockRepository
	onGet func()
}

func (r *racingStock) Get(ctx context.Context, sku string) (*model.StockRecord, error) {
	rec, err := r.StockRepository.Get(ctx, sku)
	if f := r.onGet; f != nil {
		r.onGet = nil
		f()
	}
	return rec, err
}

func TestGetStock_WriteDuringReadDoesNotCacheStaleValue(t *testing.T) {
	store := memory.NewStore()
	cache := newStubCache()
	stock := &racingStock{StockRepository: store.Stocks()}
	svc := service.NewReservationService(service.ReservationDeps{
		Tx:           store,
		Stock:        stock,
		Reservations: store.Reservations(),
		Movements:    store.Movements(),
		Cache:        cache,
		TTL:          ttl,
		Now:          newFakeClock().Now,
	})
	ctx := context.Background()
	_, err := svc.LoadStock(ctx, "A", 10)
	require.NoError(t, err)

	stock.onGet = func() { require.NoError(t, svc.Reserve(ctx, "order1", items("A", 4))) }
	stale, err := svc.GetStock(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 10, stale.Available)
	assert.NotContains(t, cache.entries, "A")

	fresh, err := svc.GetStock(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 6, fresh.Available)
	assert.Equal(t, 6, cache.entries["A"].Available)
}

func TestGetStocks_ListsFoundAndMissing(t *testing.T) {
	e := newEngine(t)
	e.load(t, "B", 3)
	e.load(t, "A", 5)
	require.NoError(t, e.svc.Reserve(context.Background(), "order1", items("A", 2)))

	resp, err := e.svc.GetStocks(context.Background(), []string{"B", "GHOST", " A ", "B", ""})
	require.NoError(t, err)
	assert.Equal(t, []dto.StockResponse{{SKU: "A", Available: 3}, {SKU: "B", Available: 3}}, resp.Data)
	assert.Equal(t, []string{"GHOST"}, resp.Missing)

	none, err := e.svc.GetStocks(context.Background(), []string{"X", "Y"})
	require.NoError(t, err)
	assert.Empty(t, none.Data)
	assert.Equal(t, []string{"X", "Y"}, none.Missing)
}

func TestGetReservation(t *testing.T) {
	e := newEngine(t)
	e.load(t, "A", 10)
	ctx := context.Background()
	require.NoError(t, e.svc.Reserve(ctx, "order1", items("A", 2)))
	rows := e.rows(t, "order1")
	require.Len(t, rows, 1)

	got, err := e.svc.GetReservation(ctx, rows[0].ID)
	require.NoError(t, err)
	assert.Equal(t, rows[0].ID.String(), got.ID)
	assert.Equal(t, "A", got.SKU)
	assert.Equal(t, 2, got.Quantity)
	assert.Equal(t, "PENDING", got.Status)

	require.NoError(t, e.svc.Cancel(ctx, "order1"))
	got, err = e.svc.GetReservation(ctx, rows[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", got.Status)

	_, err = e.svc.GetReservation(ctx, uuid.New())
	assert.ErrorIs(t, err, model.ErrReservationNotFound)
}

func TestGetStock_NotFound(t *testing.T) {
	e := newEngine(t)
	_, err := e.svc.GetStock(context.Background(), "GHOST")
	assert.ErrorIs(t, err, model.ErrProductNotFound)
}

func TestLoadStock_CreatesThenRestocks(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	resp, err := e.svc.LoadStock(ctx, "A", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, resp.Available)

	resp, err = e.svc.LoadStock(ctx, "A", 3)
	require.NoError(t, err)
	assert.Equal(t, 8, resp.Available)
	assert.Equal(t, 8, e.stock(t, "A").Committed)

	_, err = e.svc.LoadStock(ctx, "A", 0)
	assert.ErrorIs(t, err, model.ErrInvalidQuantity)
	_, err = e.svc.LoadStock(ctx, " ", 1)
	assert.ErrorIs(t, err, model.ErrInvalidQuantity)
}

func TestLoadStock_RejectsCounterOverflow(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	_, err := e.svc.LoadStock(ctx, "A", math.MaxInt)
	assert.ErrorIs(t, err, model.ErrInvalidQuantity)

	e.load(t, "A", model.MaxQuantity-1)
	_, err = e.svc.LoadStock(ctx, "A", 2)
	assert.ErrorIs(t, err, model.ErrInvalidQuantity)

	rec := e.stock(t, "A")
	assert.Equal(t, model.MaxQuantity-1, rec.Available)
	assert.Equal(t, model.MaxQuantity-1, rec.Committed)

	resp, err := e.svc.LoadStock(ctx, "A", 1)
	require.NoError(t, err)
	assert.Equal(t, model.MaxQuantity, resp.Available)
}

func TestListReservations(t *testing.T) {
	e := newEngine(t)
	e.load(t, "A", 10)
	ctx := context.Background()
	require.NoError(t, e.svc.Reserve(ctx, "order1", items("A", 2, "A", 1)))

	list, err := e.svc.ListReservations(ctx, "order1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "PENDING", list[0].Status)
	assert.Equal(t, "order1", list[0].OrderID)

	empty, err := e.svc.ListReservations(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", service.Outcome(nil))
	assert.Equal(t, "not_found", service.Outcome(fmt.Errorf("x: %w", model.ErrReservationNotFound)))
	assert.Equal(t, "out_of_stock", service.Outcome(model.ErrOutOfStock))
	assert.Equal(t, "conflict", service.Outcome(model.ErrInvalidReservationState))
	assert.Equal(t, "invalid", service.Outcome(model.ErrEmptyOrder))
	assert.Equal(t, "error", service.Outcome(errors.New("db down")))
}
