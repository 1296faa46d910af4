package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockreserve/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockRepository reads and mutates the two-counter ledger.
// Methods ending in Tx must run inside a Transactor callback.
type StockRepository interface {
	Get(ctx context.Context, sku string) (*model.StockRecord, error)
	BulkGet(ctx context.Context, skus []string) (map[string]*model.StockRecord, error)

	// BulkGetForUpdate loads and row-locks the records for skus in sku
	// order. Missing SKUs are absent from the returned map.
	BulkGetForUpdate(tx *gorm.DB, skus []string) (map[string]*model.StockRecord, error)

	// ApplyDeltaTx adds the deltas to available and committed atomically.
	ApplyDeltaTx(tx *gorm.DB, sku string, availableDelta, committedDelta int) error

	// UpsertTx creates the record with available = committed = quantity,
	// or adds quantity to both counters when it already exists.
	UpsertTx(tx *gorm.DB, sku string, quantity int) (*model.StockRecord, error)
}

type stockRepo struct{ db *gorm.DB }

func NewStockRepository(db *gorm.DB) StockRepository { return &stockRepo{db: db} }

func (r *stockRepo) Get(ctx context.Context, sku string) (*model.StockRecord, error) {
	var rec model.StockRecord
	err := r.db.WithContext(ctx).Where("sku = ?", sku).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", model.ErrProductNotFound, sku)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *stockRepo) BulkGet(ctx context.Context, skus []string) (map[string]*model.StockRecord, error) {
	return loadStock(r.db.WithContext(ctx), skus)
}

func (r *stockRepo) BulkGetForUpdate(tx *gorm.DB, skus []string) (map[string]*model.StockRecord, error) {
	return loadStock(tx.Clauses(clause.Locking{Strength: "UPDATE"}).Order("sku"), skus)
}

func loadStock(q *gorm.DB, skus []string) (map[string]*model.StockRecord, error) {
	out := make(map[string]*model.StockRecord, len(skus))
	if len(skus) == 0 {
		return out, nil
	}
	var recs []model.StockRecord
	if err := q.Where("sku IN ?", skus).Find(&recs).Error; err != nil {
		return nil, err
	}
	for i := range recs {
		out[recs[i].SKU] = &recs[i]
	}
	return out, nil
}

func (r *stockRepo) ApplyDeltaTx(tx *gorm.DB, sku string, availableDelta, committedDelta int) error {
	res := tx.Model(&model.StockRecord{}).Where("sku = ?", sku).Updates(map[string]interface{}{
		"available":  gorm.Expr("available + ?", availableDelta),
		"committed":  gorm.Expr("committed + ?", committedDelta),
		"updated_at": time.Now(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", model.ErrProductNotFound, sku)
	}
	return nil
}

func (r *stockRepo) UpsertTx(tx *gorm.DB, sku string, quantity int) (*model.StockRecord, error) {
	now := time.Now()
	rec := model.StockRecord{SKU: sku, Available: quantity, Committed: quantity, CreatedAt: now, UpdatedAt: now}
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "sku"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"available":  gorm.Expr("stock_records.available + EXCLUDED.available"),
			"committed":  gorm.Expr("stock_records.committed + EXCLUDED.committed"),
			"updated_at": gorm.Expr("EXCLUDED.updated_at"),
		}),
	}).Create(&rec).Error
	if err != nil {
		return nil, err
	}
	var out model.StockRecord
	if err := tx.Where("sku = ?", sku).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}
