package repository

import (
	"context"

	"stockreserve/internal/model"

	"gorm.io/gorm"
)

// StockMovementFilter defines filters for listing ledger movements.
type StockMovementFilter struct {
	SKU   string
	Kind  model.MovementKind
	Page  int
	Limit int
}

// Normalize clamps paging to the supported range.
func (f StockMovementFilter) Normalize() StockMovementFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 500 {
		f.Limit = 100
	}
	return f
}

type StockMovementRepository interface {
	CreateAllTx(tx *gorm.DB, ms []model.StockMovement) error
	List(ctx context.Context, filter StockMovementFilter) ([]model.StockMovement, int64, error)
}

type stockMovementRepo struct{ db *gorm.DB }

func NewStockMovementRepository(db *gorm.DB) StockMovementRepository {
	return &stockMovementRepo{db: db}
}

func (r *stockMovementRepo) CreateAllTx(tx *gorm.DB, ms []model.StockMovement) error {
	if len(ms) == 0 {
		return nil
	}
	return tx.Create(&ms).Error
}

func (r *stockMovementRepo) List(ctx context.Context, filter StockMovementFilter) ([]model.StockMovement, int64, error) {
	filter = filter.Normalize()
	q := r.db.WithContext(ctx).Model(&model.StockMovement{})
	if filter.SKU != "" {
		q = q.Where("sku = ?", filter.SKU)
	}
	if filter.Kind != "" {
		q = q.Where("kind = ?", filter.Kind)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var ms []model.StockMovement
	err := q.Order("created_at DESC, id").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&ms).Error
	return ms, total, err
}
