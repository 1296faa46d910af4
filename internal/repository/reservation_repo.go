package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockreserve/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReservationRepository interface {
	CreateAllTx(tx *gorm.DB, rs []model.Reservation) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Reservation, error)
	FindByOrderID(ctx context.Context, orderID string) ([]model.Reservation, error)

	// FindByOrderIDForUpdate row-locks every reservation of the order.
	FindByOrderIDForUpdate(tx *gorm.DB, orderID string) ([]model.Reservation, error)

	// FindExpiredPendingForUpdate locks up to limit PENDING rows whose
	// expires_at is before now, oldest first. Rows already locked by a
	// concurrent cancel or confirm are skipped rather than waited on.
	FindExpiredPendingForUpdate(tx *gorm.DB, now time.Time, limit int) ([]model.Reservation, error)

	// SaveStatusTx persists the Status of every row in rs.
	SaveStatusTx(tx *gorm.DB, rs []model.Reservation) error
}

type reservationRepo struct{ db *gorm.DB }

func NewReservationRepository(db *gorm.DB) ReservationRepository {
	return &reservationRepo{db: db}
}

func (r *reservationRepo) CreateAllTx(tx *gorm.DB, rs []model.Reservation) error {
	if len(rs) == 0 {
		return nil
	}
	return tx.Create(&rs).Error
}

func (r *reservationRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	var res model.Reservation
	err := r.db.WithContext(ctx).First(&res, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", model.ErrReservationNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *reservationRepo) FindByOrderID(ctx context.Context, orderID string) ([]model.Reservation, error) {
	var rs []model.Reservation
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).
		Order("created_at, id").Find(&rs).Error
	return rs, err
}

func (r *reservationRepo) FindByOrderIDForUpdate(tx *gorm.DB, orderID string) ([]model.Reservation, error) {
	var rs []model.Reservation
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ?", orderID).Order("id").Find(&rs).Error
	return rs, err
}

func (r *reservationRepo) FindExpiredPendingForUpdate(tx *gorm.DB, now time.Time, limit int) ([]model.Reservation, error) {
	var rs []model.Reservation
	err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ? AND expires_at < ?", model.StatusPending, now).
		Order("expires_at").
		Limit(limit).
		Find(&rs).Error
	return rs, err
}

func (r *reservationRepo) SaveStatusTx(tx *gorm.DB, rs []model.Reservation) error {
	byStatus := make(map[model.ReservationStatus][]uuid.UUID)
	for _, res := range rs {
		byStatus[res.Status] = append(byStatus[res.Status], res.ID)
	}
	now := time.Now()
	for status, ids := range byStatus {
		err := tx.Model(&model.Reservation{}).Where("id IN ?", ids).Updates(map[string]interface{}{
			"status":     status,
			"updated_at": now,
		}).Error
		if err != nil {
			return err
		}
	}
	return nil
}
