package infra

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PoolConfig sizes the database/sql pool behind gorm.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewDatabase opens a GORM connection backed by pgx, sizes the pool and
// applies the schema patches.
func NewDatabase(dsn string, pool PoolConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if pool.MaxOpenConns <= 0 {
		pool.MaxOpenConns = 25
	}
	if pool.MaxIdleConns <= 0 {
		pool.MaxIdleConns = 5
	}
	if pool.ConnMaxLifetime <= 0 {
		pool.ConnMaxLifetime = 30 * time.Minute
	}
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)

	if err := RunMigrations(db); err != nil {
		return nil, fmt.Errorf("schema patches: %w", err)
	}
	return db, nil
}

// RunMigrations applies every schema patch in order. Each statement is
// guarded (IF NOT EXISTS / DO blocks) so re-running on a current schema is
// a no-op.
func RunMigrations(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		{"create stock_records", `
CREATE TABLE IF NOT EXISTS stock_records (
  sku         VARCHAR(64) PRIMARY KEY,
  available   INTEGER     NOT NULL DEFAULT 0,
  committed   INTEGER     NOT NULL DEFAULT 0,
  created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
  CONSTRAINT chk_stock_available_non_negative CHECK (available >= 0),
  CONSTRAINT chk_stock_committed_non_negative CHECK (committed >= 0)
)`},
		{"create reservations", `
CREATE TABLE IF NOT EXISTS reservations (
  id          UUID        PRIMARY KEY,
  sku         VARCHAR(64) NOT NULL REFERENCES stock_records(sku),
  order_id    VARCHAR(64) NOT NULL,
  quantity    INTEGER     NOT NULL,
  status      VARCHAR(20) NOT NULL,
  expires_at  TIMESTAMPTZ NOT NULL,
  created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
  CONSTRAINT chk_reservation_quantity_positive CHECK (quantity > 0)
)`},
		{"index reservations by order",
			`CREATE INDEX IF NOT EXISTS idx_reservations_order_id ON reservations (order_id)`},
		{"index reservations by status and deadline",
			`CREATE INDEX IF NOT EXISTS idx_reservations_status_expires ON reservations (status, expires_at)`},
		// the reaper only ever scans PENDING rows
		{"partial index for the reaper scan",
			`CREATE INDEX IF NOT EXISTS idx_reservations_pending_expires
			   ON reservations (expires_at) WHERE status = 'PENDING'`},
		{"status check constraint", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_reservation_status') THEN
    ALTER TABLE reservations ADD CONSTRAINT chk_reservation_status
      CHECK (status IN ('PENDING','CONFIRMED','EXPIRED','CANCELLED','FINALIZED'));
  END IF;
END $$`},
		{"create stock_movements", `
CREATE TABLE IF NOT EXISTS stock_movements (
  id               UUID        PRIMARY KEY DEFAULT gen_random_uuid(),
  sku              VARCHAR(64) NOT NULL,
  kind             VARCHAR(20) NOT NULL,
  available_delta  INTEGER     NOT NULL,
  committed_delta  INTEGER     NOT NULL,
  order_id         VARCHAR(64),
  created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
)`},
		{"index stock_movements by sku",
			`CREATE INDEX IF NOT EXISTS idx_stock_movements_sku_created ON stock_movements (sku, created_at DESC)`},
	}

	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
