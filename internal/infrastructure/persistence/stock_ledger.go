package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/inventory"
	"github.com/storefront/backend/internal/domain/shared"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GormStockLedger implements inventory.Ledger against the products table.
// Reservation is one conditional UPDATE whose WHERE clause carries the
// stock check; the row count tells success apart from failure. Stock is
// never read before writing, so two racing reservations cannot both pass
// a stale check.
type GormStockLedger struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormStockLedger creates a new GormStockLedger
func NewGormStockLedger(db *gorm.DB, logger *zap.Logger) *GormStockLedger {
	return &GormStockLedger{db: db, logger: logger}
}

// Reserve atomically decrements available stock by quantity, only if at
// least that much is available
func (l *GormStockLedger) Reserve(ctx context.Context, productID uuid.UUID, quantity int64) error {
	if quantity <= 0 {
		return shared.NewDomainError("INVALID_INPUT", "Reservation quantity must be positive")
	}

	result := l.db.WithContext(ctx).
		Model(&catalog.Product{}).
		Where("id = ? AND stock_quantity >= ?", productID, quantity).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity - ?", quantity))

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		// The guard rejected: either the product is unknown or the stock
		// is short. Only now is a read needed, to tell the two apart.
		var count int64
		if err := l.db.WithContext(ctx).
			Model(&catalog.Product{}).
			Where("id = ?", productID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return shared.ErrNotFound
		}
		return shared.ErrInsufficientStock
	}

	return nil
}

// Release atomically increments available stock by quantity
func (l *GormStockLedger) Release(ctx context.Context, productID uuid.UUID, quantity int64) error {
	if quantity <= 0 {
		return shared.NewDomainError("INVALID_INPUT", "Release quantity must be positive")
	}

	result := l.db.WithContext(ctx).
		Model(&catalog.Product{}).
		Where("id = ?", productID).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity + ?", quantity))

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}

	return nil
}

// ReserveMany reserves every line or none. Applied reservations are rolled
// back with compensating releases when a later line fails.
func (l *GormStockLedger) ReserveMany(ctx context.Context, lines []inventory.ReservationLine) error {
	if len(lines) == 0 {
		return shared.NewDomainError("INVALID_INPUT", "Reservation batch cannot be empty")
	}

	applied := make([]inventory.ReservationLine, 0, len(lines))
	for _, line := range lines {
		if err := l.Reserve(ctx, line.ProductID, line.Quantity); err != nil {
			l.compensate(ctx, applied)
			return err
		}
		applied = append(applied, line)
	}

	return nil
}

// ReleaseMany releases every line
func (l *GormStockLedger) ReleaseMany(ctx context.Context, lines []inventory.ReservationLine) error {
	for _, line := range lines {
		if err := l.Release(ctx, line.ProductID, line.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// compensate releases already-applied reservations after a batch failure.
// A failed release here means stock stays under-counted until repaired, so
// it is logged loudly rather than returned: the caller's error is the
// reservation failure, not the cleanup's.
func (l *GormStockLedger) compensate(ctx context.Context, applied []inventory.ReservationLine) {
	for _, line := range applied {
		if err := l.Release(ctx, line.ProductID, line.Quantity); err != nil {
			l.logger.Error("compensating release failed",
				zap.String("product_id", line.ProductID.String()),
				zap.Int64("quantity", line.Quantity),
				zap.Error(err),
			)
		}
	}
}

// Ensure GormStockLedger implements inventory.Ledger
var _ inventory.Ledger = (*GormStockLedger)(nil)
