package telemetry

import (
	"context"

	"gorm.io/gorm"
)

// GormStockMetricsProvider implements StockMetricsProvider using GORM.
// It queries the products table directly for aggregated stock metrics.
type GormStockMetricsProvider struct {
	db *gorm.DB
}

// NewGormStockMetricsProvider creates a new GormStockMetricsProvider.
func NewGormStockMetricsProvider(db *gorm.DB) *GormStockMetricsProvider {
	return &GormStockMetricsProvider{db: db}
}

// GetLowStockCount returns the number of active products at or below the threshold.
func (p *GormStockMetricsProvider) GetLowStockCount(ctx context.Context, threshold int64) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("products").
		Where("active = ?", true).
		Where("stock_quantity <= ?", threshold).
		Count(&count).Error

	return count, err
}

var _ StockMetricsProvider = (*GormStockMetricsProvider)(nil)
