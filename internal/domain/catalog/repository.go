package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
)

// Catalog is the read interface the order path consumes for pricing.
// Unit prices read here are snapshotted onto order items at creation time.
type Catalog interface {
	// GetProduct finds a product by ID. Fails with shared.ErrNotFound for
	// an unknown or inactive product.
	GetProduct(ctx context.Context, productID uuid.UUID) (*Product, error)

	// GetUnitPrice returns the current unit price of a product
	GetUnitPrice(ctx context.Context, productID uuid.UUID) (valueobject.Money, error)
}

// Repository defines the interface for product persistence
type Repository interface {
	Catalog

	// FindAll lists products with filtering
	FindAll(ctx context.Context, filter shared.Filter) ([]Product, error)

	// Save creates or updates a product. Stock quantity changes do not go
	// through here; the inventory ledger owns that column.
	Save(ctx context.Context, p *Product) error

	// Count counts products matching the filter
	Count(ctx context.Context, filter shared.Filter) (int64, error)
}
