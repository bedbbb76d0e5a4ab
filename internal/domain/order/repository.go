package order

import (
	"context"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/shared"
)

// Repository defines the interface for order persistence
type Repository interface {
	// FindByID finds an order by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindByIDForUser finds an order by ID owned by the given user
	FindByIDForUser(ctx context.Context, userID, id uuid.UUID) (*Order, error)

	// FindByOrderNumber finds an order by its order number
	FindByOrderNumber(ctx context.Context, orderNumber string) (*Order, error)

	// FindAll finds orders with filtering (admin view)
	FindAll(ctx context.Context, filter shared.Filter) ([]Order, error)

	// FindAllForUser finds orders owned by the given user
	FindAllForUser(ctx context.Context, userID uuid.UUID, filter shared.Filter) ([]Order, error)

	// Save creates or updates an order and its items
	Save(ctx context.Context, o *Order) error

	// SaveWithLock saves with optimistic locking (version check).
	// Returns shared.ErrConcurrencyConflict when the stored version moved.
	SaveWithLock(ctx context.Context, o *Order) error

	// Delete removes an order and its items
	Delete(ctx context.Context, id uuid.UUID) error

	// Count counts orders matching the filter
	Count(ctx context.Context, filter shared.Filter) (int64, error)

	// CountForUser counts orders owned by the given user
	CountForUser(ctx context.Context, userID uuid.UUID, filter shared.Filter) (int64, error)

	// CountByStatus counts orders per fulfillment status
	CountByStatus(ctx context.Context, status Status) (int64, error)
}
