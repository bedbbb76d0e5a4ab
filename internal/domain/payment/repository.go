package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/shared"
)

// Repository defines the interface for payment record persistence.
// The table carries a uniqueness constraint on the gateway payment ID; that
// constraint, not an existence pre-check, is the dedupe guard.
type Repository interface {
	// Create inserts the record. The insert races with duplicate webhook
	// deliveries, so it must tolerate the uniqueness conflict: created is
	// false (with a nil error) when a record with the same gateway payment
	// ID already exists.
	Create(ctx context.Context, rec *Record) (created bool, err error)

	// FindByID finds a record by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Record, error)

	// FindByGatewayPaymentID finds a record by its dedupe key
	FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*Record, error)

	// FindByOrder lists all records referencing an order, newest first
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]Record, error)

	// Count counts records matching the filter
	Count(ctx context.Context, filter shared.Filter) (int64, error)
}
