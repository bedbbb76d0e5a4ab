package inventory

import (
	"context"

	"github.com/google/uuid"
)

// ReservationLine is one product's share of a reservation batch
type ReservationLine struct {
	ProductID uuid.UUID
	Quantity  int64
}

// Ledger owns all stock-quantity mutation. Reserve is a single atomic
// conditional decrement at the storage layer; no caller may read stock and
// write it back. Release is an unconditional increment and is always safe.
type Ledger interface {
	// Reserve atomically decrements available stock by quantity, only if
	// at least that much is available. Fails with shared.ErrNotFound for an
	// unknown product and shared.ErrInsufficientStock when the decrement
	// would go negative.
	Reserve(ctx context.Context, productID uuid.UUID, quantity int64) error

	// Release atomically increments available stock by quantity (restock)
	Release(ctx context.Context, productID uuid.UUID, quantity int64) error

	// ReserveMany reserves every line or none. On the first failing line
	// every reservation already applied in this batch is released before
	// the error is returned.
	ReserveMany(ctx context.Context, lines []ReservationLine) error

	// ReleaseMany releases every line. Used for cancellation restock and
	// as the compensating action when a step after reservation fails.
	ReleaseMany(ctx context.Context, lines []ReservationLine) error
}
