package shared

import (
	"context"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
)

// AddressBook resolves a shipping address reference captured on an order to
// a full address. The address data itself is owned by an external service;
// orders store only the opaque reference.
type AddressBook interface {
	// Resolve returns the address for a reference.
	// Fails with ErrNotFound for an unknown reference.
	Resolve(ctx context.Context, addressRef string) (valueobject.Address, error)
}

// UserDirectory answers identity questions about users. Authentication is
// handled upstream; this interface covers existence and permission checks
// for route guards and admin operations.
type UserDirectory interface {
	// Exists reports whether the user is known to the directory
	Exists(ctx context.Context, userID uuid.UUID) (bool, error)

	// Authorize checks that the user holds the named permission.
	// Fails with ErrForbidden when the permission is missing.
	Authorize(ctx context.Context, userID uuid.UUID, permission string) error
}
