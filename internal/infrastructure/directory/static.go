// Package directory provides in-process implementations of the address and
// user lookups the order flow depends on. Both are owned by external
// services in production; these static versions back local deployments and
// tests.
package directory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
)

// StaticAddressBook resolves address references from an in-memory table.
type StaticAddressBook struct {
	mu        sync.RWMutex
	addresses map[string]valueobject.Address
}

// NewStaticAddressBook creates an empty address book.
func NewStaticAddressBook() *StaticAddressBook {
	return &StaticAddressBook{
		addresses: make(map[string]valueobject.Address),
	}
}

// Register adds or replaces an address under a reference.
func (b *StaticAddressBook) Register(addressRef string, addr valueobject.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addresses[addressRef] = addr
}

// Resolve returns the address for a reference.
func (b *StaticAddressBook) Resolve(ctx context.Context, addressRef string) (valueobject.Address, error) {
	if addressRef == "" {
		return valueobject.Address{}, shared.NewDomainError("INVALID_INPUT", "Address reference cannot be empty")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	addr, ok := b.addresses[addressRef]
	if !ok {
		return valueobject.Address{}, shared.ErrNotFound
	}
	return addr, nil
}

// StaticUserDirectory answers existence and permission checks from an
// in-memory table of users and their permissions.
type StaticUserDirectory struct {
	mu    sync.RWMutex
	users map[uuid.UUID]map[string]bool
}

// NewStaticUserDirectory creates an empty user directory.
func NewStaticUserDirectory() *StaticUserDirectory {
	return &StaticUserDirectory{
		users: make(map[uuid.UUID]map[string]bool),
	}
}

// Register adds a user with the given permissions. Registering again
// replaces the permission set.
func (d *StaticUserDirectory) Register(userID uuid.UUID, permissions ...string) {
	perms := make(map[string]bool, len(permissions))
	for _, p := range permissions {
		perms[p] = true
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[userID] = perms
}

// Exists reports whether the user is registered.
func (d *StaticUserDirectory) Exists(ctx context.Context, userID uuid.UUID) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.users[userID]
	return ok, nil
}

// Authorize checks that the user holds the named permission.
func (d *StaticUserDirectory) Authorize(ctx context.Context, userID uuid.UUID, permission string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	perms, ok := d.users[userID]
	if !ok {
		return shared.ErrForbidden
	}
	if !perms[permission] {
		return shared.ErrForbidden
	}
	return nil
}

var (
	_ shared.AddressBook   = (*StaticAddressBook)(nil)
	_ shared.UserDirectory = (*StaticUserDirectory)(nil)
)
