package shared

import (
	"context"

	"github.com/google/uuid"
)

// Notification is a user-facing message about an order lifecycle event.
type Notification struct {
	UserID  uuid.UUID
	OrderID uuid.UUID
	Event   string
	Detail  string
}

// NotificationDispatcher delivers notifications to users. Delivery is
// best-effort: implementations must not fail the calling operation, so
// Send returns nothing and failures are handled inside the dispatcher.
type NotificationDispatcher interface {
	// Send delivers a notification. Never blocks the caller on delivery.
	Send(ctx context.Context, n Notification)
}
