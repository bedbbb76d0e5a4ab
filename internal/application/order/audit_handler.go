package order

import (
	"context"
	"fmt"

	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// LifecycleAuditHandler subscribes to every order lifecycle event and
// writes a structured audit record for it. The audit trail is the log
// stream itself; operators correlate entries by order_id and event_id.
type LifecycleAuditHandler struct {
	logger *zap.Logger
}

// NewLifecycleAuditHandler creates a new audit handler for order lifecycle events
func NewLifecycleAuditHandler(logger *zap.Logger) *LifecycleAuditHandler {
	return &LifecycleAuditHandler{logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *LifecycleAuditHandler) EventTypes() []string {
	return []string{
		order.EventTypeOrderCreated,
		order.EventTypeOrderStatusChanged,
		order.EventTypeOrderCancelled,
		order.EventTypeOrderPaid,
		order.EventTypeOrderRefunded,
		order.EventTypeOrderReturnRequested,
	}
}

// Handle records an audit entry for the given order lifecycle event
func (h *LifecycleAuditHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_id", event.EventID().String()),
		zap.String("event_type", event.EventType()),
		zap.String("order_id", event.AggregateID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
	}

	switch e := event.(type) {
	case *order.CreatedEvent:
		fields = append(fields,
			zap.String("order_number", e.OrderNumber),
			zap.String("user_id", e.UserID.String()),
			zap.String("total_amount", e.TotalAmount.String()),
			zap.Int("items_count", len(e.Items)),
		)
	case *order.StatusChangedEvent:
		fields = append(fields,
			zap.String("order_number", e.OrderNumber),
			zap.String("user_id", e.UserID.String()),
			zap.String("from_status", string(e.FromStatus)),
			zap.String("to_status", string(e.ToStatus)),
		)
	case *order.CancelledEvent:
		fields = append(fields,
			zap.String("order_number", e.OrderNumber),
			zap.String("user_id", e.UserID.String()),
			zap.Int("items_count", len(e.Items)),
		)
	case *order.PaidEvent:
		fields = append(fields,
			zap.String("order_number", e.OrderNumber),
			zap.String("user_id", e.UserID.String()),
			zap.String("total_amount", e.TotalAmount.String()),
		)
	case *order.RefundedEvent:
		fields = append(fields,
			zap.String("order_number", e.OrderNumber),
			zap.String("user_id", e.UserID.String()),
			zap.String("total_amount", e.TotalAmount.String()),
		)
	case *order.ReturnRequestedEvent:
		fields = append(fields,
			zap.String("order_number", e.OrderNumber),
			zap.String("user_id", e.UserID.String()),
			zap.String("reason", e.Reason),
		)
	default:
		h.logger.Error("unexpected event type in audit handler",
			zap.String("event_type", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: %s", event.EventType())
	}

	h.logger.Info("order lifecycle event", fields...)
	return nil
}

// Ensure LifecycleAuditHandler implements shared.EventHandler
var _ shared.EventHandler = (*LifecycleAuditHandler)(nil)
