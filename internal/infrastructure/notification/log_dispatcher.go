// Package notification provides notification dispatch implementations.
// The real delivery channels (email, push) are external services; the
// dispatchers here are the in-process seam the order flow talks to.
package notification

import (
	"context"

	"github.com/storefront/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// LogDispatcher writes every notification to the structured log. It is the
// default dispatcher when no delivery channel is configured and a useful
// stand-in for tests.
type LogDispatcher struct {
	logger *zap.Logger
}

// NewLogDispatcher creates a new LogDispatcher.
func NewLogDispatcher(log *zap.Logger) *LogDispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogDispatcher{logger: log}
}

// Send logs the notification. It never fails the caller: a notification
// that cannot be delivered is logged and dropped.
func (d *LogDispatcher) Send(ctx context.Context, n shared.Notification) {
	if n.Event == "" {
		d.logger.Warn("Dropping notification without event type",
			zap.String("user_id", n.UserID.String()),
			zap.String("order_id", n.OrderID.String()),
		)
		return
	}

	d.logger.Info("Notification dispatched",
		zap.String("user_id", n.UserID.String()),
		zap.String("order_id", n.OrderID.String()),
		zap.String("event", n.Event),
		zap.String("detail", n.Detail),
	)
}

var _ shared.NotificationDispatcher = (*LogDispatcher)(nil)
