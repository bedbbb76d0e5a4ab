package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/inventory"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
)

// OrderService coordinates the order lifecycle: creation with stock
// reservation, fulfilment transitions, cancellation with restock,
// the return workflow and deletion.
type OrderService struct {
	orderRepo      order.Repository
	catalog        catalog.Catalog
	ledger         inventory.Ledger
	addressBook    shared.AddressBook
	notifier       shared.NotificationDispatcher
	eventPublisher shared.EventPublisher
	metrics        *telemetry.BusinessMetrics
	logger         *zap.Logger
}

// NewOrderService creates an order service.
func NewOrderService(
	orderRepo order.Repository,
	cat catalog.Catalog,
	ledger inventory.Ledger,
	addressBook shared.AddressBook,
	notifier shared.NotificationDispatcher,
	logger *zap.Logger,
) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		orderRepo:   orderRepo,
		catalog:     cat,
		ledger:      ledger,
		addressBook: addressBook,
		notifier:    notifier,
		logger:      logger,
	}
}

// SetEventPublisher sets the event publisher for domain events.
func (s *OrderService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetBusinessMetrics sets the business metrics recorder.
func (s *OrderService) SetBusinessMetrics(metrics *telemetry.BusinessMetrics) {
	s.metrics = metrics
}

// Create places a new order for the given user. Stock for every line is
// reserved atomically before the order is persisted; if persistence
// fails the reservation is released again.
func (s *OrderService) Create(ctx context.Context, userID uuid.UUID, req *CreateOrderRequest) (*OrderResponse, error) {
	if _, err := s.addressBook.Resolve(ctx, req.ShippingAddressRef); err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Shipping address reference could not be resolved")
	}

	o, err := order.NewOrder(userID, s.generateOrderNumber(), req.ShippingAddressRef)
	if err != nil {
		return nil, err
	}

	lines := make([]inventory.ReservationLine, 0, len(req.Items))
	for _, item := range req.Items {
		product, err := s.catalog.GetProduct(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		if _, err := o.AddItem(product.ID, product.Name, item.Quantity, product.UnitPriceMoney()); err != nil {
			return nil, err
		}
		lines = append(lines, inventory.ReservationLine{
			ProductID: product.ID,
			Quantity:  item.Quantity,
		})
	}

	if err := s.ledger.ReserveMany(ctx, lines); err != nil {
		return nil, err
	}

	if err := s.orderRepo.Save(ctx, o); err != nil {
		if releaseErr := s.ledger.ReleaseMany(ctx, lines); releaseErr != nil {
			s.logger.Error("Failed to release reserved stock after order save failure",
				zap.String("order_number", o.OrderNumber),
				zap.Error(releaseErr))
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordOrderCreated(ctx, o.TotalAmount)
	}
	s.publishEvents(ctx, o)
	s.notify(ctx, o, "order.created", fmt.Sprintf("Order %s created", o.OrderNumber))

	return ToOrderResponse(o), nil
}

// Get retrieves an order owned by the given user.
func (s *OrderService) Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderResponse, error) {
	o, err := s.orderRepo.FindByIDForUser(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	return ToOrderResponse(o), nil
}

// GetByOrderNumber retrieves an order by its order number.
func (s *OrderService) GetByOrderNumber(ctx context.Context, orderNumber string) (*OrderResponse, error) {
	o, err := s.orderRepo.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	return ToOrderResponse(o), nil
}

// ListForUser lists the given user's own orders.
func (s *OrderService) ListForUser(ctx context.Context, userID uuid.UUID, filter *OrderListFilter) (*shared.Paginated[*OrderListItemResponse], error) {
	f := s.buildFilter(filter)
	delete(f.Filters, "user_id")

	orders, err := s.orderRepo.FindAllForUser(ctx, userID, f)
	if err != nil {
		return nil, err
	}
	total, err := s.orderRepo.CountForUser(ctx, userID, f)
	if err != nil {
		return nil, err
	}

	return s.paginate(orders, total, f), nil
}

// List lists orders across all users.
func (s *OrderService) List(ctx context.Context, filter *OrderListFilter) (*shared.Paginated[*OrderListItemResponse], error) {
	f := s.buildFilter(filter)

	orders, err := s.orderRepo.FindAll(ctx, f)
	if err != nil {
		return nil, err
	}
	total, err := s.orderRepo.Count(ctx, f)
	if err != nil {
		return nil, err
	}

	return s.paginate(orders, total, f), nil
}

// UpdateStatus advances an order along the fulfilment lifecycle.
// Cancellation is not a valid target here; use Cancel.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, req *UpdateOrderStatusRequest) (*OrderResponse, error) {
	o, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := o.UpdateStatus(order.Status(req.Status)); err != nil {
		return nil, err
	}

	if err := s.orderRepo.SaveWithLock(ctx, o); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, o)
	s.notify(ctx, o, "order.status_changed",
		fmt.Sprintf("Order %s is now %s", o.OrderNumber, o.Status))

	return ToOrderResponse(o), nil
}

// Cancel cancels an order owned by the given user. Cancelling an
// already cancelled order is a no-op and succeeds. Reserved stock is
// returned to the ledger only after the cancellation is persisted.
func (s *OrderService) Cancel(ctx context.Context, userID, orderID uuid.UUID) (*OrderResponse, error) {
	o, err := s.orderRepo.FindByIDForUser(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	changed, err := o.Cancel()
	if err != nil {
		return nil, err
	}
	if !changed {
		return ToOrderResponse(o), nil
	}

	if err := s.orderRepo.SaveWithLock(ctx, o); err != nil {
		return nil, err
	}

	if err := s.ledger.ReleaseMany(ctx, s.reservationLines(o)); err != nil {
		// The cancellation is already durable; restock failure is
		// recoverable by reconciliation, not by failing the caller.
		s.logger.Error("Failed to restock after order cancellation",
			zap.String("order_id", o.ID.String()),
			zap.String("order_number", o.OrderNumber),
			zap.Error(err))
	}

	if s.metrics != nil {
		s.metrics.RecordOrderCancelled(ctx)
	}
	s.publishEvents(ctx, o)
	s.notify(ctx, o, "order.cancelled", fmt.Sprintf("Order %s cancelled", o.OrderNumber))

	return ToOrderResponse(o), nil
}

// RequestReturn opens a return for a delivered order owned by the user.
func (s *OrderService) RequestReturn(ctx context.Context, userID, orderID uuid.UUID, req *RequestReturnRequest) (*OrderResponse, error) {
	o, err := s.orderRepo.FindByIDForUser(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	if err := o.RequestReturn(req.Reason); err != nil {
		return nil, err
	}

	if err := s.orderRepo.SaveWithLock(ctx, o); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, o)
	s.notify(ctx, o, "order.return_requested",
		fmt.Sprintf("Return requested for order %s", o.OrderNumber))

	return ToOrderResponse(o), nil
}

// ReviewReturn approves or rejects a requested return.
func (s *OrderService) ReviewReturn(ctx context.Context, orderID uuid.UUID, req *ReviewReturnRequest) (*OrderResponse, error) {
	o, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := o.ReviewReturn(req.Approve); err != nil {
		return nil, err
	}

	if err := s.orderRepo.SaveWithLock(ctx, o); err != nil {
		return nil, err
	}

	outcome := "rejected"
	if req.Approve {
		outcome = "approved"
	}
	s.notify(ctx, o, "order.return_reviewed",
		fmt.Sprintf("Return for order %s %s", o.OrderNumber, outcome))

	return ToOrderResponse(o), nil
}

// MarkReturned records the physical receipt of an approved return.
func (s *OrderService) MarkReturned(ctx context.Context, orderID uuid.UUID) (*OrderResponse, error) {
	o, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := o.MarkReturned(); err != nil {
		return nil, err
	}

	if err := s.orderRepo.SaveWithLock(ctx, o); err != nil {
		return nil, err
	}

	s.notify(ctx, o, "order.returned",
		fmt.Sprintf("Order %s marked as returned", o.OrderNumber))

	return ToOrderResponse(o), nil
}

// Delete removes an unpaid order. Only the owner may delete, and only
// while the order is pending or processing. Deletion does not restock:
// the reservation stays consumed.
func (s *OrderService) Delete(ctx context.Context, userID, orderID uuid.UUID) error {
	o, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return err
	}

	if err := o.CanDelete(userID); err != nil {
		return err
	}

	if err := s.orderRepo.Delete(ctx, orderID); err != nil {
		return err
	}

	s.logger.Info("Order deleted",
		zap.String("order_id", orderID.String()),
		zap.String("order_number", o.OrderNumber),
		zap.String("user_id", userID.String()))
	return nil
}

// GetStatusSummary returns order counts per lifecycle status.
func (s *OrderService) GetStatusSummary(ctx context.Context) (*OrderStatusSummary, error) {
	summary := &OrderStatusSummary{}

	counts := []struct {
		status order.Status
		target *int64
	}{
		{order.StatusPending, &summary.Pending},
		{order.StatusProcessing, &summary.Processing},
		{order.StatusShipped, &summary.Shipped},
		{order.StatusDelivered, &summary.Delivered},
		{order.StatusCancelled, &summary.Cancelled},
	}

	for _, c := range counts {
		count, err := s.orderRepo.CountByStatus(ctx, c.status)
		if err != nil {
			return nil, err
		}
		*c.target = count
		summary.Total += count
	}

	return summary, nil
}

func (s *OrderService) generateOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", time.Now().UTC().Format("20060102"), suffix)
}

func (s *OrderService) reservationLines(o *order.Order) []inventory.ReservationLine {
	lines := make([]inventory.ReservationLine, 0, len(o.Items))
	for _, item := range o.Items {
		lines = append(lines, inventory.ReservationLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}
	return lines
}

func (s *OrderService) buildFilter(filter *OrderListFilter) shared.Filter {
	if filter == nil {
		filter = &OrderListFilter{}
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	if filter.OrderBy == "" {
		filter.OrderBy = "created_at"
	}
	if filter.OrderDir == "" {
		filter.OrderDir = "desc"
	}

	f := shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
		Search:   filter.Search,
		Filters:  make(map[string]interface{}),
	}

	if filter.Status != "" {
		f.Filters["status"] = filter.Status
	}
	if filter.PaymentStatus != "" {
		f.Filters["payment_status"] = filter.PaymentStatus
	}
	if filter.ReturnStatus != "" {
		f.Filters["return_status"] = filter.ReturnStatus
	}
	if filter.UserID != "" {
		f.Filters["user_id"] = filter.UserID
	}
	if filter.StartDate != "" {
		f.Filters["start_date"] = filter.StartDate
	}
	if filter.EndDate != "" {
		f.Filters["end_date"] = filter.EndDate
	}

	return f
}

func (s *OrderService) paginate(orders []order.Order, total int64, f shared.Filter) *shared.Paginated[*OrderListItemResponse] {
	items := make([]*OrderListItemResponse, 0, len(orders))
	for i := range orders {
		items = append(items, ToOrderListItemResponse(&orders[i]))
	}
	result := shared.NewPaginated(items, total, f.Page, f.PageSize)
	return &result
}

func (s *OrderService) publishEvents(ctx context.Context, o *order.Order) {
	if s.eventPublisher == nil {
		o.ClearDomainEvents()
		return
	}
	for _, event := range o.GetDomainEvents() {
		if err := s.eventPublisher.Publish(ctx, event); err != nil {
			s.logger.Warn("Failed to publish domain event",
				zap.String("event_type", event.EventType()),
				zap.String("order_id", o.ID.String()),
				zap.Error(err))
		}
	}
	o.ClearDomainEvents()
}

func (s *OrderService) notify(ctx context.Context, o *order.Order, event, detail string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Send(ctx, shared.Notification{
		UserID:  o.UserID,
		OrderID: o.ID,
		Event:   event,
		Detail:  detail,
	})
}
